package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"ma-assistant/internal/bootstrap"
	"ma-assistant/internal/config"
	"ma-assistant/pkg/agent"
	"ma-assistant/pkg/protocol"

	"github.com/fatih/color"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(cfg)
	if err != nil {
		log.Fatalf("Failed to bootstrap: %v", err)
	}
	defer container.Close()
	defer container.Logger.Sync()

	// 3. Start Role Handlers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	container.RunHandlers(ctx)

	fmt.Println("\nMulti-agent assistant started. Enter a question (or 'exit', 'quit').")
	fmt.Println()

	// 4. Drain user input one turn at a time
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if isExit(text) {
			break
		}

		result, err := container.Orchestrator.RunTurn(ctx, text)
		if err != nil {
			if errors.Is(err, agent.ErrResearchTimeout) {
				color.Red("[ERROR] Researcher timed out; turn aborted.")
			} else {
				color.Red("[ERROR] %v", err)
			}
			continue
		}

		printVerdict(result)
		fmt.Println("\n=== ANSWER ===")
		fmt.Println(result.Answer)
		fmt.Println("==============")
		fmt.Println()
	}

	fmt.Println("Stopped.")
}

func isExit(text string) bool {
	switch strings.ToLower(text) {
	case "exit", "quit":
		return true
	}
	return false
}

func printVerdict(result *agent.TurnResult) {
	if !result.Verified {
		color.Yellow("[Verifier: no verdict, draft is final]")
		return
	}

	line := fmt.Sprintf("[Verifier: %s]", result.Verdict)
	if len(result.Issues) > 0 {
		max := len(result.Issues)
		if max > 3 {
			max = 3
		}
		line += " " + strings.Join(result.Issues[:max], " | ")
	}

	switch result.Verdict {
	case protocol.VerdictPass:
		color.Green("%s", line)
	case protocol.VerdictFail:
		color.Red("%s", line)
	default:
		color.Yellow("%s", line)
	}
}
