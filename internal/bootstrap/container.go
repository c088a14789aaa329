package bootstrap

import (
	"context"
	"fmt"

	"ma-assistant/internal/config"
	"ma-assistant/internal/pkg/logger"
	"ma-assistant/pkg/agent"
	"ma-assistant/pkg/bus"
	"ma-assistant/pkg/corpus"
	"ma-assistant/pkg/llm"
	"ma-assistant/pkg/llm/factory"
)

// Container wires the assistant: bus transport, corpus index, generation
// gateway, the two role handlers and the coordinator.
type Container struct {
	Logger       logger.ILogger
	Orchestrator *agent.Orchestrator

	transport  bus.Transport
	researcher *agent.RoleHandler
	verifier   *agent.RoleHandler
}

func NewContainer(cfg *config.Config) (*Container, error) {
	// 1. Logging
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Bus transport
	var transport bus.Transport
	switch cfg.App.BusTransport {
	case "nats":
		t, err := bus.NewNATSTransport(cfg.App.NatsURL, sysLogger)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: NATS transport: %w", err)
		}
		transport = t
	default:
		transport = bus.NewGoChannelTransport(sysLogger)
	}

	// Endpoints must exist before any send; the in-process bus drops
	// messages published to topics without consumers.
	coordinatorEp, err := transport.Endpoint(cfg.Agents.CoordinatorAddr)
	if err != nil {
		return nil, err
	}
	researcherEp, err := transport.Endpoint(cfg.Agents.ResearcherAddr)
	if err != nil {
		return nil, err
	}
	verifierEp, err := transport.Endpoint(cfg.Agents.VerifierAddr)
	if err != nil {
		return nil, err
	}

	// 3. Corpus index
	index := corpus.NewIndex(cfg.Corpus.Dir, cfg.Corpus.ChunkChars, cfg.Corpus.Overlap, sysLogger)
	if err := index.Build(); err != nil {
		return nil, fmt.Errorf("bootstrap: building corpus index: %w", err)
	}

	// 4. Generation gateway
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.OpenAIAPIKey,
	)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: LLM provider: %w", err)
	}
	sysLogger.Info("bootstrap", "LLM provider initialized", map[string]interface{}{
		"provider": cfg.Ai.LLMProvider,
		"model":    cfg.Ai.LLMModel,
	})
	gateway := llm.NewGateway(llmProvider, sysLogger)

	// 5. Agents
	researcher := agent.NewResearcher(index, gateway, cfg.Corpus.TopK, sysLogger)
	verifier := agent.NewVerifier(gateway, sysLogger)
	orchestrator := agent.NewOrchestrator(coordinatorEp, gateway, agent.OrchestratorConfig{
		ResearcherAddr: cfg.Agents.ResearcherAddr,
		VerifierAddr:   cfg.Agents.VerifierAddr,
		TopK:           cfg.Corpus.TopK,
		AwaitTimeout:   cfg.Agents.AwaitTimeout,
	}, sysLogger)

	return &Container{
		Logger:       sysLogger,
		Orchestrator: orchestrator,
		transport:    transport,
		researcher:   researcher.Handler(researcherEp),
		verifier:     verifier.Handler(verifierEp),
	}, nil
}

// RunHandlers starts the researcher and verifier polling loops. Each loop is
// sequential on its own goroutine; they stop when ctx is canceled.
func (c *Container) RunHandlers(ctx context.Context) {
	go c.researcher.Run(ctx)
	go c.verifier.Run(ctx)
}

// Close tears down the bus transport.
func (c *Container) Close() error {
	return c.transport.Close()
}
