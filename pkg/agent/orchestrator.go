package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ma-assistant/internal/pkg/logger"
	"ma-assistant/pkg/bus"
	"ma-assistant/pkg/jsonx"
	"ma-assistant/pkg/llm"
	"ma-assistant/pkg/protocol"
)

// ErrResearchTimeout aborts a turn: without research results there is nothing
// to draft from.
var ErrResearchTimeout = errors.New("agent: researcher did not respond in time")

const defaultAwaitTimeout = 30 * time.Second

// Plan is the coordinator's parsed planning output.
type Plan struct {
	ResearchQuery string   `json:"research_query"`
	Subtasks      []string `json:"subtasks"`
	Notes         string   `json:"notes"`
}

// TurnResult is the outcome of one successfully completed user turn.
type TurnResult struct {
	ConversationID string
	Answer         string
	Verdict        string
	Issues         []string
	Verified       bool
	Revised        bool
}

// OrchestratorConfig carries the wiring the coordinator needs to reach its
// peers on the bus.
type OrchestratorConfig struct {
	ResearcherAddr string
	VerifierAddr   string
	TopK           int
	AwaitTimeout   time.Duration
}

// Orchestrator drives the per-turn state machine:
// plan -> research -> draft -> verify -> (revise) -> emit.
// One turn is processed at a time; RunTurn serializes callers.
type Orchestrator struct {
	endpoint bus.Endpoint
	gateway  *llm.Gateway
	history  *History
	cfg      OrchestratorConfig
	log      logger.ILogger

	mu sync.Mutex
}

func NewOrchestrator(endpoint bus.Endpoint, gateway *llm.Gateway, cfg OrchestratorConfig, log logger.ILogger) *Orchestrator {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.AwaitTimeout <= 0 {
		cfg.AwaitTimeout = defaultAwaitTimeout
	}
	return &Orchestrator{
		endpoint: endpoint,
		gateway:  gateway,
		history:  NewHistory(10),
		cfg:      cfg,
		log:      log,
	}
}

// History exposes the rolling conversation memory, mainly for tests and
// status reporting. It must not be mutated outside the orchestrator.
func (o *Orchestrator) History() *History {
	return o.history
}

// RunTurn processes one user query end to end. On error the turn is aborted:
// nothing is appended to history. A research timeout returns
// ErrResearchTimeout; a verification timeout is not an error, the draft
// simply stays final.
func (o *Orchestrator) RunTurn(ctx context.Context, userText string) (*TurnResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	userText = strings.TrimSpace(userText)
	if userText == "" {
		return nil, errors.New("agent: empty user input")
	}

	conversationID := protocol.NewConversationID()
	o.log.Info("coordinator", "turn started", map[string]interface{}{
		"conversation_id": conversationID,
	})

	historyBlock := renderHistoryBlock(o.history.Recent(3))

	// PLAN
	plan, err := o.plan(ctx, userText, historyBlock)
	if err != nil {
		return nil, err
	}

	// AWAIT_RESEARCH
	research, err := o.requestResearch(conversationID, plan.ResearchQuery)
	if err != nil {
		return nil, err
	}

	// DRAFT
	draft, err := o.draft(ctx, userText, historyBlock, plan, research)
	if err != nil {
		return nil, err
	}

	// AWAIT_VERIFY (best-effort) and conditional REVISE
	result := &TurnResult{
		ConversationID: conversationID,
		Answer:         draft,
	}
	if verdict, ok := o.requestVerify(conversationID, draft, research.Evidence); ok {
		result.Verified = true
		result.Verdict = verdict.Verdict
		result.Issues = verdict.Issues
		if verdict.NeedsRevision() {
			revised, err := o.revise(ctx, userText, draft, verdict)
			if err != nil {
				return nil, err
			}
			result.Answer = revised
			result.Revised = true
		}
	} else {
		o.log.Warn("coordinator", "verification skipped, draft is final", map[string]interface{}{
			"conversation_id": conversationID,
		})
	}

	// EMIT: history is touched only on success.
	o.history.Append(userText, result.Answer)
	o.log.Info("coordinator", "turn completed", map[string]interface{}{
		"conversation_id": conversationID,
		"verdict":         result.Verdict,
		"revised":         result.Revised,
	})
	return result, nil
}

// plan asks the gateway for a research plan. Malformed output falls back to
// treating the raw user text as the research query; only a gateway failure
// (already retried internally) aborts the turn.
func (o *Orchestrator) plan(ctx context.Context, userText, historyBlock string) (Plan, error) {
	userForPlan := userText
	if historyBlock != "" {
		userForPlan = fmt.Sprintf("Conversation history (condensed):\n%s\n\nNew query: %s", historyBlock, userText)
	}

	raw, err := o.gateway.Complete(ctx, planSystemPrompt, userForPlan, llm.WithMaxTokens(900))
	if err != nil {
		return Plan{}, fmt.Errorf("agent: planning: %w", err)
	}

	var plan Plan
	if err := jsonx.UnmarshalObject(raw, &plan); err != nil {
		o.log.Warn("coordinator", "unparsable plan, using raw query", map[string]interface{}{
			"error": err.Error(),
		})
		return Plan{ResearchQuery: userText}, nil
	}
	if strings.TrimSpace(plan.ResearchQuery) == "" {
		plan.ResearchQuery = userText
	}
	return plan, nil
}

func (o *Orchestrator) requestResearch(conversationID, query string) (protocol.ResearchResult, error) {
	req := protocol.NewRequest(
		o.endpoint.Name(),
		o.cfg.ResearcherAddr,
		conversationID,
		protocol.RoleResearch,
		protocol.ResearchRequest{Query: query, TopK: o.cfg.TopK}.Encode(),
	)
	if err := o.endpoint.Send(req); err != nil {
		return protocol.ResearchResult{}, fmt.Errorf("agent: sending research request: %w", err)
	}

	msg, err := bus.AwaitRole(o.endpoint, conversationID, protocol.RoleResearchResult, o.cfg.AwaitTimeout, o.log)
	if err != nil {
		if errors.Is(err, bus.ErrAwaitTimeout) {
			return protocol.ResearchResult{}, ErrResearchTimeout
		}
		return protocol.ResearchResult{}, err
	}
	return protocol.DecodeResearchResult(msg.Body), nil
}

func (o *Orchestrator) draft(ctx context.Context, userText, historyBlock string, plan Plan, research protocol.ResearchResult) (string, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "User query: %s\n\n", userText)
	if historyBlock != "" {
		fmt.Fprintf(&prompt, "Context (last 3 turns):\n%s\n\n", historyBlock)
	}
	planJSON, _ := json.Marshal(plan)
	fmt.Fprintf(&prompt, "Plan/subtasks: %s\n\n", planJSON)
	fmt.Fprintf(&prompt, "Research summary: %s\n\n", research.Summary)
	fmt.Fprintf(&prompt, "Evidence:\n%s\n\n", renderEvidenceBlock(research.Evidence))
	prompt.WriteString("Write the final answer.")

	answer, err := o.gateway.Complete(ctx, draftSystemPrompt, prompt.String(), llm.WithMaxTokens(900))
	if err != nil {
		return "", fmt.Errorf("agent: drafting answer: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

// requestVerify sends the draft for verification. The second return is false
// when no verdict arrived in time; verification is best-effort and its
// absence never fails the turn.
func (o *Orchestrator) requestVerify(conversationID, draft string, evidence []protocol.Evidence) (protocol.VerifyResult, bool) {
	req := protocol.NewRequest(
		o.endpoint.Name(),
		o.cfg.VerifierAddr,
		conversationID,
		protocol.RoleVerify,
		protocol.VerifyRequest{DraftAnswer: draft, Evidence: evidence}.Encode(),
	)
	if err := o.endpoint.Send(req); err != nil {
		o.log.Error("coordinator", "sending verify request failed", map[string]interface{}{
			"conversation_id": conversationID,
			"error":           err.Error(),
		})
		return protocol.VerifyResult{}, false
	}

	msg, err := bus.AwaitRole(o.endpoint, conversationID, protocol.RoleVerifyResult, o.cfg.AwaitTimeout, o.log)
	if err != nil {
		return protocol.VerifyResult{}, false
	}
	return protocol.DecodeVerifyResult(msg.Body), true
}

func (o *Orchestrator) revise(ctx context.Context, userText, draft string, verdict protocol.VerifyResult) (string, error) {
	prompt := fmt.Sprintf(
		"QUERY: %s\n\nDRAFT:\n%s\n\nVERIFICATION (verdict=%s):\n- issues: %s\n- suggested_fixes: %s\n\nFix the answer.",
		userText,
		draft,
		verdict.Verdict,
		strings.Join(verdict.Issues, "; "),
		strings.Join(verdict.SuggestedFixes, "; "),
	)

	// Single-pass revision: the result is final and not verified again.
	revised, err := o.gateway.Complete(ctx, revisionSystemPrompt, prompt, llm.WithMaxTokens(900))
	if err != nil {
		return "", fmt.Errorf("agent: revising answer: %w", err)
	}
	return strings.TrimSpace(revised), nil
}
