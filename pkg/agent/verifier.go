package agent

import (
	"context"
	"fmt"
	"strings"

	"ma-assistant/internal/pkg/logger"
	"ma-assistant/pkg/bus"
	"ma-assistant/pkg/jsonx"
	"ma-assistant/pkg/llm"
	"ma-assistant/pkg/protocol"
)

// Verifier judges whether a draft answer is supported by its evidence. Parse
// failures of the model's judgement never fail the turn; they degrade to a
// WARN verdict with a generic diagnostic.
type Verifier struct {
	gateway *llm.Gateway
	log     logger.ILogger
}

func NewVerifier(gateway *llm.Gateway, log logger.ILogger) *Verifier {
	return &Verifier{gateway: gateway, log: log}
}

// Handler binds the verifier to its bus endpoint.
func (v *Verifier) Handler(endpoint bus.Endpoint) *RoleHandler {
	return NewRoleHandler(endpoint, protocol.RoleVerify, protocol.RoleVerifyResult, v.work, v.log)
}

func (v *Verifier) work(ctx context.Context, msg protocol.Message) (string, error) {
	req := protocol.DecodeVerifyRequest(msg.Body)

	userPrompt := fmt.Sprintf(
		"DRAFT ANSWER:\n%s\n\nEVIDENCE:\n%s\n\nReturn the result as a JSON object with keys: verdict, issues, suggested_fixes.",
		req.DraftAnswer,
		renderEvidenceBlock(req.Evidence),
	)

	raw, err := v.gateway.Complete(ctx, verifierSystemPrompt, userPrompt, llm.WithMaxTokens(700))
	if err != nil {
		return "", fmt.Errorf("agent: verification judgement: %w", err)
	}

	return v.parseJudgement(raw).Encode(), nil
}

// parseJudgement extracts the verdict JSON from raw model output, falling
// back deterministically to WARN when the output is unparsable.
func (v *Verifier) parseJudgement(raw string) protocol.VerifyResult {
	var result protocol.VerifyResult
	if err := jsonx.UnmarshalObject(raw, &result); err != nil {
		v.log.Warn("agent", "unparsable verification judgement", map[string]interface{}{
			"error": err.Error(),
			"raw":   raw,
		})
		return protocol.VerifyResult{
			Verdict:        protocol.VerdictWarn,
			Issues:         []string{"Could not parse JSON from the verification output; see the raw judgement in the log."},
			SuggestedFixes: []string{"Request strict JSON output in the prompt."},
		}
	}

	result.Verdict = strings.ToUpper(strings.TrimSpace(result.Verdict))
	switch result.Verdict {
	case protocol.VerdictPass, protocol.VerdictWarn, protocol.VerdictFail:
	default:
		result.Verdict = protocol.VerdictWarn
	}
	return result
}
