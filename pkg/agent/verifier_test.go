package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ma-assistant/internal/pkg/logger"
	"ma-assistant/pkg/llm"
	"ma-assistant/pkg/protocol"
)

func newTestVerifier(provider llm.LLMProvider) *Verifier {
	gateway := llm.NewGateway(provider, logger.NewNopLogger())
	return NewVerifier(gateway, logger.NewNopLogger())
}

func verifyWork(t *testing.T, v *Verifier, req protocol.VerifyRequest) protocol.VerifyResult {
	t.Helper()
	msg := protocol.NewRequest("coordinator", "verifier", "conv-1", protocol.RoleVerify, req.Encode())
	body, err := v.work(context.Background(), msg)
	require.NoError(t, err)
	return protocol.DecodeVerifyResult(body)
}

func TestVerifierParsesStructuredJudgement(t *testing.T) {
	provider := &scriptedProvider{
		verdictResponse: `Here is my judgement: {"verdict": "fail", "issues": ["unsupported claim"], "suggested_fixes": ["cite evidence"]}`,
	}
	v := newTestVerifier(provider)

	result := verifyWork(t, v, protocol.VerifyRequest{
		DraftAnswer: "The sky is green.",
		Evidence:    testEvidence(),
	})

	assert.Equal(t, protocol.VerdictFail, result.Verdict)
	assert.Equal(t, []string{"unsupported claim"}, result.Issues)
	assert.Equal(t, []string{"cite evidence"}, result.SuggestedFixes)
}

func TestVerifierUnparsableJudgementFallsBackToWarn(t *testing.T) {
	provider := &scriptedProvider{verdictResponse: "I think it looks fine overall."}
	v := newTestVerifier(provider)

	result := verifyWork(t, v, protocol.VerifyRequest{DraftAnswer: "draft"})

	assert.Equal(t, protocol.VerdictWarn, result.Verdict)
	assert.NotEmpty(t, result.Issues)
	assert.NotEmpty(t, result.SuggestedFixes)
}

func TestVerifierUnknownVerdictDegradesToWarn(t *testing.T) {
	provider := &scriptedProvider{verdictResponse: `{"verdict": "MAYBE", "issues": [], "suggested_fixes": []}`}
	v := newTestVerifier(provider)

	result := verifyWork(t, v, protocol.VerifyRequest{DraftAnswer: "draft"})
	assert.Equal(t, protocol.VerdictWarn, result.Verdict)
}

func TestVerifierPermissiveRequestBody(t *testing.T) {
	provider := &scriptedProvider{verdictResponse: `{"verdict": "PASS", "issues": [], "suggested_fixes": []}`}
	v := newTestVerifier(provider)

	// Body that is not JSON becomes the draft answer with no evidence.
	msg := protocol.NewRequest("coordinator", "verifier", "conv-1", protocol.RoleVerify, "a bare draft")
	body, err := v.work(context.Background(), msg)
	require.NoError(t, err)

	result := protocol.DecodeVerifyResult(body)
	assert.Equal(t, protocol.VerdictPass, result.Verdict)
}
