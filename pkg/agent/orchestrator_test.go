package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ma-assistant/internal/pkg/logger"
	"ma-assistant/pkg/llm"
	"ma-assistant/pkg/protocol"
)

const testAwaitTimeout = 150 * time.Millisecond

func testEvidence() []protocol.Evidence {
	return []protocol.Evidence{
		{DocID: "paper1", ChunkID: 0, Score: 0.9, Text: "The sky is blue."},
	}
}

// respondWith builds the peer-agent hook: a research reply always arrives,
// a verify reply only when verdict is non-empty.
func respondWith(verdict protocol.VerifyResult, answerVerify bool) func(protocol.Message) *protocol.Message {
	return func(m protocol.Message) *protocol.Message {
		switch m.Role {
		case protocol.RoleResearch:
			reply := protocol.NewReply(m, protocol.RoleResearchResult, protocol.ResearchResult{
				Evidence: testEvidence(),
				Summary:  "The corpus says the sky is blue. [paper1:0]",
			}.Encode())
			return &reply
		case protocol.RoleVerify:
			if !answerVerify {
				return nil
			}
			reply := protocol.NewReply(m, protocol.RoleVerifyResult, verdict.Encode())
			return &reply
		}
		return nil
	}
}

func newTestOrchestrator(endpoint *fakeEndpoint, provider llm.LLMProvider) *Orchestrator {
	gateway := llm.NewGateway(provider, logger.NewNopLogger())
	return NewOrchestrator(endpoint, gateway, OrchestratorConfig{
		ResearcherAddr: "researcher",
		VerifierAddr:   "verifier",
		TopK:           5,
		AwaitTimeout:   testAwaitTimeout,
	}, logger.NewNopLogger())
}

func passingProvider() *scriptedProvider {
	return &scriptedProvider{
		planResponse:     `{"research_query": "sky color", "subtasks": ["look it up"], "notes": "short"}`,
		draftResponse:    "The sky is blue. [paper1:0]",
		revisionResponse: "The sky is blue, softened. [paper1:0]",
	}
}

func TestTurnPassVerdictKeepsDraft(t *testing.T) {
	provider := passingProvider()
	endpoint := newFakeEndpoint(respondWith(protocol.VerifyResult{Verdict: protocol.VerdictPass}, true))
	o := newTestOrchestrator(endpoint, provider)

	result, err := o.RunTurn(context.Background(), "what color is the sky?")
	require.NoError(t, err)

	// PASS means the emitted answer is the draft, byte for byte.
	assert.Equal(t, "The sky is blue. [paper1:0]", result.Answer)
	assert.True(t, result.Verified)
	assert.False(t, result.Revised)
	assert.Equal(t, protocol.VerdictPass, result.Verdict)
	assert.Equal(t, 0, provider.revisionCalls)
	assert.Equal(t, 1, o.History().Len())
}

func TestTurnFailVerdictRevisesExactlyOnce(t *testing.T) {
	provider := passingProvider()
	verdict := protocol.VerifyResult{
		Verdict:        protocol.VerdictFail,
		Issues:         []string{"unsupported claim X"},
		SuggestedFixes: []string{"cite the corpus"},
	}
	endpoint := newFakeEndpoint(respondWith(verdict, true))
	o := newTestOrchestrator(endpoint, provider)

	result, err := o.RunTurn(context.Background(), "what color is the sky?")
	require.NoError(t, err)

	assert.NotEqual(t, provider.draftResponse, result.Answer)
	assert.Equal(t, "The sky is blue, softened. [paper1:0]", result.Answer)
	assert.True(t, result.Revised)
	assert.Equal(t, []string{"unsupported claim X"}, result.Issues)
	assert.Equal(t, 1, provider.revisionCalls, "revision is single-pass")
	assert.Equal(t, 1, o.History().Len())
}

func TestTurnResearchTimeoutAborts(t *testing.T) {
	provider := passingProvider()
	// The researcher never answers.
	endpoint := newFakeEndpoint(func(protocol.Message) *protocol.Message { return nil })
	o := newTestOrchestrator(endpoint, provider)

	before := o.History().Len()
	_, err := o.RunTurn(context.Background(), "what color is the sky?")
	assert.ErrorIs(t, err, ErrResearchTimeout)
	assert.Equal(t, before, o.History().Len(), "aborted turn must not touch history")
	assert.Equal(t, 0, provider.draftCalls, "no drafting without research")
}

func TestTurnVerifyTimeoutKeepsDraftFinal(t *testing.T) {
	provider := passingProvider()
	endpoint := newFakeEndpoint(respondWith(protocol.VerifyResult{}, false))
	o := newTestOrchestrator(endpoint, provider)

	result, err := o.RunTurn(context.Background(), "what color is the sky?")
	require.NoError(t, err)

	assert.Equal(t, "The sky is blue. [paper1:0]", result.Answer)
	assert.False(t, result.Verified)
	assert.False(t, result.Revised)
	assert.Equal(t, 0, provider.revisionCalls)
	assert.Equal(t, 1, o.History().Len(), "verification is best-effort")
}

func TestTurnUnparsablePlanFallsBackToRawQuery(t *testing.T) {
	provider := passingProvider()
	provider.planResponse = "I cannot produce JSON today."
	endpoint := newFakeEndpoint(respondWith(protocol.VerifyResult{Verdict: protocol.VerdictPass}, true))
	o := newTestOrchestrator(endpoint, provider)

	_, err := o.RunTurn(context.Background(), "what color is the sky?")
	require.NoError(t, err)

	sent := endpoint.sentMessages()
	require.NotEmpty(t, sent)
	req := protocol.DecodeResearchRequest(sent[0].Body, 5)
	assert.Equal(t, "what color is the sky?", req.Query)
}

func TestTurnRequestsCarryFreshConversationID(t *testing.T) {
	provider := passingProvider()
	endpoint := newFakeEndpoint(respondWith(protocol.VerifyResult{Verdict: protocol.VerdictPass}, true))
	o := newTestOrchestrator(endpoint, provider)

	first, err := o.RunTurn(context.Background(), "first question")
	require.NoError(t, err)
	second, err := o.RunTurn(context.Background(), "second question")
	require.NoError(t, err)

	assert.NotEqual(t, first.ConversationID, second.ConversationID)

	sent := endpoint.sentMessages()
	require.Len(t, sent, 4) // research + verify per turn
	assert.Equal(t, first.ConversationID, sent[0].ConversationID)
	assert.Equal(t, first.ConversationID, sent[1].ConversationID)
	assert.Equal(t, second.ConversationID, sent[2].ConversationID)
	assert.Equal(t, "researcher", sent[0].Recipient)
	assert.Equal(t, "verifier", sent[1].Recipient)
}

func TestTurnRejectsEmptyInput(t *testing.T) {
	provider := passingProvider()
	endpoint := newFakeEndpoint(nil)
	o := newTestOrchestrator(endpoint, provider)

	_, err := o.RunTurn(context.Background(), "   ")
	assert.Error(t, err)
	assert.Empty(t, endpoint.sentMessages())
}
