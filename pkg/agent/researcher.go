package agent

import (
	"context"
	"fmt"
	"math"

	"ma-assistant/internal/pkg/logger"
	"ma-assistant/pkg/bus"
	"ma-assistant/pkg/corpus"
	"ma-assistant/pkg/llm"
	"ma-assistant/pkg/protocol"
)

// Researcher answers research requests: it queries the corpus index and has
// the generation gateway summarize the retrieved evidence.
type Researcher struct {
	index   *corpus.Index
	gateway *llm.Gateway
	topK    int
	log     logger.ILogger
}

func NewResearcher(index *corpus.Index, gateway *llm.Gateway, topK int, log logger.ILogger) *Researcher {
	if topK <= 0 {
		topK = 5
	}
	return &Researcher{
		index:   index,
		gateway: gateway,
		topK:    topK,
		log:     log,
	}
}

// Handler binds the researcher to its bus endpoint.
func (r *Researcher) Handler(endpoint bus.Endpoint) *RoleHandler {
	return NewRoleHandler(endpoint, protocol.RoleResearch, protocol.RoleResearchResult, r.work, r.log)
}

func (r *Researcher) work(ctx context.Context, msg protocol.Message) (string, error) {
	req := protocol.DecodeResearchRequest(msg.Body, r.topK)

	results, err := r.index.Search(req.Query, req.TopK)
	if err != nil {
		return "", fmt.Errorf("agent: corpus search: %w", err)
	}

	evidence := make([]protocol.Evidence, 0, len(results))
	for _, res := range results {
		// Rune-based cap so multi-byte characters survive the cut.
		text := res.Chunk.Text
		if runes := []rune(text); len(runes) > corpus.EvidenceTextLimit {
			text = string(runes[:corpus.EvidenceTextLimit])
		}
		evidence = append(evidence, protocol.Evidence{
			DocID:   res.Chunk.DocID,
			ChunkID: res.Chunk.ChunkID,
			Score:   math.Round(res.Score*10000) / 10000,
			Text:    text,
		})
	}

	userPrompt := fmt.Sprintf(
		"User query: %s\n\nEvidence (mini corpus):\n%s\n\nWrite a summary (5-10 sentences) answering the query, using only the evidence.",
		req.Query,
		renderEvidenceBlock(evidence),
	)
	summary, err := r.gateway.Complete(ctx, researcherSystemPrompt, userPrompt, llm.WithMaxTokens(600))
	if err != nil {
		return "", fmt.Errorf("agent: research summary: %w", err)
	}

	return protocol.ResearchResult{
		Evidence: evidence,
		Summary:  summary,
	}.Encode(), nil
}
