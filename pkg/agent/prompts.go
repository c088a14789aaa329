package agent

import (
	"fmt"
	"strings"

	"ma-assistant/pkg/protocol"
)

const planSystemPrompt = `You are the Coordinator in a multi-agent conversational assistant.

Task: break the user's query into subtasks and prepare a research query for the Researcher.

Return ONLY JSON:
{
  "research_query": "...",
  "subtasks": ["...", "..."],
  "notes": "short"
}
`

const draftSystemPrompt = `You are the Coordinator. You received a research summary and evidence.

Write the final answer for the user:
- clear and well structured
- do not invent facts; use only the evidence
- when you use a piece of evidence, add a citation [DOC:CHUNK]
`

const revisionSystemPrompt = `You are the Coordinator. You received a draft and the Verifier's findings.

Fix the draft:
- remove or soften claims without evidence
- add limitations and caveats where needed
- keep [DOC:CHUNK] citations only where they really refer to the evidence
`

const researcherSystemPrompt = `You are the Researcher in a multi-agent conversational assistant.

Task: based on the supplied evidence (from a mini corpus), write a short summary of the relevant facts.

Rules:
- Do not invent facts that are not in the evidence.
- If the evidence is weak or does not cover the query, say so clearly.
- When referring to evidence, add a citation of the form [DOC:CHUNK] (e.g. [paper1:3]).
`

const verifierSystemPrompt = `You are the Verifier in a multi-agent conversational assistant.

Goal: find inconsistencies, hallucinations and unsupported claims.

Instructions:
- You receive a draft answer and a list of evidence (from a mini corpus).
- Extract the key claims from the draft and check whether they are supported by the evidence.
- Flag anything unsupported as an issue.
- Return structured output:
  - verdict: PASS (well supported), WARN (minor problems), FAIL (several key problems)
  - issues: list of problems
  - suggested_fixes: how to fix / what else to look for
- Do not add new facts.
`

// renderEvidenceBlock lists evidence items with bracketed [doc:chunk]
// citation anchors, one per line.
func renderEvidenceBlock(evidence []protocol.Evidence) string {
	lines := make([]string, len(evidence))
	for i, e := range evidence {
		lines[i] = fmt.Sprintf("- [%s:%d] %s", e.DocID, e.ChunkID, e.Text)
	}
	return strings.Join(lines, "\n")
}

// renderHistoryBlock formats recent turns as alternating U/A lines for the
// planning and drafting prompts.
func renderHistoryBlock(pairs []HistoryPair) string {
	lines := make([]string, len(pairs))
	for i, p := range pairs {
		lines[i] = fmt.Sprintf("U: %s\nA: %s", p.User, p.Assistant)
	}
	return strings.Join(lines, "\n")
}
