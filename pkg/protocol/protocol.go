// Package protocol defines the message envelope and payload types exchanged
// between the coordinator, researcher and verifier agents.
package protocol

import (
	"encoding/json"

	"github.com/google/uuid"
)

const (
	Ontology = "ma-assistant"
	Protocol = "coordination-v1"
)

// Performatives
const (
	PerformativeRequest = "request"
	PerformativeInform  = "inform"
)

// Role tags distinguishing requests from their results and from unrelated traffic.
const (
	RoleResearch       = "research"
	RoleResearchResult = "research_result"
	RoleVerify         = "verify"
	RoleVerifyResult   = "verify_result"
)

// Verdicts issued by the verifier.
const (
	VerdictPass = "PASS"
	VerdictWarn = "WARN"
	VerdictFail = "FAIL"
)

// Message is the envelope delivered over the agent bus. Role plus
// ConversationID correlate a request with its result.
type Message struct {
	Sender         string `json:"sender"`
	Recipient      string `json:"recipient"`
	Performative   string `json:"performative"`
	Ontology       string `json:"ontology"`
	Protocol       string `json:"protocol"`
	ConversationID string `json:"conversation_id"`
	Role           string `json:"role"`
	Body           string `json:"body"`
}

// NewConversationID mints the unique token correlating every message of one
// user turn. IDs are never reused.
func NewConversationID() string {
	return uuid.New().String()
}

// NewRequest builds a request envelope with standard ontology/protocol tags.
func NewRequest(sender, recipient, conversationID, role, body string) Message {
	return Message{
		Sender:         sender,
		Recipient:      recipient,
		Performative:   PerformativeRequest,
		Ontology:       Ontology,
		Protocol:       Protocol,
		ConversationID: conversationID,
		Role:           role,
		Body:           body,
	}
}

// NewReply builds the inform envelope answering a request, addressed back to
// the requester and carrying the same conversation ID.
func NewReply(req Message, resultRole, body string) Message {
	return Message{
		Sender:         req.Recipient,
		Recipient:      req.Sender,
		Performative:   PerformativeInform,
		Ontology:       Ontology,
		Protocol:       Protocol,
		ConversationID: req.ConversationID,
		Role:           resultRole,
		Body:           body,
	}
}

// Evidence is the citation-bearing view of a corpus chunk plus its query-time
// relevance score. Text is truncated at retrieval time.
type Evidence struct {
	DocID   string  `json:"doc_id"`
	ChunkID int     `json:"chunk_id"`
	Score   float64 `json:"score"`
	Text    string  `json:"text"`
}

type ResearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type ResearchResult struct {
	Evidence []Evidence `json:"evidence"`
	Summary  string     `json:"summary"`
}

type VerifyRequest struct {
	DraftAnswer string     `json:"draft_answer"`
	Evidence    []Evidence `json:"evidence"`
}

type VerifyResult struct {
	Verdict        string   `json:"verdict"`
	Issues         []string `json:"issues"`
	SuggestedFixes []string `json:"suggested_fixes"`
}

// NeedsRevision reports whether the verdict asks for the draft to be reworked.
func (v VerifyResult) NeedsRevision() bool {
	return v.Verdict == VerdictWarn || v.Verdict == VerdictFail
}

func (r ResearchRequest) Encode() string { return encode(r) }
func (r ResearchResult) Encode() string  { return encode(r) }
func (r VerifyRequest) Encode() string   { return encode(r) }
func (r VerifyResult) Encode() string    { return encode(r) }

func encode(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// DecodeResearchRequest parses a research request body permissively: a body
// that is not valid JSON is treated as the raw query itself.
func DecodeResearchRequest(body string, defaultTopK int) ResearchRequest {
	var req ResearchRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return ResearchRequest{Query: body, TopK: defaultTopK}
	}
	if req.TopK <= 0 {
		req.TopK = defaultTopK
	}
	return req
}

// DecodeResearchResult parses a research result body, defaulting missing
// fields to empty values.
func DecodeResearchResult(body string) ResearchResult {
	var res ResearchResult
	if err := json.Unmarshal([]byte(body), &res); err != nil {
		return ResearchResult{}
	}
	return res
}

// DecodeVerifyRequest parses a verify request body permissively: a body that
// is not valid JSON becomes the draft answer with no evidence.
func DecodeVerifyRequest(body string) VerifyRequest {
	var req VerifyRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return VerifyRequest{DraftAnswer: body}
	}
	return req
}

// DecodeVerifyResult parses a verify result body, defaulting to a WARN
// verdict when the body is unreadable.
func DecodeVerifyResult(body string) VerifyResult {
	var res VerifyResult
	if err := json.Unmarshal([]byte(body), &res); err != nil {
		return VerifyResult{Verdict: VerdictWarn}
	}
	if res.Verdict == "" {
		res.Verdict = VerdictWarn
	}
	return res
}
