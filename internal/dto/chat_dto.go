package dto

type ChatRequest struct {
	Query string `json:"query" validate:"required,min=1"`
}

type ChatResponse struct {
	ConversationID string   `json:"conversation_id"`
	Answer         string   `json:"answer"`
	Verdict        string   `json:"verdict,omitempty"`
	Issues         []string `json:"issues,omitempty"`
	Verified       bool     `json:"verified"`
	Revised        bool     `json:"revised"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
