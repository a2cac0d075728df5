package domain

const (
	RoleMember    = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is the provider-agnostic role/content pair handed to the model
// gateway, oldest first.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completion is the raw provider output for one call, with token usage for
// costing.
type Completion struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}
