package domain

import "time"

// ConversationMessage is a single persisted member or assistant turn.
// Only Active is ever mutated after creation.
type ConversationMessage struct {
	ID        string    `json:"id"`
	MemberID  string    `json:"memberId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	MovieIDs  []int64   `json:"recommendedMovieIds,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChatMessages converts persisted turns into model history, preserving order.
func ChatMessages(msgs []ConversationMessage) []ChatMessage {
	out := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ChatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}
