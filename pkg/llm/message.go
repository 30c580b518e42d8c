// Package llm defines the provider-agnostic conversation model shared by the
// router, the session manager, and the backend clients.
package llm

// Message roles. Ordering within a conversation is significant: insertion
// order is semantic order.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single role-tagged message in a conversation.
// Messages are immutable once appended to a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewMessage creates a message with the given role and content.
func NewMessage(role, content string) Message {
	return Message{Role: role, Content: content}
}

// TotalContentChars sums the character length of every message's content.
// This is the context-budget approximation used by routing; exact tokenization
// is a backend-internal concern.
func TotalContentChars(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content)
	}
	return total
}
