package models

import "fmt"

// Counterpart is the other party in a one-to-one conversation.
type Counterpart struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Conversation summarizes a support-chat thread. Online status is derived
// from the presence set at read time and is never stored here, so it
// cannot drift from the presence source of truth.
type Conversation struct {
	CounterpartID string      `json:"counterpart_id"`
	Counterpart   Counterpart `json:"counterpart"`
	LastMessage   *Message    `json:"last_message,omitempty"`
	UnreadCount   int         `json:"unread_count"`
}

// ClientConversationID derives the support-surface thread id for a client.
func ClientConversationID(clientID string) string {
	return fmt.Sprintf("client_%s", clientID)
}
