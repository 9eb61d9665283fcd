package models

import "time"

// SenderRole identifies which side of a conversation authored a message.
type SenderRole string

const (
	RoleAdmin  SenderRole = "admin"
	RoleClient SenderRole = "client"
	RoleMember SenderRole = "member"
)

// PayloadKind identifies the kind of content a message carries.
type PayloadKind string

const (
	PayloadText  PayloadKind = "text"
	PayloadImage PayloadKind = "image"
	PayloadFile  PayloadKind = "file"
)

// Message represents a chat message in either surface.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	SenderID       string      `json:"sender_id"`
	SenderName     string      `json:"sender_name"`
	SenderRole     SenderRole  `json:"sender_role"`
	Self           bool        `json:"self"`
	Content        string      `json:"content"`
	Payload        PayloadKind `json:"message_type"`
	FileURL        string      `json:"file_url,omitempty"`
	FileName       string      `json:"file_name,omitempty"`
	// RecipientID is set for directed team-chat messages; empty means
	// broadcast to the whole team.
	RecipientID string    `json:"recipient_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	// Pending marks a locally constructed message that has not yet been
	// confirmed by the server. LocalID is its client-generated id.
	Pending bool   `json:"pending,omitempty"`
	LocalID string `json:"local_id,omitempty"`
}

// SameCalendarDay reports whether two timestamps fall on the same local
// calendar day. The team surface inserts a date separator at boundaries.
func SameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Local().Date()
	by, bm, bd := b.Local().Date()
	return ay == by && am == bm && ad == bd
}
