package protocol

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/Youssouf13001/creativindustry-chat/internal/models"
)

// EventType identifies the type of a push-channel event.
type EventType string

const (
	// Server -> Client
	TypeOnlineClients EventType = "online_clients"
	TypeClientOnline  EventType = "client_online"
	TypeClientOffline EventType = "client_offline"
	TypeNewMessage    EventType = "new_message"
)

// OnlineClientsEvent carries the full presence snapshot sent at connect time.
type OnlineClientsEvent struct {
	Type    EventType           `json:"type"`
	Clients []models.OnlineUser `json:"clients"`
}

// ClientOnlineEvent announces a single client coming online.
type ClientOnlineEvent struct {
	Type       EventType `json:"type"`
	ClientID   string    `json:"client_id"`
	ClientName string    `json:"client_name"`
}

// ClientOfflineEvent announces a single client going offline.
type ClientOfflineEvent struct {
	Type     EventType `json:"type"`
	ClientID string    `json:"client_id"`
}

// NewMessageEvent delivers a chat message.
type NewMessageEvent struct {
	Type    EventType      `json:"type"`
	Message models.Message `json:"message"`
}

// SendPayload is the outbound message frame written to the channel.
type SendPayload struct {
	Content     string             `json:"content"`
	RecipientID string             `json:"recipient_id"`
	MessageType models.PayloadKind `json:"message_type"`
	FileURL     string             `json:"file_url,omitempty"`
	FileName    string             `json:"file_name,omitempty"`
}

// Event is implemented by all inbound push events.
type Event interface {
	EventType() EventType
}

func (e *OnlineClientsEvent) EventType() EventType { return TypeOnlineClients }
func (e *ClientOnlineEvent) EventType() EventType  { return TypeClientOnline }
func (e *ClientOfflineEvent) EventType() EventType { return TypeClientOffline }
func (e *NewMessageEvent) EventType() EventType    { return TypeNewMessage }

// typePeek extracts the discriminator before the full decode.
type typePeek struct {
	Type EventType `json:"type"`
}

// ParseEvent decodes an inbound push frame into its typed event.
func ParseEvent(data []byte) (Event, error) {
	var peek typePeek
	if err := json.Unmarshal(data, &peek); err != nil {
		return nil, fmt.Errorf("malformed event: %w", err)
	}

	switch peek.Type {
	case TypeOnlineClients:
		var ev OnlineClientsEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return &ev, nil
	case TypeClientOnline:
		var ev ClientOnlineEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return &ev, nil
	case TypeClientOffline:
		var ev ClientOfflineEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return &ev, nil
	case TypeNewMessage:
		var ev NewMessageEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return &ev, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", peek.Type)
	}
}

// DeriveChannelURL maps the HTTP API origin to the push-channel endpoint:
// the scheme is upgraded (http->ws, https->wss), the caller's identity
// becomes a path segment and the session token a query parameter.
func DeriveChannelURL(apiBase, selfID, token string) (string, error) {
	u, err := url.Parse(apiBase)
	if err != nil {
		return "", fmt.Errorf("invalid api base %q: %w", apiBase, err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
		// already a channel origin
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/chat/" + url.PathEscape(selfID)
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
