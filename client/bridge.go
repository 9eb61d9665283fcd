package client

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Youssouf13001/creativindustry-chat/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The bridge only listens on loopback.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// conversationView is a summary plus its presence-derived online flag,
// computed at snapshot time so it can never drift from the presence set.
type conversationView struct {
	models.Conversation
	IsOnline bool `json:"is_online"`
}

// stateSnapshot is what the UI sees. The UI never touches the push
// channel or the poll loop; it renders this and submits commands.
type stateSnapshot struct {
	Type          string              `json:"type"`
	ConnState     string              `json:"conn_state"`
	Conversations []conversationView  `json:"conversations"`
	Active        *models.Counterpart `json:"active,omitempty"`
	Messages      []models.Message    `json:"messages"`
	OnlineClients []models.OnlineUser `json:"online_clients"`
	TeamMessages  []models.Message    `json:"team_messages"`
	TeamUnread    int                 `json:"team_unread"`
	TeamRoster    []models.OnlineUser `json:"team_roster"`
}

// toastEvent carries a non-blocking error notice to the UI.
type toastEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Bridge connects the local console UI to the chat surfaces over a
// loopback websocket.
type Bridge struct {
	support      *SupportChat
	supportStore *ConversationStore
	team         *TeamChat
	teamStore    *ConversationStore
	log          *zap.Logger

	uiMu      sync.RWMutex
	uiClients map[*websocket.Conn]bool
	broadcast chan []byte
}

// NewBridge creates the bridge and subscribes it to both stores.
func NewBridge(support *SupportChat, supportStore *ConversationStore, team *TeamChat, teamStore *ConversationStore, log *zap.Logger) *Bridge {
	b := &Bridge{
		support:      support,
		supportStore: supportStore,
		team:         team,
		teamStore:    teamStore,
		log:          log,
		uiClients:    make(map[*websocket.Conn]bool),
		broadcast:    make(chan []byte, 256),
	}

	supportStore.SetOnChange(b.broadcastState)
	teamStore.SetOnChange(b.broadcastState)

	go b.runBroadcast()
	return b
}

func (b *Bridge) runBroadcast() {
	for data := range b.broadcast {
		b.uiMu.Lock()
		for conn := range b.uiClients {
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				conn.Close()
				delete(b.uiClients, conn)
			}
		}
		b.uiMu.Unlock()
	}
}

func (b *Bridge) broadcastState() {
	data, err := json.Marshal(b.snapshot())
	if err != nil {
		return
	}
	select {
	case b.broadcast <- data:
	default:
		// Drop if the buffer is full; the next change re-snapshots.
	}
}

func (b *Bridge) snapshot() stateSnapshot {
	convs := b.supportStore.Conversations()
	views := make([]conversationView, 0, len(convs))
	for _, c := range convs {
		views = append(views, conversationView{
			Conversation: c,
			IsOnline:     b.support.IsOnline(c.CounterpartID),
		})
	}

	snap := stateSnapshot{
		Type:          "state",
		ConnState:     b.support.ConnState().String(),
		Conversations: views,
		Messages:      b.supportStore.Log(),
		OnlineClients: b.support.OnlineUsers(),
		TeamMessages:  b.teamStore.Log(),
		TeamUnread:    b.team.Unread(),
		TeamRoster:    b.team.Roster(),
	}
	if active, ok := b.supportStore.Active(); ok {
		snap.Active = &active
	}
	return snap
}

// HandleWebSocket accepts a UI connection, pushes the current snapshot and
// then serves commands until the UI goes away.
func (b *Bridge) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn("ui websocket upgrade failed", zap.Error(err))
		return
	}

	data, err := json.Marshal(b.snapshot())

	// Register and push the first snapshot under the broadcaster's lock:
	// gorilla permits at most one concurrent writer per connection, so
	// this write must never overlap a runBroadcast write.
	b.uiMu.Lock()
	b.uiClients[conn] = true
	if err == nil {
		conn.WriteMessage(websocket.TextMessage, data)
	}
	b.uiMu.Unlock()

	go b.serveUI(conn)
}

func (b *Bridge) serveUI(conn *websocket.Conn) {
	defer func() {
		b.uiMu.Lock()
		delete(b.uiClients, conn)
		b.uiMu.Unlock()
		conn.Close()
	}()

	for {
		var cmd uiCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.log.Warn("ui websocket error", zap.Error(err))
			}
			return
		}
		b.handleCommand(cmd)
	}
}

type uiCommand struct {
	Type          string `json:"type"`
	CounterpartID string `json:"counterpart_id,omitempty"`
	Name          string `json:"name,omitempty"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	Content       string `json:"content,omitempty"`
	RecipientID   string `json:"recipient_id,omitempty"`
}

func (b *Bridge) handleCommand(cmd uiCommand) {
	ctx := context.Background()

	switch cmd.Type {
	case "open_support_panel":
		b.support.Open(ctx)

	case "close_support_panel":
		b.support.Close()

	case "open_team_panel":
		b.team.Open(ctx)

	case "close_team_panel":
		b.team.Close()

	case "select_conversation":
		if cmd.CounterpartID == "" {
			return
		}
		// Transport failures degrade silently; the UI keeps the empty
		// log and the disconnected indicator tells the story.
		b.support.SelectConversation(ctx, models.Counterpart{
			ID:        cmd.CounterpartID,
			Name:      cmd.Name,
			AvatarURL: cmd.AvatarURL,
		})

	case "send_message":
		b.support.SendMessage(cmd.Content)

	case "send_team_message":
		b.team.SendMessage(ctx, cmd.Content, cmd.RecipientID)

	default:
		b.log.Debug("unknown ui command", zap.String("type", cmd.Type))
	}
}

// HandleAttachment uploads a file from the UI and sends it as a message.
// An upload failure reaches the UI as a toast; no optimistic message is
// created in that case.
func (b *Bridge) HandleAttachment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	file, hdr, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if err := b.support.SendAttachment(r.Context(), hdr.Filename, file); err != nil {
		b.log.Warn("attachment upload failed", zap.Error(err))
		b.toast("upload failed: " + hdr.Filename)
		http.Error(w, "upload failed", http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (b *Bridge) toast(msg string) {
	data, err := json.Marshal(toastEvent{Type: "toast", Error: msg})
	if err != nil {
		return
	}
	select {
	case b.broadcast <- data:
	default:
	}
}
