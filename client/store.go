package client

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Youssouf13001/creativindustry-chat/internal/models"
)

// ConversationStore is the shared in-memory model behind a chat surface:
// the conversation summaries, the active conversation and its ordered
// message log. It is pure state; fetching belongs to the surfaces.
//
// Ordering: within the active log, append order equals arrival order at
// the store. A full-log replace adopts the server's order wholesale.
type ConversationStore struct {
	log      *zap.Logger
	selfID   string
	selfName string
	selfRole models.SenderRole

	mu            sync.Mutex
	conversations []models.Conversation
	active        *models.Counterpart
	activeConvID  string
	messages      []models.Message

	now        func() time.Time
	newLocalID func() string
	onChange   func()
}

// NewConversationStore creates a store for the given self identity.
func NewConversationStore(selfID, selfName string, selfRole models.SenderRole, log *zap.Logger) *ConversationStore {
	return &ConversationStore{
		log:        log,
		selfID:     selfID,
		selfName:   selfName,
		selfRole:   selfRole,
		now:        time.Now,
		newLocalID: func() string { return uuid.New().String() },
	}
}

// SetOnChange registers a callback invoked after every state mutation.
// The bridge uses it to push fresh snapshots to the UI.
func (s *ConversationStore) SetOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// ReplaceConversations swaps the full conversation summary list.
func (s *ConversationStore) ReplaceConversations(convs []models.Conversation) {
	s.mu.Lock()
	s.conversations = append([]models.Conversation(nil), convs...)
	s.mu.Unlock()
	s.notifyChange()
}

// Conversations returns a copy of the summary list.
func (s *ConversationStore) Conversations() []models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Conversation(nil), s.conversations...)
}

// SetActive switches the active conversation. The previous log is
// discarded entirely, pending entries included; the surface follows up
// with a full fetch.
func (s *ConversationStore) SetActive(c models.Counterpart, conversationID string) {
	s.mu.Lock()
	s.active = &c
	s.activeConvID = conversationID
	s.messages = nil
	s.mu.Unlock()
	s.notifyChange()
}

// ClearActive leaves the active conversation, dropping its log.
func (s *ConversationStore) ClearActive() {
	s.mu.Lock()
	s.active = nil
	s.activeConvID = ""
	s.messages = nil
	s.mu.Unlock()
	s.notifyChange()
}

// Active returns the active counterpart, if any.
func (s *ConversationStore) Active() (models.Counterpart, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return models.Counterpart{}, false
	}
	return *s.active, true
}

// ActiveConversationID returns the active thread id, or "".
func (s *ConversationStore) ActiveConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeConvID
}

// Log returns a copy of the active message log.
func (s *ConversationStore) Log() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.messages...)
}

// AppendLocal validates and appends an optimistic message for the active
// conversation. It returns false when validation rejects the input (empty
// content with no attachment, or no active conversation); rejection is
// silent by contract.
func (s *ConversationStore) AppendLocal(content string, payload models.PayloadKind, fileURL, fileName, recipientID string) (models.Message, bool) {
	content = strings.TrimSpace(content)
	if payload == "" {
		payload = models.PayloadText
	}

	s.mu.Lock()
	if s.active == nil || (content == "" && fileURL == "") {
		s.mu.Unlock()
		return models.Message{}, false
	}

	localID := s.newLocalID()
	msg := models.Message{
		ID:             localID,
		LocalID:        localID,
		ConversationID: s.activeConvID,
		SenderID:       s.selfID,
		SenderName:     s.selfName,
		SenderRole:     s.selfRole,
		Self:           true,
		Content:        content,
		Payload:        payload,
		FileURL:        fileURL,
		FileName:       fileName,
		RecipientID:    recipientID,
		CreatedAt:      s.now(),
		Pending:        true,
	}
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.notifyChange()
	return msg, true
}

// ReplaceLog installs a freshly fetched full log for the given thread.
// Server order is adopted as-is. Pending optimistic entries the server has
// not persisted yet are re-appended at the end so a poll cannot silently
// drop a message the admin just typed; pending entries the server now
// returns are dropped in favor of their confirmed copies.
func (s *ConversationStore) ReplaceLog(conversationID string, msgs []models.Message) {
	s.mu.Lock()
	if conversationID != s.activeConvID {
		// A stale fetch for a conversation we already left.
		s.mu.Unlock()
		s.log.Debug("discarding stale log fetch", zap.String("conversation", conversationID))
		return
	}

	next := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		next = append(next, s.normalizeLocked(conversationID, m))
	}

	for _, old := range s.messages {
		if !old.Pending {
			continue
		}
		if indexOfMatch(next, old) >= 0 {
			continue
		}
		next = append(next, old)
	}

	s.messages = next
	s.mu.Unlock()
	s.notifyChange()
}

// HandleServerMessage applies one server-delivered message. It returns
// true when the message belongs to the active conversation and was folded
// into the log; false means the caller should refresh unread counts
// instead, since unopened logs are not held in memory.
func (s *ConversationStore) HandleServerMessage(msg models.Message) bool {
	s.mu.Lock()
	if s.activeConvID == "" || msg.ConversationID != s.activeConvID {
		s.mu.Unlock()
		return false
	}

	msg = s.normalizeLocked(s.activeConvID, msg)
	if msg.Self {
		// Server echo of a message sent from this session: replace the
		// matching optimistic entry in place instead of duplicating it.
		if i := indexOfPendingMatch(s.messages, msg); i >= 0 {
			s.messages[i] = msg
			s.mu.Unlock()
			s.notifyChange()
			return true
		}
	}
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	s.notifyChange()
	return true
}

func (s *ConversationStore) normalizeLocked(conversationID string, m models.Message) models.Message {
	if m.ConversationID == "" {
		m.ConversationID = conversationID
	}
	m.Self = m.SenderID == s.selfID
	m.Pending = false
	return m
}

func (s *ConversationStore) notifyChange() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// indexOfPendingMatch finds the oldest pending entry the given confirmed
// self message corresponds to: same content and payload kind.
func indexOfPendingMatch(log []models.Message, confirmed models.Message) int {
	for i, m := range log {
		if m.Pending && m.Content == confirmed.Content && m.Payload == confirmed.Payload {
			return i
		}
	}
	return -1
}

// indexOfMatch finds the confirmed copy of a pending entry in a fetched
// log, if the server has persisted it by now.
func indexOfMatch(fetched []models.Message, pending models.Message) int {
	for i, m := range fetched {
		if m.Self && m.Content == pending.Content && m.Payload == pending.Payload {
			return i
		}
	}
	return -1
}
