package client

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/Youssouf13001/creativindustry-chat/internal/models"
	"github.com/Youssouf13001/creativindustry-chat/internal/protocol"
	"github.com/Youssouf13001/creativindustry-chat/internal/rest"
)

// SupportAPI is the slice of the HTTP collaborator the support surface
// consumes.
type SupportAPI interface {
	Conversations(ctx context.Context) ([]models.Conversation, error)
	Messages(ctx context.Context, counterpartID string) ([]models.Message, error)
	Upload(ctx context.Context, fileName string, r io.Reader) (*rest.UploadResult, error)
}

const refreshTimeout = 10 * time.Second

// SupportChat is the admin<->client surface: a conversation store fed by
// the push channel, presence kept by push events, notifications on
// counterpart messages.
// outbound is the push-channel send path; satisfied by ChannelManager.
type outbound interface {
	Send(payload protocol.SendPayload) error
}

type SupportChat struct {
	api      SupportAPI
	store    *ConversationStore
	presence *PresenceSet
	channel  *ChannelManager
	sender   outbound
	notifier Notifier
	log      *zap.Logger
}

// NewSupportChat wires the support surface. channelURL is the derived
// push endpoint (see protocol.DeriveChannelURL).
func NewSupportChat(api SupportAPI, store *ConversationStore, notifier Notifier, channelURL string, backoffBase, backoffMax time.Duration, log *zap.Logger) *SupportChat {
	s := &SupportChat{
		api:      api,
		store:    store,
		presence: NewPresenceSet(),
		notifier: notifier,
		log:      log,
	}
	s.channel = NewChannelManager(channelURL, backoffBase, backoffMax, ChannelHandlers{
		OnEvent: s.handleEvent,
		OnStateChange: func(state ConnState) {
			// Degrade silently: state reaches the UI as an indicator only.
			log.Info("channel state", zap.String("state", state.String()))
			s.store.notifyChange()
		},
	}, log)
	s.sender = s.channel
	return s
}

// Open starts the surface: loads the conversation list and connects the
// push channel. Connection failures are not surfaced; retry runs in the
// background while the UI shows a disconnected indicator.
func (s *SupportChat) Open(ctx context.Context) error {
	if err := s.refreshConversations(ctx); err != nil {
		s.log.Warn("initial conversation fetch failed", zap.Error(err))
	}
	s.channel.Connect(ctx)
	return nil
}

// Close tears the surface down: channel closed, state dropped.
func (s *SupportChat) Close() {
	s.channel.Close()
	s.store.ClearActive()
}

// ConnState exposes the channel state for the UI's indicator.
func (s *SupportChat) ConnState() ConnState {
	return s.channel.State()
}

// IsOnline reports whether the given counterpart is currently online.
func (s *SupportChat) IsOnline(counterpartID string) bool {
	return s.presence.Contains(counterpartID)
}

// OnlineUsers returns the current presence membership.
func (s *SupportChat) OnlineUsers() []models.OnlineUser {
	return s.presence.List()
}

// SelectConversation makes the given counterpart's thread active and loads
// its full log, replacing whatever was loaded before.
func (s *SupportChat) SelectConversation(ctx context.Context, c models.Counterpart) error {
	convID := models.ClientConversationID(c.ID)
	s.store.SetActive(c, convID)

	msgs, err := s.api.Messages(ctx, c.ID)
	if err != nil {
		s.log.Warn("message log fetch failed",
			zap.String("counterpart", c.ID), zap.Error(err))
		return err
	}
	s.store.ReplaceLog(convID, msgs)
	return nil
}

// SendMessage optimistically appends a text message and dispatches it on
// the push channel. Invalid input (empty content, no active conversation)
// is a silent no-op.
func (s *SupportChat) SendMessage(content string) {
	active, ok := s.store.Active()
	if !ok {
		return
	}
	msg, ok := s.store.AppendLocal(content, models.PayloadText, "", "", active.ID)
	if !ok {
		return
	}
	s.dispatch(active.ID, msg)
}

// SendAttachment uploads a file, then sends it as a message. An upload
// failure is returned to the caller before any optimistic append happens.
func (s *SupportChat) SendAttachment(ctx context.Context, fileName string, r io.Reader) error {
	active, ok := s.store.Active()
	if !ok {
		return nil
	}
	res, err := s.api.Upload(ctx, fileName, r)
	if err != nil {
		return err
	}
	msg, ok := s.store.AppendLocal("", res.MessageType, res.FileURL, res.FileName, active.ID)
	if !ok {
		return nil
	}
	s.dispatch(active.ID, msg)
	return nil
}

func (s *SupportChat) dispatch(recipientID string, msg models.Message) {
	err := s.sender.Send(protocol.SendPayload{
		Content:     msg.Content,
		RecipientID: recipientID,
		MessageType: msg.Payload,
		FileURL:     msg.FileURL,
		FileName:    msg.FileName,
	})
	if err != nil {
		// The optimistic entry stays; the next full fetch reconciles.
		s.log.Warn("channel send failed", zap.Error(err))
	}
}

func (s *SupportChat) handleEvent(ev protocol.Event) {
	switch e := ev.(type) {
	case *protocol.OnlineClientsEvent:
		s.presence.Replace(e.Clients)
		s.store.notifyChange()

	case *protocol.ClientOnlineEvent:
		if s.presence.Add(models.OnlineUser{ID: e.ClientID, Name: e.ClientName}) {
			s.store.notifyChange()
		}

	case *protocol.ClientOfflineEvent:
		if s.presence.Remove(e.ClientID) {
			s.store.notifyChange()
		}

	case *protocol.NewMessageEvent:
		s.handleInbound(e.Message)
	}
}

// handleInbound folds one pushed message in. Messages for the active
// conversation land in the log; messages for other threads only trigger a
// summary refresh so their unread counts stay current without holding
// every log in memory.
func (s *SupportChat) handleInbound(msg models.Message) {
	s.store.HandleServerMessage(msg)

	if msg.SenderID != s.store.selfID {
		s.notifier.Notify(Notification{
			Title:          msg.SenderName,
			Body:           msg.Content,
			ConversationID: msg.ConversationID,
		})
	}

	// The summary fetch can take the full refreshTimeout; it must not run
	// inline here, since this is the channel's event callback and a slow
	// fetch would stall delivery of every following push event.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		if err := s.refreshConversations(ctx); err != nil {
			s.log.Warn("conversation refresh failed", zap.Error(err))
		}
	}()
}

func (s *SupportChat) refreshConversations(ctx context.Context) error {
	convs, err := s.api.Conversations(ctx)
	if err != nil {
		return err
	}
	s.store.ReplaceConversations(convs)
	return nil
}
