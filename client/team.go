package client

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Youssouf13001/creativindustry-chat/internal/models"
	"github.com/Youssouf13001/creativindustry-chat/internal/rest"
)

// TeamConversationID is the single team-chat thread id.
const TeamConversationID = "team"

// TeamAPI is the slice of the HTTP collaborator the team surface consumes.
type TeamAPI interface {
	TeamMessages(ctx context.Context) ([]models.Message, error)
	TeamUnreadCount(ctx context.Context) (int, error)
	TeamOnlineUsers(ctx context.Context) ([]models.OnlineUser, error)
	TeamSend(ctx context.Context, send rest.SendRequest) error
	TeamMarkRead(ctx context.Context) error
}

// TeamChat is the admin<->admin surface. There is no push channel here:
// a fixed-interval ticker re-fetches the log, the unread count and the
// online roster, and a last-seen-id watermark keeps repeated polls from
// re-notifying about an unchanged log.
type TeamChat struct {
	api      TeamAPI
	store    *ConversationStore
	roster   *PresenceSet
	notifier Notifier
	log      *zap.Logger
	interval time.Duration

	mu           sync.Mutex
	cancel       context.CancelFunc
	watermark    string
	hasWatermark bool
	unread       int
}

// NewTeamChat wires the team surface.
func NewTeamChat(api TeamAPI, store *ConversationStore, notifier Notifier, interval time.Duration, log *zap.Logger) *TeamChat {
	return &TeamChat{
		api:      api,
		store:    store,
		roster:   NewPresenceSet(),
		notifier: notifier,
		log:      log,
		interval: interval,
	}
}

// Open starts polling. The unread counter is marked read exactly once
// here, on the closed-to-open transition, never on subsequent ticks.
// Calling Open on an already-open surface is a no-op.
func (t *TeamChat) Open(ctx context.Context) error {
	t.mu.Lock()
	if t.cancel != nil {
		t.mu.Unlock()
		return nil
	}
	pollCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.watermark = ""
	t.hasWatermark = false
	t.mu.Unlock()

	t.store.SetActive(models.Counterpart{ID: TeamConversationID, Name: "Team"}, TeamConversationID)

	if err := t.api.TeamMarkRead(pollCtx); err != nil {
		t.log.Warn("mark-read failed", zap.Error(err))
	}

	go t.runPoll(pollCtx)
	return nil
}

// Close stops the ticker and drops the surface's state. Safe to call more
// than once and from any teardown path.
func (t *TeamChat) Close() {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	t.store.ClearActive()
}

// Unread returns the last fetched unread count.
func (t *TeamChat) Unread() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.unread
}

// Roster returns the last polled online membership.
func (t *TeamChat) Roster() []models.OnlineUser {
	return t.roster.List()
}

// SendMessage optimistically appends and posts a team message. An empty
// recipient means broadcast. Invalid input is a silent no-op.
func (t *TeamChat) SendMessage(ctx context.Context, content, recipientID string) {
	msg, ok := t.store.AppendLocal(content, models.PayloadText, "", "", recipientID)
	if !ok {
		return
	}
	err := t.api.TeamSend(ctx, rest.SendRequest{
		Content:     msg.Content,
		RecipientID: recipientID,
		MessageType: msg.Payload,
	})
	if err != nil {
		// The optimistic entry stays; the next poll's full fetch
		// reconciles it.
		t.log.Warn("team send failed", zap.Error(err))
	}
}

func (t *TeamChat) runPoll(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

// tick runs the three poll fetches. Each is independent: one failing call
// is logged and must not abort the others or the ticker's cadence.
func (t *TeamChat) tick(ctx context.Context) {
	if msgs, err := t.api.TeamMessages(ctx); err != nil {
		t.log.Warn("team log fetch failed", zap.Error(err))
	} else {
		t.evaluateWatermark(msgs)
		t.store.ReplaceLog(TeamConversationID, msgs)
	}

	if count, err := t.api.TeamUnreadCount(ctx); err != nil {
		t.log.Warn("unread count fetch failed", zap.Error(err))
	} else {
		t.mu.Lock()
		t.unread = count
		t.mu.Unlock()
	}

	if users, err := t.api.TeamOnlineUsers(ctx); err != nil {
		t.log.Warn("roster fetch failed", zap.Error(err))
	} else {
		joined, left := t.roster.ReplaceDiff(users)
		if len(joined) > 0 || len(left) > 0 {
			t.store.notifyChange()
		}
	}
}

// evaluateWatermark decides, once per tick, whether the fetched log ends
// in a message worth alerting about. The very first tick after Open never
// notifies regardless of how much history it returns, and the watermark
// advances whether or not a notification fired.
func (t *TeamChat) evaluateWatermark(msgs []models.Message) {
	if len(msgs) == 0 {
		return
	}
	newest := msgs[len(msgs)-1]

	t.mu.Lock()
	fire := t.hasWatermark && newest.ID != t.watermark && newest.SenderID != t.store.selfID
	t.watermark = newest.ID
	t.hasWatermark = true
	t.mu.Unlock()

	if fire {
		t.notifier.Notify(Notification{
			Title:          newest.SenderName,
			Body:           newest.Content,
			ConversationID: TeamConversationID,
		})
	}
}
