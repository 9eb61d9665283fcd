package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Youssouf13001/creativindustry-chat/internal/models"
	"github.com/Youssouf13001/creativindustry-chat/internal/rest"
)

type fakeTeamAPI struct {
	mu        sync.Mutex
	msgs      []models.Message
	msgsErr   error
	unread    int
	unreadErr error
	roster    []models.OnlineUser
	rosterErr error
	sent      []rest.SendRequest
	markReads int
}

func (f *fakeTeamAPI) TeamMessages(ctx context.Context) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.msgsErr != nil {
		return nil, f.msgsErr
	}
	return append([]models.Message(nil), f.msgs...), nil
}

func (f *fakeTeamAPI) TeamUnreadCount(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unreadErr != nil {
		return 0, f.unreadErr
	}
	return f.unread, nil
}

func (f *fakeTeamAPI) TeamOnlineUsers(ctx context.Context) ([]models.OnlineUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rosterErr != nil {
		return nil, f.rosterErr
	}
	return append([]models.OnlineUser(nil), f.roster...), nil
}

func (f *fakeTeamAPI) TeamSend(ctx context.Context, send rest.SendRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, send)
	return nil
}

func (f *fakeTeamAPI) TeamMarkRead(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markReads++
	return nil
}

func (f *fakeTeamAPI) setMessages(msgs ...models.Message) {
	f.mu.Lock()
	f.msgs = msgs
	f.mu.Unlock()
}

func (f *fakeTeamAPI) markReadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.markReads
}

func teamMsg(id, senderID, content string) models.Message {
	return models.Message{
		ID:             id,
		ConversationID: TeamConversationID,
		SenderID:       senderID,
		SenderName:     senderID,
		Content:        content,
		Payload:        models.PayloadText,
	}
}

// newTickableTeam builds a team surface whose ticks the test drives by
// hand, with the store already on the team thread as Open would leave it.
func newTickableTeam(t *testing.T, api *fakeTeamAPI) (*TeamChat, *ConversationStore, *recordingNotifier) {
	t.Helper()
	store := NewConversationStore("admin-1", "Mara", models.RoleMember, zap.NewNop())
	notifier := &recordingNotifier{}
	tc := NewTeamChat(api, store, notifier, time.Hour, zap.NewNop())
	store.SetActive(models.Counterpart{ID: TeamConversationID, Name: "Team"}, TeamConversationID)
	return tc, store, notifier
}

func TestTeam_FirstTickNeverNotifies(t *testing.T) {
	api := &fakeTeamAPI{}
	api.setMessages(
		teamMsg("t1", "u1", "old one"),
		teamMsg("t2", "u2", "old two"),
		teamMsg("t3", "u2", "old three"),
	)
	tc, store, notifier := newTickableTeam(t, api)

	tc.tick(context.Background())

	assert.Equal(t, 0, notifier.count(), "pre-existing history must not notify")
	assert.Len(t, store.Log(), 3)
}

func TestTeam_WatermarkSuppressesRepeatedPolls(t *testing.T) {
	api := &fakeTeamAPI{}
	api.setMessages(teamMsg("t1", "u1", "hello"))
	tc, _, notifier := newTickableTeam(t, api)
	ctx := context.Background()

	tc.tick(ctx) // first tick: seeds the watermark, no notification

	api.setMessages(teamMsg("t1", "u1", "hello"), teamMsg("t2", "u2", "new"))
	tc.tick(ctx) // tick 2: log advanced, notify once
	assert.Equal(t, 1, notifier.count())

	tc.tick(ctx) // tick 3: unchanged log, zero further notifications
	tc.tick(ctx)
	assert.Equal(t, 1, notifier.count())
}

func TestTeam_SelfMessageDoesNotNotify(t *testing.T) {
	api := &fakeTeamAPI{}
	api.setMessages(teamMsg("t1", "u1", "hello"))
	tc, _, notifier := newTickableTeam(t, api)
	ctx := context.Background()

	tc.tick(ctx)
	api.setMessages(teamMsg("t1", "u1", "hello"), teamMsg("t2", "admin-1", "my own"))
	tc.tick(ctx)

	assert.Equal(t, 0, notifier.count())

	// The watermark still advanced: a later foreign message notifies.
	api.setMessages(teamMsg("t1", "u1", "hello"), teamMsg("t2", "admin-1", "my own"), teamMsg("t3", "u2", "reply"))
	tc.tick(ctx)
	assert.Equal(t, 1, notifier.count())
}

func TestTeam_EmptyLogThenHistoryDoesNotNotify(t *testing.T) {
	api := &fakeTeamAPI{}
	tc, _, notifier := newTickableTeam(t, api)
	ctx := context.Background()

	tc.tick(ctx) // empty log: no watermark seeded

	api.setMessages(teamMsg("t1", "u1", "first ever"))
	tc.tick(ctx) // still the first observation of the log

	assert.Equal(t, 0, notifier.count())
}

func TestTeam_TickFetchesAreIndependent(t *testing.T) {
	api := &fakeTeamAPI{
		msgsErr: errors.New("log endpoint down"),
		unread:  5,
		roster:  []models.OnlineUser{{ID: "u1", Name: "Nina"}},
	}
	tc, store, _ := newTickableTeam(t, api)

	tc.tick(context.Background())

	// The failed log fetch must not abort the other two.
	assert.Equal(t, 5, tc.Unread())
	require.Len(t, tc.Roster(), 1)
	assert.Empty(t, store.Log())
}

func TestTeam_UnreadFailureDoesNotClearLog(t *testing.T) {
	api := &fakeTeamAPI{}
	api.setMessages(teamMsg("t1", "u1", "hello"))
	tc, store, _ := newTickableTeam(t, api)
	ctx := context.Background()

	tc.tick(ctx)
	require.Len(t, store.Log(), 1)

	api.mu.Lock()
	api.unreadErr = errors.New("boom")
	api.mu.Unlock()
	tc.tick(ctx)

	assert.Len(t, store.Log(), 1)
}

func TestTeam_RosterDiffing(t *testing.T) {
	api := &fakeTeamAPI{roster: []models.OnlineUser{{ID: "u1", Name: "Nina"}}}
	tc, _, _ := newTickableTeam(t, api)
	ctx := context.Background()

	tc.tick(ctx)
	require.Len(t, tc.Roster(), 1)

	api.mu.Lock()
	api.roster = []models.OnlineUser{{ID: "u2", Name: "Omar"}}
	api.mu.Unlock()
	tc.tick(ctx)

	roster := tc.Roster()
	require.Len(t, roster, 1)
	assert.Equal(t, "u2", roster[0].ID)
}

func TestTeam_SendMessage(t *testing.T) {
	api := &fakeTeamAPI{}
	tc, store, _ := newTickableTeam(t, api)

	tc.SendMessage(context.Background(), "standup in five", "")

	require.Len(t, store.Log(), 1)
	assert.True(t, store.Log()[0].Pending)

	require.Len(t, api.sent, 1)
	assert.Equal(t, rest.SendRequest{
		Content:     "standup in five",
		MessageType: models.PayloadText,
	}, api.sent[0])
}

func TestTeam_DirectedSendKeepsRecipient(t *testing.T) {
	api := &fakeTeamAPI{}
	tc, store, _ := newTickableTeam(t, api)

	tc.SendMessage(context.Background(), "can you cover the shoot?", "u2")

	log := store.Log()
	require.Len(t, log, 1)
	assert.Equal(t, "u2", log[0].RecipientID,
		"the optimistic entry carries its target, not a broadcast shape")

	require.Len(t, api.sent, 1)
	assert.Equal(t, "u2", api.sent[0].RecipientID)
}

func TestTeam_SendReconciledByNextPoll(t *testing.T) {
	api := &fakeTeamAPI{}
	tc, store, notifier := newTickableTeam(t, api)
	ctx := context.Background()

	tc.tick(ctx)
	tc.SendMessage(ctx, "standup in five", "")

	// The server has persisted it by the next poll.
	api.setMessages(teamMsg("t1", "admin-1", "standup in five"))
	tc.tick(ctx)

	log := store.Log()
	require.Len(t, log, 1, "optimistic entry must merge with its polled copy")
	assert.Equal(t, "t1", log[0].ID)
	assert.False(t, log[0].Pending)
	assert.Equal(t, 0, notifier.count())
}

func TestTeam_OpenMarksReadOnce(t *testing.T) {
	api := &fakeTeamAPI{}
	store := NewConversationStore("admin-1", "Mara", models.RoleMember, zap.NewNop())
	tc := NewTeamChat(api, store, NopNotifier{}, time.Hour, zap.NewNop())

	require.NoError(t, tc.Open(context.Background()))
	defer tc.Close()

	assert.Equal(t, 1, api.markReadCount())

	// Re-opening an already open panel does not mark read again.
	require.NoError(t, tc.Open(context.Background()))
	assert.Equal(t, 1, api.markReadCount())
}

func TestTeam_CloseIsIdempotentAndReopens(t *testing.T) {
	api := &fakeTeamAPI{}
	store := NewConversationStore("admin-1", "Mara", models.RoleMember, zap.NewNop())
	tc := NewTeamChat(api, store, NopNotifier{}, time.Hour, zap.NewNop())

	require.NoError(t, tc.Open(context.Background()))
	tc.Close()
	tc.Close()

	_, active := store.Active()
	assert.False(t, active)

	// The open/close cycle is repeatable: mark-read fires on each
	// closed-to-open transition.
	require.NoError(t, tc.Open(context.Background()))
	defer tc.Close()
	assert.Equal(t, 2, api.markReadCount())
}
