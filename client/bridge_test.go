package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Youssouf13001/creativindustry-chat/internal/models"
)

func newTestBridge(t *testing.T, supportAPI *fakeSupportAPI, teamAPI *fakeTeamAPI) (*Bridge, *SupportChat, *TeamChat) {
	t.Helper()
	supportStore := NewConversationStore("admin-1", "Mara", models.RoleAdmin, zap.NewNop())
	teamStore := NewConversationStore("admin-1", "Mara", models.RoleMember, zap.NewNop())
	support := NewSupportChat(supportAPI, supportStore, NopNotifier{}, "ws://127.0.0.1:1/ws", time.Second, 30*time.Second, zap.NewNop())
	support.sender = &recordingSender{store: supportStore}
	team := NewTeamChat(teamAPI, teamStore, NopNotifier{}, time.Hour, zap.NewNop())
	return NewBridge(support, supportStore, team, teamStore, zap.NewNop()), support, team
}

func TestBridge_SnapshotOnConnect(t *testing.T) {
	supportAPI := &fakeSupportAPI{
		convs: []models.Conversation{{
			CounterpartID: "c1",
			Counterpart:   models.Counterpart{ID: "c1", Name: "Alice"},
			UnreadCount:   2,
		}},
	}
	b, support, _ := newTestBridge(t, supportAPI, &fakeTeamAPI{})
	support.store.ReplaceConversations(supportAPI.convs)
	support.presence.Add(models.OnlineUser{ID: "c1", Name: "Alice"})

	srv := httptest.NewServer(http.HandlerFunc(b.HandleWebSocket))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var snap stateSnapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, "state", snap.Type)
	require.Len(t, snap.Conversations, 1)
	assert.Equal(t, 2, snap.Conversations[0].UnreadCount)
	assert.True(t, snap.Conversations[0].IsOnline, "online flag derives from the presence set")
	assert.Equal(t, "disconnected", snap.ConnState)
}

// The initial snapshot write and the broadcaster share each connection's
// writer, so attaching a UI client mid-broadcast must never interleave
// frames or trip the single-writer rule. Run with -race.
func TestBridge_AttachWhileBroadcasting(t *testing.T) {
	supportAPI := &fakeSupportAPI{}
	b, support, _ := newTestBridge(t, supportAPI, &fakeTeamAPI{})

	srv := httptest.NewServer(http.HandlerFunc(b.HandleWebSocket))
	defer srv.Close()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			support.store.ReplaceConversations([]models.Conversation{{
				CounterpartID: "c1",
				Counterpart:   models.Counterpart{ID: "c1", Name: "Alice"},
				UnreadCount:   i,
			}})
		}
	}()

	for i := 0; i < 20; i++ {
		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
		require.NoError(t, err)

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var snap stateSnapshot
		require.NoError(t, json.Unmarshal(data, &snap), "first frame must be an intact snapshot")
		assert.Equal(t, "state", snap.Type)
		conn.Close()
	}

	close(stop)
	wg.Wait()
}

func TestBridge_SendMessageCommand(t *testing.T) {
	supportAPI := &fakeSupportAPI{logs: map[string][]models.Message{"c1": {}}}
	b, support, _ := newTestBridge(t, supportAPI, &fakeTeamAPI{})

	srv := httptest.NewServer(http.HandlerFunc(b.HandleWebSocket))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(uiCommand{Type: "select_conversation", CounterpartID: "c1", Name: "Alice"}))
	require.NoError(t, conn.WriteJSON(uiCommand{Type: "send_message", Content: "hello"}))

	require.Eventually(t, func() bool {
		return len(support.store.Log()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "hello", support.store.Log()[0].Content)
}

func TestBridge_AttachmentFailureReturnsError(t *testing.T) {
	supportAPI := &fakeSupportAPI{
		logs:      map[string][]models.Message{"c1": {}},
		uploadErr: errors.New("denied"),
	}
	b, support, _ := newTestBridge(t, supportAPI, &fakeTeamAPI{})
	support.store.SetActive(models.Counterpart{ID: "c1"}, "client_c1")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "huge.mov")
	require.NoError(t, err)
	part.Write([]byte("bytes"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/attachment", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	b.HandleAttachment(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Empty(t, support.store.Log())
}
