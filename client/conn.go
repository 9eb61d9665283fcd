package client

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Youssouf13001/creativindustry-chat/internal/protocol"
)

// ConnState is the push channel's lifecycle state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	// StateClosed is terminal: entered only on explicit Close.
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// validTransitions is the channel state machine. Closed has no exits.
var validTransitions = map[ConnState][]ConnState{
	StateDisconnected: {StateConnecting, StateClosed},
	StateConnecting:   {StateConnected, StateDisconnected, StateClosed},
	StateConnected:    {StateDisconnected, StateClosed},
	StateClosed:       {},
}

// CanTransition reports whether the state machine allows moving to next.
func (s ConnState) CanTransition(next ConnState) bool {
	for _, t := range validTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 65536
)

// ChannelHandlers receive the channel's events and state changes. Both are
// invoked from the manager's goroutines; handlers must not block.
type ChannelHandlers struct {
	OnEvent       func(protocol.Event)
	OnStateChange func(ConnState)
}

// ChannelManager owns the push channel for the support-chat surface. It is
// the only holder of the underlying connection; callers interact through
// Connect, Send and Close.
type ChannelManager struct {
	url      string
	log      *zap.Logger
	dialer   *websocket.Dialer
	handlers ChannelHandlers

	backoffBase time.Duration
	backoffMax  time.Duration

	// afterFunc schedules the reconnect attempt; swapped in tests.
	afterFunc func(time.Duration, func()) *time.Timer

	mu        sync.Mutex
	state     ConnState
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	attempt   int
	reconnect *time.Timer
}

// NewChannelManager creates a manager for the given channel URL.
func NewChannelManager(url string, base, max time.Duration, handlers ChannelHandlers, log *zap.Logger) *ChannelManager {
	return &ChannelManager{
		url:      url,
		log:      log,
		handlers: handlers,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		backoffBase: base,
		backoffMax:  max,
		afterFunc:   time.AfterFunc,
		state:       StateDisconnected,
	}
}

// State returns the current channel state.
func (m *ChannelManager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect opens the push channel. It is idempotent: an existing channel is
// torn down first, so rapid repeated calls never leave a duplicate
// connection behind. Dial failures are not returned to the caller; they
// schedule a retry, and the caller observes state changes instead.
func (m *ChannelManager) Connect(ctx context.Context) {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	m.teardownLocked()
	if m.state == StateConnected {
		m.setStateLocked(StateDisconnected)
	}
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	conn, _, err := m.dialer.DialContext(ctx, m.url, nil)

	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		m.log.Warn("channel dial failed", zap.Error(err))
		m.setStateLocked(StateDisconnected)
		m.scheduleReconnectLocked()
		m.mu.Unlock()
		return
	}

	// A racing Connect may have installed its own connection while this
	// dial was in flight; the newest dial wins.
	m.teardownLocked()
	m.conn = conn
	m.send = make(chan []byte, 256)
	m.done = make(chan struct{})
	m.attempt = 0
	m.setStateLocked(StateConnected)
	send, done := m.send, m.done
	m.mu.Unlock()

	m.log.Info("channel connected")
	go m.writePump(conn, send, done)
	go m.readPump(conn)
}

// Send writes an outbound message frame to the channel.
func (m *ChannelManager) Send(payload protocol.SendPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return fmt.Errorf("channel is %s", m.state)
	}
	send := m.send
	m.mu.Unlock()

	select {
	case send <- data:
		return nil
	default:
		return fmt.Errorf("channel send buffer full")
	}
}

// Close tears the channel down permanently. Safe to call more than once.
func (m *ChannelManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateClosed {
		return
	}
	m.teardownLocked()
	m.setStateLocked(StateClosed)
}

func (m *ChannelManager) readPump(conn *websocket.Conn) {
	defer m.handleDisconnect(conn)

	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.log.Warn("channel read failed", zap.Error(err))
			}
			return
		}

		ev, err := protocol.ParseEvent(data)
		if err != nil {
			// A malformed frame is not a transport failure.
			m.log.Warn("dropping malformed channel event", zap.Error(err))
			continue
		}
		if m.handlers.OnEvent != nil {
			m.handlers.OnEvent(ev)
		}
	}
}

func (m *ChannelManager) writePump(conn *websocket.Conn, send chan []byte, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case data := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// handleDisconnect funnels every loss path (close frame, read error, dead
// transport via missed pongs) into the same transition and retry.
func (m *ChannelManager) handleDisconnect(conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// A stale pump from an already-replaced connection must not disturb
	// the current one.
	if m.conn != conn {
		return
	}
	if m.state == StateClosed {
		return
	}

	m.teardownLocked()
	m.setStateLocked(StateDisconnected)
	m.scheduleReconnectLocked()
}

func (m *ChannelManager) scheduleReconnectLocked() {
	delay := m.nextDelayLocked()
	m.log.Info("channel reconnect scheduled", zap.Duration("delay", delay))
	m.reconnect = m.afterFunc(delay, func() {
		m.Connect(context.Background())
	})
}

// nextDelayLocked returns an exponentially growing, jittered delay: the
// base doubles per consecutive failure up to the cap, then a random factor
// in [0.5, 1.5) spreads simultaneous clients apart.
func (m *ChannelManager) nextDelayLocked() time.Duration {
	d := m.backoffBase << m.attempt
	if d > m.backoffMax || d <= 0 {
		d = m.backoffMax
	} else {
		m.attempt++
	}
	jittered := d/2 + time.Duration(rand.Int63n(int64(d)))
	return jittered
}

func (m *ChannelManager) teardownLocked() {
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
	if m.done != nil {
		close(m.done)
		m.done = nil
	}
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.send = nil
}

func (m *ChannelManager) setStateLocked(next ConnState) {
	if m.state == next {
		return
	}
	if !m.state.CanTransition(next) {
		m.log.Error("invalid channel transition",
			zap.String("from", m.state.String()),
			zap.String("to", next.String()))
		return
	}
	m.state = next
	if m.handlers.OnStateChange != nil {
		go m.handlers.OnStateChange(next)
	}
}
