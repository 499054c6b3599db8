// README: Client-side connection manager; reconnect state machine with capped attempts.
package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"swiftcab/internal/modules/events"
)

type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
)

// ErrReconnectBudget is returned when the attempt cap is reached without a
// successful connection.
var ErrReconnectBudget = errors.New("reconnect attempts exhausted")

// Conn is the subset of a websocket connection the manager needs.
type Conn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}

// Dialer opens one connection attempt.
type Dialer func(ctx context.Context) (Conn, error)

// WebsocketDialer dials url and performs the first-message auth handshake.
func WebsocketDialer(url, token string) Dialer {
	return func(ctx context.Context) (Conn, error) {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			return nil, err
		}
		if err := conn.WriteJSON(map[string]string{"type": "auth", "token": token}); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

// ConnManager owns one connection per process. It is handed to consumers by
// reference; there is no package-level singleton.
type ConnManager struct {
	dial        Dialer
	maxAttempts int
	coolDown    time.Duration

	mu          sync.Mutex
	state       ConnState
	conn        Conn
	sub         *events.Subscriber
	lastAttempt time.Time
}

func NewConnManager(dial Dialer, maxAttempts int, coolDown time.Duration) *ConnManager {
	if maxAttempts < 1 {
		maxAttempts = 5
	}
	if coolDown < time.Second {
		coolDown = time.Second
	}
	return &ConnManager{
		dial:        dial,
		maxAttempts: maxAttempts,
		coolDown:    coolDown,
		state:       StateDisconnected,
		sub:         events.NewSubscriber(),
	}
}

func (m *ConnManager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// On registers a handler for an event type. Re-registering after a reconnect
// replaces the previous handler instead of stacking a duplicate.
func (m *ConnManager) On(t events.Type, h events.Handler) {
	m.sub.On(t, h)
}

// Connect dials until connected or the attempt cap is hit, waiting at least
// the cool-down between attempts to avoid thundering-herd reconnects.
// Calling it on an already-connected manager is a no-op.
func (m *ConnManager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateConnected {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		if err := m.waitCoolDown(ctx); err != nil {
			return err
		}

		m.mu.Lock()
		m.state = StateConnecting
		m.lastAttempt = time.Now()
		m.mu.Unlock()

		conn, err := m.dial(ctx)
		if err == nil {
			m.mu.Lock()
			m.conn = conn
			m.state = StateConnected
			m.mu.Unlock()
			go m.readLoop(conn)
			return nil
		}

		m.mu.Lock()
		m.state = StateDisconnected
		m.mu.Unlock()
	}
	return ErrReconnectBudget
}

// Disconnect closes the connection and returns the manager to disconnected.
func (m *ConnManager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.state = StateDisconnected
}

func (m *ConnManager) waitCoolDown(ctx context.Context) error {
	m.mu.Lock()
	last := m.lastAttempt
	m.mu.Unlock()
	if last.IsZero() {
		return nil
	}
	wait := m.coolDown - time.Since(last)
	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

func (m *ConnManager) readLoop(conn Conn) {
	for {
		var ev events.Event
		if err := conn.ReadJSON(&ev); err != nil {
			m.mu.Lock()
			if m.conn == conn {
				m.conn = nil
				m.state = StateDisconnected
			}
			m.mu.Unlock()
			return
		}
		m.sub.Dispatch(ev)
	}
}
