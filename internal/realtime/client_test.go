// README: Connection manager tests over a scripted dialer.
package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"swiftcab/internal/modules/events"
)

var errDial = errors.New("dial refused")

// fakeConn feeds scripted events to ReadJSON and blocks until closed.
type fakeConn struct {
	incoming chan events.Event
	closed   chan struct{}
	once     sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		incoming: make(chan events.Event, 8),
		closed:   make(chan struct{}),
	}
}

func (c *fakeConn) ReadJSON(v any) error {
	select {
	case ev := <-c.incoming:
		*(v.(*events.Event)) = ev
		return nil
	case <-c.closed:
		return errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteJSON(v any) error { return nil }

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// scriptedDialer fails the first n attempts, then hands out fresh fakeConns.
type scriptedDialer struct {
	mu       sync.Mutex
	failures int
	attempts int
	conns    []*fakeConn
}

func (d *scriptedDialer) dial(ctx context.Context) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts++
	if d.attempts <= d.failures {
		return nil, errDial
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func TestConnectFirstTry(t *testing.T) {
	d := &scriptedDialer{}
	m := NewConnManager(d.dial, 3, time.Second)

	if got := m.State(); got != StateDisconnected {
		t.Fatalf("initial state = %s", got)
	}
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if got := m.State(); got != StateConnected {
		t.Fatalf("state = %s, want connected", got)
	}
	if d.attempts != 1 {
		t.Fatalf("attempts = %d, want 1", d.attempts)
	}

	m.Disconnect()
	if got := m.State(); got != StateDisconnected {
		t.Fatalf("state after disconnect = %s", got)
	}
}

func TestConnectRetriesThenSucceeds(t *testing.T) {
	d := &scriptedDialer{failures: 1}
	m := NewConnManager(d.dial, 3, time.Second)

	start := time.Now()
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if d.attempts != 2 {
		t.Fatalf("attempts = %d, want 2", d.attempts)
	}
	// The second attempt must wait out the cool-down.
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Fatalf("no cool-down between attempts: %v", elapsed)
	}
	m.Disconnect()
}

// A second Connect on a live manager must not dial again and leak the
// existing connection.
func TestConnectWhileConnectedIsNoOp(t *testing.T) {
	d := &scriptedDialer{}
	m := NewConnManager(d.dial, 3, time.Second)

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("repeat connect: %v", err)
	}
	if d.attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (repeat must not redial)", d.attempts)
	}
	if got := m.State(); got != StateConnected {
		t.Fatalf("state = %s, want connected", got)
	}
	m.Disconnect()
}

func TestConnectExhaustsBudget(t *testing.T) {
	d := &scriptedDialer{failures: 99}
	m := NewConnManager(d.dial, 2, time.Second)

	err := m.Connect(context.Background())
	if !errors.Is(err, ErrReconnectBudget) {
		t.Fatalf("expected ErrReconnectBudget, got %v", err)
	}
	if d.attempts != 2 {
		t.Fatalf("attempts = %d, want 2", d.attempts)
	}
	if got := m.State(); got != StateDisconnected {
		t.Fatalf("state = %s, want disconnected", got)
	}
}

func TestConnectHonorsContextCancel(t *testing.T) {
	d := &scriptedDialer{failures: 99}
	m := NewConnManager(d.dial, 5, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	err := m.Connect(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDefaultsClamped(t *testing.T) {
	m := NewConnManager(nil, 0, 0)
	if m.maxAttempts != 5 {
		t.Fatalf("maxAttempts = %d, want default 5", m.maxAttempts)
	}
	if m.coolDown != time.Second {
		t.Fatalf("coolDown = %v, want floor 1s", m.coolDown)
	}
}

func TestIncomingEventsDispatchToHandlers(t *testing.T) {
	d := &scriptedDialer{}
	m := NewConnManager(d.dial, 1, time.Second)

	got := make(chan events.Event, 1)
	m.On(events.TypeRideStarted, func(ev events.Event) { got <- ev })
	// Re-registering replaces, the first handler never fires twice.
	m.On(events.TypeRideCancelled, func(events.Event) { t.Error("stale handler fired") })
	m.On(events.TypeRideCancelled, func(events.Event) {})

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer m.Disconnect()

	conn := d.conns[0]
	conn.incoming <- events.Event{Type: events.TypeRideCancelled, BookingID: "b0"}
	conn.incoming <- events.Event{Type: events.TypeRideStarted, BookingID: "b1"}

	select {
	case ev := <-got:
		if ev.BookingID != "b1" {
			t.Fatalf("dispatched %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("event never dispatched")
	}
}

func TestReadFailureMarksDisconnected(t *testing.T) {
	d := &scriptedDialer{}
	m := NewConnManager(d.dial, 1, time.Second)

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	_ = d.conns[0].Close()

	deadline := time.After(time.Second)
	for m.State() != StateDisconnected {
		select {
		case <-deadline:
			t.Fatal("state never returned to disconnected after read failure")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
