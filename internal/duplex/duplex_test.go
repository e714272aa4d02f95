package duplex

import (
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lukasbauer/clio/internal/protocol"
)

var testUpgrader = websocket.Upgrader{}

// newWSServer runs handler once per accepted connection.
func newWSServer(t *testing.T, handler func(*websocket.Conn)) (*httptest.Server, string) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(conn)
	}))
	t.Cleanup(server.Close)
	return server, "ws" + strings.TrimPrefix(server.URL, "http")
}

// fakeScheduler records scheduled callbacks so tests fire them by hand.
type fakeScheduler struct {
	mu     sync.Mutex
	delays []time.Duration
	funcs  []func()
	armed  chan struct{}
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{armed: make(chan struct{}, 16)}
}

func (s *fakeScheduler) after(d time.Duration, fn func()) {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.funcs = append(s.funcs, fn)
	s.mu.Unlock()
	s.armed <- struct{}{}
}

func (s *fakeScheduler) waitArmed(t *testing.T) {
	t.Helper()
	select {
	case <-s.armed:
	case <-time.After(2 * time.Second):
		t.Fatal("no reconnect was scheduled")
	}
}

func (s *fakeScheduler) fireLast() {
	s.mu.Lock()
	fn := s.funcs[len(s.funcs)-1]
	s.mu.Unlock()
	fn()
}

func (s *fakeScheduler) lastDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delays[len(s.delays)-1]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestChannelConnectAndReceive(t *testing.T) {
	_, url := newWSServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(protocol.Connected("hello"))
	})

	c := New(Config{URL: url, Logger: log.New(testWriter{t}, "", 0)})
	defer c.Close()

	got := make(chan protocol.Frame, 1)
	c.OnMessage(func(f protocol.Frame) { got <- f })
	c.Connect()

	select {
	case f := <-got:
		if f.Type != protocol.TypeConnected || f.Message != "hello" {
			t.Errorf("frame = %+v", f)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
	}
	if !c.IsOpen() {
		t.Error("channel should be open")
	}
}

func TestChannelSend(t *testing.T) {
	received := make(chan protocol.Frame, 1)
	_, url := newWSServer(t, func(conn *websocket.Conn) {
		var f protocol.Frame
		if err := conn.ReadJSON(&f); err == nil {
			received <- f
		}
	})

	c := New(Config{URL: url, Logger: log.New(testWriter{t}, "", 0)})
	defer c.Close()
	c.Connect()
	waitFor(t, "open", c.IsOpen)

	c.Send(protocol.UserMessage("hi"))

	select {
	case f := <-received:
		if f.Type != protocol.TypeUserMessage || f.Text != "hi" {
			t.Errorf("frame = %+v", f)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the frame")
	}
}

func TestSendWhileClosedIsDropped(t *testing.T) {
	c := New(Config{URL: "ws://127.0.0.1:1/ws", Logger: log.New(testWriter{t}, "", 0)})
	// Never connected; must not panic or block.
	c.Send(protocol.UserMessage("into the void"))
}

func TestChannelReconnectsAfterFixedDelay(t *testing.T) {
	var accepted atomic.Int32
	_, url := newWSServer(t, func(conn *websocket.Conn) {
		n := accepted.Add(1)
		if n == 1 {
			// Drop the first connection to trigger a reconnect.
			_ = conn.Close()
			return
		}
		_ = conn.WriteJSON(protocol.Connected("back"))
	})

	sched := newFakeScheduler()
	c := New(Config{
		URL:            url,
		Logger:         log.New(testWriter{t}, "", 0),
		ReconnectDelay: 3 * time.Second,
		After:          sched.after,
	})
	defer c.Close()

	got := make(chan protocol.Frame, 1)
	c.OnMessage(func(f protocol.Frame) { got <- f })
	c.Connect()

	sched.waitArmed(t)
	if d := sched.lastDelay(); d != 3*time.Second {
		t.Errorf("reconnect delay = %v, want 3s", d)
	}

	sched.fireLast()

	select {
	case f := <-got:
		if f.Type != protocol.TypeConnected {
			t.Errorf("frame = %+v", f)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no frame after reconnect")
	}
	if accepted.Load() != 2 {
		t.Errorf("accepted connections = %d, want 2", accepted.Load())
	}
}

func TestConnectWhileOpenIsNoOp(t *testing.T) {
	var accepted atomic.Int32
	_, url := newWSServer(t, func(conn *websocket.Conn) {
		accepted.Add(1)
		// Hold the connection open.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	c := New(Config{URL: url, Logger: log.New(testWriter{t}, "", 0)})
	defer c.Close()
	c.Connect()
	waitFor(t, "open", c.IsOpen)

	c.Connect()
	time.Sleep(50 * time.Millisecond)

	if accepted.Load() != 1 {
		t.Errorf("accepted connections = %d, want 1", accepted.Load())
	}
}

func TestCloseStopsReconnect(t *testing.T) {
	var dials atomic.Int32
	sched := newFakeScheduler()
	c := New(Config{
		URL:    "ws://example.invalid/ws",
		Logger: log.New(testWriter{t}, "", 0),
		Dial: func(string) (*websocket.Conn, error) {
			dials.Add(1)
			return nil, websocket.ErrBadHandshake
		},
		After: sched.after,
	})

	c.Connect()
	sched.waitArmed(t)
	if dials.Load() != 1 {
		t.Fatalf("dials = %d, want 1", dials.Load())
	}

	c.Close()
	sched.fireLast()
	time.Sleep(50 * time.Millisecond)

	if dials.Load() != 1 {
		t.Errorf("dials after Close = %d, want 1", dials.Load())
	}
	if c.State() != StateClosed {
		t.Errorf("state = %q, want closed", c.State())
	}
}

func TestMalformedInboundFrameIsSwallowed(t *testing.T) {
	_, url := newWSServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
		_ = conn.WriteJSON(protocol.AssistantChunk("still here"))
	})

	c := New(Config{URL: url, Logger: log.New(testWriter{t}, "", 0)})
	defer c.Close()

	got := make(chan protocol.Frame, 2)
	c.OnMessage(func(f protocol.Frame) { got <- f })
	c.Connect()

	select {
	case f := <-got:
		if f.Type != protocol.TypeAssistantChunk || f.Text != "still here" {
			t.Errorf("frame = %+v", f)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("valid frame never arrived")
	}
}

func TestOnMessageReplacesCallback(t *testing.T) {
	release := make(chan struct{})
	_, url := newWSServer(t, func(conn *websocket.Conn) {
		<-release
		_ = conn.WriteJSON(protocol.AssistantChunk("x"))
	})

	c := New(Config{URL: url, Logger: log.New(testWriter{t}, "", 0)})
	defer c.Close()

	var firstCalls atomic.Int32
	c.OnMessage(func(protocol.Frame) { firstCalls.Add(1) })
	c.Connect()
	waitFor(t, "open", c.IsOpen)

	second := make(chan protocol.Frame, 1)
	c.OnMessage(func(f protocol.Frame) { second <- f })
	close(release)

	select {
	case <-second:
	case <-time.After(2 * time.Second):
		t.Fatal("replacement callback never invoked")
	}
	if firstCalls.Load() != 0 {
		t.Errorf("replaced callback was invoked %d times", firstCalls.Load())
	}
}

func TestStateChangeObserver(t *testing.T) {
	_, url := newWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	c := New(Config{URL: url, Logger: log.New(testWriter{t}, "", 0)})

	var mu sync.Mutex
	var states []State
	c.OnStateChange(func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	c.Connect()
	waitFor(t, "open observed", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) == 2 && states[1] == StateOpen
	})
	c.Close()

	mu.Lock()
	defer mu.Unlock()
	want := []State{StateConnecting, StateOpen, StateClosed}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("states[%d] = %q, want %q", i, states[i], want[i])
		}
	}
}

// testWriter routes channel logs through the test runner.
type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}
