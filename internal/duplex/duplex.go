// Package duplex maintains the client's persistent connection to the
// conversation relay. It reconnects forever on a fixed delay and delivers
// inbound frames to a single registered callback.
package duplex

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lukasbauer/clio/internal/protocol"
)

type State string

const (
	StateConnecting = State("connecting")
	StateOpen       = State("open")
	StateClosed     = State("closed")
)

// DefaultReconnectDelay is fixed. No backoff growth and no retry cap;
// acceptable for an interactive tool.
const DefaultReconnectDelay = 3 * time.Second

type Config struct {
	URL            string
	Logger         *log.Logger
	ReconnectDelay time.Duration

	// Dial and After are injectable for tests; nil picks the real
	// websocket dialer and time.AfterFunc.
	Dial  func(url string) (*websocket.Conn, error)
	After func(d time.Duration, fn func())
}

// Channel is the client endpoint of the conversation protocol.
type Channel struct {
	url    string
	logger *log.Logger
	delay  time.Duration
	dial   func(url string) (*websocket.Conn, error)
	after  func(d time.Duration, fn func())

	mu        sync.Mutex
	conn      *websocket.Conn
	state     State
	stopped   bool
	onMessage func(protocol.Frame)
	onState   func(State)

	writeMu sync.Mutex
}

func New(cfg Config) *Channel {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	dial := cfg.Dial
	if dial == nil {
		dial = func(url string) (*websocket.Conn, error) {
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			return conn, err
		}
	}
	after := cfg.After
	if after == nil {
		after = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	}
	return &Channel{
		url:    cfg.URL,
		logger: logger,
		delay:  delay,
		dial:   dial,
		after:  after,
		state:  StateClosed,
	}
}

// OnMessage registers the inbound frame callback, replacing any previous
// registration.
func (c *Channel) OnMessage(cb func(protocol.Frame)) {
	c.mu.Lock()
	c.onMessage = cb
	c.mu.Unlock()
}

// OnStateChange registers a state observer, replacing any previous one.
// The observer runs on the channel's internal goroutines and must not
// block or call back into the channel.
func (c *Channel) OnStateChange(cb func(State)) {
	c.mu.Lock()
	c.onState = cb
	c.mu.Unlock()
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) IsOpen() bool {
	return c.State() == StateOpen
}

// Connect starts connecting. Connecting while already open or already
// mid-connect is a no-op, as is connecting after Close.
func (c *Channel) Connect() {
	c.mu.Lock()
	if c.stopped || c.state == StateOpen || c.state == StateConnecting {
		c.mu.Unlock()
		return
	}
	notify := c.setStateLocked(StateConnecting)
	c.mu.Unlock()
	notify()

	go c.attempt()
}

func (c *Channel) attempt() {
	conn, err := c.dial(c.url)

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		c.logger.Printf("duplex: connect to %s failed: %v", c.url, err)
		notify := c.setStateLocked(StateClosed)
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		notify()
		return
	}
	c.conn = conn
	notify := c.setStateLocked(StateOpen)
	c.mu.Unlock()
	notify()

	c.logger.Printf("duplex: connected to %s", c.url)
	go c.readLoop(conn)
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if c.conn != conn || c.stopped {
				c.mu.Unlock()
				return
			}
			c.conn = nil
			c.logger.Printf("duplex: connection lost: %v", err)
			notify := c.setStateLocked(StateClosed)
			c.scheduleReconnectLocked()
			c.mu.Unlock()
			notify()
			return
		}

		frame, err := protocol.Decode(msg)
		if err != nil {
			c.logger.Printf("duplex: dropping malformed frame: %v", err)
			continue
		}

		c.mu.Lock()
		cb := c.onMessage
		c.mu.Unlock()
		if cb != nil {
			cb(frame)
		}
	}
}

func (c *Channel) scheduleReconnectLocked() {
	c.after(c.delay, func() {
		c.Connect()
	})
}

// Send transmits one frame. Frames sent while the channel is not open are
// dropped with a warning; callers gate sends on connection state.
func (c *Channel) Send(f protocol.Frame) {
	c.mu.Lock()
	conn := c.conn
	open := c.state == StateOpen
	c.mu.Unlock()

	if !open || conn == nil {
		c.logger.Printf("duplex: dropping %s frame, channel not open", f.Type)
		return
	}

	c.writeMu.Lock()
	err := conn.WriteJSON(f)
	c.writeMu.Unlock()
	if err != nil {
		c.logger.Printf("duplex: write %s failed: %v", f.Type, err)
	}
}

// Close shuts the channel down for good; no reconnect is attempted after.
func (c *Channel) Close() {
	c.mu.Lock()
	c.stopped = true
	conn := c.conn
	c.conn = nil
	notify := c.setStateLocked(StateClosed)
	c.mu.Unlock()
	notify()

	if conn != nil {
		_ = conn.Close()
	}
}

// setStateLocked updates the state and returns the observer notification
// to run once the lock is released.
func (c *Channel) setStateLocked(s State) func() {
	if c.state == s || c.onState == nil {
		c.state = s
		return func() {}
	}
	c.state = s
	cb := c.onState
	return func() { cb(s) }
}
