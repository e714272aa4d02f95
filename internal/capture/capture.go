// Package capture implements the push-to-talk state machine. Holding the
// button accumulates live transcript updates; releasing it waits out a
// short grace delay for the final recognition result, then hands the
// finalized text to the pipeline.
package capture

import (
	"log"
	"strings"
	"sync"
	"time"
)

// Capability is the underlying recognition engine.
type Capability interface {
	Start()
	Stop()
	Supported() bool
}

type State string

const (
	StateIdle      = State("idle")
	StateListening = State("listening")
)

// DefaultGraceDelay gives the recognizer time to flush a final partial
// result after the button is released.
const DefaultGraceDelay = 100 * time.Millisecond

type Config struct {
	Capability Capability
	Logger     *log.Logger
	GraceDelay time.Duration

	// Ready gates PressStart; capture is refused while the channel is
	// down or a generation is in flight.
	Ready func() bool

	// OnInterrupt runs when capture starts; the pipeline uses it to cut
	// off playback, since talking always interrupts the assistant.
	OnInterrupt func()

	// OnFinal receives the finalized non-empty transcript.
	OnFinal func(text string)

	// After is injectable for tests; nil picks time.AfterFunc.
	After func(d time.Duration, fn func())
}

// Controller owns the capture state and transcript buffer.
type Controller struct {
	cap         Capability
	logger      *log.Logger
	grace       time.Duration
	ready       func() bool
	onInterrupt func()
	onFinal     func(string)
	after       func(d time.Duration, fn func())

	mu           sync.Mutex
	state        State
	transcript   string
	pendingFinal bool
	press        uint64
}

func New(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	grace := cfg.GraceDelay
	if grace <= 0 {
		grace = DefaultGraceDelay
	}
	after := cfg.After
	if after == nil {
		after = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	}
	ready := cfg.Ready
	if ready == nil {
		ready = func() bool { return true }
	}
	return &Controller{
		cap:         cfg.Capability,
		logger:      logger,
		grace:       grace,
		ready:       ready,
		onInterrupt: cfg.OnInterrupt,
		onFinal:     cfg.OnFinal,
		after:       after,
		state:       StateIdle,
	}
}

// Supported reports whether the runtime can capture speech at all.
func (c *Controller) Supported() bool {
	return c.cap != nil && c.cap.Supported()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// PressStart begins listening. Refused when capture is unsupported, the
// pipeline is not ready, or listening already.
func (c *Controller) PressStart() {
	if !c.Supported() {
		c.logger.Printf("capture: press ignored, capture not supported")
		return
	}
	if !c.ready() {
		c.logger.Printf("capture: press ignored, not ready")
		return
	}

	c.mu.Lock()
	if c.state == StateListening {
		c.mu.Unlock()
		return
	}
	c.state = StateListening
	c.transcript = ""
	c.pendingFinal = false
	c.press++
	c.mu.Unlock()

	if c.onInterrupt != nil {
		c.onInterrupt()
	}
	c.cap.Start()
}

// PressRelease stops listening and arms the grace delay. Transcript
// updates arriving inside the window still count toward the final text.
func (c *Controller) PressRelease() {
	c.mu.Lock()
	if c.state != StateListening {
		c.mu.Unlock()
		return
	}
	c.state = StateIdle
	c.pendingFinal = true
	press := c.press
	c.mu.Unlock()

	c.cap.Stop()
	c.after(c.grace, func() { c.finalize(press) })
}

// SetTranscript is the live recognition result feed. Accepted while
// listening and during the post-release grace window; ignored otherwise.
func (c *Controller) SetTranscript(text string) {
	c.mu.Lock()
	if c.state == StateListening || c.pendingFinal {
		c.transcript = text
	}
	c.mu.Unlock()
}

func (c *Controller) finalize(press uint64) {
	c.mu.Lock()
	if press != c.press || !c.pendingFinal {
		// A newer press superseded this release.
		c.mu.Unlock()
		return
	}
	c.pendingFinal = false
	text := strings.TrimSpace(c.transcript)
	c.transcript = ""
	c.mu.Unlock()

	if text == "" {
		return
	}
	if c.onFinal != nil {
		c.onFinal(text)
	}
}
