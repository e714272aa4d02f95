// Package client wires the push-to-talk pipeline together: capture
// produces a finalized question, the duplex channel carries it to the
// relay, and streamed answer fragments accumulate into a transcript and
// spoken playback.
package client

import (
	"log"
	"sync"
	"time"

	"github.com/lukasbauer/clio/internal/capture"
	"github.com/lukasbauer/clio/internal/duplex"
	"github.com/lukasbauer/clio/internal/history"
	"github.com/lukasbauer/clio/internal/protocol"
	"github.com/lukasbauer/clio/internal/speech"
)

type Config struct {
	Channel *duplex.Channel
	Speech  *speech.Queue
	Capture capture.Capability
	Logger  *log.Logger

	// GraceDelay and After are forwarded to the capture controller.
	GraceDelay time.Duration
	After      func(d time.Duration, fn func())

	// EagerSpeech speaks fragments as they stream in instead of waiting
	// for the complete answer.
	EagerSpeech bool

	// OnUpdate fires after any state change so a frontend can redraw.
	OnUpdate func()
}

// Pipeline is the client-side conversation state.
type Pipeline struct {
	channel *duplex.Channel
	speech  *speech.Queue
	capture *capture.Controller
	logger  *log.Logger
	eager   bool
	update  func()

	mu         sync.Mutex
	transcript []history.Turn
	inProgress string
	thinking   bool
	generating bool
}

func New(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	update := cfg.OnUpdate
	if update == nil {
		update = func() {}
	}

	p := &Pipeline{
		channel: cfg.Channel,
		speech:  cfg.Speech,
		logger:  logger,
		eager:   cfg.EagerSpeech,
		update:  update,
	}

	p.capture = capture.New(capture.Config{
		Capability: cfg.Capture,
		Logger:     logger,
		GraceDelay: cfg.GraceDelay,
		After:      cfg.After,
		Ready: func() bool {
			return p.channel.IsOpen() && !p.IsGenerating()
		},
		OnInterrupt: p.speech.Cancel,
		OnFinal:     p.sendUserMessage,
	})

	p.channel.OnMessage(p.handleFrame)
	p.channel.OnStateChange(func(s duplex.State) {
		logger.Printf("client: channel %s", s)
		update()
	})

	return p
}

// Start opens the channel; it reconnects on its own from then on.
func (p *Pipeline) Start() {
	p.channel.Connect()
}

func (p *Pipeline) handleFrame(f protocol.Frame) {
	switch f.Type {
	case protocol.TypeConnected:
		p.logger.Printf("client: %s", f.Message)

	case protocol.TypeStatus:
		if f.Status == protocol.StatusThinking {
			p.mu.Lock()
			p.thinking = true
			p.generating = true
			p.mu.Unlock()
		}

	case protocol.TypeAssistantChunk:
		p.mu.Lock()
		p.thinking = false
		p.inProgress += f.Text
		p.mu.Unlock()
		if p.eager {
			p.speech.Enqueue(f.Text)
		}

	case protocol.TypeAssistantDone:
		p.mu.Lock()
		p.thinking = false
		p.generating = false
		p.inProgress = ""
		p.transcript = append(p.transcript, history.Turn{Role: history.RoleAssistant, Content: f.FullText})
		p.mu.Unlock()
		p.speech.SpeakNow(f.FullText)

	case protocol.TypeHistoryCleared:
		p.logger.Printf("client: history cleared")

	case protocol.TypeError:
		p.logger.Printf("client: server error: %s", f.Message)
		p.mu.Lock()
		p.thinking = false
		p.generating = false
		p.inProgress = ""
		p.mu.Unlock()

	default:
		p.logger.Printf("client: ignoring frame type %q", f.Type)
	}

	p.update()
}

func (p *Pipeline) sendUserMessage(text string) {
	p.mu.Lock()
	p.transcript = append(p.transcript, history.Turn{Role: history.RoleUser, Content: text})
	p.mu.Unlock()

	p.channel.Send(protocol.UserMessage(text))
	p.update()
}

// PressStart begins capturing a question; refused while disconnected or
// while an answer is being generated.
func (p *Pipeline) PressStart() {
	p.capture.PressStart()
	p.update()
}

// PressRelease finishes the question; the finalized transcript is sent
// as a user turn once the capture grace delay elapses.
func (p *Pipeline) PressRelease() {
	p.capture.PressRelease()
	p.update()
}

// SetTranscript feeds live recognition results to the capture
// controller.
func (p *Pipeline) SetTranscript(text string) {
	p.capture.SetTranscript(text)
	p.update()
}

// Clear wipes the local transcript, resets the server-side history, and
// silences playback.
func (p *Pipeline) Clear() {
	p.mu.Lock()
	p.transcript = nil
	p.inProgress = ""
	p.mu.Unlock()

	p.channel.Send(protocol.ClearHistory())
	p.speech.Cancel()
	p.update()
}

// Close shuts the channel down.
func (p *Pipeline) Close() {
	p.speech.Cancel()
	p.channel.Close()
}

func (p *Pipeline) Transcript() []history.Turn {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]history.Turn(nil), p.transcript...)
}

func (p *Pipeline) InProgress() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inProgress
}

func (p *Pipeline) IsThinking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.thinking
}

func (p *Pipeline) IsGenerating() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generating
}

func (p *Pipeline) IsListening() bool {
	return p.capture.State() == capture.StateListening
}

func (p *Pipeline) Connected() bool {
	return p.channel.IsOpen()
}

// CaptureSupported reports whether the interaction is usable at all;
// without capture there is no way to ask anything.
func (p *Pipeline) CaptureSupported() bool {
	return p.capture.Supported()
}

// SpeechSupported reports whether answers are spoken aloud; without
// synthesis the transcript still updates.
func (p *Pipeline) SpeechSupported() bool {
	return p.speech.Supported()
}
