package httpapi

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lukasbauer/clio/internal/eventlog"
	"github.com/lukasbauer/clio/internal/history"
	"github.com/lukasbauer/clio/internal/llm"
	"github.com/lukasbauer/clio/internal/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// chatSession is the server-side actor for one connection. It owns the
// session's conversation history, accepts user turns, and relays streamed
// completion fragments back as protocol frames. At most one generation is
// in flight per session.
type chatSession struct {
	id string

	conn   *websocket.Conn
	connMu sync.Mutex

	history  *history.History
	llm      llm.Client
	eventLog *eventlog.Logger
	logger   *log.Logger

	mu         sync.Mutex
	generating bool
	closed     bool

	// genCtx outlives the connection: a generation is never forcibly
	// aborted, it runs to its natural end and its sends are dropped once
	// the session is closed.
	genCtx context.Context
	genWg  sync.WaitGroup
}

func (r *Router) handleChatWS(w http.ResponseWriter, req *http.Request) {
	if r.sessions.IsDraining() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Printf("chat_ws: upgrade failed: %v", err)
		captureError(req, err, "chat_ws: upgrade failed")
		return
	}

	s := &chatSession{
		id:       uuid.NewString(),
		conn:     conn,
		history:  history.New(r.cfg.MaxTurns),
		llm:      r.llm,
		eventLog: r.eventLog,
		logger:   r.logger,
		genCtx:   context.Background(),
	}

	if !r.sessions.Add(s.id, s) {
		// Raced with StartDraining after the upgrade.
		_ = conn.Close()
		return
	}

	r.logger.Printf("chat_ws: session %s connected", s.id)
	s.eventLog.LogAsync(s.id, eventlog.EventSessionStarted, nil)

	s.send(protocol.Connected(r.cfg.GreetingText))

	s.run()

	s.eventLog.LogAsync(s.id, eventlog.EventSessionEnded, map[string]any{"turns": s.history.Size()})
	r.sessions.Remove(s.id)
	r.logger.Printf("chat_ws: session %s removed", s.id)
}

func (s *chatSession) run() {
	defer s.cleanup()

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Printf("chat_ws: session %s closed", s.id)
			} else {
				s.logger.Printf("chat_ws: session %s read error: %v", s.id, err)
			}
			return
		}

		frame, err := protocol.Decode(msg)
		if err != nil {
			s.logger.Printf("chat_ws: session %s dropping malformed frame: %v", s.id, err)
			continue
		}

		switch frame.Type {
		case protocol.TypeUserMessage:
			s.handleUserMessage(frame.Text)

		case protocol.TypeClearHistory:
			s.handleClearHistory()

		default:
			s.logger.Printf("chat_ws: session %s ignoring frame type %q", s.id, frame.Type)
		}
	}
}

// handleUserMessage accepts a finalized user turn and starts a
// generation. A turn arriving while one is already in flight is rejected
// with an error frame; queuing it would let a second history append
// interleave with the running generation and corrupt turn ordering.
func (s *chatSession) handleUserMessage(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	s.mu.Lock()
	if s.generating {
		s.mu.Unlock()
		s.logger.Printf("chat_ws: session %s busy, rejecting user message", s.id)
		s.eventLog.LogAsync(s.id, eventlog.EventTurnRejected, nil)
		s.send(protocol.Error("assistant is still responding"))
		return
	}
	s.generating = true
	s.mu.Unlock()

	s.history.Append(history.RoleUser, text)
	s.eventLog.LogAsync(s.id, eventlog.EventUserTurn, map[string]any{"chars": len(text)})
	s.send(protocol.Thinking())

	snapshot := s.history.Snapshot()
	s.genWg.Add(1)
	go s.generate(snapshot)
}

// generate streams the completion for a history snapshot, relaying each
// fragment as an assistant_chunk frame.
func (s *chatSession) generate(snapshot []history.Turn) {
	defer s.genWg.Done()
	defer func() {
		s.mu.Lock()
		s.generating = false
		s.mu.Unlock()
	}()

	messages := make([]llm.Message, 0, len(snapshot))
	for _, t := range snapshot {
		messages = append(messages, llm.Message{Role: string(t.Role), Content: t.Content})
	}

	s.eventLog.LogAsync(s.id, eventlog.EventLLMStarted, map[string]any{"context_turns": len(messages)})

	var fullText strings.Builder
	err := s.llm.StreamCompletion(s.genCtx, messages, func(fragment string) {
		fullText.WriteString(fragment)
		s.send(protocol.AssistantChunk(fragment))
	})
	if err != nil {
		s.logger.Printf("chat_ws: session %s generation failed: %v", s.id, err)
		s.eventLog.LogAsync(s.id, eventlog.EventLLMError, map[string]any{"error": err.Error()})
		// The partial text is discarded: an incomplete answer must not
		// feed future prompts.
		s.send(protocol.Error("failed to generate a response"))
		return
	}

	full := fullText.String()
	s.history.Append(history.RoleAssistant, full)
	s.eventLog.LogAsync(s.id, eventlog.EventLLMCompleted, map[string]any{"chars": len(full)})
	s.send(protocol.AssistantDone(full))
}

// handleClearHistory is valid in any state. An in-flight generation keeps
// its snapshot and appends its result to the cleared log when it
// finishes; the snapshot is immutable, so the late append stays
// consistent.
func (s *chatSession) handleClearHistory() {
	s.history.Clear()
	s.eventLog.LogAsync(s.id, eventlog.EventHistoryCleared, nil)
	s.send(protocol.HistoryCleared())
}

// send serializes and writes one frame. Frames for a closed session are
// dropped with a warning — callers never queue, and a generation outliving
// its connection must not write to the dead channel.
func (s *chatSession) send(f protocol.Frame) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		s.logger.Printf("chat_ws: session %s dropping %s frame, connection closed", s.id, f.Type)
		return
	}

	s.connMu.Lock()
	err := s.conn.WriteJSON(f)
	s.connMu.Unlock()

	if err != nil {
		s.logger.Printf("chat_ws: session %s write %s failed: %v", s.id, f.Type, err)
	}
}

func (s *chatSession) closeConn() {
	s.connMu.Lock()
	_ = s.conn.Close()
	s.connMu.Unlock()
}

func (s *chatSession) cleanup() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.closeConn()

	// Let an in-flight generation run to its natural end; it stops
	// sending the moment closed is set.
	s.genWg.Wait()
}
