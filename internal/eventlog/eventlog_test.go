package eventlog

import (
	"context"
	"testing"
)

func TestLogSkipsWithoutDB(t *testing.T) {
	l := New(nil)

	if err := l.Log(context.Background(), "session-1", EventSessionStarted, nil); err != nil {
		t.Errorf("Log with nil db should be a no-op, got %v", err)
	}
}

func TestLogSkipsWithoutSessionID(t *testing.T) {
	l := New(nil)

	if err := l.Log(context.Background(), "", EventUserTurn, map[string]any{"chars": 12}); err != nil {
		t.Errorf("Log with empty session id should be a no-op, got %v", err)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	// Callers hold a possibly-nil *Logger when diagnostics are disabled.
	var l *Logger

	if err := l.Log(context.Background(), "session-1", EventLLMStarted, nil); err != nil {
		t.Errorf("nil Logger Log should be a no-op, got %v", err)
	}
	l.LogAsync("session-1", EventLLMCompleted, nil) // must not panic
}

func TestLogAsyncSkipsWithoutDB(t *testing.T) {
	l := New(nil)

	// Must return immediately without spawning work or panicking.
	l.LogAsync("session-1", EventSessionEnded, map[string]any{"turns": 4})
}

func TestEventTypeValues(t *testing.T) {
	events := map[EventType]string{
		EventSessionStarted: "session_started",
		EventUserTurn:       "user_turn",
		EventTurnRejected:   "turn_rejected",
		EventLLMStarted:     "llm_started",
		EventLLMCompleted:   "llm_completed",
		EventLLMError:       "llm_error",
		EventHistoryCleared: "history_cleared",
		EventSessionEnded:   "session_ended",
	}

	for event, want := range events {
		if string(event) != want {
			t.Errorf("event = %q, want %q", event, want)
		}
	}
}
