package protocol

import (
	"strings"
	"testing"
)

func TestEncodeOmitsUnusedFields(t *testing.T) {
	tests := []struct {
		frame    Frame
		contains []string
		excludes []string
	}{
		{Connected("welcome"), []string{`"type":"connected"`, `"message":"welcome"`}, []string{"text", "status", "fullText"}},
		{UserMessage("hello"), []string{`"type":"user_message"`, `"text":"hello"`}, []string{"message", "status", "fullText"}},
		{Thinking(), []string{`"type":"status"`, `"status":"thinking"`}, []string{"text", "message", "fullText"}},
		{AssistantChunk("Rome "), []string{`"type":"assistant_chunk"`, `"text":"Rome "`}, []string{"fullText"}},
		{AssistantDone("Rome fell in 476."), []string{`"type":"assistant_done"`, `"fullText":"Rome fell in 476."`}, []string{`"text"`}},
		{ClearHistory(), []string{`"type":"clear_history"`}, []string{"text", "message", "status", "fullText"}},
		{HistoryCleared(), []string{`"type":"history_cleared"`}, []string{"text", "message", "status", "fullText"}},
		{Error("upstream failed"), []string{`"type":"error"`, `"message":"upstream failed"`}, []string{"text", "status", "fullText"}},
	}

	for _, tt := range tests {
		data, err := Encode(tt.frame)
		if err != nil {
			t.Fatalf("Encode(%+v): %v", tt.frame, err)
		}
		s := string(data)
		for _, want := range tt.contains {
			if !strings.Contains(s, want) {
				t.Errorf("Encode(%s) = %s, missing %s", tt.frame.Type, s, want)
			}
		}
		for _, not := range tt.excludes {
			if strings.Contains(s, not) {
				t.Errorf("Encode(%s) = %s, should omit %s", tt.frame.Type, s, not)
			}
		}
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	frames := []Frame{
		Connected("hi"),
		UserMessage("Tell me about Rome"),
		Thinking(),
		AssistantChunk("The Roman "),
		AssistantDone("The Roman Empire."),
		ClearHistory(),
		HistoryCleared(),
		Error("busy"),
	}

	for _, f := range frames {
		data, err := Encode(f)
		if err != nil {
			t.Fatalf("Encode(%+v): %v", f, err)
		}
		got, err := Decode(data)
		if err != nil {
			t.Fatalf("Decode(%s): %v", data, err)
		}
		if got != f {
			t.Errorf("round trip = %+v, want %+v", got, f)
		}
	}
}

func TestDecodeUnknownType(t *testing.T) {
	// Unknown variants decode; dispatch drops them later.
	f, err := Decode([]byte(`{"type":"ping","message":"x"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Type != "ping" {
		t.Errorf("Type = %q, want %q", f.Type, "ping")
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, err := Decode([]byte(`{"type":`)); err == nil {
		t.Error("Decode of truncated JSON should fail")
	}
	if _, err := Decode([]byte(`not json at all`)); err == nil {
		t.Error("Decode of non-JSON should fail")
	}
}
