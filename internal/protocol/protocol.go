package protocol

import "encoding/json"

// Frame type values. One JSON object per message; Type selects the variant.
const (
	TypeConnected      = "connected"
	TypeUserMessage    = "user_message"
	TypeStatus         = "status"
	TypeAssistantChunk = "assistant_chunk"
	TypeAssistantDone  = "assistant_done"
	TypeClearHistory   = "clear_history"
	TypeHistoryCleared = "history_cleared"
	TypeError          = "error"
)

// StatusThinking is emitted when the server accepts a user turn and
// starts generating.
const StatusThinking = "thinking"

// Frame is one wire message. Fields unused by a variant are omitted from
// the encoding.
type Frame struct {
	Type     string `json:"type"`
	Message  string `json:"message,omitempty"`
	Text     string `json:"text,omitempty"`
	Status   string `json:"status,omitempty"`
	FullText string `json:"fullText,omitempty"`
}

// Encode serializes a frame to its wire form.
func Encode(f Frame) ([]byte, error) {
	return json.Marshal(f)
}

// Decode parses a wire message. Unknown frame types decode fine; callers
// dispatch on Type and drop what they do not recognize.
func Decode(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, err
	}
	return f, nil
}

func Connected(message string) Frame {
	return Frame{Type: TypeConnected, Message: message}
}

func UserMessage(text string) Frame {
	return Frame{Type: TypeUserMessage, Text: text}
}

func Thinking() Frame {
	return Frame{Type: TypeStatus, Status: StatusThinking}
}

func AssistantChunk(text string) Frame {
	return Frame{Type: TypeAssistantChunk, Text: text}
}

func AssistantDone(fullText string) Frame {
	return Frame{Type: TypeAssistantDone, FullText: fullText}
}

func ClearHistory() Frame {
	return Frame{Type: TypeClearHistory}
}

func HistoryCleared() Frame {
	return Frame{Type: TypeHistoryCleared}
}

func Error(message string) Frame {
	return Frame{Type: TypeError, Message: message}
}
