package llm

import (
	"context"
	"errors"
)

// ErrGenerationFailed wraps every upstream failure: provider unavailable,
// rate limited, malformed stream data. Fragments already delivered to the
// sink are never retracted; the error covers the remainder only.
var ErrGenerationFailed = errors.New("generation failed")

// Message is one conversation message sent as prompt context.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Client streams a completion for the given conversation.
//
// The sink is invoked once per text fragment, in order, from a single
// goroutine; StreamCompletion returns once the upstream generation ends.
// Output length cap and sampling temperature are client configuration,
// not per-call parameters. Implementations attempt each call exactly
// once — retry policy, if any, belongs to the caller.
type Client interface {
	StreamCompletion(ctx context.Context, messages []Message, sink func(fragment string)) error
}
