// Package push delivers notifications to mobile devices.
package push

import (
	"context"
	"sync"
)

// Message is one notification fanned out to every token of a user.
type Message struct {
	Tokens []string
	Title  string
	Body   string
	Data   map[string]string
}

// Result reports tokens the provider no longer recognises. Callers should
// forget them.
type Result struct {
	Unregistered []string
}

// Pusher sends a message to devices.
type Pusher interface {
	Push(ctx context.Context, msg Message) (Result, error)
}

// Nop discards every message. Used when push is disabled.
type Nop struct{}

func (Nop) Push(context.Context, Message) (Result, error) { return Result{}, nil }

// Recorder keeps every pushed message in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	// Unregistered tokens are echoed back in every Result.
	Unregistered map[string]bool
	Err          error
}

func (r *Recorder) Push(_ context.Context, msg Message) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return Result{}, r.Err
	}
	r.messages = append(r.messages, msg)
	var res Result
	for _, t := range msg.Tokens {
		if r.Unregistered[t] {
			res.Unregistered = append(res.Unregistered, t)
		}
	}
	return res, nil
}

// Messages returns a copy of what has been pushed so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}
