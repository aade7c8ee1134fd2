package local

import (
	"context"
	"sync"
)

type LocalMessage struct {
	Channel string
	Payload string
}

type subscription struct {
	ch       chan *LocalMessage
	channels []string
	done     chan struct{}
	once     sync.Once
}

// LocalPubSub fans notifications out to subscribers of this process only.
// A full subscriber buffer drops the message; live notifications are also
// stored, so a client that misses one sees it on its next list call.
type LocalPubSub struct {
	mu      sync.RWMutex
	subs    map[string]map[*subscription]struct{}
	bufSize int
}

func NewPubSub(bufSize int) *LocalPubSub {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &LocalPubSub{subs: make(map[string]map[*subscription]struct{}), bufSize: bufSize}
}

func (ps *LocalPubSub) Publish(_ context.Context, channel, message string) error {
	msg := &LocalMessage{Channel: channel, Payload: message}
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	for s := range ps.subs[channel] {
		select {
		case s.ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribers reports how many live subscriptions listen on channel.
func (ps *LocalPubSub) Subscribers(channel string) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.subs[channel])
}

// Subscribe listens on channels until cancel is called or ctx is done.
func (ps *LocalPubSub) Subscribe(ctx context.Context, channels ...string) (<-chan *LocalMessage, func(), error) {
	s := &subscription{
		ch:       make(chan *LocalMessage, ps.bufSize),
		channels: channels,
		done:     make(chan struct{}),
	}
	ps.mu.Lock()
	for _, c := range channels {
		if ps.subs[c] == nil {
			ps.subs[c] = make(map[*subscription]struct{})
		}
		ps.subs[c][s] = struct{}{}
	}
	ps.mu.Unlock()

	cancel := func() { ps.unsubscribe(s) }
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				cancel()
			case <-s.done:
			}
		}()
	}
	return s.ch, cancel, nil
}

func (ps *LocalPubSub) unsubscribe(s *subscription) {
	s.once.Do(func() {
		ps.mu.Lock()
		for _, c := range s.channels {
			delete(ps.subs[c], s)
			if len(ps.subs[c]) == 0 {
				delete(ps.subs, c)
			}
		}
		// Publishers hold the read lock while sending, so closing under
		// the write lock cannot race with a send.
		close(s.ch)
		ps.mu.Unlock()
		close(s.done)
	})
}
