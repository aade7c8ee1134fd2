package push

import (
	"context"
	"errors"
	"time"

	"github.com/brewbuds/server/metrics"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// ErrUnavailable is returned while the breaker is open.
var ErrUnavailable = errors.New("push: provider unavailable")

// BreakerPusher stops calling the provider after repeated failures and
// retries after the open timeout.
type BreakerPusher struct {
	next Pusher
	cb   *gobreaker.CircuitBreaker[Result]
}

// NewBreaker wraps next. The circuit opens after threshold consecutive
// failures and half-opens after openTimeout.
func NewBreaker(next Pusher, threshold uint32, openTimeout time.Duration, log *zap.Logger) *BreakerPusher {
	if threshold == 0 {
		threshold = 5
	}
	cb := gobreaker.NewCircuitBreaker[Result](gobreaker.Settings{
		Name:        "push",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("push breaker state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &BreakerPusher{next: next, cb: cb}
}

func (b *BreakerPusher) Push(ctx context.Context, msg Message) (Result, error) {
	res, err := b.cb.Execute(func() (Result, error) {
		return b.next.Push(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.RecordPush("breaker_open")
		return Result{}, ErrUnavailable
	}
	return res, err
}

// State exposes the breaker state for the admin metrics view.
func (b *BreakerPusher) State() string {
	return b.cb.State().String()
}
