package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPubSub_DeliversToSubscriber(t *testing.T) {
	ps := NewPubSub(16)
	ctx := context.Background()

	ch, cancel, err := ps.Subscribe(ctx, "notify:7")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.Publish(ctx, "notify:7", `{"type":"follow"}`))

	select {
	case msg := <-ch:
		assert.Equal(t, "notify:7", msg.Channel)
		assert.Equal(t, `{"type":"follow"}`, msg.Payload)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}
}

func TestPubSub_OtherChannelNotDelivered(t *testing.T) {
	ps := NewPubSub(16)
	ctx := context.Background()

	ch, cancel, err := ps.Subscribe(ctx, "notify:1")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.Publish(ctx, "notify:2", "x"))
	select {
	case msg := <-ch:
		t.Fatalf("unexpected message %+v", msg)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestPubSub_CancelClosesChannelOnce(t *testing.T) {
	ps := NewPubSub(16)
	ctx := context.Background()

	ch, cancel, err := ps.Subscribe(ctx, "notify:3")
	require.NoError(t, err)

	cancel()
	cancel() // second call is a no-op

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed after cancel")
	case <-time.After(100 * time.Millisecond):
		t.Fatal("channel not closed after cancel")
	}

	assert.NoError(t, ps.Publish(ctx, "notify:3", "after cancel"))
}

func TestPubSub_FanOut(t *testing.T) {
	ps := NewPubSub(16)
	ctx := context.Background()

	ch1, cancel1, _ := ps.Subscribe(ctx, "notify:9")
	ch2, cancel2, _ := ps.Subscribe(ctx, "notify:9")
	defer cancel1()
	defer cancel2()

	require.NoError(t, ps.Publish(ctx, "notify:9", "liked"))

	for _, ch := range []<-chan *LocalMessage{ch1, ch2} {
		select {
		case msg := <-ch:
			assert.Equal(t, "liked", msg.Payload)
		case <-time.After(100 * time.Millisecond):
			t.Fatal("subscriber did not receive message")
		}
	}
}

func TestPubSub_ContextEndsSubscription(t *testing.T) {
	ps := NewPubSub(4)
	ctx, cancelCtx := context.WithCancel(context.Background())

	ch, cancel, err := ps.Subscribe(ctx, "notify:5", "notify:6")
	require.NoError(t, err)
	defer cancel()
	assert.Equal(t, 1, ps.Subscribers("notify:5"))

	cancelCtx()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription outlived its context")
	}
	assert.Equal(t, 0, ps.Subscribers("notify:5"))
	assert.Equal(t, 0, ps.Subscribers("notify:6"))
}

func TestPubSub_FullBufferDrops(t *testing.T) {
	ps := NewPubSub(1)
	ctx := context.Background()
	ch, cancel, err := ps.Subscribe(ctx, "notify:8")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.Publish(ctx, "notify:8", "first"))
	require.NoError(t, ps.Publish(ctx, "notify:8", "second"))

	assert.Equal(t, "first", (<-ch).Payload)
	select {
	case msg := <-ch:
		t.Fatalf("expected drop, got %q", msg.Payload)
	case <-time.After(30 * time.Millisecond):
	}
}
