package push

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRecorder(t *testing.T) {
	r := &Recorder{Unregistered: map[string]bool{"gone": true}}
	res, err := r.Push(context.Background(), Message{Tokens: []string{"ok", "gone"}, Title: "like"})
	require.NoError(t, err)
	assert.Equal(t, []string{"gone"}, res.Unregistered)
	require.Len(t, r.Messages(), 1)
	assert.Equal(t, "like", r.Messages()[0].Title)
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	failing := &Recorder{Err: errors.New("expo down")}
	b := NewBreaker(failing, 2, time.Hour, zap.NewNop())
	ctx := context.Background()

	_, err := b.Push(ctx, Message{Tokens: []string{"a"}})
	assert.EqualError(t, err, "expo down")
	_, err = b.Push(ctx, Message{Tokens: []string{"a"}})
	assert.EqualError(t, err, "expo down")

	_, err = b.Push(ctx, Message{Tokens: []string{"a"}})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, "open", b.State())
}

func TestBreaker_PassesResult(t *testing.T) {
	r := &Recorder{Unregistered: map[string]bool{"x": true}}
	b := NewBreaker(r, 3, time.Second, zap.NewNop())
	res, err := b.Push(context.Background(), Message{Tokens: []string{"x", "y"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, res.Unregistered)
	assert.Equal(t, "closed", b.State())
}

func TestExpo_MalformedTokensSkipped(t *testing.T) {
	res, err := NewExpo().Push(context.Background(), Message{Tokens: []string{"not-an-expo-token"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"not-an-expo-token"}, res.Unregistered)
}
