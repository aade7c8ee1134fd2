package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/brewbuds/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_PutDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemory("https://cdn.brewbuds.dev/")

	require.NoError(t, s.Put(ctx, "photos/2026/10/a.jpg", strings.NewReader("jpeg"), 4, "image/jpeg"))
	data, ct, ok := s.Object("photos/2026/10/a.jpg")
	require.True(t, ok)
	assert.Equal(t, "jpeg", string(data))
	assert.Equal(t, "image/jpeg", ct)
	assert.Equal(t, "https://cdn.brewbuds.dev/photos/2026/10/a.jpg", s.URL("photos/2026/10/a.jpg"))

	require.NoError(t, s.Delete(ctx, "photos/2026/10/a.jpg"))
	assert.Equal(t, 0, s.Len())
}

func TestNew_NoEndpointUsesMemory(t *testing.T) {
	s, err := New(context.Background(), config.StorageConfig{})
	require.NoError(t, err)
	_, ok := s.(*MemoryStore)
	assert.True(t, ok)
	assert.Equal(t, "/media/k.png", s.URL("k.png"))
}
