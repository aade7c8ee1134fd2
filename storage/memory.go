package storage

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// MemoryStore keeps objects in process memory. Used in development and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	objects   map[string]memObject
	publicURL string
}

type memObject struct {
	data        []byte
	contentType string
}

func NewMemory(publicURL string) *MemoryStore {
	if publicURL == "" {
		publicURL = "/media"
	}
	return &MemoryStore{objects: make(map[string]memObject), publicURL: publicURL}
}

func (s *MemoryStore) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	s.mu.Lock()
	s.objects[key] = memObject{data: buf.Bytes(), contentType: contentType}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) URL(key string) string {
	return joinURL(s.publicURL, key)
}

// Object returns the stored bytes and content type of key.
func (s *MemoryStore) Object(key string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[key]
	return o.data, o.contentType, ok
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
