package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/janhq/jan-relay/services/relay-api/internal/domain/generation"
)

// MemoryStore keeps panels in process memory. URLs point at relay-api's own
// media route.
type MemoryStore struct {
	mu        sync.RWMutex
	objects   map[string]generation.Media
	urlPrefix string
}

// NewMemoryStore creates a store whose links are urlPrefix + id.
func NewMemoryStore(urlPrefix string) *MemoryStore {
	if !strings.HasSuffix(urlPrefix, "/") {
		urlPrefix += "/"
	}
	return &MemoryStore{objects: make(map[string]generation.Media), urlPrefix: urlPrefix}
}

// Put stores a copy of media.
func (s *MemoryStore) Put(_ context.Context, media *generation.Media) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *media
	stored.Data = append([]byte(nil), media.Data...)
	s.objects[media.ID] = stored
	return nil
}

// Get returns a stored object.
func (s *MemoryStore) Get(_ context.Context, id string) (*generation.Media, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	media, ok := s.objects[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", generation.ErrMediaNotFound, id)
	}
	return &media, nil
}

// URL returns the link served by the media handler.
func (s *MemoryStore) URL(_ context.Context, id string) (string, error) {
	return s.urlPrefix + id, nil
}

var (
	_ generation.MediaStore = (*MinioStore)(nil)
	_ generation.MediaStore = (*MemoryStore)(nil)
)
