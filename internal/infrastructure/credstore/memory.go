package credstore

import (
	"context"
	"sync"

	"github.com/docflow/ingest-console/internal/core/ports"
)

// MemoryStore keeps the token for the life of the process only.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

var _ ports.CredentialStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Get(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

func (s *MemoryStore) Set(_ context.Context, accessToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = accessToken
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}
