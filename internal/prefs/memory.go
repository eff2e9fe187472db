package prefs

import (
	"context"
	"sync"

	"github.com/verbex/voxengine/domain/entities"
	"github.com/verbex/voxengine/domain/repositories"
)

// MemoryStore is an in-memory preference store for tests and runs where
// persistence is not wanted.
type MemoryStore struct {
	mu    sync.RWMutex
	pref  entities.VoicePreference
	saved bool
}

var _ repositories.PreferenceStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store; Load returns the default
// preference until Save is called.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) (entities.VoicePreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.saved {
		return entities.DefaultVoicePreference(), nil
	}
	return s.pref, nil
}

func (s *MemoryStore) Save(ctx context.Context, pref entities.VoicePreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pref = pref
	s.saved = true
	return nil
}
