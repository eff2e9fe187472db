package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/verbex/voxengine/domain/entities"
	"github.com/verbex/voxengine/domain/repositories"
)

const preferenceKey = "voice_preference"

// BadgerStore persists the voice preference in a local BadgerDB key/value
// store, so it survives process restarts. Session state is never stored
// here; only the preference.
type BadgerStore struct {
	db     *badger.DB
	logger *zap.Logger
}

var _ repositories.PreferenceStore = (*BadgerStore)(nil)

// OpenBadgerStore opens (or creates) the store at dir.
func OpenBadgerStore(dir string, logger *zap.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open preference store: %w", err)
	}
	return &BadgerStore{db: db, logger: logger}, nil
}

// Load reads the stored preference, falling back to the default when
// nothing has been saved yet.
func (s *BadgerStore) Load(ctx context.Context) (entities.VoicePreference, error) {
	pref := entities.DefaultVoicePreference()

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(preferenceKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &pref)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return entities.DefaultVoicePreference(), nil
	}
	if err != nil {
		return entities.DefaultVoicePreference(), fmt.Errorf("failed to load preference: %w", err)
	}

	return pref, nil
}

// Save writes the preference.
func (s *BadgerStore) Save(ctx context.Context, pref entities.VoicePreference) error {
	payload, err := json.Marshal(pref)
	if err != nil {
		return fmt.Errorf("failed to encode preference: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(preferenceKey), payload)
	})
	if err != nil {
		return fmt.Errorf("failed to save preference: %w", err)
	}

	s.logger.Info("Voice preference saved",
		zap.String("persona", string(pref.Persona)),
		zap.Float64("rate", pref.Rate),
		zap.Float64("pitch", pref.Pitch))
	return nil
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
