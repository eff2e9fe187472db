package prefs

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/verbex/voxengine/domain/entities"
)

func TestMemoryStoreDefaultsUntilSaved(t *testing.T) {
	store := NewMemoryStore()

	pref, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if pref != entities.DefaultVoicePreference() {
		t.Errorf("Expected default preference, got %+v", pref)
	}

	want := entities.VoicePreference{Persona: entities.PersonaMale, Rate: 1.1, Pitch: 0.8}
	if err := store.Save(context.Background(), want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	pref, err = store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if pref != want {
		t.Errorf("Expected %+v, got %+v", want, pref)
	}
}

func TestBadgerStoreRoundTrip(t *testing.T) {
	store, err := OpenBadgerStore(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("OpenBadgerStore failed: %v", err)
	}
	defer store.Close()

	pref, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if pref != entities.DefaultVoicePreference() {
		t.Errorf("Expected default preference on fresh store, got %+v", pref)
	}

	want := entities.VoicePreference{Persona: entities.PersonaMale, Rate: 0.9, Pitch: 1.4}
	if err := store.Save(context.Background(), want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	pref, err = store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if pref != want {
		t.Errorf("Expected %+v, got %+v", want, pref)
	}
}

func TestBadgerStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := OpenBadgerStore(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("OpenBadgerStore failed: %v", err)
	}
	want := entities.VoicePreference{Persona: entities.PersonaFemale, Rate: 1.2, Pitch: 0.7}
	if err := store.Save(context.Background(), want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := OpenBadgerStore(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	pref, err := reopened.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if pref != want {
		t.Errorf("Expected %+v after reopen, got %+v", want, pref)
	}
}
