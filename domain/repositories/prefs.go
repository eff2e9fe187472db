package repositories

import (
	"context"

	"github.com/verbex/voxengine/domain/entities"
)

// PreferenceStore persists the process-wide voice preference. Load returns
// the default preference when nothing has been saved yet.
type PreferenceStore interface {
	Load(ctx context.Context) (entities.VoicePreference, error)
	Save(ctx context.Context, pref entities.VoicePreference) error
}
