package entities

// VoicePersona selects which curated voice allow-list the speech player
// matches against when resolving a synthesis voice.
type VoicePersona string

const (
	PersonaMale   VoicePersona = "male"
	PersonaFemale VoicePersona = "female"
)

// Safe playback ranges. Stored preferences are clamped into these bounds
// before every utterance so a corrupted persisted value can never produce
// unintelligible output.
const (
	MinRate  = 0.7
	MaxRate  = 1.2
	MinPitch = 0.5
	MaxPitch = 2.0
)

// VoicePreference is the persisted, process-wide voice choice. It is read
// at startup and written whenever the user changes a control; it only
// affects the next utterance, never one already in flight.
type VoicePreference struct {
	Persona VoicePersona `json:"voice_persona"`
	Rate    float64      `json:"rate"`
	Pitch   float64      `json:"pitch"`
}

// DefaultVoicePreference returns the preference used before the user has
// ever saved one.
func DefaultVoicePreference() VoicePreference {
	return VoicePreference{
		Persona: PersonaFemale,
		Rate:    1.0,
		Pitch:   1.0,
	}
}

// Clamped returns a copy with rate and pitch forced into their safe ranges
// and an unknown persona replaced by the default.
func (p VoicePreference) Clamped() VoicePreference {
	out := p
	if out.Persona != PersonaMale && out.Persona != PersonaFemale {
		out.Persona = PersonaFemale
	}
	out.Rate = clamp(out.Rate, MinRate, MaxRate)
	out.Pitch = clamp(out.Pitch, MinPitch, MaxPitch)
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
