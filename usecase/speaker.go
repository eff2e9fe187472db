package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/verbex/voxengine/domain/entities"
	"github.com/verbex/voxengine/domain/repositories"
)

// chunkBudget bounds how much text one utterance may carry. Longer replies
// are split on whitespace into ordered chunks, never mid-word.
const chunkBudget = 220

// Curated voice names per persona, matched case-insensitively against the
// platform's voice list.
var personaVoices = map[entities.VoicePersona][]string{
	entities.PersonaFemale: {"Samantha", "Victoria", "Karen", "Moira", "Tessa", "Rachel"},
	entities.PersonaMale:   {"Daniel", "Alex", "Fred", "Thomas", "Oliver"},
}

// Speaker converts reply text into ordered spoken utterances via the
// synthesis collaborator. A new Speak interrupts the previous one; the
// player is not queue-additive across calls.
type Speaker struct {
	synth  repositories.Synthesizer
	prefs  repositories.PreferenceStore
	logger *zap.Logger

	mu         sync.Mutex
	voiceCache []repositories.Voice
	cancel     context.CancelFunc
}

// NewSpeaker creates a speaker. synth may be nil, which degrades the
// engine to silent mode.
func NewSpeaker(synth repositories.Synthesizer, prefs repositories.PreferenceStore, logger *zap.Logger) *Speaker {
	return &Speaker{synth: synth, prefs: prefs, logger: logger}
}

// Available reports whether a synthesizer is present.
func (s *Speaker) Available() bool {
	return s.synth != nil
}

// Speak cancels any in-flight speech and synthesizes text chunk by chunk,
// strictly in order. notify receives exactly one PlaybackStarted when the
// first chunk begins, then one terminal PlaybackEnded or PlaybackFailed.
// If the context is cancelled mid-run, nothing more is notified: the
// caller has already moved on.
func (s *Speaker) Speak(ctx context.Context, text string, notify func(repositories.PlaybackEvent)) error {
	if s.synth == nil {
		return fmt.Errorf("no synthesizer available")
	}

	chunks := splitChunks(text, chunkBudget)
	if len(chunks) == 0 {
		return fmt.Errorf("nothing to speak")
	}

	s.Cancel()

	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	pref := s.loadPreference(ctx)
	voiceID := s.resolveVoice(runCtx, pref.Persona)

	go s.run(runCtx, chunks, voiceID, pref, notify)
	return nil
}

// Cancel interrupts the in-flight run, if any.
func (s *Speaker) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if s.synth != nil {
		s.synth.Cancel()
	}
}

func (s *Speaker) run(ctx context.Context, chunks []string, voiceID string, pref entities.VoicePreference, notify func(repositories.PlaybackEvent)) {
	started := false

	for _, chunk := range chunks {
		if ctx.Err() != nil {
			return
		}

		events, err := s.synth.Speak(ctx, repositories.Utterance{
			Text:    chunk,
			VoiceID: voiceID,
			Rate:    pref.Rate,
			Pitch:   pref.Pitch,
		})
		if err != nil {
			notify(repositories.PlaybackEvent{
				Kind: repositories.PlaybackFailed,
				Err:  fmt.Errorf("%w: %v", entities.ErrSynthesisFailed, err),
			})
			return
		}

		for event := range events {
			switch event.Kind {
			case repositories.PlaybackStarted:
				// Level, not edge, inside the run: only the first
				// chunk's start is surfaced.
				if !started {
					started = true
					notify(event)
				}
			case repositories.PlaybackFailed:
				if ctx.Err() == nil {
					notify(event)
				}
				return
			case repositories.PlaybackEnded:
				// next chunk
			}
		}

		if ctx.Err() != nil {
			return
		}
	}

	notify(repositories.PlaybackEvent{Kind: repositories.PlaybackEnded})
}

// loadPreference reads the persisted preference and clamps it into safe
// ranges, shielding playback from corrupted stored values.
func (s *Speaker) loadPreference(ctx context.Context) entities.VoicePreference {
	pref := entities.DefaultVoicePreference()
	if s.prefs != nil {
		loaded, err := s.prefs.Load(ctx)
		if err != nil {
			s.logger.Warn("failed to load voice preference", zap.Error(err))
		} else {
			pref = loaded
		}
	}
	return pref.Clamped()
}

// resolveVoice matches the persona allow-list against the cached voice
// list, refreshing the cache when it is empty (voices may load late).
// Falls back to the first available voice, or none at all.
func (s *Speaker) resolveVoice(ctx context.Context, persona entities.VoicePersona) string {
	s.mu.Lock()
	voices := s.voiceCache
	s.mu.Unlock()

	if len(voices) == 0 {
		fresh, err := s.synth.Voices(ctx)
		if err != nil {
			s.logger.Warn("failed to list synthesis voices", zap.Error(err))
		} else if len(fresh) > 0 {
			s.mu.Lock()
			s.voiceCache = fresh
			s.mu.Unlock()
			voices = fresh
		}
	}

	for _, want := range personaVoices[persona] {
		for _, voice := range voices {
			if strings.EqualFold(voice.Name, want) ||
				strings.Contains(strings.ToLower(voice.Name), strings.ToLower(want)) {
				return voice.ID
			}
		}
	}

	if len(voices) > 0 {
		return voices[0].ID
	}
	return ""
}

// splitChunks splits text into whitespace-bounded chunks of at most budget
// characters, preserving word integrity. The budget counts runes, not
// bytes, so multibyte scripts split cleanly. A single word longer than
// the budget is hard-split on rune boundaries so no chunk ever exceeds it.
func splitChunks(text string, budget int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= budget {
		return []string{text}
	}

	var chunks []string
	var b strings.Builder
	pending := 0

	flush := func() {
		if b.Len() > 0 {
			chunks = append(chunks, b.String())
			b.Reset()
			pending = 0
		}
	}

	for _, word := range strings.Fields(text) {
		wordRunes := utf8.RuneCountInString(word)
		for wordRunes > budget {
			flush()
			head := cutRunes(word, budget)
			chunks = append(chunks, head)
			word = word[len(head):]
			wordRunes -= budget
		}
		if word == "" {
			continue
		}

		needed := wordRunes
		if pending > 0 {
			needed++
		}
		if pending+needed > budget {
			flush()
		}
		if pending > 0 {
			b.WriteByte(' ')
			pending++
		}
		b.WriteString(word)
		pending += wordRunes
	}
	flush()

	return chunks
}

// cutRunes returns the prefix of s holding at most n whole runes.
func cutRunes(s string, n int) string {
	for i := range s {
		if n == 0 {
			return s[:i]
		}
		n--
	}
	return s
}
