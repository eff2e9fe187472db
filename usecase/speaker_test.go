package usecase

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/verbex/voxengine/adapters/tts"
	"github.com/verbex/voxengine/domain/entities"
	"github.com/verbex/voxengine/domain/repositories"
	"github.com/verbex/voxengine/internal/prefs"
)

func TestSplitChunksShortTextIsSingleChunk(t *testing.T) {
	chunks := splitChunks("  hello world  ", chunkBudget)
	if len(chunks) != 1 || chunks[0] != "hello world" {
		t.Errorf("Expected one trimmed chunk, got %v", chunks)
	}
}

func TestSplitChunksEmptyText(t *testing.T) {
	if chunks := splitChunks("   ", chunkBudget); chunks != nil {
		t.Errorf("Expected no chunks for blank text, got %v", chunks)
	}
}

func TestSplitChunksLongTextPreservesWords(t *testing.T) {
	word := "reply"
	var b strings.Builder
	for b.Len() < 500 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(word)
	}
	text := b.String()

	chunks := splitChunks(text, chunkBudget)
	if len(chunks) < 3 {
		t.Fatalf("Expected a ~500-char reply to split into at least 3 chunks, got %d", len(chunks))
	}

	for i, chunk := range chunks {
		if len(chunk) > chunkBudget {
			t.Errorf("Chunk %d exceeds budget: %d chars", i, len(chunk))
		}
		for _, w := range strings.Fields(chunk) {
			if w != word {
				t.Errorf("Chunk %d broke a word: %q", i, w)
			}
		}
	}

	rejoined := strings.Join(chunks, " ")
	if rejoined != text {
		t.Error("Expected rejoined chunks to reproduce the original text")
	}
}

func TestSplitChunksKeepsRuneBoundaries(t *testing.T) {
	// A spaceless multibyte reply must hard-split between characters,
	// never through one.
	text := strings.Repeat("あ", 300)

	chunks := splitChunks(text, chunkBudget)
	if len(chunks) != 2 {
		t.Fatalf("Expected 300 runes to split into 2 chunks, got %d", len(chunks))
	}

	var rejoined strings.Builder
	for i, chunk := range chunks {
		if !utf8.ValidString(chunk) {
			t.Errorf("Chunk %d is invalid UTF-8", i)
		}
		if n := utf8.RuneCountInString(chunk); n > chunkBudget {
			t.Errorf("Chunk %d exceeds budget: %d runes", i, n)
		}
		rejoined.WriteString(chunk)
	}
	if rejoined.String() != text {
		t.Error("Expected rejoined chunks to reproduce the original text")
	}
}

func TestSplitChunksBudgetCountsRunes(t *testing.T) {
	// 200 two-byte runes exceed the budget in bytes but not in runes and
	// must stay a single chunk.
	text := strings.Repeat("é", 200)
	chunks := splitChunks(text, chunkBudget)
	if len(chunks) != 1 || chunks[0] != text {
		t.Errorf("Expected a single chunk for %d runes, got %d chunks", 200, len(chunks))
	}
}

func TestSplitChunksOversizeWordIsHardSplit(t *testing.T) {
	text := strings.Repeat("x", chunkBudget*2+10)
	chunks := splitChunks(text, chunkBudget)
	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > chunkBudget {
			t.Errorf("Chunk %d exceeds budget: %d chars", i, len(chunk))
		}
	}
}

func collectEvents() (func(repositories.PlaybackEvent), <-chan repositories.PlaybackEvent) {
	events := make(chan repositories.PlaybackEvent, 8)
	return func(ev repositories.PlaybackEvent) { events <- ev }, events
}

func waitEvent(t *testing.T, events <-chan repositories.PlaybackEvent) repositories.PlaybackEvent {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for playback event")
		return repositories.PlaybackEvent{}
	}
}

func TestSpeakEmitsStartedThenEnded(t *testing.T) {
	synth := tts.NewMock(zap.NewNop())
	synth.SetUtteranceDuration(time.Millisecond)
	speaker := NewSpeaker(synth, prefs.NewMemoryStore(), zap.NewNop())

	notify, events := collectEvents()
	if err := speaker.Speak(context.Background(), "hello there", notify); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}

	if ev := waitEvent(t, events); ev.Kind != repositories.PlaybackStarted {
		t.Errorf("Expected PlaybackStarted first, got %s", ev.Kind)
	}
	if ev := waitEvent(t, events); ev.Kind != repositories.PlaybackEnded {
		t.Errorf("Expected PlaybackEnded last, got %s", ev.Kind)
	}
}

func TestSpeakLongReplyChunksInOrder(t *testing.T) {
	synth := tts.NewMock(zap.NewNop())
	synth.SetUtteranceDuration(time.Millisecond)
	speaker := NewSpeaker(synth, prefs.NewMemoryStore(), zap.NewNop())

	var b strings.Builder
	for i := 0; b.Len() < 500; i++ {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString("segment")
	}
	text := b.String()
	want := splitChunks(text, chunkBudget)

	notify, events := collectEvents()
	if err := speaker.Speak(context.Background(), text, notify); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}

	if ev := waitEvent(t, events); ev.Kind != repositories.PlaybackStarted {
		t.Errorf("Expected exactly one PlaybackStarted, got %s", ev.Kind)
	}
	if ev := waitEvent(t, events); ev.Kind != repositories.PlaybackEnded {
		t.Errorf("Expected a single terminal PlaybackEnded, got %s", ev.Kind)
	}

	spoken := synth.Spoken()
	if len(spoken) != len(want) {
		t.Fatalf("Expected %d utterances, got %d", len(want), len(spoken))
	}
	for i, u := range spoken {
		if u.Text != want[i] {
			t.Errorf("Utterance %d out of order: got %q, want %q", i, u.Text, want[i])
		}
	}
}

func TestSpeakResolvesPersonaVoice(t *testing.T) {
	synth := tts.NewMock(zap.NewNop())
	synth.SetUtteranceDuration(time.Millisecond)
	store := prefs.NewMemoryStore()
	store.Save(context.Background(), entities.VoicePreference{
		Persona: entities.PersonaMale,
		Rate:    1.1,
		Pitch:   1.0,
	})
	speaker := NewSpeaker(synth, store, zap.NewNop())

	notify, events := collectEvents()
	if err := speaker.Speak(context.Background(), "hello", notify); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}
	waitEvent(t, events) // started
	waitEvent(t, events) // ended

	spoken := synth.Spoken()
	if len(spoken) != 1 {
		t.Fatalf("Expected one utterance, got %d", len(spoken))
	}
	if spoken[0].VoiceID != "v-daniel" {
		t.Errorf("Expected male persona to resolve v-daniel, got %q", spoken[0].VoiceID)
	}
	if spoken[0].Rate != 1.1 {
		t.Errorf("Expected rate 1.1, got %v", spoken[0].Rate)
	}
}

func TestSpeakClampsStoredPreference(t *testing.T) {
	synth := tts.NewMock(zap.NewNop())
	synth.SetUtteranceDuration(time.Millisecond)
	store := prefs.NewMemoryStore()
	store.Save(context.Background(), entities.VoicePreference{
		Persona: entities.PersonaFemale,
		Rate:    99.0,
		Pitch:   -3.0,
	})
	speaker := NewSpeaker(synth, store, zap.NewNop())

	notify, events := collectEvents()
	if err := speaker.Speak(context.Background(), "hello", notify); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}
	waitEvent(t, events)
	waitEvent(t, events)

	spoken := synth.Spoken()
	if len(spoken) != 1 {
		t.Fatalf("Expected one utterance, got %d", len(spoken))
	}
	if spoken[0].Rate != entities.MaxRate {
		t.Errorf("Expected rate clamped to %v, got %v", entities.MaxRate, spoken[0].Rate)
	}
	if spoken[0].Pitch != entities.MinPitch {
		t.Errorf("Expected pitch clamped to %v, got %v", entities.MinPitch, spoken[0].Pitch)
	}
}

func TestSpeakFailureIsReported(t *testing.T) {
	synth := tts.NewMock(zap.NewNop())
	synth.SetUtteranceDuration(time.Millisecond)
	synth.FailOnCall(1)
	speaker := NewSpeaker(synth, prefs.NewMemoryStore(), zap.NewNop())

	notify, events := collectEvents()
	if err := speaker.Speak(context.Background(), "hello", notify); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}

	waitEvent(t, events) // started
	if ev := waitEvent(t, events); ev.Kind != repositories.PlaybackFailed {
		t.Errorf("Expected PlaybackFailed, got %s", ev.Kind)
	}
}

func TestCancelSuppressesNotifications(t *testing.T) {
	synth := tts.NewMock(zap.NewNop())
	synth.SetUtteranceDuration(time.Second)
	speaker := NewSpeaker(synth, prefs.NewMemoryStore(), zap.NewNop())

	notify, events := collectEvents()
	ctx, cancel := context.WithCancel(context.Background())
	if err := speaker.Speak(ctx, "hello", notify); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}

	waitEvent(t, events) // started
	cancel()
	speaker.Cancel()

	select {
	case ev := <-events:
		t.Errorf("Expected no events after cancel, got %s", ev.Kind)
	case <-time.After(100 * time.Millisecond):
	}
}
