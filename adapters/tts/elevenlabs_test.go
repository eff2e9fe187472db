package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/verbex/voxengine/domain/entities"
	"github.com/verbex/voxengine/domain/repositories"
)

func newTestElevenLabs(t *testing.T, baseURL string) *ElevenLabs {
	t.Helper()
	synth, err := NewElevenLabs(ElevenLabsConfig{
		APIKey:     "test-key",
		APIBaseURL: baseURL,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewElevenLabs failed: %v", err)
	}
	return synth
}

func TestNewElevenLabsRequiresAPIKey(t *testing.T) {
	if _, err := NewElevenLabs(ElevenLabsConfig{}, zap.NewNop()); err == nil {
		t.Error("Expected an error for a missing API key")
	}
}

func TestNewElevenLabsValidatesRanges(t *testing.T) {
	if _, err := NewElevenLabs(ElevenLabsConfig{APIKey: "k", Stability: 1.5}, zap.NewNop()); err == nil {
		t.Error("Expected an error for out-of-range stability")
	}
	if _, err := NewElevenLabs(ElevenLabsConfig{APIKey: "k", Clarity: -0.1}, zap.NewNop()); err == nil {
		t.Error("Expected an error for out-of-range clarity")
	}
}

func TestVoicesParsesList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/voices" {
			t.Errorf("Expected /voices, got %s", r.URL.Path)
		}
		if got := r.Header.Get("xi-api-key"); got != "test-key" {
			t.Errorf("Expected api key header, got %q", got)
		}
		w.Write([]byte(`{"voices":[{"voice_id":"v1","name":"Rachel"},{"voice_id":"v2","name":"Daniel"}]}`))
	}))
	defer server.Close()

	synth := newTestElevenLabs(t, server.URL)
	voices, err := synth.Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices failed: %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("Expected 2 voices, got %d", len(voices))
	}
	if voices[0].ID != "v1" || voices[0].Name != "Rachel" {
		t.Errorf("Unexpected first voice: %+v", voices[0])
	}
}

func TestVoicesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer server.Close()

	synth := newTestElevenLabs(t, server.URL)
	if _, err := synth.Voices(context.Background()); err == nil {
		t.Error("Expected an error for a non-200 response")
	}
}

func TestSpeakStreamsLifecycleEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/text-to-speech/voice-1/stream") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}

		var req synthesisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode synthesis request: %v", err)
		}
		if req.Text != "hello there" {
			t.Errorf("Expected utterance text, got %q", req.Text)
		}
		if req.VoiceSettings.Speed != 1.1 {
			t.Errorf("Expected rate mapped to speed 1.1, got %v", req.VoiceSettings.Speed)
		}

		w.Write(make([]byte, 8192))
	}))
	defer server.Close()

	synth := newTestElevenLabs(t, server.URL)
	events, err := synth.Speak(context.Background(), repositories.Utterance{
		Text:    "hello there",
		VoiceID: "voice-1",
		Rate:    1.1,
	})
	if err != nil {
		t.Fatalf("Speak failed: %v", err)
	}

	var kinds []repositories.PlaybackEventKind
	for ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	if len(kinds) != 2 || kinds[0] != repositories.PlaybackStarted || kinds[1] != repositories.PlaybackEnded {
		t.Errorf("Expected started then ended, got %v", kinds)
	}
}

func TestSpeakServerErrorEmitsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	synth := newTestElevenLabs(t, server.URL)
	events, err := synth.Speak(context.Background(), repositories.Utterance{
		Text:    "hello",
		VoiceID: "voice-1",
	})
	if err != nil {
		t.Fatalf("Speak failed: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Kind != repositories.PlaybackFailed {
			t.Errorf("Expected PlaybackFailed, got %s", ev.Kind)
		}
		if !errors.Is(ev.Err, entities.ErrSynthesisFailed) {
			t.Errorf("Expected ErrSynthesisFailed, got %v", ev.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for failure event")
	}
}

func TestSpeakRejectsEmptyUtterance(t *testing.T) {
	synth := newTestElevenLabs(t, "http://unused")
	if _, err := synth.Speak(context.Background(), repositories.Utterance{VoiceID: "v"}); err == nil {
		t.Error("Expected an error for empty text")
	}
	if _, err := synth.Speak(context.Background(), repositories.Utterance{Text: "hi"}); err == nil {
		t.Error("Expected an error for a missing voice")
	}
}

func TestCancelInterruptsStreaming(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 4096))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-release
	}))
	defer server.Close()
	defer close(release)

	synth := newTestElevenLabs(t, server.URL)
	events, err := synth.Speak(context.Background(), repositories.Utterance{
		Text:    "hello",
		VoiceID: "voice-1",
	})
	if err != nil {
		t.Fatalf("Speak failed: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Kind != repositories.PlaybackStarted {
			t.Fatalf("Expected PlaybackStarted, got %s", ev.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for started event")
	}

	synth.Cancel()

	select {
	case ev, ok := <-events:
		if ok && ev.Kind == repositories.PlaybackEnded {
			t.Error("Expected a cancelled stream not to end normally")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for the stream to terminate")
	}
}
