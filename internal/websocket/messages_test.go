package websocket

import (
	"encoding/json"
	"testing"

	"github.com/verbex/voxengine/domain/entities"
	"github.com/verbex/voxengine/internal/levelmeter"
)

func TestNewStateMessage(t *testing.T) {
	session := entities.Session{
		State:      entities.StateThinking,
		Transcript: "turn on focus mode",
		Muted:      true,
	}

	msg := NewStateMessage(session)
	if msg.Type != MessageState {
		t.Errorf("Expected type %q, got %q", MessageState, msg.Type)
	}
	if msg.State != "thinking" {
		t.Errorf("Expected state thinking, got %q", msg.State)
	}
	if msg.Transcript != "turn on focus mode" {
		t.Errorf("Expected transcript carried, got %q", msg.Transcript)
	}
	if !msg.Muted {
		t.Error("Expected muted flag carried")
	}
}

func TestStateMessageOmitsEmptyFields(t *testing.T) {
	payload, err := json.Marshal(NewStateMessage(entities.NewSession()))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for _, field := range []string{"transcript", "reply", "error_message"} {
		if _, ok := decoded[field]; ok {
			t.Errorf("Expected %q omitted for an idle session", field)
		}
	}
}

func TestNewLevelsMessage(t *testing.T) {
	frame := levelmeter.Frame{0.1, 0.2, 0.3, 0.4, 0.5}
	msg := NewLevelsMessage(frame)
	if msg.Type != MessageLevels {
		t.Errorf("Expected type %q, got %q", MessageLevels, msg.Type)
	}
	if len(msg.Bands) != levelmeter.Bands {
		t.Fatalf("Expected %d bands, got %d", levelmeter.Bands, len(msg.Bands))
	}
	for i, v := range frame {
		if msg.Bands[i] != v {
			t.Errorf("Band %d = %v, want %v", i, msg.Bands[i], v)
		}
	}
}

func TestCommandParsing(t *testing.T) {
	var cmd Command
	if err := json.Unmarshal([]byte(`{"type":"toggle"}`), &cmd); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if cmd.Type != CommandToggle {
		t.Errorf("Expected toggle, got %q", cmd.Type)
	}
}
