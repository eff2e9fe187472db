package websocket

import (
	"github.com/verbex/voxengine/domain/entities"
	"github.com/verbex/voxengine/internal/levelmeter"
)

// Inbound command types accepted from clients.
const (
	CommandStart  = "start"
	CommandStop   = "stop"
	CommandToggle = "toggle"
	CommandCancel = "cancel"
	CommandMute   = "mute"
	CommandUnmute = "unmute"
)

// Outbound message types pushed to clients.
const (
	MessageState  = "state"
	MessageLevels = "levels"
	MessageError  = "error"
)

// Command is the envelope for every inbound control message.
type Command struct {
	Type string `json:"type"`
}

// StateMessage mirrors the session snapshot to clients on every change.
type StateMessage struct {
	Type         string `json:"type"`
	State        string `json:"state"`
	Transcript   string `json:"transcript,omitempty"`
	Reply        string `json:"reply,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	Muted        bool   `json:"muted"`
}

// LevelsMessage carries one visualization frame of banded magnitudes.
type LevelsMessage struct {
	Type  string    `json:"type"`
	Bands []float64 `json:"bands"`
}

// ErrorMessage reports a protocol-level problem, such as an unknown command.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewStateMessage builds the outbound snapshot for a session.
func NewStateMessage(session entities.Session) StateMessage {
	return StateMessage{
		Type:         MessageState,
		State:        string(session.State),
		Transcript:   session.Transcript,
		Reply:        session.Reply,
		ErrorMessage: session.ErrorMessage,
		Muted:        session.Muted,
	}
}

// NewLevelsMessage builds the outbound frame for the level meter.
func NewLevelsMessage(frame levelmeter.Frame) LevelsMessage {
	bands := make([]float64, len(frame))
	copy(bands, frame[:])
	return LevelsMessage{Type: MessageLevels, Bands: bands}
}
