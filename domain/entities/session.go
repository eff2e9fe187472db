package entities

// State represents the visible phase of the voice session
type State string

const (
	StateIdle      State = "idle"
	StateListening State = "listening"
	StateThinking  State = "thinking"
	StateSpeaking  State = "speaking"
)

// Session represents the single active voice interaction.
// It is created implicitly on the first gesture and persists across
// many start/stop cycles; between cycles it is reset to idle, never
// destroyed. Exactly one Session exists per engine instance.
type Session struct {
	State        State  `json:"state"`
	Transcript   string `json:"transcript"`
	Reply        string `json:"reply"`
	ErrorMessage string `json:"error_message,omitempty"`
	Muted        bool   `json:"muted"`
}

// NewSession creates a session in the idle state
func NewSession() Session {
	return Session{State: StateIdle}
}

// ValidTransition reports whether moving from one state to another is
// allowed by the session state machine. A transition to idle is allowed
// from every state (hard cancel).
func ValidTransition(from, to State) bool {
	if to == StateIdle {
		return true
	}

	switch from {
	case StateIdle:
		return to == StateListening
	case StateListening:
		return to == StateThinking
	case StateThinking:
		return to == StateSpeaking
	case StateSpeaking:
		return false
	}

	return false
}

// Active reports whether a session cycle is in progress
func (s Session) Active() bool {
	return s.State != StateIdle
}
