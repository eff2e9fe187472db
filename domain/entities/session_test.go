package entities

import "testing"

func TestNewSessionStartsIdle(t *testing.T) {
	session := NewSession()
	if session.State != StateIdle {
		t.Errorf("Expected new session to be idle, got %s", session.State)
	}
	if session.Active() {
		t.Error("Expected new session to be inactive")
	}
}

func TestValidTransition(t *testing.T) {
	tests := []struct {
		name string
		from State
		to   State
		want bool
	}{
		{"idle to listening", StateIdle, StateListening, true},
		{"listening to thinking", StateListening, StateThinking, true},
		{"thinking to speaking", StateThinking, StateSpeaking, true},
		{"speaking to idle", StateSpeaking, StateIdle, true},
		{"thinking to idle", StateThinking, StateIdle, true},
		{"listening to idle", StateListening, StateIdle, true},
		{"idle to idle", StateIdle, StateIdle, true},
		{"idle to thinking", StateIdle, StateThinking, false},
		{"idle to speaking", StateIdle, StateSpeaking, false},
		{"listening to speaking", StateListening, StateSpeaking, false},
		{"thinking to listening", StateThinking, StateListening, false},
		{"speaking to listening", StateSpeaking, StateListening, false},
		{"speaking to thinking", StateSpeaking, StateThinking, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("ValidTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestActive(t *testing.T) {
	for _, state := range []State{StateListening, StateThinking, StateSpeaking} {
		if !(Session{State: state}).Active() {
			t.Errorf("Expected state %s to be active", state)
		}
	}
	if (Session{State: StateIdle}).Active() {
		t.Error("Expected idle session to be inactive")
	}
}
