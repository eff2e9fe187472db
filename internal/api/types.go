package api

import "time"

// TokenRequest is the payload for issuing a session-channel token.
type TokenRequest struct {
	ClientID string `json:"client_id" validate:"required"`
}

// TokenResponse carries the issued session-channel token.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	ClientID  string    `json:"client_id"`
}

// PreferencePayload is the wire shape of the voice preference, used for
// both reads and writes.
type PreferencePayload struct {
	Persona string  `json:"persona"`
	Rate    float64 `json:"rate"`
	Pitch   float64 `json:"pitch"`
}

// StateResponse is the REST view of the current session, for clients that
// poll instead of holding the websocket open.
type StateResponse struct {
	State        string `json:"state"`
	Transcript   string `json:"transcript,omitempty"`
	Reply        string `json:"reply,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	Muted        bool   `json:"muted"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
