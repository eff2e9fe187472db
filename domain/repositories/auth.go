package repositories

import "context"

// TokenSource supplies the bearer credential attached to outbound answer
// and transcription requests. An empty token with a nil error means
// unauthenticated access; clients then omit the Authorization header.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}
