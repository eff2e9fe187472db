package auth

import (
	"context"
	"os"

	"github.com/verbex/voxengine/domain/repositories"
)

// StaticTokenSource supplies a fixed bearer token for the outbound answer
// and transcription requests. An empty token means unauthenticated access.
type StaticTokenSource struct {
	token string
}

var _ repositories.TokenSource = (*StaticTokenSource)(nil)

// NewStaticTokenSource wraps a fixed token.
func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: token}
}

// NewTokenSourceFromEnv reads the bearer token from VOX_BEARER_TOKEN.
func NewTokenSourceFromEnv() *StaticTokenSource {
	return &StaticTokenSource{token: os.Getenv("VOX_BEARER_TOKEN")}
}

func (s *StaticTokenSource) Token(ctx context.Context) (string, error) {
	return s.token, nil
}
