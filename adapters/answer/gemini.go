package answer

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/verbex/voxengine/domain/entities"
	"github.com/verbex/voxengine/domain/repositories"
)

const geminiSystemPrompt = "You are a friendly voice assistant. Answer in one or two short spoken sentences."

// Gemini answers transcripts directly through the Gemini API instead of a
// custom answer endpoint. It satisfies the same contract as the HTTP
// client: failures degrade to FallbackReply.
type Gemini struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

var _ repositories.AnswerClient = (*Gemini)(nil)

// NewGemini creates a Gemini answer client from GEMINI_API_KEY.
func NewGemini(logger *zap.Logger) (*Gemini, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  "gemini-2.0-flash",
		logger: logger,
	}, nil
}

// Ask generates a spoken-style reply for the transcript.
func (g *Gemini) Ask(ctx context.Context, transcript string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(geminiSystemPrompt, genai.RoleUser),
		genai.NewContentFromText(transcript, genai.RoleUser),
	}

	response, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		g.logger.Error("Gemini generation failed", zap.Error(err))
		return repositories.FallbackReply, fmt.Errorf("%w: %v", entities.ErrAskFailed, err)
	}

	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		g.logger.Warn("Gemini returned no candidates")
		return repositories.FallbackReply, fmt.Errorf("%w: empty response", entities.ErrAskFailed)
	}

	var b strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			b.WriteString(part.Text)
		}
	}

	reply := strings.TrimSpace(b.String())
	if reply == "" {
		g.logger.Warn("Gemini returned empty text")
		return repositories.FallbackReply, fmt.Errorf("%w: empty response", entities.ErrAskFailed)
	}

	return reply, nil
}
