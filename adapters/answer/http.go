package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/verbex/voxengine/domain/entities"
	"github.com/verbex/voxengine/domain/repositories"
)

const defaultTimeout = 30 * time.Second

// Config holds configuration for the HTTP answer client.
type Config struct {
	// Endpoint is the AI-answer URL. Required.
	Endpoint string
	// Timeout bounds the whole ask round-trip.
	Timeout time.Duration
}

// NewConfigFromEnv reads the answer endpoint configuration from
// environment variables.
func NewConfigFromEnv() Config {
	return Config{
		Endpoint: os.Getenv("VOX_ANSWER_URL"),
	}
}

// Client asks the remote AI-answer endpoint for a reply to a transcript.
// On any failure it returns FallbackReply together with the typed error,
// so the caller always has something to speak or display.
type Client struct {
	endpoint   string
	tokens     repositories.TokenSource
	httpClient *http.Client
	logger     *zap.Logger
}

var _ repositories.AnswerClient = (*Client)(nil)

// NewClient creates an answer client. tokens may be nil for
// unauthenticated endpoints.
func NewClient(config Config, tokens repositories.TokenSource, logger *zap.Logger) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("answer endpoint is required")
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &Client{
		endpoint:   config.Endpoint,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

type askRequest struct {
	Message string `json:"message"`
}

type askResponse struct {
	Response string `json:"response"`
	Reply    string `json:"reply"`
	Message  string `json:"message"`
}

// Ask posts the transcript and returns the reply text. An empty reply
// with a nil error means the server genuinely had nothing to say.
func (c *Client) Ask(ctx context.Context, transcript string) (string, error) {
	payload, err := json.Marshal(askRequest{Message: transcript})
	if err != nil {
		return repositories.FallbackReply, fmt.Errorf("%w: %v", entities.ErrAskFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return repositories.FallbackReply, fmt.Errorf("%w: %v", entities.ErrAskFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return repositories.FallbackReply, fmt.Errorf("%w: %v", entities.ErrAskFailed, err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Answer request failed", zap.Error(err))
		return repositories.FallbackReply, fmt.Errorf("%w: %v", entities.ErrAskFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error("Answer endpoint returned error",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(snippet)))
		return repositories.FallbackReply, fmt.Errorf("%w: status %d", entities.ErrAskFailed, resp.StatusCode)
	}

	var parsed askResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return repositories.FallbackReply, fmt.Errorf("%w: malformed response body: %v", entities.ErrAskFailed, err)
	}

	reply := parsed.Response
	if reply == "" {
		reply = parsed.Reply
	}
	if reply == "" {
		reply = parsed.Message
	}

	c.logger.Info("Answer received", zap.Int("replyLength", len(reply)))
	return reply, nil
}
