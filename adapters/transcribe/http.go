package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/verbex/voxengine/domain/entities"
	"github.com/verbex/voxengine/domain/repositories"
)

const defaultTimeout = 30 * time.Second

// Config holds configuration for the remote transcription client.
type Config struct {
	// Endpoint is the transcription URL. Required.
	Endpoint string
	// FieldName is the multipart form field carrying the audio blob.
	// Defaults to "file".
	FieldName string
	// Timeout bounds the whole upload round-trip.
	Timeout time.Duration
}

// NewConfigFromEnv reads the transcription endpoint configuration from
// environment variables.
func NewConfigFromEnv() Config {
	return Config{
		Endpoint: os.Getenv("VOX_TRANSCRIBE_URL"),
	}
}

// Client uploads recorded audio buffers to the remote transcription
// endpoint as multipart form data.
type Client struct {
	endpoint   string
	fieldName  string
	tokens     repositories.TokenSource
	httpClient *http.Client
	logger     *zap.Logger
}

var _ repositories.Transcriber = (*Client)(nil)

// NewClient creates a transcription client. tokens may be nil for
// unauthenticated endpoints.
func NewClient(config Config, tokens repositories.TokenSource, logger *zap.Logger) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("transcription endpoint is required")
	}

	fieldName := config.FieldName
	if fieldName == "" {
		fieldName = "file"
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &Client{
		endpoint:   config.Endpoint,
		fieldName:  fieldName,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// Transcribe uploads the captured buffer and decodes the server's
// transcript or pre-computed response.
func (c *Client) Transcribe(ctx context.Context, audio []byte) (repositories.UploadResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(c.fieldName, "capture.wav")
	if err != nil {
		return repositories.UploadResult{}, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return repositories.UploadResult{}, fmt.Errorf("failed to write audio blob: %w", err)
	}
	if err := writer.Close(); err != nil {
		return repositories.UploadResult{}, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return repositories.UploadResult{}, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return repositories.UploadResult{}, fmt.Errorf("failed to obtain bearer token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	c.logger.Debug("Uploading audio for transcription",
		zap.String("endpoint", c.endpoint),
		zap.Int("audioBytes", len(audio)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return repositories.UploadResult{}, fmt.Errorf("%w: %v", entities.ErrTranscriptionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return repositories.UploadResult{}, fmt.Errorf("%w: status %d: %s",
			entities.ErrTranscriptionFailed, resp.StatusCode, string(snippet))
	}

	var result repositories.UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return repositories.UploadResult{}, fmt.Errorf("%w: malformed response body: %v",
			entities.ErrTranscriptionFailed, err)
	}

	c.logger.Info("Transcription upload completed",
		zap.Bool("hasTranscript", result.Transcript != "" || result.Text != ""),
		zap.Bool("preAnswered", result.Response != ""))

	return result, nil
}
