package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/verbex/voxengine/domain/entities"
	"github.com/verbex/voxengine/domain/repositories"
)

const (
	defaultAPIBaseURL   = "https://api.elevenlabs.io/v1"
	defaultModelID      = "eleven_multilingual_v2"
	defaultOutputFormat = "pcm_24000"
	defaultStability    = 0.5
	defaultClarity      = 0.75
	readChunkSize       = 4096
)

// ElevenLabsConfig holds configuration for the ElevenLabs synthesizer.
// Required fields:
// - APIKey: Your Eleven Labs API key
// Optional fields with defaults:
// - APIBaseURL: base URL for the API (default "https://api.elevenlabs.io/v1")
// - ModelID: model to synthesize with (default "eleven_multilingual_v2")
// - OutputFormat: audio output format (default "pcm_24000")
// - Stability: voice stability between 0 and 1 (default 0.5)
// - Clarity: voice clarity/similarity boost between 0 and 1 (default 0.75)
type ElevenLabsConfig struct {
	APIKey       string
	APIBaseURL   string
	ModelID      string
	OutputFormat string
	Stability    float64
	Clarity      float64
}

// NewElevenLabsConfigFromEnv creates an ElevenLabsConfig from environment
// variables.
func NewElevenLabsConfigFromEnv() ElevenLabsConfig {
	config := ElevenLabsConfig{
		APIKey:       os.Getenv("ELEVEN_LABS_API_KEY"),
		APIBaseURL:   os.Getenv("ELEVEN_LABS_API_BASE_URL"),
		ModelID:      os.Getenv("ELEVEN_LABS_MODEL_ID"),
		OutputFormat: os.Getenv("ELEVEN_LABS_OUTPUT_FORMAT"),
	}

	if stabilityStr := os.Getenv("ELEVEN_LABS_STABILITY"); stabilityStr != "" {
		if stability, err := strconv.ParseFloat(stabilityStr, 64); err == nil && stability >= 0 && stability <= 1 {
			config.Stability = stability
		}
	}
	if clarityStr := os.Getenv("ELEVEN_LABS_CLARITY"); clarityStr != "" {
		if clarity, err := strconv.ParseFloat(clarityStr, 64); err == nil && clarity >= 0 && clarity <= 1 {
			config.Clarity = clarity
		}
	}

	return config
}

// ElevenLabs implements the Synthesizer interface using the Eleven Labs
// API. Utterance start and end events are derived from the audio stream:
// started on the first audio chunk, ended at EOF.
type ElevenLabs struct {
	apiKey       string
	apiBaseURL   string
	modelID      string
	outputFormat string
	stability    float64
	clarity      float64
	httpClient   *http.Client
	logger       *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// Ensure ElevenLabs implements the Synthesizer interface
var _ repositories.Synthesizer = (*ElevenLabs)(nil)

// NewElevenLabs creates a new Eleven Labs synthesizer.
func NewElevenLabs(config ElevenLabsConfig, logger *zap.Logger) (*ElevenLabs, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("eleven labs API key is required")
	}
	if config.Stability < 0 || config.Stability > 1 {
		return nil, fmt.Errorf("stability must be between 0 and 1, got %f", config.Stability)
	}
	if config.Clarity < 0 || config.Clarity > 1 {
		return nil, fmt.Errorf("clarity must be between 0 and 1, got %f", config.Clarity)
	}

	apiBaseURL := config.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
	}
	modelID := config.ModelID
	if modelID == "" {
		modelID = defaultModelID
	}
	outputFormat := config.OutputFormat
	if outputFormat == "" {
		outputFormat = defaultOutputFormat
	}
	stability := config.Stability
	if stability == 0 {
		stability = defaultStability
	}
	clarity := config.Clarity
	if clarity == 0 {
		clarity = defaultClarity
	}

	return &ElevenLabs{
		apiKey:       config.APIKey,
		apiBaseURL:   apiBaseURL,
		modelID:      modelID,
		outputFormat: outputFormat,
		stability:    stability,
		clarity:      clarity,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		logger:       logger,
	}, nil
}

// Voices retrieves available voices. The result may be empty right after
// startup while the account's voice list loads server-side.
func (e *ElevenLabs) Voices(ctx context.Context) ([]repositories.Voice, error) {
	url := fmt.Sprintf("%s/voices", e.apiBaseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list voices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("API returned error %d: %s", resp.StatusCode, string(errorBody))
	}

	var voicesResponse struct {
		Voices []struct {
			VoiceID string `json:"voice_id"`
			Name    string `json:"name"`
		} `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&voicesResponse); err != nil {
		return nil, fmt.Errorf("failed to decode voices response: %w", err)
	}

	voices := make([]repositories.Voice, 0, len(voicesResponse.Voices))
	for _, v := range voicesResponse.Voices {
		voices = append(voices, repositories.Voice{ID: v.VoiceID, Name: v.Name})
	}

	e.logger.Info("Retrieved available voices", zap.Int("count", len(voices)))
	return voices, nil
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

// Speak synthesizes one utterance, streaming the audio and reporting
// lifecycle events on the returned channel. Pitch has no Eleven Labs
// equivalent and is ignored; rate maps to voice speed.
func (e *ElevenLabs) Speak(ctx context.Context, u repositories.Utterance) (<-chan repositories.PlaybackEvent, error) {
	if strings.TrimSpace(u.Text) == "" {
		return nil, fmt.Errorf("utterance text cannot be empty")
	}
	if u.VoiceID == "" {
		return nil, fmt.Errorf("utterance voice is required")
	}

	payload, err := json.Marshal(synthesisRequest{
		Text:    u.Text,
		ModelID: e.modelID,
		VoiceSettings: voiceSettings{
			Stability:       e.stability,
			SimilarityBoost: e.clarity,
			Speed:           u.Rate,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	e.cancel = cancel
	e.mu.Unlock()

	url := fmt.Sprintf("%s/text-to-speech/%s/stream?output_format=%s&enable_logging=false",
		e.apiBaseURL, u.VoiceID, e.outputFormat)
	req, err := http.NewRequestWithContext(runCtx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	accept := "audio/mpeg"
	if strings.HasPrefix(e.outputFormat, "pcm") {
		accept = "audio/pcm"
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.apiKey)

	events := make(chan repositories.PlaybackEvent, 4)

	go func() {
		defer close(events)
		defer cancel()

		resp, err := e.httpClient.Do(req)
		if err != nil {
			events <- repositories.PlaybackEvent{
				Kind: repositories.PlaybackFailed,
				Err:  fmt.Errorf("%w: %v", entities.ErrSynthesisFailed, err),
			}
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			events <- repositories.PlaybackEvent{
				Kind: repositories.PlaybackFailed,
				Err: fmt.Errorf("%w: status %d: %s",
					entities.ErrSynthesisFailed, resp.StatusCode, string(errorBody)),
			}
			return
		}

		started := false
		buffer := make([]byte, readChunkSize)
		totalBytes := 0
		for {
			n, err := resp.Body.Read(buffer)
			if n > 0 {
				totalBytes += n
				if !started {
					started = true
					events <- repositories.PlaybackEvent{Kind: repositories.PlaybackStarted}
				}
			}
			if err == io.EOF {
				e.logger.Debug("Finished streaming utterance audio",
					zap.Int("totalBytes", totalBytes))
				if !started {
					events <- repositories.PlaybackEvent{Kind: repositories.PlaybackStarted}
				}
				events <- repositories.PlaybackEvent{Kind: repositories.PlaybackEnded}
				return
			}
			if err != nil {
				events <- repositories.PlaybackEvent{
					Kind: repositories.PlaybackFailed,
					Err:  fmt.Errorf("%w: %v", entities.ErrSynthesisFailed, err),
				}
				return
			}
		}
	}()

	return events, nil
}

// Cancel interrupts the in-flight utterance, if any.
func (e *ElevenLabs) Cancel() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}
