package recognizer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/verbex/voxengine/domain/repositories"
)

// GoogleConfig describes the audio fed to the streaming recognizer.
type GoogleConfig struct {
	SampleRate int
	Encoding   string
	Language   string
}

// DefaultGoogleConfig matches the 16kHz LINEAR16 mono frames produced by
// the capture devices in this repo.
func DefaultGoogleConfig() GoogleConfig {
	return GoogleConfig{
		SampleRate: 16000,
		Encoding:   "LINEAR16",
		Language:   "en-US",
	}
}

// Google implements the live-recognizer strategy on Google Cloud
// Speech-to-Text streaming recognition. Recognition is single-shot:
// one Start/Stop cycle yields one final transcript.
type Google struct {
	config GoogleConfig
	logger *zap.Logger

	mu     sync.Mutex
	active *googleRun
}

// Ensure Google implements the Recognizer interface
var _ repositories.Recognizer = (*Google)(nil)

// NewGoogle creates a Google streaming recognizer.
func NewGoogle(config GoogleConfig, logger *zap.Logger) *Google {
	return &Google{config: config, logger: logger}
}

type googleRun struct {
	client     *speech.Client
	stream     speechpb.Speech_StreamingRecognizeClient
	cancel     context.CancelFunc
	resultChan chan string
	errorChan  chan error
	feedDone   chan struct{}
}

// Start opens the streaming session and begins feeding raw stream chunks
// to it in the background.
func (g *Google) Start(ctx context.Context, stream repositories.AudioStream) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active != nil {
		return fmt.Errorf("recognition already in progress")
	}

	runCtx, cancel := context.WithCancel(ctx)

	client, err := speech.NewClient(runCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create speech client: %w", err)
	}

	recognize, err := client.StreamingRecognize(runCtx)
	if err != nil {
		client.Close()
		cancel()
		return fmt.Errorf("failed to create streaming recognize: %w", err)
	}

	encoding, err := audioEncoding(g.config.Encoding)
	if err != nil {
		recognize.CloseSend()
		client.Close()
		cancel()
		return err
	}

	if err := recognize.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        encoding,
					SampleRateHertz: int32(g.config.SampleRate),
					LanguageCode:    g.config.Language,
				},
				InterimResults:  false,
				SingleUtterance: true,
			},
		},
	}); err != nil {
		recognize.CloseSend()
		client.Close()
		cancel()
		return fmt.Errorf("failed to send streaming config: %w", err)
	}

	run := &googleRun{
		client:     client,
		stream:     recognize,
		cancel:     cancel,
		resultChan: make(chan string, 1),
		errorChan:  make(chan error, 1),
		feedDone:   make(chan struct{}),
	}
	g.active = run

	go run.feed(stream, g.logger)
	go run.receive()

	return nil
}

// feed drains capture chunks into the recognize stream until the capture
// stream closes.
func (r *googleRun) feed(stream repositories.AudioStream, logger *zap.Logger) {
	defer close(r.feedDone)

	for chunk := range stream.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		if err := r.stream.Send(&speechpb.StreamingRecognizeRequest{
			StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
				AudioContent: chunk,
			},
		}); err != nil {
			logger.Warn("failed to send audio chunk", zap.Error(err))
			return
		}
	}
}

// receive collects streaming responses, keeping the last final transcript.
func (r *googleRun) receive() {
	var final string
	for {
		resp, err := r.stream.Recv()
		if err == io.EOF {
			r.resultChan <- final
			return
		}
		if err != nil {
			r.errorChan <- fmt.Errorf("failed to receive response: %w", err)
			return
		}
		for _, result := range resp.Results {
			if result.IsFinal && len(result.Alternatives) > 0 {
				final = result.Alternatives[0].Transcript
			}
		}
	}
}

// Stop closes the send side and blocks until the final transcript arrives.
func (g *Google) Stop(ctx context.Context) (string, error) {
	g.mu.Lock()
	run := g.active
	g.active = nil
	g.mu.Unlock()

	if run == nil {
		return "", fmt.Errorf("no recognition in progress")
	}
	defer run.client.Close()
	defer run.cancel()

	<-run.feedDone
	if err := run.stream.CloseSend(); err != nil {
		return "", fmt.Errorf("failed to close send stream: %w", err)
	}

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("cancelled while waiting for result: %w", ctx.Err())
	case err := <-run.errorChan:
		return "", err
	case result := <-run.resultChan:
		return strings.TrimSpace(result), nil
	}
}

// Abort tears the session down without waiting for finalization.
func (g *Google) Abort() {
	g.mu.Lock()
	run := g.active
	g.active = nil
	g.mu.Unlock()

	if run == nil {
		return
	}
	run.cancel()
	run.client.Close()
}

// audioEncoding converts string encoding to the Speech API enum
func audioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
