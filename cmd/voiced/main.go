package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/verbex/voxengine/adapters/answer"
	"github.com/verbex/voxengine/adapters/capture"
	"github.com/verbex/voxengine/adapters/recognizer"
	"github.com/verbex/voxengine/adapters/transcribe"
	"github.com/verbex/voxengine/adapters/tts"
	"github.com/verbex/voxengine/domain/repositories"
	"github.com/verbex/voxengine/internal/api"
	"github.com/verbex/voxengine/internal/auth"
	"github.com/verbex/voxengine/internal/levelmeter"
	"github.com/verbex/voxengine/internal/prefs"
	"github.com/verbex/voxengine/internal/websocket"
	"github.com/verbex/voxengine/usecase"
)

func main() {
	// Load .env if present; real deployments set the environment directly.
	_ = godotenv.Load()

	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	tokens := auth.NewTokenSourceFromEnv()

	// Each adapter is optional: a missing credential leaves its slot nil
	// and the engine degrades around it.
	var device repositories.AudioDevice
	if os.Getenv("VOX_DISABLE_CAPTURE") == "" {
		device = capture.NewMemoryDevice()
	}

	var rec repositories.Recognizer
	if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" {
		rec = recognizer.NewGoogle(recognizer.DefaultGoogleConfig(), logger)
	}

	var transcriber repositories.Transcriber
	if cfg := transcribe.NewConfigFromEnv(); cfg.Endpoint != "" {
		client, err := transcribe.NewClient(cfg, tokens, logger)
		if err != nil {
			logger.Warn("Transcription client disabled", zap.Error(err))
		} else {
			transcriber = client
		}
	}

	var answerClient repositories.AnswerClient
	if os.Getenv("GEMINI_API_KEY") != "" {
		client, err := answer.NewGemini(logger)
		if err != nil {
			logger.Warn("Gemini answer client disabled", zap.Error(err))
		} else {
			answerClient = client
		}
	}
	if answerClient == nil {
		if cfg := answer.NewConfigFromEnv(); cfg.Endpoint != "" {
			client, err := answer.NewClient(cfg, tokens, logger)
			if err != nil {
				logger.Warn("Answer client disabled", zap.Error(err))
			} else {
				answerClient = client
			}
		}
	}

	var synth repositories.Synthesizer
	if cfg := tts.NewElevenLabsConfigFromEnv(); cfg.APIKey != "" {
		eleven, err := tts.NewElevenLabs(cfg, logger)
		if err != nil {
			logger.Warn("Speech synthesis disabled", zap.Error(err))
		} else {
			synth = eleven
		}
	}

	dataDir := os.Getenv("VOX_DATA_DIR")
	if dataDir == "" {
		dataDir = "./data"
	}
	var prefStore repositories.PreferenceStore
	badger, err := prefs.OpenBadgerStore(dataDir, logger)
	if err != nil {
		logger.Warn("Preference store disabled", zap.Error(err))
	} else {
		prefStore = badger
		defer badger.Close()
	}

	engine := usecase.NewEngine(usecase.Config{
		Device:      device,
		Recognizer:  rec,
		Transcriber: transcriber,
		Answer:      answerClient,
		Synthesizer: synth,
		Preferences: prefStore,
		Logger:      logger,
	})

	// Initialize WebSocket hub over the engine
	hub := websocket.NewHub(engine, logger)
	go hub.Run()

	engine.Subscribe(hub.BroadcastState)

	meter := levelmeter.New(engine.AnalyserSource(), hub.BroadcastLevels, logger)
	meter.Start()
	defer meter.Stop()

	// Initialize API routes
	api.InitRoutes(e, hub, engine, prefStore, logger)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Voice engine started", zap.String("port", port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	engine.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
