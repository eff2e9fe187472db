package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/verbex/voxengine/domain/entities"
	"github.com/verbex/voxengine/domain/repositories"
	"github.com/verbex/voxengine/internal/auth"
	"github.com/verbex/voxengine/internal/websocket"
	"github.com/verbex/voxengine/usecase"
)

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, hub *websocket.Hub, engine *usecase.Engine, prefs repositories.PreferenceStore, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "voxengine",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.POST("/auth/token", func(c echo.Context) error {
		return issueToken(c, logger)
	})

	v1.GET("/state", func(c echo.Context) error {
		return getState(c, engine)
	})

	v1.GET("/preferences", func(c echo.Context) error {
		return getPreference(c, prefs, logger)
	})
	v1.PUT("/preferences", func(c echo.Context) error {
		return putPreference(c, prefs, logger)
	})

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(hub, c, logger)
	})
}

func issueToken(c echo.Context, logger *zap.Logger) error {
	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind token request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.ClientID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Client ID is required",
		})
	}

	token, err := auth.GenerateClientToken(req.ClientID)
	if err != nil {
		logger.Error("Failed to generate client token",
			zap.String("client_id", req.ClientID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	return c.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(24 * time.Hour),
		ClientID:  req.ClientID,
	})
}

func getState(c echo.Context, engine *usecase.Engine) error {
	session := engine.Snapshot()
	return c.JSON(http.StatusOK, StateResponse{
		State:        string(session.State),
		Transcript:   session.Transcript,
		Reply:        session.Reply,
		ErrorMessage: session.ErrorMessage,
		Muted:        session.Muted,
	})
}

func getPreference(c echo.Context, prefs repositories.PreferenceStore, logger *zap.Logger) error {
	pref := entities.DefaultVoicePreference()
	if prefs != nil {
		loaded, err := prefs.Load(c.Request().Context())
		if err != nil {
			logger.Warn("Failed to load voice preference", zap.Error(err))
		} else {
			pref = loaded
		}
	}
	pref = pref.Clamped()

	return c.JSON(http.StatusOK, PreferencePayload{
		Persona: string(pref.Persona),
		Rate:    pref.Rate,
		Pitch:   pref.Pitch,
	})
}

func putPreference(c echo.Context, prefs repositories.PreferenceStore, logger *zap.Logger) error {
	if prefs == nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "preferences_unavailable",
			Message: "No preference store is configured",
		})
	}

	var payload PreferencePayload
	if err := c.Bind(&payload); err != nil {
		logger.Error("Failed to bind preference payload", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	persona := entities.VoicePersona(payload.Persona)
	if persona != entities.PersonaMale && persona != entities.PersonaFemale {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_persona",
			Message: "Persona must be \"male\" or \"female\"",
		})
	}

	pref := entities.VoicePreference{
		Persona: persona,
		Rate:    payload.Rate,
		Pitch:   payload.Pitch,
	}.Clamped()

	if err := prefs.Save(c.Request().Context(), pref); err != nil {
		logger.Error("Failed to save voice preference", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "save_failed",
			Message: "Failed to persist voice preference",
		})
	}

	return c.JSON(http.StatusOK, PreferencePayload{
		Persona: string(pref.Persona),
		Rate:    pref.Rate,
		Pitch:   pref.Pitch,
	})
}

// websocketWithAuth handles WebSocket connections with JWT authentication.
// Browsers cannot set headers on websocket upgrades, so the token is also
// accepted as a query parameter.
func websocketWithAuth(hub *websocket.Hub, c echo.Context, logger *zap.Logger) error {
	var token string
	authHeader := c.Request().Header.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		token = authHeader[7:]
	}
	if token == "" {
		token = c.QueryParam("token")
	}

	if token == "" {
		logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required",
		})
	}

	claims, err := auth.ValidateToken(token)
	if err != nil {
		logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}

	clientID := claims.ClientID
	if clientID == "" {
		logger.Error("WebSocket connection rejected: missing client ID in token")
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_token_claims",
			Message: "Client ID not found in token",
		})
	}

	logger.Info("WebSocket connection authenticated", zap.String("client_id", clientID))

	return websocket.HandleWebSocket(hub, c, clientID, logger)
}
