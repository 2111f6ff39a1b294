package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/chatarchive/internal/auth"
	"github.com/lalith-99/chatarchive/internal/repository"
	"go.uber.org/zap"
)

// AuthHandler exchanges app credentials for API tokens. It is the only
// public endpoint besides health.
type AuthHandler struct {
	appRepo   repository.AppRepository
	jwtSecret string
	tokenTTL  time.Duration
	logger    *zap.Logger
}

func NewAuthHandler(appRepo repository.AppRepository, jwtSecret string, tokenTTL time.Duration, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		appRepo:   appRepo,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		logger:    logger,
	}
}

type tokenRequest struct {
	AppID  string `json:"app_id" binding:"required,uuid"`
	Secret string `json:"secret" binding:"required"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Token handles POST /v1/auth/token
func (h *AuthHandler) Token(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	app, err := h.appRepo.GetByID(c.Request.Context(), uuid.MustParse(req.AppID))
	if err != nil {
		h.logger.Error("failed to find app", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token request failed"})
		return
	}

	// Same answer, and the same bcrypt cost, for an unknown app and a
	// wrong secret.
	var hash string
	if app != nil {
		hash = app.SecretHash
	}
	if !auth.CheckSecret(hash, req.Secret) || app == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid app credentials"})
		return
	}

	expiresAt := time.Now().Add(h.tokenTTL).UTC().Truncate(time.Second)
	token, err := auth.GenerateToken(app.ID, app.Name, h.jwtSecret, h.tokenTTL)
	if err != nil {
		h.logger.Error("failed to generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token request failed"})
		return
	}

	h.logger.Info("issued api token", zap.String("app_id", app.ID.String()), zap.String("app_name", app.Name))
	c.JSON(http.StatusOK, tokenResponse{Token: token, ExpiresAt: expiresAt})
}
