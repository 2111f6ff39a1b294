package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/chatarchive/internal/models"
	"github.com/lalith-99/chatarchive/internal/repository"
	"go.uber.org/zap"
)

type EmojiHandler struct {
	repo   repository.EmojiRepository
	cache  PageCache
	logger *zap.Logger
}

func NewEmojiHandler(repo repository.EmojiRepository, cache PageCache, logger *zap.Logger) *EmojiHandler {
	return &EmojiHandler{repo: repo, cache: cache, logger: logger}
}

// List handles GET /v1/slack/emojis
func (h *EmojiHandler) List(c *gin.Context) {
	q, err := parseListQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	respondPage(c, h.cache, h.logger, "emojis", cacheKey(q),
		func(ctx context.Context) (*models.Page[models.Emoji], error) {
			return h.repo.List(ctx, q)
		})
}
