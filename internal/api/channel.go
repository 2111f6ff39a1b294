package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/chatarchive/internal/models"
	"github.com/lalith-99/chatarchive/internal/repository"
	"go.uber.org/zap"
)

// ChannelHandler serves archived channels.
type ChannelHandler struct {
	repo   repository.ChannelRepository
	cache  PageCache
	logger *zap.Logger
}

func NewChannelHandler(repo repository.ChannelRepository, cache PageCache, logger *zap.Logger) *ChannelHandler {
	return &ChannelHandler{repo: repo, cache: cache, logger: logger}
}

// List handles GET /v1/slack/channels
func (h *ChannelHandler) List(c *gin.Context) {
	q, err := parseListQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	respondPage(c, h.cache, h.logger, "channels", cacheKey(q),
		func(ctx context.Context) (*models.Page[models.Channel], error) {
			return h.repo.List(ctx, q)
		})
}

// GetByID handles GET /v1/slack/channels/:channel
func (h *ChannelHandler) GetByID(c *gin.Context) {
	ch, err := h.repo.GetByID(c.Request.Context(), c.Param("channel"))
	if err != nil {
		h.logger.Error("failed to get channel", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get channel"})
		return
	}
	if ch == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "channel not found"})
		return
	}
	c.JSON(http.StatusOK, ch)
}

// Members handles GET /v1/slack/channels/:channel/members
func (h *ChannelHandler) Members(c *gin.Context) {
	q, err := parseListQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	page, err := h.repo.ListMembers(c.Request.Context(), c.Param("channel"), q)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidSort) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("failed to list channel members", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list channel members"})
		return
	}
	c.JSON(http.StatusOK, page)
}
