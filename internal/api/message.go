package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/chatarchive/internal/models"
	"github.com/lalith-99/chatarchive/internal/repository"
	"go.uber.org/zap"
)

type MessageHandler struct {
	repo   repository.MessageRepository
	cache  PageCache
	logger *zap.Logger
}

func NewMessageHandler(repo repository.MessageRepository, cache PageCache, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{repo: repo, cache: cache, logger: logger}
}

// List handles GET /v1/slack/messages?user=U1&channel=C1&thread=T1&include_deleted=true
func (h *MessageHandler) List(c *gin.Context) {
	q, err := parseListQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f := repository.MessageFilter{
		UserID:    optionalQuery(c, "user"),
		ChannelID: optionalQuery(c, "channel"),
		ThreadID:  optionalQuery(c, "thread"),
	}
	if v := c.Query("include_deleted"); v != "" {
		f.IncludeDeleted, err = strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'include_deleted' parameter"})
			return
		}
	}

	key := cacheKey(q,
		filterValue("u", f.UserID),
		filterValue("c", f.ChannelID),
		filterValue("t", f.ThreadID),
		"d="+strconv.FormatBool(f.IncludeDeleted),
	)
	respondPage(c, h.cache, h.logger, "messages", key,
		func(ctx context.Context) (*models.Page[models.Message], error) {
			return h.repo.List(ctx, q, f)
		})
}

// Get handles GET /v1/slack/channels/:channel/messages/:id
func (h *MessageHandler) Get(c *gin.Context) {
	m, err := h.repo.Get(c.Request.Context(), c.Param("channel"), c.Param("id"))
	if err != nil {
		h.logger.Error("failed to get message", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get message"})
		return
	}
	if m == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}
	c.JSON(http.StatusOK, m)
}
