package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/chatarchive/internal/models"
	"github.com/lalith-99/chatarchive/internal/repository"
	"go.uber.org/zap"
)

// UserHandler serves archived users.
type UserHandler struct {
	repo   repository.UserRepository
	cache  PageCache
	logger *zap.Logger
}

func NewUserHandler(repo repository.UserRepository, cache PageCache, logger *zap.Logger) *UserHandler {
	return &UserHandler{repo: repo, cache: cache, logger: logger}
}

// List handles GET /v1/slack/users?tz_offset=UTC-05:00
func (h *UserHandler) List(c *gin.Context) {
	q, err := parseListQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	f := repository.UserFilter{TZOffset: optionalQuery(c, "tz_offset")}

	respondPage(c, h.cache, h.logger, "users", cacheKey(q, filterValue("tz", f.TZOffset)),
		func(ctx context.Context) (*models.Page[models.User], error) {
			return h.repo.List(ctx, q, f)
		})
}

// GetByID handles GET /v1/slack/users/:id
func (h *UserHandler) GetByID(c *gin.Context) {
	u, err := h.repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("failed to get user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get user"})
		return
	}
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, u)
}
