package api

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/chatarchive/internal/cache"
	"github.com/lalith-99/chatarchive/internal/models"
	"github.com/lalith-99/chatarchive/internal/repository"
	"go.uber.org/zap"
)

const (
	minPerPage     = 10
	maxPerPage     = 50
	defaultPerPage = 50

	// Keeps the offset, (page-1)*per_page, inside int32.
	maxPage = math.MaxInt32 / maxPerPage
)

// PageCache is the read-through cache for list endpoints. *cache.PageCache
// implements it, including as a nil pointer.
type PageCache interface {
	Get(ctx context.Context, resource, key string, dst any) (cache.Slot, bool)
	Set(ctx context.Context, slot cache.Slot, v any)
}

// parseListQuery reads page, per_page and sort. Out-of-range paging falls
// back to defaults; a malformed sort is an error.
//
//	?page=2&per_page=20&sort=name,desc
func parseListQuery(c *gin.Context) (repository.ListQuery, error) {
	q := repository.ListQuery{Page: 1, PerPage: defaultPerPage}

	if p, err := strconv.Atoi(c.Query("page")); err == nil && p >= 1 && p <= maxPage {
		q.Page = p
	}
	if pp, err := strconv.Atoi(c.Query("per_page")); err == nil && pp >= minPerPage && pp <= maxPerPage {
		q.PerPage = pp
	}

	if s := c.Query("sort"); s != "" {
		col, dir, _ := strings.Cut(s, ",")
		sort := &repository.Sort{Column: strings.TrimSpace(col)}
		switch strings.ToLower(strings.TrimSpace(dir)) {
		case "", "asc":
		case "desc":
			sort.Desc = true
		default:
			return q, fmt.Errorf("invalid sort direction %q (want asc or desc)", dir)
		}
		if sort.Column == "" {
			return q, errors.New("sort needs a column")
		}
		q.Sort = sort
	}
	return q, nil
}

func cacheKey(q repository.ListQuery, filters ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "p=%d:pp=%d", q.Page, q.PerPage)
	if q.Sort != nil {
		fmt.Fprintf(&b, ":s=%s:%t", q.Sort.Column, q.Sort.Desc)
	}
	for _, f := range filters {
		b.WriteString(":")
		b.WriteString(f)
	}
	return b.String()
}

func optionalQuery(c *gin.Context, key string) *string {
	if v, ok := c.GetQuery(key); ok && v != "" {
		return &v
	}
	return nil
}

func filterValue(name string, v *string) string {
	if v == nil {
		return name + "="
	}
	return name + "=" + strconv.Quote(*v)
}

// respondPage serves a list endpoint through the cache.
func respondPage[T any](c *gin.Context, pc PageCache, logger *zap.Logger, resource, key string,
	load func(ctx context.Context) (*models.Page[T], error)) {
	ctx := c.Request.Context()

	var (
		cached models.Page[T]
		slot   cache.Slot
	)
	if pc != nil {
		var hit bool
		if slot, hit = pc.Get(ctx, resource, key, &cached); hit {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	page, err := load(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidSort) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.Error("failed to list "+resource, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list " + resource})
		return
	}

	if pc != nil {
		pc.Set(ctx, slot, page)
	}
	c.JSON(http.StatusOK, page)
}
