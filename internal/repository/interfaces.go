package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/lalith-99/chatarchive/internal/models"
)

// ErrInvalidSort is returned by List methods for a sort column the
// resource doesn't allow.
var ErrInvalidSort = errors.New("invalid sort column")

// Sort orders a list by one column.
type Sort struct {
	Column string
	Desc   bool
}

// ListQuery is the paging and ordering part of every list call. Page is
// 1-based. A nil Sort means the resource's default order.
type ListQuery struct {
	Page    int
	PerPage int
	Sort    *Sort
}

// Offset returns the number of rows before the requested page.
func (q ListQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.PerPage
}

type UserFilter struct {
	TZOffset *string
}

type MessageFilter struct {
	UserID    *string
	ChannelID *string
	ThreadID  *string
	// Soft-deleted messages are hidden unless this is set.
	IncludeDeleted bool
}

// UserRepository reads archived users.
type UserRepository interface {
	List(ctx context.Context, q ListQuery, f UserFilter) (*models.Page[models.User], error)
	// GetByID returns nil, nil if not found.
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// ChannelRepository reads archived channels.
type ChannelRepository interface {
	List(ctx context.Context, q ListQuery) (*models.Page[models.Channel], error)
	// GetByID returns nil, nil if not found.
	GetByID(ctx context.Context, id string) (*models.Channel, error)
	// ListMembers lists the users who posted in a channel.
	ListMembers(ctx context.Context, channelID string, q ListQuery) (*models.Page[models.User], error)
}

// MessageRepository reads archived messages.
type MessageRepository interface {
	List(ctx context.Context, q ListQuery, f MessageFilter) (*models.Page[models.Message], error)
	// Get returns one message with its files and reactions, or nil, nil if
	// not found. Messages are keyed by channel and id together.
	Get(ctx context.Context, channelID, id string) (*models.Message, error)
}

// EmojiRepository reads the shared emoji table.
type EmojiRepository interface {
	List(ctx context.Context, q ListQuery) (*models.Page[models.Emoji], error)
}

// AppRepository manages registered API apps.
type AppRepository interface {
	Create(ctx context.Context, name string, description *string, secretHash string) (*models.App, error)
	// GetByID returns nil, nil if not found.
	GetByID(ctx context.Context, id uuid.UUID) (*models.App, error)
}
