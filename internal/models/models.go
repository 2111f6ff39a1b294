package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an archived workspace member. IDs come from the upstream export,
// never from us.
//
// Optional profile fields are pointers so "unknown" (NULL) stays distinct
// from "known empty".
type User struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	FullName    *string   `json:"full_name"`
	Description *string   `json:"description"`
	AvatarID    *string   `json:"avatar_id"`
	TZOffset    *string   `json:"tz_offset"`
	ArchivedAt  time.Time `json:"archived_at"`
}

// Channel is an archived conversation space.
type Channel struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	ArchivedAt  time.Time `json:"archived_at"`
}

// Message is keyed by (ID, ChannelID): upstream message IDs are only unique
// within a channel.
//
// UserID is nullable because authors can be deleted or anonymized upstream.
// Deleted is a soft-delete flag; ingestion never removes rows.
type Message struct {
	ID         string    `json:"id"`
	ChannelID  string    `json:"channel_id"`
	ThreadID   *string   `json:"thread_id"`
	UserID     *string   `json:"user_id"`
	Content    string    `json:"content"`
	Deleted    bool      `json:"deleted"`
	ArchivedAt time.Time `json:"archived_at"`

	// Populated only by single-message lookups.
	Files     []File     `json:"files,omitempty"`
	Reactions []Reaction `json:"reactions,omitempty"`
}

// File is an attachment URL on a message.
type File struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id"`
	URL       string `json:"url"`
}

// Emoji is shared across all messages and reactions.
type Emoji struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Reaction records that UserID reacted to a message with EmojiID.
type Reaction struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	EmojiID   string `json:"emoji_id"`
	EmojiURL  string `json:"emoji_url,omitempty"`
}

// App is a registered API consumer. Only a bcrypt hash of its secret is
// stored.
type App struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	SecretHash  string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// Page is one page of a list endpoint.
type Page[T any] struct {
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Total   int64 `json:"total"`
	Items   []T   `json:"items"`
}
