package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/chatarchive/internal/models"
	"github.com/lalith-99/chatarchive/internal/repository"
)

var messageSortColumns = map[string]string{
	"id":          "id",
	"channel_id":  "channel_id",
	"thread_id":   "thread_id",
	"user_id":     "user_id",
	"archived_at": "archived_at",
}

const messageColumns = `id, channel_id, thread_id, user_id, content, deleted, archived_at`

type MessageStore struct {
	db DBTX
}

func NewMessageStore(db DBTX) *MessageStore {
	return &MessageStore{db: db}
}

func scanMessage(row pgx.Row) (models.Message, error) {
	var m models.Message
	err := row.Scan(
		&m.ID,
		&m.ChannelID,
		&m.ThreadID,
		&m.UserID,
		&m.Content,
		&m.Deleted,
		&m.ArchivedAt,
	)
	return m, err
}

// List pages through messages. Upstream ids are timestamps, so the default
// order (channel, id) is chronological within a channel.
func (s *MessageStore) List(ctx context.Context, q repository.ListQuery, f repository.MessageFilter) (*models.Page[models.Message], error) {
	order, err := orderBy(q.Sort, messageSortColumns, "channel_id, id", "channel_id, id")
	if err != nil {
		return nil, err
	}

	var w where
	w.addIf("user_id = ?", f.UserID)
	w.addIf("channel_id = ?", f.ChannelID)
	w.addIf("thread_id = ?", f.ThreadID)
	if !f.IncludeDeleted {
		w.raw("NOT deleted")
	}

	total, err := count(ctx, s.db, "sl_messages", &w)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}

	limit, args := limitOffset(&w, q)
	rows, err := s.db.Query(ctx, "SELECT "+messageColumns+" FROM sl_messages"+w.String()+order+limit, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0, q.PerPage)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return &models.Page[models.Message]{Page: q.Page, PerPage: q.PerPage, Total: total, Items: messages}, nil
}

// Get loads one message with its files and reactions. Soft-deleted messages
// are returned; the caller can check Deleted.
func (s *MessageStore) Get(ctx context.Context, channelID, id string) (*models.Message, error) {
	m, err := scanMessage(s.db.QueryRow(ctx,
		"SELECT "+messageColumns+" FROM sl_messages WHERE channel_id = $1 AND id = $2", channelID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get message: %w", err)
	}

	if m.Files, err = s.files(ctx, channelID, id); err != nil {
		return nil, err
	}
	if m.Reactions, err = s.reactions(ctx, channelID, id); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MessageStore) files(ctx context.Context, channelID, id string) ([]models.File, error) {
	rows, err := s.db.Query(ctx, `
		SELECT message_id, channel_id, url
		FROM sl_files
		WHERE channel_id = $1 AND message_id = $2
		ORDER BY url`, channelID, id)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	files := make([]models.File, 0)
	for rows.Next() {
		var f models.File
		if err := rows.Scan(&f.MessageID, &f.ChannelID, &f.URL); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return files, nil
}

func (s *MessageStore) reactions(ctx context.Context, channelID, id string) ([]models.Reaction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT r.message_id, r.channel_id, r.user_id, r.emoji_id, e.url
		FROM sl_reactions r
		JOIN sl_emojis e ON e.id = r.emoji_id
		WHERE r.channel_id = $1 AND r.message_id = $2
		ORDER BY r.emoji_id, r.user_id`, channelID, id)
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	defer rows.Close()

	reactions := make([]models.Reaction, 0)
	for rows.Next() {
		var r models.Reaction
		if err := rows.Scan(&r.MessageID, &r.ChannelID, &r.UserID, &r.EmojiID, &r.EmojiURL); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		reactions = append(reactions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reactions: %w", err)
	}
	return reactions, nil
}
