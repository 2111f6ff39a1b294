package postgres

import (
	"context"
	"fmt"

	"github.com/lalith-99/chatarchive/internal/models"
	"github.com/lalith-99/chatarchive/internal/repository"
)

var emojiSortColumns = map[string]string{
	"id": "id",
}

type EmojiStore struct {
	db DBTX
}

func NewEmojiStore(db DBTX) *EmojiStore {
	return &EmojiStore{db: db}
}

func (s *EmojiStore) List(ctx context.Context, q repository.ListQuery) (*models.Page[models.Emoji], error) {
	order, err := orderBy(q.Sort, emojiSortColumns, "id", "id")
	if err != nil {
		return nil, err
	}

	var w where
	total, err := count(ctx, s.db, "sl_emojis", &w)
	if err != nil {
		return nil, fmt.Errorf("count emojis: %w", err)
	}

	limit, args := limitOffset(&w, q)
	rows, err := s.db.Query(ctx, "SELECT id, url FROM sl_emojis"+order+limit, args...)
	if err != nil {
		return nil, fmt.Errorf("list emojis: %w", err)
	}
	defer rows.Close()

	emojis := make([]models.Emoji, 0, q.PerPage)
	for rows.Next() {
		var e models.Emoji
		if err := rows.Scan(&e.ID, &e.URL); err != nil {
			return nil, fmt.Errorf("scan emoji: %w", err)
		}
		emojis = append(emojis, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate emojis: %w", err)
	}

	return &models.Page[models.Emoji]{Page: q.Page, PerPage: q.PerPage, Total: total, Items: emojis}, nil
}
