package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/chatarchive/internal/models"
	"github.com/lalith-99/chatarchive/internal/repository"
)

var channelSortColumns = map[string]string{
	"id":          "id",
	"name":        "name",
	"archived_at": "archived_at",
}

type ChannelStore struct {
	db DBTX
}

func NewChannelStore(db DBTX) *ChannelStore {
	return &ChannelStore{db: db}
}

func (s *ChannelStore) List(ctx context.Context, q repository.ListQuery) (*models.Page[models.Channel], error) {
	order, err := orderBy(q.Sort, channelSortColumns, "name, id", "id")
	if err != nil {
		return nil, err
	}

	var w where
	total, err := count(ctx, s.db, "sl_channels", &w)
	if err != nil {
		return nil, fmt.Errorf("count channels: %w", err)
	}

	limit, args := limitOffset(&w, q)
	rows, err := s.db.Query(ctx,
		"SELECT id, name, description, archived_at FROM sl_channels"+order+limit, args...)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	channels := make([]models.Channel, 0, q.PerPage)
	for rows.Next() {
		var ch models.Channel
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.Description, &ch.ArchivedAt); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}

	return &models.Page[models.Channel]{Page: q.Page, PerPage: q.PerPage, Total: total, Items: channels}, nil
}

func (s *ChannelStore) GetByID(ctx context.Context, id string) (*models.Channel, error) {
	query := `
		SELECT id, name, description, archived_at
		FROM sl_channels
		WHERE id = $1`

	var ch models.Channel
	err := s.db.QueryRow(ctx, query, id).Scan(&ch.ID, &ch.Name, &ch.Description, &ch.ArchivedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get channel: %w", err)
	}
	return &ch, nil
}
