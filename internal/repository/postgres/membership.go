package postgres

import (
	"context"
	"fmt"

	"github.com/lalith-99/chatarchive/internal/models"
	"github.com/lalith-99/chatarchive/internal/repository"
)

// The archive has no membership table; a channel's members are the users
// who posted in it. Authors that were never exported as users are left out.
const membersFrom = `sl_users u WHERE EXISTS (
		SELECT 1 FROM sl_messages m
		WHERE m.channel_id = $1 AND m.user_id = u.id
	)`

// ListMembers pages through the users who posted in channelID.
func (s *ChannelStore) ListMembers(ctx context.Context, channelID string, q repository.ListQuery) (*models.Page[models.User], error) {
	order, err := orderBy(q.Sort, userSortColumns, "name, id", "id")
	if err != nil {
		return nil, err
	}

	var total int64
	if err := s.db.QueryRow(ctx, "SELECT count(*) FROM "+membersFrom, channelID).Scan(&total); err != nil {
		return nil, fmt.Errorf("count members: %w", err)
	}

	rows, err := s.db.Query(ctx,
		"SELECT "+userColumns+" FROM "+membersFrom+order+" LIMIT $2 OFFSET $3",
		channelID, q.PerPage, q.Offset())
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := make([]models.User, 0, q.PerPage)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}

	return &models.Page[models.User]{Page: q.Page, PerPage: q.PerPage, Total: total, Items: members}, nil
}
