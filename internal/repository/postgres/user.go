package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/chatarchive/internal/models"
	"github.com/lalith-99/chatarchive/internal/repository"
)

var userSortColumns = map[string]string{
	"id":          "id",
	"name":        "name",
	"full_name":   "full_name",
	"tz_offset":   "tz_offset",
	"archived_at": "archived_at",
}

const userColumns = `id, name, full_name, description, avatar_id, tz_offset, archived_at`

type UserStore struct {
	db DBTX
}

func NewUserStore(db DBTX) *UserStore {
	return &UserStore{db: db}
}

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.FullName,
		&u.Description,
		&u.AvatarID,
		&u.TZOffset,
		&u.ArchivedAt,
	)
	return u, err
}

func (s *UserStore) List(ctx context.Context, q repository.ListQuery, f repository.UserFilter) (*models.Page[models.User], error) {
	order, err := orderBy(q.Sort, userSortColumns, "name, id", "id")
	if err != nil {
		return nil, err
	}

	var w where
	w.addIf("tz_offset = ?", f.TZOffset)

	total, err := count(ctx, s.db, "sl_users", &w)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	limit, args := limitOffset(&w, q)
	rows, err := s.db.Query(ctx, "SELECT "+userColumns+" FROM sl_users"+w.String()+order+limit, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0, q.PerPage)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return &models.Page[models.User]{Page: q.Page, PerPage: q.PerPage, Total: total, Items: users}, nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, "SELECT "+userColumns+" FROM sl_users WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}
