package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/chatarchive/internal/models"
)

type AppStore struct {
	db DBTX
}

func NewAppStore(db DBTX) *AppStore {
	return &AppStore{db: db}
}

// Create registers an app. Only the hash of its secret is stored.
func (s *AppStore) Create(ctx context.Context, name string, description *string, secretHash string) (*models.App, error) {
	query := `
		INSERT INTO apps (id, name, description, secret_hash, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id, name, description, secret_hash, created_at`

	var a models.App
	err := s.db.QueryRow(ctx, query, uuid.New(), name, description, secretHash).Scan(
		&a.ID,
		&a.Name,
		&a.Description,
		&a.SecretHash,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert app: %w", err)
	}
	return &a, nil
}

func (s *AppStore) GetByID(ctx context.Context, id uuid.UUID) (*models.App, error) {
	query := `
		SELECT id, name, description, secret_hash, created_at
		FROM apps
		WHERE id = $1`

	var a models.App
	err := s.db.QueryRow(ctx, query, id).Scan(
		&a.ID,
		&a.Name,
		&a.Description,
		&a.SecretHash,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get app: %w", err)
	}
	return &a, nil
}
