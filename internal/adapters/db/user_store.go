package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"openlot-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

// UserStore implements the user store interface on PostgreSQL
type UserStore struct {
	conn *Connection
}

// NewUserStore creates a new PostgreSQL user store
func NewUserStore(conn *Connection) *UserStore {
	return &UserStore{conn: conn}
}

// GetByID retrieves a user by ID
func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*shared.User, error) {
	query := `SELECT id, name, contact, created_at FROM users WHERE id = $1`

	var u shared.User
	err := s.conn.GetDB().QueryRowContext(ctx, query, id).Scan(
		&u.ID,
		&u.Name,
		&u.Contact,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &u, nil
}

// Create creates a new user
func (s *UserStore) Create(ctx context.Context, user *shared.User) error {
	query := `INSERT INTO users (id, name, contact, created_at) VALUES ($1, $2, $3, $4)`

	_, err := s.conn.GetDB().ExecContext(ctx, query, user.ID, user.Name, user.Contact, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}
