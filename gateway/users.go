// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

// passwordHashCost is the bcrypt cost for user passwords and API key
// hashes. 12 keeps verification around 250ms on current hardware.
const passwordHashCost = 12

// UserRepository persists user accounts.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a repository over the given database.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Register creates a new account. Emails are unique case-insensitively;
// a duplicate yields ErrEmailTaken.
func (r *UserRepository) Register(ctx context.Context, email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{ID: uuid.NewString(), Email: email, Active: true}

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, password_hash, active)
		VALUES ($1, $2, $3, true)
		RETURNING created_at
	`, user.ID, email, string(hash)).Scan(&user.CreatedAt)

	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Authenticate verifies an email/password pair. All failure modes
// (unknown email, wrong password, deactivated account) collapse into
// ErrUnauthorized except the inactive case, which is distinguishable
// only after a correct password.
func (r *UserRepository) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user := &User{}
	var hash string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, active, created_at
		FROM users WHERE email = $1
	`, email).Scan(&user.ID, &user.Email, &hash, &user.Active, &user.CreatedAt)

	if err == sql.ErrNoRows {
		// Burn a bcrypt comparison so unknown emails take as long as
		// wrong passwords.
		_ = bcrypt.CompareHashAndPassword(
			[]byte("$2a$12$C6UzMDM.H6dfI/f/IKcEeO5l8Y0nVOlhKqe8M8MOeJ3nXfGpU1mBS"), []byte(password))
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrUnauthorized
	}

	if !user.Active {
		return nil, ErrAccountInactive
	}
	return user, nil
}

// GetByID fetches an account by id.
func (r *UserRepository) GetByID(ctx context.Context, userID string) (*User, error) {
	user := &User{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, active, created_at FROM users WHERE id = $1
	`, userID).Scan(&user.ID, &user.Email, &user.Active, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return user, nil
}

// Deactivate soft-deletes an account. Users are never hard-deleted so
// incident history keeps a valid owner.
func (r *UserRepository) Deactivate(ctx context.Context, userID string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET active = false WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}
