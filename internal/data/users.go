package data

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrTokenNotFound  = errors.New("reset token not found")
	ErrEmailDuplicate = errors.New("email already exists")
	ErrTokenUsed      = errors.New("reset token already used")
)

// User is an admin/operator account, distinct from Student. There is no
// RBAC/role hierarchy in this spec's scope: every account can manage the
// full CRUD surface once authenticated.
type User struct {
	ID           uuid.UUID
	Email        string
	DisplayName  string
	PasswordHash string
	IsDisabled   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

type PasswordResetToken struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	TokenHash       string
	ExpiresAt       time.Time
	UsedAt          *time.Time
	CreatedByUserID *uuid.UUID
	CreatedAt       time.Time
}

type UserModel struct {
	DB DBTX
}

func (m UserModel) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, display_name, password_hash, is_disabled, created_at, updated_at, deleted_at
		FROM users WHERE email = $1 AND deleted_at IS NULL`
	return m.scanOne(ctx, query, email)
}

func (m UserModel) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `
		SELECT id, email, display_name, password_hash, is_disabled, created_at, updated_at, deleted_at
		FROM users WHERE id = $1 AND deleted_at IS NULL`
	return m.scanOne(ctx, query, id)
}

func (m UserModel) scanOne(ctx context.Context, query string, arg any) (*User, error) {
	var u User
	err := m.DB.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.IsDisabled, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (m UserModel) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (email, display_name, password_hash, is_disabled)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	return m.DB.QueryRowContext(ctx, query, u.Email, u.DisplayName, u.PasswordHash, u.IsDisabled).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
}

func (m UserModel) Update(ctx context.Context, u *User) error {
	query := `
		UPDATE users
		SET display_name = $1, is_disabled = $2, password_hash = $3, updated_at = NOW()
		WHERE id = $4 AND deleted_at IS NULL
		RETURNING updated_at`
	err := m.DB.QueryRowContext(ctx, query, u.DisplayName, u.IsDisabled, u.PasswordHash, u.ID).Scan(&u.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrUserNotFound
	}
	return err
}

func (m UserModel) List(ctx context.Context, limit, offset int) ([]*User, error) {
	query := `
		SELECT id, email, display_name, is_disabled, created_at
		FROM users WHERE deleted_at IS NULL ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := m.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &u.IsDisabled, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, &u)
	}
	return users, nil
}

func (m UserModel) CreateResetToken(ctx context.Context, t *PasswordResetToken) error {
	query := `
		INSERT INTO password_reset_tokens (user_id, token_hash, expires_at, created_by_user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	return m.DB.QueryRowContext(ctx, query, t.UserID, t.TokenHash, t.ExpiresAt, t.CreatedByUserID).Scan(&t.ID, &t.CreatedAt)
}

func (m UserModel) GetResetToken(ctx context.Context, hash string) (*PasswordResetToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, used_at
		FROM password_reset_tokens WHERE token_hash = $1`
	var t PasswordResetToken
	err := m.DB.QueryRowContext(ctx, query, hash).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.UsedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (m UserModel) MarkTokenUsed(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE password_reset_tokens SET used_at = NOW() WHERE id = $1 AND used_at IS NULL`
	res, err := m.DB.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrTokenUsed
	}
	return nil
}
