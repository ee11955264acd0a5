package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/cereal-api/internal/model"
)

const userColumns = "id, username, password_hash, role, created_at"

type UserRepo struct{ db *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts a user and returns its id.  passwordHash must already be
// encoded; an empty role falls back to model.RoleUser.
func (r *UserRepo) Create(ctx context.Context, username, passwordHash, role string) (int64, error) {
	username = strings.TrimSpace(username)
	if role == "" {
		role = model.RoleUser
	}
	res, err := r.db.NamedExecContext(ctx,
		`INSERT INTO users (username, password_hash, role) VALUES (:username, :password_hash, :role)`,
		model.User{Username: username, PasswordHash: passwordHash, Role: role})
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrUsernameExists
		}
		return 0, err
	}
	return res.LastInsertId()
}

// GetByUsername fetches a user by its exact (trimmed) username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	var u model.User
	err := r.db.GetContext(ctx, &u,
		r.db.Rebind("SELECT "+userColumns+" FROM users WHERE username = ? LIMIT 1"),
		strings.TrimSpace(username))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (model.User, error) {
	var u model.User
	err := r.db.GetContext(ctx, &u,
		r.db.Rebind("SELECT "+userColumns+" FROM users WHERE id = ? LIMIT 1"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	return u, err
}

// UpdatePasswordHash replaces the stored credential of a user.  Login uses
// it to migrate legacy credentials.
func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	res, err := r.db.ExecContext(ctx,
		r.db.Rebind("UPDATE users SET password_hash = ? WHERE id = ?"), hash, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}
