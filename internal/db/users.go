package db

import (
	"context"

	"homelink/internal/models"

	"github.com/jackc/pgx/v5"
)

const userColumns = "id, username, email, is_device, owner_id"

// CreateUser inserts an account and sets u.ID
func (d *DB) CreateUser(ctx context.Context, u *models.User, passwordHash string) error {
	err := d.pool.QueryRow(ctx,
		"INSERT INTO users (username, password, email, is_device, owner_id) VALUES ($1, $2, $3, $4, $5) RETURNING id",
		u.Username, passwordHash, u.Email, u.IsDevice, u.OwnerID,
	).Scan(&u.ID)
	return mapErr(err, "create user")
}

// GetUser fetches an account by id
func (d *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := d.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id).
		Scan(&u.ID, &u.Username, &u.Email, &u.IsDevice, &u.OwnerID)
	if err != nil {
		return nil, mapErr(err, "get user")
	}
	return &u, nil
}

// GetUserByUsername fetches an account by username
func (d *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := d.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE username = $1", username).
		Scan(&u.ID, &u.Username, &u.Email, &u.IsDevice, &u.OwnerID)
	if err != nil {
		return nil, mapErr(err, "get user")
	}
	return &u, nil
}

// GetUserCredentials fetches an account together with its password hash
func (d *DB) GetUserCredentials(ctx context.Context, username string) (*models.User, string, error) {
	var u models.User
	var hash string
	err := d.pool.QueryRow(ctx, "SELECT "+userColumns+", password FROM users WHERE username = $1", username).
		Scan(&u.ID, &u.Username, &u.Email, &u.IsDevice, &u.OwnerID, &hash)
	if err != nil {
		return nil, "", mapErr(err, "get credentials")
	}
	return &u, hash, nil
}

// GetPasswordHash fetches the password hash of an account
func (d *DB) GetPasswordHash(ctx context.Context, id int64) (string, error) {
	var hash string
	err := d.pool.QueryRow(ctx, "SELECT password FROM users WHERE id = $1", id).Scan(&hash)
	return hash, mapErr(err, "get password")
}

// UpdateUserPassword stores a new password hash
func (d *DB) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	return d.execOne(ctx, "update password", "UPDATE users SET password = $1 WHERE id = $2", passwordHash, id)
}

// UpdateUserEmail stores a new email address
func (d *DB) UpdateUserEmail(ctx context.Context, id int64, email string) error {
	return d.execOne(ctx, "update email", "UPDATE users SET email = $1 WHERE id = $2", email, id)
}

// execOne runs a statement that must touch exactly one row
func (d *DB) execOne(ctx context.Context, what, sql string, args ...any) error {
	tag, err := d.pool.Exec(ctx, sql, args...)
	if err != nil {
		return mapErr(err, what)
	}
	if tag.RowsAffected() == 0 {
		return mapErr(pgx.ErrNoRows, what)
	}
	return nil
}
