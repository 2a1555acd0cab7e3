package db

import (
	"context"

	"homelink/internal/models"

	"github.com/jackc/pgx/v5"
)

// CreateSpace inserts a space and enrolls its owner as a member
func (d *DB) CreateSpace(ctx context.Context, s *models.Space) error {
	return d.Tx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			"INSERT INTO spaces (name, description, owner_id) VALUES ($1, $2, $3) RETURNING id, created_at",
			s.Name, s.Description, s.OwnerID,
		).Scan(&s.ID, &s.CreatedAt)
		if err != nil {
			return mapErr(err, "create space")
		}
		_, err = tx.Exec(ctx, "INSERT INTO space_members (space_id, user_id) VALUES ($1, $2)", s.ID, s.OwnerID)
		return mapErr(err, "add space owner")
	})
}

// GetSpace fetches a space by id
func (d *DB) GetSpace(ctx context.Context, id int64) (*models.Space, error) {
	var s models.Space
	err := d.pool.QueryRow(ctx, "SELECT id, name, description, owner_id, created_at FROM spaces WHERE id = $1", id).
		Scan(&s.ID, &s.Name, &s.Description, &s.OwnerID, &s.CreatedAt)
	if err != nil {
		return nil, mapErr(err, "get space")
	}
	return &s, nil
}

// ListSpaces returns spaces the user owns or belongs to
func (d *DB) ListSpaces(ctx context.Context, userID int64) ([]models.Space, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT s.id, s.name, s.description, s.owner_id, s.created_at
		FROM spaces s
		WHERE s.owner_id = $1
		   OR EXISTS (SELECT 1 FROM space_members m WHERE m.space_id = s.id AND m.user_id = $1)
		ORDER BY s.id`, userID)
	if err != nil {
		return nil, mapErr(err, "list spaces")
	}
	defer rows.Close()

	var spaces []models.Space
	for rows.Next() {
		var s models.Space
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.OwnerID, &s.CreatedAt); err != nil {
			return nil, err
		}
		spaces = append(spaces, s)
	}
	return spaces, rows.Err()
}

// AddSpaceMember enrolls a user; adding an existing member is a no-op
func (d *DB) AddSpaceMember(ctx context.Context, spaceID, userID int64) error {
	_, err := d.pool.Exec(ctx,
		"INSERT INTO space_members (space_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING", spaceID, userID)
	return mapErr(err, "add space member")
}

// RemoveSpaceMember removes a user from a space
func (d *DB) RemoveSpaceMember(ctx context.Context, spaceID, userID int64) error {
	return d.execOne(ctx, "remove space member",
		"DELETE FROM space_members WHERE space_id = $1 AND user_id = $2", spaceID, userID)
}

// IsSpaceMember reports whether the user belongs to the space
func (d *DB) IsSpaceMember(ctx context.Context, spaceID, userID int64) (bool, error) {
	var ok bool
	err := d.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM space_members WHERE space_id = $1 AND user_id = $2)", spaceID, userID).Scan(&ok)
	return ok, mapErr(err, "check space member")
}

// ListSpaceMembers returns every member of a space
func (d *DB) ListSpaceMembers(ctx context.Context, spaceID int64) ([]models.User, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT u.id, u.username, u.email, u.is_device, u.owner_id
		FROM users u JOIN space_members m ON m.user_id = u.id
		WHERE m.space_id = $1
		ORDER BY u.id`, spaceID)
	if err != nil {
		return nil, mapErr(err, "list space members")
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.IsDevice, &u.OwnerID); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
