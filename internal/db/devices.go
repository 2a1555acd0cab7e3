package db

import (
	"context"

	"homelink/internal/models"

	"github.com/jackc/pgx/v5"
)

const deviceColumns = "id, name, description, data, owner_id, account_id, space_id, added_at"

func scanDevice(row pgx.Row) (*models.Device, error) {
	var d models.Device
	err := row.Scan(&d.ID, &d.Name, &d.Description, &d.Capabilities, &d.OwnerID, &d.AccountID, &d.SpaceID, &d.AddedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (d *DB) queryDevices(ctx context.Context, what, sql string, args ...any) ([]models.Device, error) {
	rows, err := d.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapErr(err, what)
	}
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		dev, err := scanDevice(rows)
		if err != nil {
			return nil, mapErr(err, what)
		}
		devices = append(devices, *dev)
	}
	return devices, rows.Err()
}

// CreateDevice inserts a device and sets its id and added_at
func (d *DB) CreateDevice(ctx context.Context, dev *models.Device) error {
	err := d.pool.QueryRow(ctx,
		"INSERT INTO devices (name, description, data, owner_id, account_id, space_id) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, added_at",
		dev.Name, dev.Description, dev.Capabilities, dev.OwnerID, dev.AccountID, dev.SpaceID,
	).Scan(&dev.ID, &dev.AddedAt)
	return mapErr(err, "create device")
}

// GetDevice fetches a device by id
func (d *DB) GetDevice(ctx context.Context, id int64) (*models.Device, error) {
	dev, err := scanDevice(d.pool.QueryRow(ctx, "SELECT "+deviceColumns+" FROM devices WHERE id = $1", id))
	if err != nil {
		return nil, mapErr(err, "get device")
	}
	return dev, nil
}

// UpdateDevice writes the mutable fields of a device
func (d *DB) UpdateDevice(ctx context.Context, dev *models.Device) error {
	return d.execOne(ctx, "update device",
		"UPDATE devices SET name = $1, description = $2, data = $3, space_id = $4, account_id = $5 WHERE id = $6",
		dev.Name, dev.Description, dev.Capabilities, dev.SpaceID, dev.AccountID, dev.ID)
}

// ListUserDevices returns devices the user owns plus devices in spaces the user belongs to
func (d *DB) ListUserDevices(ctx context.Context, userID int64, f models.DeviceFilter) ([]models.Device, error) {
	return d.queryDevices(ctx, "list user devices", `
		SELECT `+deviceColumns+` FROM devices
		WHERE (owner_id = $1 OR space_id IN (SELECT space_id FROM space_members WHERE user_id = $1))
		  AND ($2::bigint IS NULL OR space_id = $2)
		  AND (NOT $3 OR space_id IS NULL)
		ORDER BY id`, userID, f.SpaceID, f.Spaceless)
}

// ListSpaceDevices returns devices placed in a space
func (d *DB) ListSpaceDevices(ctx context.Context, spaceID int64) ([]models.Device, error) {
	return d.queryDevices(ctx, "list space devices",
		"SELECT "+deviceColumns+" FROM devices WHERE space_id = $1 ORDER BY id", spaceID)
}

// ListDevicesByAccount returns devices whose login account is accountID
func (d *DB) ListDevicesByAccount(ctx context.Context, accountID int64) ([]models.Device, error) {
	return d.queryDevices(ctx, "list account devices",
		"SELECT "+deviceColumns+" FROM devices WHERE account_id = $1 ORDER BY id", accountID)
}
