package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"homelink/internal/models"

	"github.com/jackc/pgx/v5"
)

const linkColumns = "id, owner_id, triggers, results, ttl_us, started_at, version"

func scanLink(row pgx.Row) (*models.CommandsLink, error) {
	var l models.CommandsLink
	var ttlUS *int64
	err := row.Scan(&l.ID, &l.OwnerID, &l.Triggers, &l.Results, &ttlUS, &l.StartedAt, &l.Version)
	if err != nil {
		return nil, err
	}
	l.TTL = microsToDuration(ttlUS)
	return &l, nil
}

func (d *DB) queryLinks(ctx context.Context, what, sql string, args ...any) ([]models.CommandsLink, error) {
	rows, err := d.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapErr(err, what)
	}
	defer rows.Close()

	var links []models.CommandsLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, mapErr(err, what)
		}
		links = append(links, *l)
	}
	return links, rows.Err()
}

// CreateLink inserts a link and sets its id and version
func (d *DB) CreateLink(ctx context.Context, l *models.CommandsLink) error {
	err := d.pool.QueryRow(ctx, `
		INSERT INTO commands_links (owner_id, triggers, results, ttl_us, started_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, version`,
		l.OwnerID, l.Triggers, l.Results, durationToMicros(l.TTL), l.StartedAt,
	).Scan(&l.ID, &l.Version)
	return mapErr(err, "create link")
}

// GetLink fetches a link by id
func (d *DB) GetLink(ctx context.Context, id int64) (*models.CommandsLink, error) {
	l, err := scanLink(d.pool.QueryRow(ctx, "SELECT "+linkColumns+" FROM commands_links WHERE id = $1", id))
	if err != nil {
		return nil, mapErr(err, "get link")
	}
	return l, nil
}

// ListLinks returns the links owned by a user
func (d *DB) ListLinks(ctx context.Context, ownerID int64) ([]models.CommandsLink, error) {
	return d.queryLinks(ctx, "list links",
		"SELECT "+linkColumns+" FROM commands_links WHERE owner_id = $1 ORDER BY id", ownerID)
}

// UpdateLink replaces triggers, results, ttl and started_at unconditionally and bumps the version
func (d *DB) UpdateLink(ctx context.Context, l *models.CommandsLink) error {
	err := d.pool.QueryRow(ctx, `
		UPDATE commands_links
		SET triggers = $1, results = $2, ttl_us = $3, started_at = $4, version = version + 1
		WHERE id = $5
		RETURNING version`,
		l.Triggers, l.Results, durationToMicros(l.TTL), l.StartedAt, l.ID,
	).Scan(&l.Version)
	return mapErr(err, "update link")
}

// UpdateLinkTriggers writes trigger state only if the stored version still equals expected.
// It returns the new version, or ErrConflict when another writer got there first.
func (d *DB) UpdateLinkTriggers(ctx context.Context, id int64, triggers []models.Trigger, startedAt *time.Time, expected int64) (int64, error) {
	var version int64
	err := d.pool.QueryRow(ctx, `
		UPDATE commands_links
		SET triggers = $1, started_at = $2, version = version + 1
		WHERE id = $3 AND version = $4
		RETURNING version`,
		triggers, startedAt, id, expected,
	).Scan(&version)
	if err == nil {
		return version, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, mapErr(err, "update link triggers")
	}
	if _, err := d.GetLink(ctx, id); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("update link %d triggers: %w", id, models.ErrConflict)
}

// DeleteLink removes a link
func (d *DB) DeleteLink(ctx context.Context, id int64) error {
	return d.execOne(ctx, "delete link", "DELETE FROM commands_links WHERE id = $1", id)
}

// FindLinksWithPendingTrigger returns links holding an unsatisfied trigger equal to the event
func (d *DB) FindLinksWithPendingTrigger(ctx context.Context, deviceID int64, p models.CommandPayload) ([]models.CommandsLink, error) {
	probe, err := json.Marshal([]map[string]any{{
		"device_id":      deviceID,
		"component_name": p.Name,
		"action":         p.Action,
		"satisfied_at":   nil,
	}})
	if err != nil {
		return nil, err
	}
	return d.queryLinks(ctx, "find links",
		"SELECT "+linkColumns+" FROM commands_links WHERE triggers @> $1::jsonb ORDER BY id", string(probe))
}
