package db

import (
	"context"
	"time"

	"homelink/internal/models"

	"github.com/jackc/pgx/v5"
)

const commandColumns = "id, author_id, device_id, data, description, scheduled_at, repeat_interval_us, self_execute, executed, created_at"

func scanCommand(row pgx.Row) (*models.Command, error) {
	var c models.Command
	var repeatUS *int64
	err := row.Scan(&c.ID, &c.AuthorID, &c.DeviceID, &c.Data, &c.Description,
		&c.ScheduledAt, &repeatUS, &c.SelfExecute, &c.Executed, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.RepeatInterval = microsToDuration(repeatUS)
	return &c, nil
}

// CreateCommand inserts a command and sets its id and created_at
func (d *DB) CreateCommand(ctx context.Context, c *models.Command) error {
	err := d.pool.QueryRow(ctx, `
		INSERT INTO commands (author_id, device_id, data, description, scheduled_at, repeat_interval_us, self_execute, executed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		c.AuthorID, c.DeviceID, c.Data, c.Description, c.ScheduledAt,
		durationToMicros(c.RepeatInterval), c.SelfExecute, c.Executed,
	).Scan(&c.ID, &c.CreatedAt)
	return mapErr(err, "create command")
}

// GetCommand fetches a command by id
func (d *DB) GetCommand(ctx context.Context, id int64) (*models.Command, error) {
	c, err := scanCommand(d.pool.QueryRow(ctx, "SELECT "+commandColumns+" FROM commands WHERE id = $1", id))
	if err != nil {
		return nil, mapErr(err, "get command")
	}
	return c, nil
}

// ListCommands returns commands matching the filter, oldest first
func (d *DB) ListCommands(ctx context.Context, f models.CommandFilter) ([]models.Command, error) {
	if len(f.DeviceIDs) == 0 {
		return nil, nil
	}
	rows, err := d.pool.Query(ctx, `
		SELECT `+commandColumns+` FROM commands
		WHERE device_id = ANY($1)
		  AND NOT self_execute
		  AND ($2 OR (NOT executed AND (scheduled_at IS NULL OR scheduled_at <= $3)))
		ORDER BY id`, f.DeviceIDs, f.IncludeAll, f.DueBefore)
	if err != nil {
		return nil, mapErr(err, "list commands")
	}
	defer rows.Close()

	var commands []models.Command
	for rows.Next() {
		c, err := scanCommand(rows)
		if err != nil {
			return nil, mapErr(err, "list commands")
		}
		commands = append(commands, *c)
	}
	return commands, rows.Err()
}

// MarkCommandExecuted flips executed to true. changed is false when it was already set.
func (d *DB) MarkCommandExecuted(ctx context.Context, id int64) (changed bool, err error) {
	tag, err := d.pool.Exec(ctx, "UPDATE commands SET executed = TRUE WHERE id = $1 AND NOT executed", id)
	if err != nil {
		return false, mapErr(err, "mark executed")
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := d.GetCommand(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// DeleteCommand hard-deletes a command
func (d *DB) DeleteCommand(ctx context.Context, id int64) error {
	return d.execOne(ctx, "delete command", "DELETE FROM commands WHERE id = $1", id)
}

// PruneExecutedCommands deletes executed commands created before the cutoff
func (d *DB) PruneExecutedCommands(ctx context.Context, before time.Time) (int64, error) {
	tag, err := d.pool.Exec(ctx, "DELETE FROM commands WHERE executed AND created_at < $1", before)
	if err != nil {
		return 0, mapErr(err, "prune commands")
	}
	return tag.RowsAffected(), nil
}
