package db

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"homelink/internal/models"

	"github.com/google/uuid"
)

// openTestDB connects to DATABASE_URL and skips when it is unset
func openTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	d, err := NewDB(ctx, url)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(d.Close)
	if err := d.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	return d
}

// seedDevices creates an owner with two devices; everything is removed with the owner
func seedDevices(t *testing.T, d *DB) (owner *models.User, door, lamp *models.Device) {
	t.Helper()
	ctx := context.Background()
	owner = &models.User{Username: "links-" + uuid.NewString()}
	if err := d.CreateUser(ctx, owner, "x"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_, _ = d.Pool().Exec(context.Background(), "DELETE FROM users WHERE id = $1", owner.ID)
	})
	door = &models.Device{Name: "door", OwnerID: owner.ID}
	lamp = &models.Device{Name: "lamp", OwnerID: owner.ID}
	for _, dev := range []*models.Device{door, lamp} {
		if err := d.CreateDevice(ctx, dev); err != nil {
			t.Fatal(err)
		}
	}
	return owner, door, lamp
}

func TestFindLinksWithPendingTrigger_Postgres(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	owner, door, lamp := seedDevices(t, d)

	satisfied := time.Now().UTC().Truncate(time.Microsecond)
	pending := &models.CommandsLink{
		OwnerID:  owner.ID,
		Triggers: []models.Trigger{{DeviceID: door.ID, ComponentName: "Door", Action: "opened"}},
		Results:  []models.Result{{DeviceID: lamp.ID, Data: models.CommandPayload{Name: "LED", Action: "on"}}},
	}
	done := &models.CommandsLink{
		OwnerID:  owner.ID,
		Triggers: []models.Trigger{{DeviceID: door.ID, ComponentName: "Door", Action: "opened", SatisfiedAt: &satisfied}},
		Results:  pending.Results,
	}
	other := &models.CommandsLink{
		OwnerID:  owner.ID,
		Triggers: []models.Trigger{{DeviceID: door.ID, ComponentName: "Door", Action: "closed"}},
		Results:  pending.Results,
	}
	for _, l := range []*models.CommandsLink{pending, done, other} {
		if err := d.CreateLink(ctx, l); err != nil {
			t.Fatal(err)
		}
	}

	found, err := d.FindLinksWithPendingTrigger(ctx, door.ID, models.CommandPayload{Name: "Door", Action: "opened"})
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0].ID != pending.ID {
		t.Fatalf("expected only link %d, got %+v", pending.ID, found)
	}
	if found[0].Triggers[0].SatisfiedAt != nil {
		t.Fatalf("expected unsatisfied trigger, got %+v", found[0].Triggers[0])
	}
}

func TestUpdateLinkTriggers_VersionGuard_Postgres(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	owner, door, lamp := seedDevices(t, d)

	l := &models.CommandsLink{
		OwnerID:  owner.ID,
		Triggers: []models.Trigger{{DeviceID: door.ID, ComponentName: "Door", Action: "opened"}},
		Results:  []models.Result{{DeviceID: lamp.ID, Data: models.CommandPayload{Name: "LED", Action: "on"}}},
		TTL:      models.NewDuration(10 * time.Second),
	}
	if err := d.CreateLink(ctx, l); err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	triggers := []models.Trigger{{DeviceID: door.ID, ComponentName: "Door", Action: "opened", SatisfiedAt: &now}}
	v, err := d.UpdateLinkTriggers(ctx, l.ID, triggers, &now, l.Version)
	if err != nil {
		t.Fatal(err)
	}
	if v != l.Version+1 {
		t.Fatalf("expected version %d, got %d", l.Version+1, v)
	}

	if _, err := d.UpdateLinkTriggers(ctx, l.ID, l.Triggers, nil, l.Version); !errors.Is(err, models.ErrConflict) {
		t.Fatalf("expected conflict on stale version, got %v", err)
	}
	if _, err := d.UpdateLinkTriggers(ctx, l.ID+1_000_000, l.Triggers, nil, 1); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found for missing link, got %v", err)
	}

	stored, err := d.GetLink(ctx, l.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Version != v || stored.StartedAt == nil || !stored.StartedAt.Equal(now) {
		t.Fatalf("stale write must not land, got %+v", stored)
	}
	if stored.TTL == nil || stored.TTL.Duration != 10*time.Second {
		t.Fatalf("expected ttl preserved, got %v", stored.TTL)
	}
}
