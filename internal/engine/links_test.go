package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"homelink/internal/models"
)

func TestLinkService_StampsOwner(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	l, err := w.links.Create(ctx, w.alice, &models.CommandsLink{
		OwnerID:  w.bob.ID,
		Triggers: []models.Trigger{{DeviceID: w.door.ID, ComponentName: "Door", Action: "opened"}},
		Results:  []models.Result{{DeviceID: w.bobLamp.ID, Data: lampOn}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if l.OwnerID != w.alice.ID {
		t.Fatalf("expected owner stamped from caller, got %d", l.OwnerID)
	}

	if _, err := w.links.Get(ctx, w.bob, l.ID); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected other users not to see the link, got %v", err)
	}
	if err := w.links.Delete(ctx, w.bob, l.ID); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected other users not to delete the link, got %v", err)
	}
}

func TestLinkService_RejectsInvisibleDevices(t *testing.T) {
	w := newWorld(t)
	_, err := w.links.Create(context.Background(), w.bob, &models.CommandsLink{
		Triggers: []models.Trigger{{DeviceID: w.door.ID, ComponentName: "Door", Action: "opened"}},
		Results:  []models.Result{{DeviceID: w.bobLamp.ID, Data: lampOn}},
	})
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error for alice's private door, got %v", err)
	}
}

func TestLinkService_UpdateResetsState(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	l := w.createLink(t, nil,
		models.Trigger{DeviceID: w.door.ID, ComponentName: "Door", Action: "opened"},
		models.Trigger{DeviceID: w.motion.ID, ComponentName: "Motion", Action: "detected"},
	)
	_ = w.engine.OnCommandResolved(ctx, w.door.ID, doorOpened, t0)

	updated, err := w.links.Update(ctx, w.alice, l.ID, &models.CommandsLink{
		Triggers: []models.Trigger{
			{DeviceID: w.door.ID, ComponentName: "Door", Action: "opened"},
			{DeviceID: w.motion.ID, ComponentName: "Motion", Action: "detected"},
		},
		Results: []models.Result{{DeviceID: w.bobLamp.ID, Data: lampOn}},
		TTL:     models.NewDuration(time.Minute),
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.TTL == nil || updated.TTL.Duration != time.Minute {
		t.Fatalf("expected ttl replaced, got %v", updated.TTL)
	}
	w.assertReset(t, l.ID)
}
