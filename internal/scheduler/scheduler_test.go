package scheduler

import (
	"context"
	"testing"
	"time"

	"homelink/internal/memstore"
	"homelink/internal/models"
)

func TestAddJob_ReplacesByName(t *testing.T) {
	s := NewScheduler()
	if err := s.AddJob("a", "@hourly", func() {}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddJob("a", "@daily", func() {}); err != nil {
		t.Fatal(err)
	}
	if s.JobCount() != 1 {
		t.Fatalf("expected 1 job, got %d", s.JobCount())
	}
	if err := s.AddJob("b", "not a cron spec", func() {}); err == nil {
		t.Fatal("expected invalid spec error")
	}
	s.RemoveJob("a")
	if s.JobCount() != 0 {
		t.Fatalf("expected 0 jobs, got %d", s.JobCount())
	}
}

func TestHistoryPruner_Run(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	u := &models.User{Username: "alice"}
	_ = store.CreateUser(ctx, u, "x")
	d := &models.Device{Name: "lamp", OwnerID: u.ID}
	_ = store.CreateDevice(ctx, d)

	done := &models.Command{AuthorID: u.ID, DeviceID: d.ID, Data: models.CommandPayload{Name: "LED", Action: "on"}}
	pending := &models.Command{AuthorID: u.ID, DeviceID: d.ID, Data: models.CommandPayload{Name: "LED", Action: "off"}}
	_ = store.CreateCommand(ctx, done)
	_ = store.CreateCommand(ctx, pending)
	_, _ = store.MarkCommandExecuted(ctx, done.ID)

	p := NewHistoryPruner(store, time.Hour)
	p.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	n, err := p.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned command, got %d", n)
	}
	if _, err := store.GetCommand(ctx, pending.ID); err != nil {
		t.Fatalf("pending command must survive pruning: %v", err)
	}
}

func TestSchedulePrune_DisabledRetention(t *testing.T) {
	s := NewScheduler()
	if err := s.SchedulePrune("@daily", NewHistoryPruner(memstore.New(), 0)); err != nil {
		t.Fatal(err)
	}
	if s.JobCount() != 0 {
		t.Fatal("expected no prune job with zero retention")
	}
}
