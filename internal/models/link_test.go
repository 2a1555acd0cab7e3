package models

import (
	"errors"
	"testing"
	"time"
)

var t0 = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func twoTriggerLink(ttl *Duration) *CommandsLink {
	return &CommandsLink{
		ID: 1,
		Triggers: []Trigger{
			{DeviceID: 1, ComponentName: "Door", Action: "opened"},
			{DeviceID: 2, ComponentName: "Motion", Action: "detected"},
		},
		Results: []Result{{DeviceID: 3, Data: CommandPayload{Name: "LED", Action: "on"}}},
		TTL:     ttl,
	}
}

func TestCheck_PendingUntilAllSatisfied(t *testing.T) {
	l := twoTriggerLink(nil)
	l.Satisfy(0, t0)
	if got := l.Check(); got != LinkPending {
		t.Fatalf("expected pending, got %s", got)
	}
	if l.StartedAt == nil || !l.StartedAt.Equal(t0) {
		t.Errorf("expected started_at %v, got %v", t0, l.StartedAt)
	}
}

func TestCheck_NoTTLFires(t *testing.T) {
	l := twoTriggerLink(nil)
	l.Satisfy(0, t0)
	l.Satisfy(1, t0.Add(24*time.Hour))
	if got := l.Check(); got != LinkFire {
		t.Fatalf("expected fire, got %s", got)
	}
}

func TestCheck_WithinTTLFires(t *testing.T) {
	l := twoTriggerLink(NewDuration(10 * time.Second))
	l.Satisfy(0, t0)
	l.Satisfy(1, t0.Add(5*time.Second))
	if got := l.Check(); got != LinkFire {
		t.Fatalf("expected fire, got %s", got)
	}
}

func TestCheck_TTLBoundaryIsInclusive(t *testing.T) {
	l := twoTriggerLink(NewDuration(10 * time.Second))
	l.Satisfy(0, t0)
	l.Satisfy(1, t0.Add(10*time.Second))
	if got := l.Check(); got != LinkFire {
		t.Fatalf("expected fire at exactly ttl, got %s", got)
	}
}

func TestCheck_OutsideTTLExpires(t *testing.T) {
	l := twoTriggerLink(NewDuration(10 * time.Second))
	l.Satisfy(0, t0)
	l.Satisfy(1, t0.Add(15*time.Second))
	if got := l.Check(); got != LinkExpired {
		t.Fatalf("expected expired, got %s", got)
	}
}

func TestCheck_OrderIndependent(t *testing.T) {
	l := twoTriggerLink(NewDuration(10 * time.Second))
	l.Satisfy(1, t0)
	l.Satisfy(0, t0.Add(-4*time.Second))
	if got := l.Check(); got != LinkFire {
		t.Fatalf("expected fire, got %s", got)
	}
}

func TestResetTriggers(t *testing.T) {
	l := twoTriggerLink(nil)
	l.Satisfy(0, t0)
	l.Satisfy(1, t0)
	l.ResetTriggers()
	for i, tr := range l.Triggers {
		if tr.SatisfiedAt != nil {
			t.Errorf("trigger %d still satisfied", i)
		}
	}
	if l.StartedAt != nil {
		t.Error("expected started_at cleared")
	}
}

func TestPendingTriggerIndex_FirstUnsatisfiedMatch(t *testing.T) {
	l := &CommandsLink{Triggers: []Trigger{
		{DeviceID: 1, ComponentName: "Button", Action: "pressed"},
		{DeviceID: 1, ComponentName: "Button", Action: "pressed"},
	}}
	p := CommandPayload{Name: "Button", Action: "pressed"}

	if i := l.PendingTriggerIndex(1, p); i != 0 {
		t.Fatalf("expected index 0, got %d", i)
	}
	l.Satisfy(0, t0)
	if i := l.PendingTriggerIndex(1, p); i != 1 {
		t.Fatalf("expected index 1, got %d", i)
	}
	l.Satisfy(1, t0)
	if i := l.PendingTriggerIndex(1, p); i != -1 {
		t.Fatalf("expected no match, got %d", i)
	}
	if i := l.PendingTriggerIndex(2, p); i != -1 {
		t.Fatalf("expected no match for other device, got %d", i)
	}
}

func TestValidate_RejectsSubmittedSatisfaction(t *testing.T) {
	l := twoTriggerLink(nil)
	now := t0
	l.Triggers[0].SatisfiedAt = &now
	if err := l.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidate_RequiresTriggersAndResults(t *testing.T) {
	if err := (&CommandsLink{}).Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	l := twoTriggerLink(nil)
	l.Results = nil
	if err := l.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := twoTriggerLink(nil).Validate(); err != nil {
		t.Fatalf("expected valid link, got %v", err)
	}
}

func TestDeviceIDs(t *testing.T) {
	l := twoTriggerLink(nil)
	l.Results = append(l.Results, Result{DeviceID: 1, Data: CommandPayload{Name: "x", Action: "y"}})
	ids := l.DeviceIDs()
	want := []int64{1, 2, 3}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}
}
