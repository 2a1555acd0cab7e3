package models

import (
	"fmt"
	"time"
)

// Trigger is one condition of a CommandsLink
type Trigger struct {
	DeviceID      int64      `json:"device_id"`
	ComponentName string     `json:"component_name"`
	Action        string     `json:"action"`
	SatisfiedAt   *time.Time `json:"satisfied_at"`
}

// Matches reports whether an unsatisfied trigger is met by a resolved command
func (t Trigger) Matches(deviceID int64, p CommandPayload) bool {
	return t.SatisfiedAt == nil &&
		t.DeviceID == deviceID &&
		t.ComponentName == p.Name &&
		t.Action == p.Action
}

// Result is a command emitted when a link fires
type Result struct {
	DeviceID int64          `json:"device_id"`
	Data     CommandPayload `json:"data"`
}

// CommandsLink is a multi-condition automation
type CommandsLink struct {
	ID        int64      `json:"id"`
	OwnerID   int64      `json:"owner"`
	Triggers  []Trigger  `json:"triggers"`
	Results   []Result   `json:"results"`
	TTL       *Duration  `json:"ttl"`
	StartedAt *time.Time `json:"started_at"`
	Version   int64      `json:"-"`
}

// LinkOutcome is the result of checking a link's satisfaction state
type LinkOutcome int

const (
	// LinkPending means at least one trigger is still unsatisfied
	LinkPending LinkOutcome = iota
	// LinkFire means all triggers are satisfied inside the window
	LinkFire
	// LinkExpired means all triggers are satisfied but the span exceeds the ttl
	LinkExpired
)

func (o LinkOutcome) String() string {
	switch o {
	case LinkFire:
		return "fire"
	case LinkExpired:
		return "expired"
	default:
		return "pending"
	}
}

// PendingTriggerIndex returns the first unsatisfied trigger matching the event, or -1
func (l *CommandsLink) PendingTriggerIndex(deviceID int64, p CommandPayload) int {
	for i := range l.Triggers {
		if l.Triggers[i].Matches(deviceID, p) {
			return i
		}
	}
	return -1
}

// Satisfy marks trigger i satisfied at t and opens the epoch if needed
func (l *CommandsLink) Satisfy(i int, t time.Time) {
	at := t
	l.Triggers[i].SatisfiedAt = &at
	if l.StartedAt == nil {
		start := t
		l.StartedAt = &start
	}
}

// Check evaluates the satisfaction state. TTL is only applied once every trigger is satisfied.
func (l *CommandsLink) Check() LinkOutcome {
	if len(l.Triggers) == 0 {
		return LinkPending
	}
	var first, last time.Time
	for i, t := range l.Triggers {
		if t.SatisfiedAt == nil {
			return LinkPending
		}
		if i == 0 || t.SatisfiedAt.Before(first) {
			first = *t.SatisfiedAt
		}
		if i == 0 || t.SatisfiedAt.After(last) {
			last = *t.SatisfiedAt
		}
	}
	if l.TTL == nil {
		return LinkFire
	}
	if last.Sub(first) <= l.TTL.Duration {
		return LinkFire
	}
	return LinkExpired
}

// ResetTriggers clears every satisfaction timestamp and closes the epoch
func (l *CommandsLink) ResetTriggers() {
	for i := range l.Triggers {
		l.Triggers[i].SatisfiedAt = nil
	}
	l.StartedAt = nil
}

// Validate checks a client-submitted link
func (l *CommandsLink) Validate() error {
	if len(l.Triggers) == 0 {
		return fmt.Errorf("%w: link needs at least one trigger", ErrValidation)
	}
	if len(l.Results) == 0 {
		return fmt.Errorf("%w: link needs at least one result", ErrValidation)
	}
	for i, t := range l.Triggers {
		if t.DeviceID <= 0 || t.ComponentName == "" || t.Action == "" {
			return fmt.Errorf("%w: trigger %d needs device_id, component_name and action", ErrValidation, i)
		}
		if t.SatisfiedAt != nil {
			return fmt.Errorf("%w: trigger %d satisfied_at must be null", ErrValidation, i)
		}
	}
	for i, r := range l.Results {
		if r.DeviceID <= 0 || r.Data.Name == "" || r.Data.Action == "" {
			return fmt.Errorf("%w: result %d needs device_id and data.name/data.action", ErrValidation, i)
		}
	}
	if l.TTL != nil && l.TTL.Duration < 0 {
		return fmt.Errorf("%w: ttl must not be negative", ErrValidation)
	}
	return nil
}

// DeviceIDs lists every device the link references, triggers first
func (l *CommandsLink) DeviceIDs() []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, t := range l.Triggers {
		if !seen[t.DeviceID] {
			seen[t.DeviceID] = true
			ids = append(ids, t.DeviceID)
		}
	}
	for _, r := range l.Results {
		if !seen[r.DeviceID] {
			seen[r.DeviceID] = true
			ids = append(ids, r.DeviceID)
		}
	}
	return ids
}
