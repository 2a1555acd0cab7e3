package models

import "time"

// User represents a human or device login account
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsDevice bool   `json:"is_device"`
	OwnerID  *int64 `json:"owner_id,omitempty"` // set for device accounts
}

// Space represents a shared room or group of users
type Space struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	OwnerID     int64     `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Device represents a registered remote actuator or sensor
type Device struct {
	ID           int64            `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description,omitempty"`
	Capabilities CapabilitySchema `json:"data"`
	OwnerID      int64            `json:"owner_id"`
	AccountID    *int64           `json:"account_id,omitempty"`
	SpaceID      *int64           `json:"space_id,omitempty"`
	AddedAt      time.Time        `json:"added_at"`
}

// CommandPayload is the {component, action} pair a command asks a device to perform
type CommandPayload struct {
	Name   string `json:"name"`
	Action string `json:"action"`
}

// Command represents a single requested action directed at a device
type Command struct {
	ID             int64          `json:"id"`
	AuthorID       int64          `json:"author_id"`
	DeviceID       int64          `json:"device_id"`
	Data           CommandPayload `json:"data"`
	Description    string         `json:"description,omitempty"`
	ScheduledAt    *time.Time     `json:"scheduled_at"`
	RepeatInterval *Duration      `json:"repeat_interval"`
	SelfExecute    bool           `json:"self_execute"`
	Executed       bool           `json:"executed"`
	CreatedAt      time.Time      `json:"created_at"`
}

// NextScheduledAt returns the first occurrence of a recurring command strictly after now.
// ok is false for commands that do not repeat.
func (c *Command) NextScheduledAt(now time.Time) (next time.Time, ok bool) {
	if c.ScheduledAt == nil || c.RepeatInterval == nil || c.RepeatInterval.Duration <= 0 {
		return time.Time{}, false
	}
	interval := c.RepeatInterval.Duration
	next = c.ScheduledAt.Add(interval)
	if next.After(now) {
		return next, true
	}
	steps := now.Sub(next)/interval + 1
	return next.Add(steps * interval), true
}

// CommandFilter selects commands for pending and history views
type CommandFilter struct {
	DeviceIDs  []int64
	IncludeAll bool      // bypass the executed and lookahead filters; self-executing commands stay hidden
	DueBefore  time.Time // scheduled_at must be null or not after this instant
}

// Matches reports whether c passes the filter
func (f CommandFilter) Matches(c *Command) bool {
	found := false
	for _, id := range f.DeviceIDs {
		if id == c.DeviceID {
			found = true
			break
		}
	}
	if !found || c.SelfExecute {
		return false
	}
	if f.IncludeAll {
		return true
	}
	if c.Executed {
		return false
	}
	return c.ScheduledAt == nil || !c.ScheduledAt.After(f.DueBefore)
}

// DeviceFilter narrows registry listings
type DeviceFilter struct {
	SpaceID   *int64
	Spaceless bool
}
