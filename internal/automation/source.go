// Package automation turns natural-language prompts into queued commands and
// suggested links through an external generator.
package automation

import (
	"context"
	"time"

	"homelink/internal/models"
)

// GeneratedCommand is one command proposed by a Source
type GeneratedCommand struct {
	DeviceID       int64                 `json:"device_id"`
	Data           models.CommandPayload `json:"data"`
	Description    string                `json:"description,omitempty"`
	ScheduledAt    *time.Time            `json:"scheduled_at,omitempty"`
	RepeatInterval *models.Duration      `json:"repeat_interval,omitempty"`
}

// CapabilityOverride replaces the capability schema of one device
type CapabilityOverride struct {
	DeviceID int64                   `json:"device_id"`
	Data     models.CapabilitySchema `json:"data"`
}

// Generation is the parsed output of a Source
type Generation struct {
	Text               string              `json:"text"`
	Commands           []GeneratedCommand  `json:"commands"`
	CapabilityOverride *CapabilityOverride `json:"capability_override,omitempty"`
}

// Source generates commands and links from a prompt and the caller's device catalog.
// Implementations return errors wrapping models.ErrUpstreamGeneration.
type Source interface {
	Generate(ctx context.Context, prompt string, catalog []models.Device) (*Generation, error)
	SuggestLinks(ctx context.Context, catalog []models.Device) ([]models.CommandsLink, error)
}
