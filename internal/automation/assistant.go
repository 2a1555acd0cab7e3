package automation

import (
	"context"
	"errors"
	"fmt"

	"homelink/internal/logging"
	"homelink/internal/models"
	"homelink/internal/queue"

	"github.com/rs/zerolog"
)

// Devices is the registry view the assistant needs
type Devices interface {
	List(ctx context.Context, caller models.Caller, f models.DeviceFilter) ([]models.Device, error)
	UpdateCapabilities(ctx context.Context, caller models.Caller, id int64, schema models.CapabilitySchema) (*models.Device, error)
}

// Enqueuer accepts generated commands
type Enqueuer interface {
	Enqueue(ctx context.Context, caller models.Caller, req queue.EnqueueRequest) (*models.Command, error)
}

// Reply is what a prompt produced
type Reply struct {
	Text     string           `json:"text"`
	Commands []models.Command `json:"commands"`
}

// Assistant feeds Source output into the registry and command queue
type Assistant struct {
	source  Source
	devices Devices
	queue   Enqueuer
	log     zerolog.Logger
}

// NewAssistant creates an assistant
func NewAssistant(source Source, devices Devices, q Enqueuer) *Assistant {
	return &Assistant{source: source, devices: devices, queue: q, log: logging.Component("automation")}
}

// Prompt generates commands for prompt and enqueues them. Generation output is
// checked against the caller's catalog before anything is written.
func (a *Assistant) Prompt(ctx context.Context, caller models.Caller, prompt string) (*Reply, error) {
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", models.ErrValidation)
	}
	catalog, err := a.devices.List(ctx, caller, models.DeviceFilter{})
	if err != nil {
		return nil, err
	}

	gen, err := a.source.Generate(ctx, prompt, catalog)
	if err != nil {
		return nil, upstream(err)
	}
	if err := checkGeneration(gen, catalog); err != nil {
		return nil, err
	}

	if o := gen.CapabilityOverride; o != nil {
		if _, err := a.devices.UpdateCapabilities(ctx, caller, o.DeviceID, o.Data); err != nil {
			return nil, fmt.Errorf("apply capability override: %w", err)
		}
	}

	reply := &Reply{Text: gen.Text, Commands: make([]models.Command, 0, len(gen.Commands))}
	for _, gc := range gen.Commands {
		deviceID := gc.DeviceID
		c, err := a.queue.Enqueue(ctx, caller, queue.EnqueueRequest{
			DeviceID:       &deviceID,
			Data:           gc.Data,
			Description:    gc.Description,
			ScheduledAt:    gc.ScheduledAt,
			RepeatInterval: gc.RepeatInterval,
		})
		if err != nil {
			return nil, fmt.Errorf("enqueue generated command: %w", err)
		}
		reply.Commands = append(reply.Commands, *c)
	}

	a.log.Info().Int64("user_id", caller.OwnerID).Int("commands", len(reply.Commands)).Msg("prompt handled")
	return reply, nil
}

// SuggestLinks returns generated links for the caller's devices without storing them
func (a *Assistant) SuggestLinks(ctx context.Context, caller models.Caller) ([]models.CommandsLink, error) {
	catalog, err := a.devices.List(ctx, caller, models.DeviceFilter{})
	if err != nil {
		return nil, err
	}
	links, err := a.source.SuggestLinks(ctx, catalog)
	if err != nil {
		return nil, upstream(err)
	}

	visible := deviceSet(catalog)
	out := make([]models.CommandsLink, 0, len(links))
	for _, l := range links {
		if err := l.Validate(); err != nil {
			a.log.Debug().Err(err).Msg("dropping invalid suggestion")
			continue
		}
		if !allVisible(l.DeviceIDs(), visible) {
			continue
		}
		l.ID = 0
		l.OwnerID = caller.OwnerID
		l.StartedAt = nil
		out = append(out, l)
	}
	return out, nil
}

func checkGeneration(gen *Generation, catalog []models.Device) error {
	visible := deviceSet(catalog)
	for i, gc := range gen.Commands {
		if _, ok := visible[gc.DeviceID]; !ok {
			return fmt.Errorf("%w: command %d targets unknown device %d", models.ErrUpstreamGeneration, i, gc.DeviceID)
		}
		if gc.Data.Name == "" || gc.Data.Action == "" {
			return fmt.Errorf("%w: command %d has an empty payload", models.ErrUpstreamGeneration, i)
		}
	}
	if o := gen.CapabilityOverride; o != nil {
		if _, ok := visible[o.DeviceID]; !ok {
			return fmt.Errorf("%w: capability override targets unknown device %d", models.ErrUpstreamGeneration, o.DeviceID)
		}
	}
	return nil
}

func upstream(err error) error {
	if errors.Is(err, models.ErrUpstreamGeneration) {
		return err
	}
	return fmt.Errorf("%w: %v", models.ErrUpstreamGeneration, err)
}

func deviceSet(devices []models.Device) map[int64]struct{} {
	set := make(map[int64]struct{}, len(devices))
	for _, d := range devices {
		set[d.ID] = struct{}{}
	}
	return set
}

func allVisible(ids []int64, visible map[int64]struct{}) bool {
	for _, id := range ids {
		if _, ok := visible[id]; !ok {
			return false
		}
	}
	return true
}
