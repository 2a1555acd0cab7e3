// Package engine evaluates CommandsLink triggers against resolved commands.
package engine

import (
	"context"
	"errors"
	"time"

	"homelink/internal/config"
	"homelink/internal/logging"
	"homelink/internal/models"
	"homelink/internal/queue"

	"github.com/rs/zerolog"
)

// Store is the link and device persistence the engine needs
type Store interface {
	FindLinksWithPendingTrigger(ctx context.Context, deviceID int64, p models.CommandPayload) ([]models.CommandsLink, error)
	GetLink(ctx context.Context, id int64) (*models.CommandsLink, error)
	UpdateLinkTriggers(ctx context.Context, id int64, triggers []models.Trigger, startedAt *time.Time, expected int64) (int64, error)
	GetDevice(ctx context.Context, id int64) (*models.Device, error)
}

// Enqueuer accepts the result commands of a fired link
type Enqueuer interface {
	Enqueue(ctx context.Context, caller models.Caller, req queue.EnqueueRequest) (*models.Command, error)
}

// Deferrer schedules a later evaluation of one link when in-process retries are exhausted
type Deferrer interface {
	DeferLinkResolve(ctx context.Context, linkID, deviceID int64, p models.CommandPayload, at time.Time) error
}

// Recorder receives link outcomes
type Recorder interface {
	RecordLink(outcome models.LinkOutcome, l *models.CommandsLink)
}

// Engine is the trigger engine
type Engine struct {
	store    Store
	enqueuer Enqueuer
	deferrer Deferrer
	recorder Recorder

	maxRetries int
	backoff    time.Duration
	log        zerolog.Logger
}

// NewEngine creates a new engine instance
func NewEngine(store Store, enqueuer Enqueuer, cfg config.EngineConfig) *Engine {
	return &Engine{
		store:      store,
		enqueuer:   enqueuer,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
		log:        logging.Component("engine"),
	}
}

// SetDeferrer wires the deferred retry queue
func (e *Engine) SetDeferrer(d Deferrer) { e.deferrer = d }

// SetRecorder wires link telemetry
func (e *Engine) SetRecorder(r Recorder) { e.recorder = r }

// OnCommandResolved satisfies the first matching unsatisfied trigger of every link
// waiting on this event and fires links whose triggers all landed inside the ttl.
// Links whose state could not be written are deferred when possible and reported otherwise.
func (e *Engine) OnCommandResolved(ctx context.Context, deviceID int64, p models.CommandPayload, at time.Time) error {
	links, err := e.store.FindLinksWithPendingTrigger(ctx, deviceID, p)
	if err != nil {
		return err
	}

	var errs []error
	for i := range links {
		l := &links[i]
		if err := e.evaluate(ctx, l, deviceID, p, at); err != nil {
			if e.deferrer == nil {
				errs = append(errs, err)
				continue
			}
			e.log.Warn().Err(err).Int64("link_id", l.ID).Msg("deferring link evaluation")
			if derr := e.deferrer.DeferLinkResolve(ctx, l.ID, deviceID, p, at); derr != nil {
				errs = append(errs, errors.Join(err, derr))
			}
		}
	}
	return errors.Join(errs...)
}

// ResolveLink evaluates a single link against an event. Used by deferred retries.
func (e *Engine) ResolveLink(ctx context.Context, linkID, deviceID int64, p models.CommandPayload, at time.Time) error {
	l, err := e.store.GetLink(ctx, linkID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return e.evaluate(ctx, l, deviceID, p, at)
}
