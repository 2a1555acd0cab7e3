package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"homelink/internal/models"
)

// evaluate applies one event to one link as an optimistic read-modify-write.
// On a version conflict the link is reloaded and the event reapplied.
func (e *Engine) evaluate(ctx context.Context, l *models.CommandsLink, deviceID int64, p models.CommandPayload, at time.Time) error {
	for attempt := 0; ; attempt++ {
		i := l.PendingTriggerIndex(deviceID, p)
		if i < 0 {
			return nil
		}
		l.Satisfy(i, at)
		outcome := l.Check()
		if outcome != models.LinkPending {
			l.ResetTriggers()
		}

		version, err := e.store.UpdateLinkTriggers(ctx, l.ID, l.Triggers, l.StartedAt, l.Version)
		if err == nil {
			l.Version = version
			e.afterWrite(ctx, l, outcome)
			return nil
		}
		if !errors.Is(err, models.ErrConflict) {
			return fmt.Errorf("link %d: %w", l.ID, err)
		}
		if attempt >= e.maxRetries {
			return fmt.Errorf("link %d: gave up after %d attempts: %w", l.ID, attempt+1, err)
		}

		e.log.Debug().Int64("link_id", l.ID).Int("attempt", attempt+1).Msg("link modified concurrently, retrying")
		if err := sleepCtx(ctx, e.backoff*time.Duration(attempt+1)); err != nil {
			return err
		}
		fresh, err := e.store.GetLink(ctx, l.ID)
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reload link %d: %w", l.ID, err)
		}
		*l = *fresh
	}
}

func (e *Engine) afterWrite(ctx context.Context, l *models.CommandsLink, outcome models.LinkOutcome) {
	switch outcome {
	case models.LinkFire:
		e.log.Info().Int64("link_id", l.ID).Int("results", len(l.Results)).Msg("link fired")
		e.ExecuteResults(ctx, l)
	case models.LinkExpired:
		e.log.Info().Int64("link_id", l.ID).Msg("link window expired, triggers reset")
	default:
		e.log.Debug().Int64("link_id", l.ID).Msg("trigger satisfied")
	}
	if e.recorder != nil && outcome != models.LinkPending {
		e.recorder.RecordLink(outcome, l)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
