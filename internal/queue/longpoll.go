package queue

import (
	"context"
	"time"

	"homelink/internal/models"
)

// LongPoll re-evaluates the caller's pending commands every poll interval until
// something is pending or the timeout passes. On timeout it returns an empty list.
// A wake hint only shortens the wait; the store stays authoritative.
func (q *Queue) LongPoll(ctx context.Context, caller models.Caller, timeout time.Duration) ([]models.Command, error) {
	if timeout <= 0 {
		timeout = q.cfg.DefaultPollTimeout
	}
	if timeout > q.cfg.MaxPollTimeout {
		timeout = q.cfg.MaxPollTimeout
	}

	ids, err := q.callerDeviceIDs(ctx, caller)
	if err != nil {
		return nil, err
	}

	cmds, err := q.list(ctx, ids, false)
	if err != nil || len(cmds) > 0 {
		return cmds, err
	}

	var wake <-chan struct{}
	if q.wake != nil && len(ids) > 0 {
		ch, stop, err := q.wake.Subscribe(ctx, ids)
		if err != nil {
			q.log.Warn().Err(err).Msg("wake subscription failed, polling only")
		} else {
			wake = ch
			defer stop()
		}
	}

	ticker := time.NewTicker(q.cfg.PollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return []models.Command{}, ctx.Err()
		case <-deadline.C:
			return q.list(ctx, ids, false)
		case <-ticker.C:
		case <-wake:
		}
		cmds, err := q.list(ctx, ids, false)
		if err != nil || len(cmds) > 0 {
			return cmds, err
		}
	}
}
