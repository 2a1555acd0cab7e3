package engine

import (
	"context"
	"fmt"

	"homelink/internal/models"
	"homelink/internal/queue"
)

// ExecuteResults enqueues every result of a fired link as a normal command,
// authored by the owner of the result device. Failures are logged per result;
// the trigger reset is already persisted and is not rolled back.
func (e *Engine) ExecuteResults(ctx context.Context, l *models.CommandsLink) {
	for _, r := range l.Results {
		dev, err := e.store.GetDevice(ctx, r.DeviceID)
		if err != nil {
			e.log.Error().Err(err).Int64("link_id", l.ID).Int64("device_id", r.DeviceID).Msg("result device lookup failed")
			continue
		}
		deviceID := dev.ID
		_, err = e.enqueuer.Enqueue(ctx, models.HumanCaller(dev.OwnerID), queue.EnqueueRequest{
			DeviceID:    &deviceID,
			Data:        r.Data,
			Description: fmt.Sprintf("link %d", l.ID),
		})
		if err != nil {
			e.log.Error().Err(err).Int64("link_id", l.ID).Int64("device_id", r.DeviceID).Msg("failed to enqueue link result")
		}
	}
}
