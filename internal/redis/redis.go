package redis

import (
	"context"
	"fmt"
	"strconv"

	"homelink/internal/logging"
	"homelink/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NewRedisClient creates a Redis client and checks the connection
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	c := redis.NewClient(&redis.Options{Addr: addr})
	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return c, nil
}

// ChannelFor names the pub/sub channel carrying wake hints for a device
func ChannelFor(deviceID int64) string {
	return "commands:device:" + strconv.FormatInt(deviceID, 10)
}

// Wake publishes a hint whenever a command is queued and lets long polls
// subscribe to those hints
type Wake struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewWake creates a wake hub over client
func NewWake(client *redis.Client) *Wake {
	return &Wake{client: client, log: logging.Component("redis")}
}

// CommandQueued publishes the new command id on the device channel
func (w *Wake) CommandQueued(ctx context.Context, c *models.Command) {
	if err := w.client.Publish(ctx, ChannelFor(c.DeviceID), c.ID).Err(); err != nil {
		w.log.Warn().Err(err).Int64("device_id", c.DeviceID).Msg("failed to publish wake hint")
	}
}

// Subscribe returns a channel that receives a value whenever any of the devices
// gets a new command. stop releases the subscription.
func (w *Wake) Subscribe(ctx context.Context, deviceIDs []int64) (<-chan struct{}, func(), error) {
	channels := make([]string, len(deviceIDs))
	for i, id := range deviceIDs {
		channels[i] = ChannelFor(id)
	}

	pubsub := w.client.Subscribe(ctx, channels...)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe wake hints: %w", err)
	}

	out := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		msgs := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	stop := func() {
		close(done)
		pubsub.Close()
	}
	return out, stop, nil
}
