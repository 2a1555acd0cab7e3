package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"homelink/internal/models"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TypeLinkResolve re-runs trigger evaluation of one link for one event
const TypeLinkResolve = "link:resolve"

// LinkResolvePayload carries the original event so the retry uses its time
type LinkResolvePayload struct {
	LinkID   int64                 `json:"link_id"`
	DeviceID int64                 `json:"device_id"`
	Payload  models.CommandPayload `json:"payload"`
	At       time.Time             `json:"at"`
}

// NewLinkResolveTask builds a link:resolve task
func NewLinkResolveTask(p LinkResolvePayload) (*asynq.Task, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeLinkResolve, data,
		asynq.MaxRetry(5),
		asynq.Timeout(10*time.Second),
		asynq.TaskID(uuid.NewString()),
	), nil
}

// enqueuer is the subset of *asynq.Client the client needs
type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client hands deferred link evaluations to the worker pool
type Client struct {
	asynq enqueuer
	delay time.Duration
}

// NewClient connects to Redis at redisAddr
func NewClient(redisAddr string, delay time.Duration) *Client {
	return &Client{asynq: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr}), delay: delay}
}

// DeferLinkResolve enqueues a link:resolve task
func (c *Client) DeferLinkResolve(ctx context.Context, linkID, deviceID int64, p models.CommandPayload, at time.Time) error {
	task, err := NewLinkResolveTask(LinkResolvePayload{LinkID: linkID, DeviceID: deviceID, Payload: p, At: at})
	if err != nil {
		return err
	}
	info, err := c.asynq.EnqueueContext(ctx, task, asynq.ProcessIn(c.delay))
	if err != nil {
		return fmt.Errorf("enqueue %s for link %d: %w", TypeLinkResolve, linkID, err)
	}
	logger().Info().Str("task_id", info.ID).Int64("link_id", linkID).Msg("deferred link evaluation")
	return nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.asynq.Close()
}
