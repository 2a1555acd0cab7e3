package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"homelink/internal/logging"
	"homelink/internal/models"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

func logger() *zerolog.Logger {
	l := logging.Component("taskqueue")
	return &l
}

// LinkResolver evaluates a single link against an event
type LinkResolver interface {
	ResolveLink(ctx context.Context, linkID, deviceID int64, p models.CommandPayload, at time.Time) error
}

// Worker processes deferred tasks
type Worker struct {
	srv *asynq.Server
	mux *asynq.ServeMux
}

// NewWorker creates a worker pool bound to Redis at redisAddr
func NewWorker(redisAddr string, concurrency int, resolver LinkResolver) *Worker {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeLinkResolve, HandleLinkResolve(resolver))
	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{Concurrency: concurrency})
	return &Worker{srv: srv, mux: mux}
}

// Start starts processing in the background
func (w *Worker) Start() error {
	logger().Info().Msg("starting workers")
	return w.srv.Start(w.mux)
}

// Stop waits for in-flight tasks and stops
func (w *Worker) Stop() {
	logger().Info().Msg("stopping workers")
	w.srv.Shutdown()
}

// HandleLinkResolve returns the link:resolve handler
func HandleLinkResolve(resolver LinkResolver) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p LinkResolvePayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("decode %s payload: %v: %w", TypeLinkResolve, err, asynq.SkipRetry)
		}
		logger().Debug().Int64("link_id", p.LinkID).Int64("device_id", p.DeviceID).Msg("resolving deferred link")
		if err := resolver.ResolveLink(ctx, p.LinkID, p.DeviceID, p.Payload, p.At); err != nil {
			logger().Warn().Err(err).Int64("link_id", p.LinkID).Msg("deferred link evaluation failed")
			return err
		}
		return nil
	}
}
