// Package telemetry writes command and link events to InfluxDB.
package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"homelink/internal/config"
	"homelink/internal/logging"
	"homelink/internal/models"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// PointWriter is the non-blocking write side of an InfluxDB client
type PointWriter interface {
	WritePoint(p *write.Point)
}

// Recorder turns queue and engine events into points. A nil *Recorder is a no-op.
type Recorder struct {
	writer PointWriter
	now    func() time.Time
}

// NewRecorder creates a recorder over an existing writer
func NewRecorder(w PointWriter) *Recorder {
	return &Recorder{writer: w, now: time.Now}
}

// Connect opens an InfluxDB client and returns a recorder plus a closer that
// flushes pending writes. It returns (nil, no-op, nil) when disabled.
func Connect(ctx context.Context, cfg config.InfluxConfig) (*Recorder, func(), error) {
	if !cfg.Enabled {
		return nil, func() {}, nil
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	ok, err := client.Ping(ctx)
	if err != nil || !ok {
		client.Close()
		if err == nil {
			err = fmt.Errorf("server not healthy")
		}
		return nil, nil, fmt.Errorf("influxdb ping %s: %w", cfg.URL, err)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	go drainErrors(writeAPI)

	closer := func() {
		writeAPI.Flush()
		client.Close()
	}
	return NewRecorder(writeAPI), closer, nil
}

func drainErrors(w api.WriteAPI) {
	log := logging.Component("telemetry")
	for err := range w.Errors() {
		log.Warn().Err(err).Msg("influx write failed")
	}
}

// RecordCommand writes a point for a command lifecycle event
func (r *Recorder) RecordCommand(event string, c *models.Command) {
	if r == nil || c == nil {
		return
	}
	r.writer.WritePoint(write.NewPoint(
		"commands",
		map[string]string{
			"event":     event,
			"device_id": strconv.FormatInt(c.DeviceID, 10),
			"component": c.Data.Name,
			"action":    c.Data.Action,
		},
		map[string]interface{}{
			"command_id": c.ID,
			"author_id":  c.AuthorID,
		},
		r.now(),
	))
}

// RecordLink writes a point for a link evaluation that changed state
func (r *Recorder) RecordLink(outcome models.LinkOutcome, l *models.CommandsLink) {
	if r == nil || l == nil {
		return
	}
	satisfied := 0
	for _, t := range l.Triggers {
		if t.SatisfiedAt != nil {
			satisfied++
		}
	}
	r.writer.WritePoint(write.NewPoint(
		"links",
		map[string]string{
			"outcome":  outcome.String(),
			"owner_id": strconv.FormatInt(l.OwnerID, 10),
		},
		map[string]interface{}{
			"link_id":   l.ID,
			"triggers":  len(l.Triggers),
			"satisfied": satisfied,
			"results":   len(l.Results),
		},
		r.now(),
	))
}
