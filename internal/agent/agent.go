// Package agent bridges a serial-attached microcontroller to the command queue.
//
// Wire format, one JSON object per line:
//
//	host -> device: {"id": 12, "name": "LED", "action": "on"}
//	device -> host: {"ack": 12} or {"ack": 12, "error": "unknown action"}
//	device -> host: {"event": {"name": "Button", "action": "pressed"}}
package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"homelink/internal/logging"
	"homelink/internal/models"

	"github.com/rs/zerolog"
)

// API is the part of the command API the agent uses
type API interface {
	Poll(ctx context.Context, timeout time.Duration) ([]models.Command, error)
	Complete(ctx context.Context, id int64, cancel bool) error
	Report(ctx context.Context, p models.CommandPayload) error
}

type outbound struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Action string `json:"action"`
}

type inbound struct {
	Ack   *int64                 `json:"ack,omitempty"`
	Error string                 `json:"error,omitempty"`
	Event *models.CommandPayload `json:"event,omitempty"`
}

type Config struct {
	PollTimeout time.Duration
	AckTimeout  time.Duration
	RetryDelay  time.Duration
}

// Agent forwards polled commands over a serial line and acknowledges them
type Agent struct {
	api  API
	port io.ReadWriter
	cfg  Config
	log  zerolog.Logger

	writeMu sync.Mutex
	acksMu  sync.Mutex
	acks    map[int64]chan string
}

func New(api API, port io.ReadWriter, cfg Config) *Agent {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 60 * time.Second
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = 5 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	return &Agent{
		api:  api,
		port: port,
		cfg:  cfg,
		log:  logging.Component("agent"),
		acks: map[int64]chan string{},
	}
}

// Run polls until ctx is cancelled or the serial line fails
func (a *Agent) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	readErr := make(chan error, 1)
	go func() {
		readErr <- a.readLoop(ctx)
		cancel()
	}()

	for ctx.Err() == nil {
		cmds, err := a.api.Poll(ctx, a.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			a.log.Warn().Err(err).Msg("poll failed")
			sleep(ctx, a.cfg.RetryDelay)
			continue
		}
		for _, c := range cmds {
			a.execute(ctx, c)
		}
	}

	select {
	case err := <-readErr:
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
	default:
	}
	return nil
}

// execute delivers one command. Commands without an ack stay pending and are retried on the next poll.
func (a *Agent) execute(ctx context.Context, c models.Command) {
	ack := make(chan string, 1)
	a.acksMu.Lock()
	a.acks[c.ID] = ack
	a.acksMu.Unlock()
	defer func() {
		a.acksMu.Lock()
		delete(a.acks, c.ID)
		a.acksMu.Unlock()
	}()

	if err := a.writeLine(outbound{ID: c.ID, Name: c.Data.Name, Action: c.Data.Action}); err != nil {
		a.log.Error().Err(err).Int64("command_id", c.ID).Msg("serial write failed")
		return
	}

	timer := time.NewTimer(a.cfg.AckTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
		a.log.Warn().Int64("command_id", c.ID).Msg("no ack from device")
		return
	case errMsg := <-ack:
		rejected := errMsg != ""
		if rejected {
			a.log.Warn().Int64("command_id", c.ID).Str("error", errMsg).Msg("device rejected command")
		}
		if err := a.api.Complete(ctx, c.ID, rejected); err != nil {
			a.log.Error().Err(err).Int64("command_id", c.ID).Msg("failed to acknowledge command")
		}
	}
}

func (a *Agent) readLoop(ctx context.Context) error {
	scanner := bufio.NewScanner(a.port)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg inbound
		if err := json.Unmarshal(line, &msg); err != nil {
			a.log.Debug().Str("line", string(line)).Msg("ignoring serial noise")
			continue
		}
		switch {
		case msg.Ack != nil:
			a.acksMu.Lock()
			ch, ok := a.acks[*msg.Ack]
			a.acksMu.Unlock()
			if ok {
				select {
				case ch <- msg.Error:
				default:
				}
			}
		case msg.Event != nil:
			if err := a.api.Report(ctx, *msg.Event); err != nil {
				a.log.Warn().Err(err).Str("component_name", msg.Event.Name).Msg("failed to report event")
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}

func (a *Agent) writeLine(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	_, err = a.port.Write(append(b, '\n'))
	return err
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
