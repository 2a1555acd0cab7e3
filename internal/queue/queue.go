// Package queue holds per-device pending commands and serves them to polling devices.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"homelink/internal/config"
	"homelink/internal/logging"
	"homelink/internal/models"

	"github.com/rs/zerolog"
)

// Store is the command persistence the queue needs
type Store interface {
	CreateCommand(ctx context.Context, c *models.Command) error
	GetCommand(ctx context.Context, id int64) (*models.Command, error)
	ListCommands(ctx context.Context, f models.CommandFilter) ([]models.Command, error)
	MarkCommandExecuted(ctx context.Context, id int64) (bool, error)
	DeleteCommand(ctx context.Context, id int64) error
}

// Devices resolves which devices a caller may address
type Devices interface {
	Get(ctx context.Context, caller models.Caller, id int64) (*models.Device, error)
	List(ctx context.Context, caller models.Caller, f models.DeviceFilter) ([]models.Device, error)
	DeviceForAccount(ctx context.Context, accountID int64) (*models.Device, error)
	AccountDevices(ctx context.Context, accountID int64) ([]models.Device, error)
}

// Resolver is told about every resolved command
type Resolver interface {
	OnCommandResolved(ctx context.Context, deviceID int64, p models.CommandPayload, at time.Time) error
}

// Notifier is told about every newly queued command
type Notifier interface {
	CommandQueued(ctx context.Context, c *models.Command)
}

// WakeSource delivers hints that new commands may exist for some devices
type WakeSource interface {
	Subscribe(ctx context.Context, deviceIDs []int64) (<-chan struct{}, func(), error)
}

// Recorder receives command lifecycle events
type Recorder interface {
	RecordCommand(event string, c *models.Command)
}

// EnqueueRequest describes a new command
type EnqueueRequest struct {
	DeviceID       *int64
	Data           models.CommandPayload
	Description    string
	ScheduledAt    *time.Time
	RepeatInterval *models.Duration
	SelfExecute    bool
}

// Queue is the command queue
type Queue struct {
	store   Store
	devices Devices
	cfg     config.QueueConfig

	resolver  Resolver
	notifiers []Notifier
	wake      WakeSource
	recorder  Recorder

	locks sync.Map // device id -> *sync.Mutex
	now   func() time.Time
	log   zerolog.Logger
}

// NewQueue creates a queue
func NewQueue(store Store, devices Devices, cfg config.QueueConfig) *Queue {
	return &Queue{
		store:   store,
		devices: devices,
		cfg:     cfg,
		now:     time.Now,
		log:     logging.Component("queue"),
	}
}

// SetResolver wires the trigger engine
func (q *Queue) SetResolver(r Resolver) { q.resolver = r }

// AddNotifier registers a hint publisher for new commands
func (q *Queue) AddNotifier(n Notifier) { q.notifiers = append(q.notifiers, n) }

// SetWakeSource lets long polls wake before the next tick
func (q *Queue) SetWakeSource(w WakeSource) { q.wake = w }

// SetRecorder wires command telemetry
func (q *Queue) SetRecorder(r Recorder) { q.recorder = r }

// SetClock overrides the time source
func (q *Queue) SetClock(now func() time.Time) { q.now = now }

// Enqueue validates and stores a command. Self-executing commands are resolved
// immediately and never become pending.
func (q *Queue) Enqueue(ctx context.Context, caller models.Caller, req EnqueueRequest) (*models.Command, error) {
	if req.Data.Name == "" || req.Data.Action == "" {
		return nil, fmt.Errorf("%w: data.name and data.action are required", models.ErrValidation)
	}
	if req.RepeatInterval != nil {
		if req.ScheduledAt == nil {
			return nil, fmt.Errorf("%w: repeat_interval needs scheduled_at", models.ErrValidation)
		}
		if req.RepeatInterval.Duration <= 0 {
			return nil, fmt.Errorf("%w: repeat_interval must be positive", models.ErrValidation)
		}
	}

	dev, err := q.targetDevice(ctx, caller, req.DeviceID)
	if err != nil {
		return nil, err
	}
	if !dev.Capabilities.Supports(req.Data) {
		q.log.Warn().
			Int64("device_id", dev.ID).
			Str("component_name", req.Data.Name).
			Str("action", req.Data.Action).
			Msg("command not declared in device capabilities")
	}

	c := &models.Command{
		AuthorID:       caller.ID,
		DeviceID:       dev.ID,
		Data:           req.Data,
		Description:    req.Description,
		ScheduledAt:    req.ScheduledAt,
		RepeatInterval: req.RepeatInterval,
		SelfExecute:    req.SelfExecute,
		Executed:       req.SelfExecute,
	}

	if !req.SelfExecute {
		if err := q.store.CreateCommand(ctx, c); err != nil {
			return nil, err
		}
		q.record("enqueued", c)
		for _, n := range q.notifiers {
			n.CommandQueued(ctx, c)
		}
		return c, nil
	}

	unlock := q.lockDevice(dev.ID)
	defer unlock()
	if err := q.store.CreateCommand(ctx, c); err != nil {
		return nil, err
	}
	q.record("self_executed", c)
	q.resolve(ctx, c.DeviceID, c.Data)
	return c, nil
}

// ListPending returns the caller's pending commands. includeAll also returns
// executed commands and commands scheduled beyond the lookahead window.
func (q *Queue) ListPending(ctx context.Context, caller models.Caller, includeAll bool) ([]models.Command, error) {
	ids, err := q.callerDeviceIDs(ctx, caller)
	if err != nil {
		return nil, err
	}
	return q.list(ctx, ids, includeAll)
}

func (q *Queue) list(ctx context.Context, deviceIDs []int64, includeAll bool) ([]models.Command, error) {
	if len(deviceIDs) == 0 {
		return []models.Command{}, nil
	}
	cmds, err := q.store.ListCommands(ctx, models.CommandFilter{
		DeviceIDs:  deviceIDs,
		IncludeAll: includeAll,
		DueBefore:  q.now().Add(q.cfg.Lookahead),
	})
	if err != nil {
		return nil, err
	}
	if cmds == nil {
		cmds = []models.Command{}
	}
	return cmds, nil
}

// Complete resolves a command. With cancel it is deleted without side effects.
// Otherwise it is marked executed, its next occurrence is queued if it repeats,
// and the trigger engine is invoked before returning. Trigger failures are logged
// and never reported to the caller.
func (q *Queue) Complete(ctx context.Context, caller models.Caller, id int64, cancel bool) error {
	c, err := q.store.GetCommand(ctx, id)
	if err != nil {
		return err
	}
	if err := q.authorize(ctx, caller, c); err != nil {
		return err
	}

	if cancel {
		if err := q.store.DeleteCommand(ctx, id); err != nil {
			return err
		}
		q.record("cancelled", c)
		return nil
	}

	unlock := q.lockDevice(c.DeviceID)
	defer unlock()

	changed, err := q.store.MarkCommandExecuted(ctx, id)
	if err != nil {
		return err
	}
	if !changed {
		q.log.Debug().Int64("command_id", id).Msg("command already executed")
		return nil
	}
	c.Executed = true
	q.record("executed", c)

	q.scheduleNext(ctx, c)
	q.resolve(ctx, c.DeviceID, c.Data)
	return nil
}

func (q *Queue) scheduleNext(ctx context.Context, c *models.Command) {
	next, ok := c.NextScheduledAt(q.now())
	if !ok {
		return
	}
	repeat := &models.Command{
		AuthorID:       c.AuthorID,
		DeviceID:       c.DeviceID,
		Data:           c.Data,
		Description:    c.Description,
		ScheduledAt:    &next,
		RepeatInterval: c.RepeatInterval,
	}
	if err := q.store.CreateCommand(ctx, repeat); err != nil {
		q.log.Error().Err(err).Int64("command_id", c.ID).Msg("failed to queue next occurrence")
		return
	}
	q.record("enqueued", repeat)
	for _, n := range q.notifiers {
		n.CommandQueued(ctx, repeat)
	}
}

func (q *Queue) resolve(ctx context.Context, deviceID int64, p models.CommandPayload) {
	if q.resolver == nil {
		return
	}
	if err := q.resolver.OnCommandResolved(ctx, deviceID, p, q.now()); err != nil {
		q.log.Error().Err(err).
			Int64("device_id", deviceID).
			Str("component_name", p.Name).
			Str("action", p.Action).
			Msg("trigger evaluation failed")
	}
}

func (q *Queue) record(event string, c *models.Command) {
	if q.recorder != nil {
		q.recorder.RecordCommand(event, c)
	}
}

// targetDevice resolves the command target; device callers may omit it
func (q *Queue) targetDevice(ctx context.Context, caller models.Caller, id *int64) (*models.Device, error) {
	if id == nil {
		if !caller.IsDevice() {
			return nil, fmt.Errorf("%w: device_id is required", models.ErrValidation)
		}
		return q.devices.DeviceForAccount(ctx, caller.ID)
	}
	return q.devices.Get(ctx, caller, *id)
}

func (q *Queue) callerDeviceIDs(ctx context.Context, caller models.Caller) ([]int64, error) {
	var devices []models.Device
	var err error
	if caller.IsDevice() {
		devices, err = q.devices.AccountDevices(ctx, caller.ID)
	} else {
		devices, err = q.devices.List(ctx, caller, models.DeviceFilter{})
	}
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(devices))
	for i, d := range devices {
		ids[i] = d.ID
	}
	return ids, nil
}

// authorize hides commands outside the caller's device set
func (q *Queue) authorize(ctx context.Context, caller models.Caller, c *models.Command) error {
	ids, err := q.callerDeviceIDs(ctx, caller)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == c.DeviceID {
			return nil
		}
	}
	return fmt.Errorf("command %d: %w", c.ID, models.ErrNotFound)
}

func (q *Queue) lockDevice(id int64) func() {
	v, _ := q.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
