package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"homelink/internal/logging"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler runs named housekeeping jobs on cron specs
type Scheduler struct {
	cron      *cron.Cron
	jobMap    map[string]cron.EntryID // job name -> cron entry
	jobMapMux sync.RWMutex
	log       zerolog.Logger
}

// NewScheduler creates a scheduler
func NewScheduler() *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		jobMap: make(map[string]cron.EntryID),
		log:    logging.Component("scheduler"),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", s.JobCount()).Msg("cron scheduler started")
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("cron scheduler stopped")
}

// AddJob schedules fn under name, replacing any job with the same name
func (s *Scheduler) AddJob(name, spec string, fn func()) error {
	s.RemoveJob(name)

	entryID, err := s.cron.AddFunc(spec, fn)
	if err != nil {
		return fmt.Errorf("schedule %s with cron %q: %w", name, spec, err)
	}

	s.jobMapMux.Lock()
	s.jobMap[name] = entryID
	s.jobMapMux.Unlock()

	s.log.Info().Str("job", name).Str("cron", spec).Int("entry_id", int(entryID)).Msg("job scheduled")
	return nil
}

// RemoveJob removes a job by name
func (s *Scheduler) RemoveJob(name string) {
	s.jobMapMux.Lock()
	defer s.jobMapMux.Unlock()

	if entryID, exists := s.jobMap[name]; exists {
		s.cron.Remove(entryID)
		delete(s.jobMap, name)
		s.log.Info().Str("job", name).Msg("job removed")
	}
}

// JobCount returns the number of scheduled jobs
func (s *Scheduler) JobCount() int {
	s.jobMapMux.RLock()
	defer s.jobMapMux.RUnlock()
	return len(s.jobMap)
}

// CommandPruner deletes executed commands older than a cutoff
type CommandPruner interface {
	PruneExecutedCommands(ctx context.Context, before time.Time) (int64, error)
}

// HistoryPruner trims executed command history
type HistoryPruner struct {
	store     CommandPruner
	retention time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewHistoryPruner creates a pruner keeping retention worth of history
func NewHistoryPruner(store CommandPruner, retention time.Duration) *HistoryPruner {
	return &HistoryPruner{store: store, retention: retention, now: time.Now, log: logging.Component("scheduler")}
}

// Run prunes once
func (p *HistoryPruner) Run(ctx context.Context) (int64, error) {
	n, err := p.store.PruneExecutedCommands(ctx, p.now().Add(-p.retention))
	if err != nil {
		p.log.Error().Err(err).Msg("history prune failed")
		return 0, err
	}
	p.log.Info().Int64("deleted", n).Dur("retention", p.retention).Msg("command history pruned")
	return n, nil
}

// SchedulePrune registers the pruner. A zero retention keeps history forever.
func (s *Scheduler) SchedulePrune(spec string, p *HistoryPruner) error {
	if p.retention <= 0 {
		s.log.Info().Msg("history retention disabled, not pruning")
		return nil
	}
	return s.AddJob("prune-command-history", spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		_, _ = p.Run(ctx)
	})
}
