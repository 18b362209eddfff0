package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"plancal/internal/window"
)

// ErrSyncInFlight is returned when a reconciliation is requested while one is
// already running. The isSyncing flag is advisory, not a lock; that is
// acceptable because reconciliation is idempotent.
var ErrSyncInFlight = errors.New("a sync cycle is already in flight")

// DefaultInterval is the periodic reconciliation cadence, which doubles as
// the staleness threshold for the sync-on-mount check.
const DefaultInterval = 5 * time.Minute

// Status is the process-scoped sync state read by the UI.
type Status struct {
	Syncing      bool       `json:"isSyncing"`
	LastSyncedAt *time.Time `json:"lastSyncedAt"`
	Connected    bool       `json:"connected"`
}

// Scheduler drives when reconciliation runs: on mount (debounced), on a
// periodic tick while the provider is connected, and on manual trigger. It
// owns the sync state and enforces at most one reconciliation in flight.
type Scheduler struct {
	logger     *slog.Logger
	reconciler *Reconciler
	// windowFn yields the currently active window so each scheduled run sees
	// current state instead of a value captured at construction.
	windowFn func() window.Range
	interval time.Duration

	mu         sync.Mutex
	timer      *cron.Cron
	syncing    bool
	lastSynced time.Time
	connected  bool
	baseCtx    context.Context
}

// NewScheduler creates a Scheduler. interval <= 0 falls back to
// DefaultInterval.
func NewScheduler(logger *slog.Logger, rec *Reconciler, windowFn func() window.Range, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		logger:     logger,
		reconciler: rec,
		windowFn:   windowFn,
		interval:   interval,
		connected:  rec.Connected(),
		baseCtx:    context.Background(),
	}
}

// Start is the mount hook: it starts the periodic timer and, when the last
// successful sync is stale (or has never happened), kicks off an immediate
// cycle. ctx bounds every run the scheduler starts on its own.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.baseCtx = ctx
	connected := s.connected
	stale := s.lastSynced.IsZero() || time.Since(s.lastSynced) >= s.interval
	s.mu.Unlock()

	if !connected {
		return
	}
	s.startTimer()
	if stale {
		if err := s.SyncNow(ctx); err != nil && !errors.Is(err, ErrSyncInFlight) {
			s.logger.Warn("sync on mount failed", "error", err)
		}
	}
}

// Stop is the unmount hook: it cancels the periodic timer so no orphaned
// tick can run against a torn-down view.
func (s *Scheduler) Stop() {
	s.stopTimer()
}

// SetConnected records provider connectivity. Disconnecting cancels the
// timer; reconnecting restarts it.
func (s *Scheduler) SetConnected(connected bool) {
	s.mu.Lock()
	was := s.connected
	s.connected = connected
	s.mu.Unlock()
	if was == connected {
		return
	}
	if connected {
		s.startTimer()
	} else {
		s.stopTimer()
	}
}

// SyncNow runs one reconciliation immediately. It returns ErrSyncInFlight if
// a cycle is already running.
func (s *Scheduler) SyncNow(ctx context.Context) error {
	s.mu.Lock()
	if s.syncing {
		s.mu.Unlock()
		return ErrSyncInFlight
	}
	s.syncing = true
	s.mu.Unlock()

	err := s.reconciler.Sync(ctx, s.windowFn())

	s.mu.Lock()
	s.syncing = false
	if err == nil {
		s.lastSynced = time.Now()
	}
	s.mu.Unlock()
	return err
}

// Status returns a snapshot of the sync state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{Syncing: s.syncing, Connected: s.connected}
	if !s.lastSynced.IsZero() {
		last := s.lastSynced
		st.LastSyncedAt = &last
	}
	return st
}

func (s *Scheduler) startTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		return
	}
	c := cron.New()
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := c.AddFunc(spec, s.tick); err != nil {
		s.logger.Error("failed to schedule periodic sync", "spec", spec, "error", err)
		return
	}
	c.Start()
	s.timer = c
	s.logger.Debug("periodic sync started", "interval", s.interval)
}

func (s *Scheduler) stopTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil {
		return
	}
	s.timer.Stop()
	s.timer = nil
	s.logger.Debug("periodic sync cancelled")
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	connected := s.connected
	ctx := s.baseCtx
	s.mu.Unlock()
	if !connected {
		return
	}
	if err := s.SyncNow(ctx); err != nil {
		if errors.Is(err, ErrSyncInFlight) {
			s.logger.Debug("tick skipped, sync already running")
			return
		}
		s.logger.Warn("periodic sync failed", "error", err)
	}
}

// timerActive is used by tests to observe cancellation.
func (s *Scheduler) timerActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}
