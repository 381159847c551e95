// Package scheduler advances each hackathon's workflow stage as wall-clock
// time crosses its round deadlines, and fires notifications on each
// transition. Stages only move forward, and only while the hackathon is
// upcoming or active.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hackdash/apiserver/types"
	"go.uber.org/zap"
)

// ErrTickInProgress is returned when a tick is requested while a previous
// tick is still executing. The new tick is skipped entirely, never queued.
var ErrTickInProgress = errors.New("scheduler tick already in progress")

// HackathonStore is the persistence surface the scheduler depends on.
// AdvanceStage must be an atomic compare-and-set write.
type HackathonStore interface {
	ListSchedulable(ctx context.Context) ([]types.Hackathon, error)
	AdvanceStage(ctx context.Context, id int, from, to types.Stage) error
}

// Dispatcher delivers a batch of stage-transition notifications. Failures
// are per-recipient and informational; the scheduler never rolls back a
// stage change because a notification failed.
type Dispatcher interface {
	Dispatch(ctx context.Context, batch []types.StageTransition) types.DispatchReport
}

// Scheduler recomputes hackathon stages on a fixed interval.
type Scheduler struct {
	store      HackathonStore
	dispatcher Dispatcher
	interval   time.Duration
	logger     *zap.Logger
	now        func() time.Time

	// tickMu is the re-entrancy guard: held for the full duration of a
	// tick so overlapping ticks are impossible.
	tickMu sync.Mutex

	statusMu     sync.Mutex
	lastRun      *types.TickResult
	running      bool
	skippedTicks atomic.Int64
}

func New(store HackathonStore, dispatcher Dispatcher, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 3 * time.Hour
	}
	return &Scheduler{
		store:      store,
		dispatcher: dispatcher,
		interval:   interval,
		logger:     logger,
		now:        time.Now,
	}
}

// ComputeStage returns the stage implied by the round deadlines at the
// given instant: the latest stage whose deadline is <= now, or the earliest
// stage if none has passed. Stages with no deadline entry are skipped, so a
// hackathon with a gap in its round dates can jump over the missing stage.
func ComputeStage(dates types.RoundDates, now time.Time) types.Stage {
	target := types.StageOrder[0]
	for _, stage := range types.StageOrder {
		deadline, ok := dates[stage]
		if !ok {
			continue
		}
		if !deadline.After(now) {
			target = stage
		}
	}
	return target
}

// Run executes ticks on the configured interval until the context is
// cancelled. Shutdown is graceful: no new tick starts after cancellation,
// and Run only returns once any in-flight tick has completed.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				if errors.Is(err, ErrTickInProgress) {
					s.logger.Warn("tick skipped, previous tick still running")
					continue
				}
				s.logger.Error("tick failed", zap.Error(err))
			}
		}
	}
}

// Tick runs one stage-recomputation pass over all schedulable hackathons.
// If another tick is in flight it returns ErrTickInProgress immediately;
// the skip is counted and visible through Status.
func (s *Scheduler) Tick(ctx context.Context) (types.TickResult, error) {
	if !s.tickMu.TryLock() {
		s.skippedTicks.Add(1)
		return types.TickResult{}, ErrTickInProgress
	}
	defer s.tickMu.Unlock()

	s.setRunning(true)
	defer s.setRunning(false)

	result, err := s.tick(ctx)
	if err != nil {
		return types.TickResult{}, err
	}

	s.statusMu.Lock()
	s.lastRun = &result
	s.statusMu.Unlock()
	return result, nil
}

func (s *Scheduler) tick(ctx context.Context) (types.TickResult, error) {
	started := s.now()
	result := types.TickResult{StartedAt: started}

	hackathons, err := s.store.ListSchedulable(ctx)
	if err != nil {
		return types.TickResult{}, err
	}

	var batch []types.StageTransition
	for _, h := range hackathons {
		result.TotalChecked++
		entry := types.HackathonTickResult{
			HackathonID: h.ID,
			Title:       h.Title,
			OldStage:    h.CurrentStage,
			NewStage:    h.CurrentStage,
		}

		// Malformed round dates flag the hackathon and skip it for this
		// tick; they never abort the batch.
		if err := h.RoundDates.Validate(); err != nil {
			entry.Error = err.Error()
			result.FailedIDs = append(result.FailedIDs, h.ID)
			result.PerHackathon = append(result.PerHackathon, entry)
			s.logger.Warn("invalid round dates, hackathon skipped",
				zap.Int("hackathon_id", h.ID),
				zap.Error(err))
			continue
		}

		target := ComputeStage(h.RoundDates, started)
		if !h.CurrentStage.Before(target) {
			// Up to date, or ComputeStage appears to regress (clock skew);
			// the stored stage never moves backward either way.
			result.PerHackathon = append(result.PerHackathon, entry)
			continue
		}

		if err := s.store.AdvanceStage(ctx, h.ID, h.CurrentStage, target); err != nil {
			entry.Error = err.Error()
			result.FailedIDs = append(result.FailedIDs, h.ID)
			result.PerHackathon = append(result.PerHackathon, entry)
			s.logger.Error("stage update failed",
				zap.Int("hackathon_id", h.ID),
				zap.String("from", string(h.CurrentStage)),
				zap.String("to", string(target)),
				zap.Error(err))
			continue
		}

		entry.NewStage = target
		entry.Updated = true
		result.TotalUpdated++
		result.PerHackathon = append(result.PerHackathon, entry)
		s.logger.Info("stage advanced",
			zap.Int("hackathon_id", h.ID),
			zap.String("from", string(h.CurrentStage)),
			zap.String("to", string(target)))

		for _, recipient := range h.Recipients() {
			batch = append(batch, types.StageTransition{
				RecipientEmail: recipient,
				HackathonID:    h.ID,
				HackathonTitle: h.Title,
				OldStage:       h.CurrentStage,
				NewStage:       target,
			})
		}
	}

	// Stage updates are already committed; one dispatch call covers the
	// whole tick and its per-recipient failures are informational.
	if len(batch) > 0 {
		report := s.dispatcher.Dispatch(ctx, batch)
		if len(report.Failed) > 0 {
			s.logger.Warn("notification dispatch partially failed",
				zap.Int("sent", len(report.Sent)),
				zap.Strings("failed", report.Failed))
		}
	}

	result.DurationMs = s.now().Sub(started).Milliseconds()
	return result, nil
}

// Status reports the scheduler's run state plus a read-only diff of which
// hackathons would change stage on the next tick. Nothing is mutated.
func (s *Scheduler) Status(ctx context.Context) (types.SchedulerStatus, error) {
	s.statusMu.Lock()
	status := types.SchedulerStatus{
		State:        "idle",
		LastRun:      s.lastRun,
		SkippedTicks: s.skippedTicks.Load(),
		Pending:      []types.PendingHackathon{},
	}
	if s.running {
		status.State = "running"
	}
	s.statusMu.Unlock()

	hackathons, err := s.store.ListSchedulable(ctx)
	if err != nil {
		return types.SchedulerStatus{}, err
	}

	now := s.now()
	for _, h := range hackathons {
		if h.RoundDates.Validate() != nil {
			continue
		}
		target := ComputeStage(h.RoundDates, now)
		if h.CurrentStage.Before(target) {
			status.Pending = append(status.Pending, types.PendingHackathon{
				HackathonID:  h.ID,
				CurrentStage: h.CurrentStage,
				TargetStage:  target,
			})
			continue
		}
		status.UpToDate++
	}
	return status, nil
}

func (s *Scheduler) setRunning(running bool) {
	s.statusMu.Lock()
	s.running = running
	s.statusMu.Unlock()
}
