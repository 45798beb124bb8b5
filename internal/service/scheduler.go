package service

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/reelcast/reelcast/internal/config"
	"github.com/reelcast/reelcast/internal/models"
)

// PipelineRunner is the pipeline as the scheduler sees it.
type PipelineRunner interface {
	Run(ctx context.Context, slot string) RunResult
}

// SchedulerStore supplies the restart debounce check and skip bookkeeping.
type SchedulerStore interface {
	FindRecentPost(ctx context.Context, window time.Duration) (*models.Post, error)
	RecordRun(ctx context.Context, run *models.RunLog) error
}

// Scheduler fires the pipeline at the configured wall-clock times. One run at
// a time: a firing that lands while a run is still in progress is skipped,
// never queued. A run failure is logged and the loop keeps going.
type Scheduler struct {
	postTimes []int // minutes since midnight, sorted
	location  *time.Location
	debounce  time.Duration
	pipeline  PipelineRunner
	store     SchedulerStore
	logger    *zap.Logger

	running atomic.Bool
	stopCh  chan struct{}
	now     func() time.Time
}

func NewScheduler(cfg *config.ScheduleConfig, pipeline PipelineRunner, store SchedulerStore, logger *zap.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load schedule timezone: %w", err)
	}

	postTimes, err := parsePostTimes(cfg.PostTimes)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		postTimes: postTimes,
		location:  loc,
		debounce:  cfg.Debounce,
		pipeline:  pipeline,
		store:     store,
		logger:    logger,
		stopCh:    make(chan struct{}),
		now:       time.Now,
	}, nil
}

func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting scheduler",
		zap.Int("post_times", len(s.postTimes)),
		zap.String("timezone", s.location.String()),
		zap.Duration("debounce", s.debounce))

	go s.loop(ctx)
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.logger.Info("Scheduler shutdown completed")
}

func (s *Scheduler) loop(ctx context.Context) {
	for {
		firing, slot := nextFiring(s.now().In(s.location), s.postTimes)
		s.logger.Info("next firing computed",
			zap.Time("at", firing),
			zap.String("slot", slot))

		timer := time.NewTimer(time.Until(firing))
		select {
		case <-timer.C:
			s.fire(ctx, slot, false)
		case <-s.stopCh:
			timer.Stop()
			s.logger.Info("Scheduler stopped")
			return
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("Scheduler context cancelled")
			return
		}
	}
}

// TriggerNow runs the pipeline immediately for the given slot, bypassing the
// time gate and the debounce but not the overlap guard. Returns false if a
// run was already in progress.
func (s *Scheduler) TriggerNow(ctx context.Context, slot string) (RunResult, bool) {
	return s.fire(ctx, slot, true)
}

func (s *Scheduler) fire(ctx context.Context, slot string, manual bool) (RunResult, bool) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("run already in progress, skipping firing", zap.String("slot", slot))
		return RunResult{}, false
	}
	defer s.running.Store(false)

	if !manual && s.debounce > 0 {
		recent, err := s.store.FindRecentPost(ctx, s.debounce)
		if err != nil {
			s.logger.Warn("debounce check failed, running anyway", zap.Error(err))
		} else if recent != nil {
			s.logger.Info("recent post inside debounce window, skipping slot",
				zap.String("slot", slot),
				zap.String("recent_post_id", recent.ID),
				zap.Time("recent_post_at", recent.CreatedAt))
			s.recordSkip(ctx, slot, recent.ID)
			return RunResult{Slot: slot, Outcome: models.RunOutcomeSkipped}, true
		}
	}

	result := s.pipeline.Run(ctx, slot)
	if result.Err != nil {
		s.logger.Error("pipeline run failed",
			zap.String("slot", slot),
			zap.Error(result.Err))
	}
	return result, true
}

func (s *Scheduler) recordSkip(ctx context.Context, slot, recentPostID string) {
	now := s.now()
	run := &models.RunLog{
		Slot:       slot,
		Outcome:    models.RunOutcomeSkipped,
		Error:      fmt.Sprintf("recent post %s inside debounce window", recentPostID),
		StartedAt:  now,
		FinishedAt: now,
	}
	if err := s.store.RecordRun(ctx, run); err != nil {
		s.logger.Warn("failed to record skipped run", zap.Error(err))
	}
}

func parsePostTimes(times []string) ([]int, error) {
	if len(times) == 0 {
		return nil, fmt.Errorf("no post times configured")
	}

	minutes := make([]int, 0, len(times))
	for _, t := range times {
		parsed, err := time.Parse("15:04", t)
		if err != nil {
			return nil, fmt.Errorf("invalid post time %q: %w", t, err)
		}
		minutes = append(minutes, parsed.Hour()*60+parsed.Minute())
	}
	sort.Ints(minutes)
	return minutes, nil
}

// nextFiring returns the earliest configured firing strictly after now, in
// now's location, plus its slot name ("HH:MM"). Strictly-future means a
// restart at exactly a post time waits for the next slot instead of bursting.
func nextFiring(now time.Time, postTimes []int) (time.Time, string) {
	nowMinutes := now.Hour()*60 + now.Minute()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	for _, m := range postTimes {
		if m > nowMinutes {
			return midnight.Add(time.Duration(m) * time.Minute), slotName(m)
		}
	}

	// All of today's slots have passed; first slot tomorrow.
	first := postTimes[0]
	return midnight.AddDate(0, 0, 1).Add(time.Duration(first) * time.Minute), slotName(first)
}

func slotName(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
