package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron"

	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/data/repos"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/logger"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/realtime/bus"
)

// Comparer is the slice of the comparator the scheduler needs.
type Comparer interface {
	CompareGraphs(ctx context.Context, userID, contentID uuid.UUID) (*CompareResult, error)
}

// ThresholdSource is the slice of the threshold controller the scheduler
// needs.
type ThresholdSource interface {
	GetThreshold(userID uuid.UUID) int
	RecordOutcome(ctx context.Context, userID uuid.UUID, hadChanges bool)
}

// ActivityScheduler counts learner-graph updates per (user, content) and
// triggers a comparison when the user's adaptive threshold is reached.
// Counters are in-memory and non-durable; a restart loses counts, which is
// an accepted trade-off.
type ActivityScheduler struct {
	comparator Comparer
	thresholds ThresholdSource
	graphs     repos.TopicGraphRepo
	log        *logger.Logger

	mu       sync.Mutex
	counters map[string]int

	cron *cron.Cron
}

func NewActivityScheduler(
	comparator Comparer,
	thresholds ThresholdSource,
	graphs repos.TopicGraphRepo,
	baseLog *logger.Logger,
) *ActivityScheduler {
	return &ActivityScheduler{
		comparator: comparator,
		thresholds: thresholds,
		graphs:     graphs,
		log:        baseLog.With("service", "ActivityScheduler"),
		counters:   map[string]int{},
	}
}

// Start subscribes to learner-graph-updated signals and schedules the daily
// counter sweep.
func (s *ActivityScheduler) Start(signals bus.Bus) error {
	signals.Subscribe(bus.SignalLearnerGraphUpdated, func(ctx context.Context, sig bus.Signal) {
		s.OnLearnerGraphUpdated(ctx, sig.UserID, sig.ContentID)
	})

	s.cron = cron.New()
	if err := s.cron.AddFunc("@daily", s.ResetAllCounters); err != nil {
		return fmt.Errorf("schedule counter cleanup: %w", err)
	}
	s.cron.Start()
	return nil
}

func (s *ActivityScheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

func counterKey(userID, contentID uuid.UUID) string {
	return userID.String() + ":" + contentID.String()
}

// OnLearnerGraphUpdated increments the activity counter and, once the
// user's threshold is reached, runs a comparison. Duplicate deliveries just
// advance the counter, which the threshold absorbs.
func (s *ActivityScheduler) OnLearnerGraphUpdated(ctx context.Context, userID, contentID uuid.UUID) {
	if userID == uuid.Nil || contentID == uuid.Nil {
		return
	}
	threshold := s.thresholds.GetThreshold(userID)
	key := counterKey(userID, contentID)

	s.mu.Lock()
	s.counters[key]++
	count := s.counters[key]
	fire := count >= threshold
	if fire {
		// Reset before the comparison runs, even if it fails: re-firing on
		// every subsequent event would be a retry storm.
		s.counters[key] = 0
	}
	s.mu.Unlock()

	if !fire {
		return
	}

	result, err := s.comparator.CompareGraphs(ctx, userID, contentID)
	if err != nil {
		// Best-effort from the event producer's perspective.
		s.log.Warn("triggered comparison failed", "error", err, "user_id", userID, "content_id", contentID)
		return
	}

	s.thresholds.RecordOutcome(ctx, userID, result.Diff.HasChanges())

	learner, err := s.graphs.FindLearner(ctx, userID, contentID)
	if err != nil || learner == nil {
		s.log.Warn("learner graph lookup for compare stamp failed", "error", err, "user_id", userID)
		return
	}
	if err := s.graphs.StampLastCompared(ctx, learner.ID, time.Now().UTC()); err != nil {
		s.log.Warn("last-compared stamp failed", "error", err, "graph_id", learner.ID)
	}
}

// ResetAllCounters clears every activity counter. Runs daily to bound
// memory growth from abandoned (user, content) pairs.
func (s *ActivityScheduler) ResetAllCounters() {
	s.mu.Lock()
	n := len(s.counters)
	s.counters = map[string]int{}
	s.mu.Unlock()
	if n > 0 {
		s.log.Info("activity counters cleared", "count", n)
	}
}

// CounterValue reports the current count for a (user, content) pair.
func (s *ActivityScheduler) CounterValue(userID, contentID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[counterKey(userID, contentID)]
}
