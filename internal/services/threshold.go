package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/data/repos"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/domain"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/logger"
)

const (
	thresholdDefault = 5
	thresholdMin     = 3
	thresholdMax     = 10

	outcomeWindow     = 30 * 24 * time.Hour
	outcomeSampleCap  = 50
	outcomeMinSamples = 10

	lowChangeRate  = 0.30
	highChangeRate = 0.70
)

// ThresholdStats is the observability view of one user's controller state.
type ThresholdStats struct {
	Threshold   int     `json:"threshold"`
	SampleCount int     `json:"sample_count"`
	ChangeRate  float64 `json:"change_rate"`
}

// ThresholdController maintains a per-user adaptive activity threshold in
// [3,10]. Thresholds live in memory; recorded outcomes are persisted, so a
// restart converges back once enough samples accumulate.
type ThresholdController struct {
	outcomes repos.ThresholdOutcomeRepo
	log      *logger.Logger

	mu         sync.Mutex
	thresholds map[uuid.UUID]int
}

func NewThresholdController(outcomes repos.ThresholdOutcomeRepo, baseLog *logger.Logger) *ThresholdController {
	return &ThresholdController{
		outcomes:   outcomes,
		log:        baseLog.With("service", "ThresholdController"),
		thresholds: map[uuid.UUID]int{},
	}
}

func (t *ThresholdController) GetThreshold(userID uuid.UUID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.thresholds[userID]; ok {
		return v
	}
	return thresholdDefault
}

// RecordOutcome persists the comparison outcome (best-effort) and
// recalculates the user's threshold from the recent outcome window. With
// fewer than 10 samples the threshold never moves.
func (t *ThresholdController) RecordOutcome(ctx context.Context, userID uuid.UUID, hadChanges bool) {
	if _, err := t.outcomes.Create(ctx, &domain.ThresholdOutcome{
		UserID:     userID,
		HadChanges: hadChanges,
	}); err != nil {
		// Persistence failure must not propagate; the comparison itself
		// already succeeded.
		t.log.Warn("outcome persistence failed", "error", err, "user_id", userID)
	}

	stats, err := t.loadStats(ctx, userID)
	if err != nil {
		t.log.Warn("outcome window load failed", "error", err, "user_id", userID)
		return
	}
	if stats.SampleCount < outcomeMinSamples {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	current, ok := t.thresholds[userID]
	if !ok {
		current = thresholdDefault
	}
	next := current
	switch {
	case stats.ChangeRate < lowChangeRate && current < thresholdMax:
		next = current + 1
	case stats.ChangeRate > highChangeRate && current > thresholdMin:
		next = current - 1
	}
	if next != current {
		t.thresholds[userID] = next
		t.log.Info("threshold adjusted",
			"user_id", userID,
			"from", current,
			"to", next,
			"change_rate", stats.ChangeRate)
	}
}

// GetStatistics exposes the current threshold, sample count, and change
// rate. No side effects.
func (t *ThresholdController) GetStatistics(ctx context.Context, userID uuid.UUID) (*ThresholdStats, error) {
	stats, err := t.loadStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats.Threshold = t.GetThreshold(userID)
	return stats, nil
}

func (t *ThresholdController) loadStats(ctx context.Context, userID uuid.UUID) (*ThresholdStats, error) {
	since := time.Now().UTC().Add(-outcomeWindow)
	rows, err := t.outcomes.GetRecent(ctx, userID, since, outcomeSampleCap)
	if err != nil {
		return nil, err
	}
	stats := &ThresholdStats{SampleCount: len(rows)}
	if len(rows) == 0 {
		return stats, nil
	}
	changed := 0
	for _, row := range rows {
		if row.HadChanges {
			changed++
		}
	}
	stats.ChangeRate = float64(changed) / float64(len(rows))
	return stats, nil
}
