package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/domain"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/logger"
)

type ThresholdOutcomeRepo interface {
	Create(ctx context.Context, row *domain.ThresholdOutcome) (*domain.ThresholdOutcome, error)

	// GetRecent returns up to limit outcomes for the user created at or
	// after since, most recent first.
	GetRecent(ctx context.Context, userID uuid.UUID, since time.Time, limit int) ([]*domain.ThresholdOutcome, error)
}

type thresholdOutcomeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewThresholdOutcomeRepo(db *gorm.DB, baseLog *logger.Logger) ThresholdOutcomeRepo {
	return &thresholdOutcomeRepo{db: db, log: baseLog.With("repo", "ThresholdOutcomeRepo")}
}

func (r *thresholdOutcomeRepo) Create(ctx context.Context, row *domain.ThresholdOutcome) (*domain.ThresholdOutcome, error) {
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *thresholdOutcomeRepo) GetRecent(ctx context.Context, userID uuid.UUID, since time.Time, limit int) ([]*domain.ThresholdOutcome, error) {
	var out []*domain.ThresholdOutcome
	if userID == uuid.Nil {
		return out, nil
	}
	if limit <= 0 {
		limit = 50
	}
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
