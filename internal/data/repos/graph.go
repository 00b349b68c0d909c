package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/domain"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/logger"
)

type TopicGraphRepo interface {
	Create(ctx context.Context, row *domain.TopicGraph) (*domain.TopicGraph, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.TopicGraph, error)

	// FindBaseline returns the BASELINE graph for an exact scope key, or nil.
	FindBaseline(ctx context.Context, contentID uuid.UUID, scopeType string, scopeID *uuid.UUID) (*domain.TopicGraph, error)
	// FindBaselineByContent returns the first BASELINE graph for a content
	// item regardless of scope, or nil.
	FindBaselineByContent(ctx context.Context, contentID uuid.UUID) (*domain.TopicGraph, error)
	FindLearner(ctx context.Context, userID, contentID uuid.UUID) (*domain.TopicGraph, error)
	FindCuratedGlobal(ctx context.Context) (*domain.TopicGraph, error)

	StampLastCompared(ctx context.Context, id uuid.UUID, at time.Time) error
}

type topicGraphRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTopicGraphRepo(db *gorm.DB, baseLog *logger.Logger) TopicGraphRepo {
	return &topicGraphRepo{db: db, log: baseLog.With("repo", "TopicGraphRepo")}
}

func (r *topicGraphRepo) Create(ctx context.Context, row *domain.TopicGraph) (*domain.TopicGraph, error) {
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *topicGraphRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.TopicGraph, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var rows []*domain.TopicGraph
	if err := r.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *topicGraphRepo) FindBaseline(ctx context.Context, contentID uuid.UUID, scopeType string, scopeID *uuid.UUID) (*domain.TopicGraph, error) {
	var rows []*domain.TopicGraph
	if err := r.db.WithContext(ctx).
		Where("kind = ? AND content_id = ? AND scope_type = ? AND scope_id IS NOT DISTINCT FROM ?",
			domain.GraphKindBaseline, contentID, scopeType, scopeID).
		Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *topicGraphRepo) FindBaselineByContent(ctx context.Context, contentID uuid.UUID) (*domain.TopicGraph, error) {
	var rows []*domain.TopicGraph
	if err := r.db.WithContext(ctx).
		Where("kind = ? AND content_id = ?", domain.GraphKindBaseline, contentID).
		Order("created_at ASC").
		Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *topicGraphRepo) FindLearner(ctx context.Context, userID, contentID uuid.UUID) (*domain.TopicGraph, error) {
	var rows []*domain.TopicGraph
	if err := r.db.WithContext(ctx).
		Where("kind = ? AND user_id = ? AND content_id = ?", domain.GraphKindLearner, userID, contentID).
		Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *topicGraphRepo) FindCuratedGlobal(ctx context.Context) (*domain.TopicGraph, error) {
	var rows []*domain.TopicGraph
	if err := r.db.WithContext(ctx).
		Where("kind = ? AND scope_type = ?", domain.GraphKindCurated, domain.ScopeGlobal).
		Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *topicGraphRepo) StampLastCompared(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.TopicGraph{}).
		Where("id = ?", id).
		Update("last_compared_at", at).Error
}
