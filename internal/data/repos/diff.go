package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/domain"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/logger"
)

type GraphDiffRepo interface {
	// Upsert replaces any previous diff for the same (user, content) pair.
	Upsert(ctx context.Context, row *domain.GraphDiff) (*domain.GraphDiff, error)

	GetByUserContent(ctx context.Context, userID, contentID uuid.UUID) (*domain.GraphDiff, error)
	// GetLatestByUser returns the most recently updated diff for the user,
	// or nil.
	GetLatestByUser(ctx context.Context, userID uuid.UUID) (*domain.GraphDiff, error)
}

type graphDiffRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGraphDiffRepo(db *gorm.DB, baseLog *logger.Logger) GraphDiffRepo {
	return &graphDiffRepo{db: db, log: baseLog.With("repo", "GraphDiffRepo")}
}

func (r *graphDiffRepo) Upsert(ctx context.Context, row *domain.GraphDiff) (*domain.GraphDiff, error) {
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "content_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"baseline_graph_id", "learner_graph_id", "diff", "summary", "updated_at",
			}),
		}).
		Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *graphDiffRepo) GetByUserContent(ctx context.Context, userID, contentID uuid.UUID) (*domain.GraphDiff, error) {
	var rows []*domain.GraphDiff
	if userID == uuid.Nil || contentID == uuid.Nil {
		return nil, nil
	}
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND content_id = ?", userID, contentID).
		Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *graphDiffRepo) GetLatestByUser(ctx context.Context, userID uuid.UUID) (*domain.GraphDiff, error) {
	var rows []*domain.GraphDiff
	if userID == uuid.Nil {
		return nil, nil
	}
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}
