package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/domain"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/logger"
)

// BaselineCoverage is one baseline graph covering a slug, used by the
// recommendation strategies to point learners at other content.
type BaselineCoverage struct {
	ContentID uuid.UUID `json:"content_id"`
	GraphID   uuid.UUID `json:"graph_id"`
	NodeID    uuid.UUID `json:"node_id"`
	Label     string    `json:"label"`
	Slug      string    `json:"slug"`
}

type TopicNodeRepo interface {
	Create(ctx context.Context, row *domain.TopicNode) (*domain.TopicNode, error)
	Update(ctx context.Context, row *domain.TopicNode) error

	GetByGraph(ctx context.Context, graphID uuid.UUID) ([]*domain.TopicNode, error)
	GetByGraphAndSlug(ctx context.Context, graphID uuid.UUID, slug string) (*domain.TopicNode, error)

	// FindBaselineCoverage lists BASELINE graphs (other than excludeContentID)
	// containing a node with the given slug. limit <= 0 means no limit.
	FindBaselineCoverage(ctx context.Context, slug string, excludeContentID uuid.UUID, limit int) ([]BaselineCoverage, error)
}

type topicNodeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTopicNodeRepo(db *gorm.DB, baseLog *logger.Logger) TopicNodeRepo {
	return &topicNodeRepo{db: db, log: baseLog.With("repo", "TopicNodeRepo")}
}

func (r *topicNodeRepo) Create(ctx context.Context, row *domain.TopicNode) (*domain.TopicNode, error) {
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *topicNodeRepo) Update(ctx context.Context, row *domain.TopicNode) error {
	return r.db.WithContext(ctx).Save(row).Error
}

func (r *topicNodeRepo) GetByGraph(ctx context.Context, graphID uuid.UUID) ([]*domain.TopicNode, error) {
	var out []*domain.TopicNode
	if graphID == uuid.Nil {
		return out, nil
	}
	if err := r.db.WithContext(ctx).
		Where("graph_id = ?", graphID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *topicNodeRepo) GetByGraphAndSlug(ctx context.Context, graphID uuid.UUID, slug string) (*domain.TopicNode, error) {
	var rows []*domain.TopicNode
	if graphID == uuid.Nil || slug == "" {
		return nil, nil
	}
	if err := r.db.WithContext(ctx).
		Where("graph_id = ? AND slug = ?", graphID, slug).
		Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *topicNodeRepo) FindBaselineCoverage(ctx context.Context, slug string, excludeContentID uuid.UUID, limit int) ([]BaselineCoverage, error) {
	var out []BaselineCoverage
	if slug == "" {
		return out, nil
	}
	q := r.db.WithContext(ctx).
		Table("topic_node").
		Select("topic_graph.content_id AS content_id, topic_node.graph_id AS graph_id, topic_node.id AS node_id, topic_node.canonical_label AS label, topic_node.slug AS slug").
		Joins("JOIN topic_graph ON topic_graph.id = topic_node.graph_id").
		Where("topic_graph.kind = ? AND topic_node.slug = ? AND topic_graph.content_id IS NOT NULL",
			domain.GraphKindBaseline, slug)
	if excludeContentID != uuid.Nil {
		q = q.Where("topic_graph.content_id <> ?", excludeContentID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
