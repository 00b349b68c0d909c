package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/domain"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/logger"
)

type TopicEdgeRepo interface {
	Create(ctx context.Context, row *domain.TopicEdge) (*domain.TopicEdge, error)
	Update(ctx context.Context, row *domain.TopicEdge) error

	GetByGraph(ctx context.Context, graphID uuid.UUID) ([]*domain.TopicEdge, error)
	// GetMostRecentByGraph returns the most recently created edge of the
	// graph, or nil when the graph has no edges.
	GetMostRecentByGraph(ctx context.Context, graphID uuid.UUID) (*domain.TopicEdge, error)
	GetByNodeIDs(ctx context.Context, graphID uuid.UUID, nodeIDs []uuid.UUID) ([]*domain.TopicEdge, error)

	// FindPrerequisiteSources returns the source nodes of PREREQUISITE edges
	// in graphID whose target node carries targetSlug.
	FindPrerequisiteSources(ctx context.Context, graphID uuid.UUID, targetSlug string, limit int) ([]*domain.TopicNode, error)
}

type topicEdgeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTopicEdgeRepo(db *gorm.DB, baseLog *logger.Logger) TopicEdgeRepo {
	return &topicEdgeRepo{db: db, log: baseLog.With("repo", "TopicEdgeRepo")}
}

func (r *topicEdgeRepo) Create(ctx context.Context, row *domain.TopicEdge) (*domain.TopicEdge, error) {
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *topicEdgeRepo) Update(ctx context.Context, row *domain.TopicEdge) error {
	return r.db.WithContext(ctx).Save(row).Error
}

func (r *topicEdgeRepo) GetByGraph(ctx context.Context, graphID uuid.UUID) ([]*domain.TopicEdge, error) {
	var out []*domain.TopicEdge
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

func (r *topicEdgeRepo) GetMostRecentByGraph(ctx context.Context, graphID uuid.UUID) (*domain.TopicEdge, error) {
	var rows []*domain.TopicEdge
	if graphID == uuid.Nil {
		return nil, nil
	}
	if err := r.db.WithContext(ctx).
		Where("graph_id = ?", graphID).
		Order("created_at DESC").
		Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *topicEdgeRepo) GetByNodeIDs(ctx context.Context, graphID uuid.UUID, nodeIDs []uuid.UUID) ([]*domain.TopicEdge, error) {
	var out []*domain.TopicEdge
	if graphID == uuid.Nil || len(nodeIDs) == 0 {
		return out, nil
	}
	if err := r.db.WithContext(ctx).
		Where("graph_id = ? AND (from_node_id IN ? OR to_node_id IN ?)", graphID, nodeIDs, nodeIDs).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *topicEdgeRepo) FindPrerequisiteSources(ctx context.Context, graphID uuid.UUID, targetSlug string, limit int) ([]*domain.TopicNode, error) {
	var out []*domain.TopicNode
	if graphID == uuid.Nil || targetSlug == "" {
		return out, nil
	}
	if limit <= 0 {
		limit = 2
	}
	if err := r.db.WithContext(ctx).
		Table("topic_node").
		Joins("JOIN topic_edge ON topic_edge.from_node_id = topic_node.id").
		Joins("JOIN topic_node AS target ON target.id = topic_edge.to_node_id").
		Where("topic_edge.graph_id = ? AND topic_edge.edge_type = ? AND target.slug = ? AND topic_edge.from_node_id <> topic_edge.to_node_id",
			graphID, domain.EdgePrerequisite, targetSlug).
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
