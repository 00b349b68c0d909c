package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/domain"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/logger"
)

type TopicEdgeEvidenceRepo interface {
	Create(ctx context.Context, row *domain.TopicEdgeEvidence) (*domain.TopicEdgeEvidence, error)

	CountByEdgeIDs(ctx context.Context, edgeIDs []uuid.UUID) (map[uuid.UUID]int, error)
	// CountByNodeForGraph aggregates evidence counts per node over the
	// node's incident edges. Used for per-node annotation counts in the
	// visualization.
	CountByNodeForGraph(ctx context.Context, graphID uuid.UUID) (map[uuid.UUID]int, error)
}

type topicEdgeEvidenceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTopicEdgeEvidenceRepo(db *gorm.DB, baseLog *logger.Logger) TopicEdgeEvidenceRepo {
	return &topicEdgeEvidenceRepo{db: db, log: baseLog.With("repo", "TopicEdgeEvidenceRepo")}
}

func (r *topicEdgeEvidenceRepo) Create(ctx context.Context, row *domain.TopicEdgeEvidence) (*domain.TopicEdgeEvidence, error) {
	row.Excerpt = domain.TruncateChars(row.Excerpt, domain.MaxEvidenceExcerptLen)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

type edgeCountRow struct {
	EdgeID uuid.UUID
	N      int
}

func (r *topicEdgeEvidenceRepo) CountByEdgeIDs(ctx context.Context, edgeIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	out := map[uuid.UUID]int{}
	if len(edgeIDs) == 0 {
		return out, nil
	}
	var rows []edgeCountRow
	if err := r.db.WithContext(ctx).
		Table("topic_edge_evidence").
		Select("edge_id, COUNT(*) AS n").
		Where("edge_id IN ?", edgeIDs).
		Group("edge_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.EdgeID] = row.N
	}
	return out, nil
}

type nodeCountRow struct {
	NodeID uuid.UUID
	N      int
}

func (r *topicEdgeEvidenceRepo) CountByNodeForGraph(ctx context.Context, graphID uuid.UUID) (map[uuid.UUID]int, error) {
	out := map[uuid.UUID]int{}
	if graphID == uuid.Nil {
		return out, nil
	}
	var rows []nodeCountRow
	if err := r.db.WithContext(ctx).
		Table("topic_edge_evidence").
		Select("topic_edge.to_node_id AS node_id, COUNT(*) AS n").
		Joins("JOIN topic_edge ON topic_edge.id = topic_edge_evidence.edge_id").
		Where("topic_edge.graph_id = ?", graphID).
		Group("topic_edge.to_node_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.NodeID] = row.N
	}
	return out, nil
}
