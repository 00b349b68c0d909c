package repos

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/domain"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/logger"
)

type TopicRegistryRepo interface {
	Create(ctx context.Context, row *domain.TopicRegistryEntry) (*domain.TopicRegistryEntry, error)

	GetBySlug(ctx context.Context, scopeType, slug string) (*domain.TopicRegistryEntry, error)
	// FindActiveGlobalMatching returns the first ACTIVE GLOBAL entry whose
	// slug or alias set intersects terms, or nil.
	FindActiveGlobalMatching(ctx context.Context, terms []string) (*domain.TopicRegistryEntry, error)
}

type topicRegistryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTopicRegistryRepo(db *gorm.DB, baseLog *logger.Logger) TopicRegistryRepo {
	return &topicRegistryRepo{db: db, log: baseLog.With("repo", "TopicRegistryRepo")}
}

func (r *topicRegistryRepo) Create(ctx context.Context, row *domain.TopicRegistryEntry) (*domain.TopicRegistryEntry, error) {
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *topicRegistryRepo) GetBySlug(ctx context.Context, scopeType, slug string) (*domain.TopicRegistryEntry, error) {
	var rows []*domain.TopicRegistryEntry
	if scopeType == "" || slug == "" {
		return nil, nil
	}
	if err := r.db.WithContext(ctx).
		Where("scope_type = ? AND slug = ?", scopeType, slug).
		Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *topicRegistryRepo) FindActiveGlobalMatching(ctx context.Context, terms []string) (*domain.TopicRegistryEntry, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	var rows []*domain.TopicRegistryEntry
	if err := r.db.WithContext(ctx).
		Where("scope_type = ? AND status = ? AND slug IN ?", domain.ScopeGlobal, domain.RegistryStatusActive, terms).
		Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		return rows[0], nil
	}

	// Fall back to alias overlap; aliases is a jsonb array of normalized
	// strings. jsonb_exists_any is the function form of ?|, which would
	// otherwise collide with the placeholder syntax.
	cond, condArgs := aliasOverlapCondition(terms)
	args := append([]interface{}{domain.ScopeGlobal, domain.RegistryStatusActive}, condArgs...)
	if err := r.db.WithContext(ctx).
		Where("scope_type = ? AND status = ? AND "+cond, args...).
		Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// aliasOverlapCondition builds the jsonb_exists_any predicate with an
// explicit ARRAY constructor. Binding the slice as one placeholder would
// expand it into a row constructor, not the text[] the function takes.
func aliasOverlapCondition(terms []string) (string, []interface{}) {
	placeholders := make([]string, len(terms))
	args := make([]interface{}, len(terms))
	for i, t := range terms {
		placeholders[i] = "?"
		args[i] = t
	}
	return "jsonb_exists_any(aliases, ARRAY[" + strings.Join(placeholders, ",") + "])", args
}
