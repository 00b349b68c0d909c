package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/cache"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/logger"
)

const (
	edgeTypeDecisionTTL  = 30 * 24 * time.Hour
	diffResolutionTTL    = 7 * 24 * time.Hour
	visualizationTTL     = 5 * time.Minute
	edgeTypeDecisionKey  = "graph:edgetype:"
	diffResolutionKey    = "graph:diffres:"
	visualizationKeyTmpl = "graph:viz:%s:%s"
)

// CacheFacade exposes the three typed keyspaces over the raw cache client.
// Every operation degrades to a miss/no-op on cache error: caching is an
// optimization, never a correctness dependency.
type CacheFacade struct {
	cache cache.Client
	log   *logger.Logger
}

func NewCacheFacade(c cache.Client, baseLog *logger.Logger) *CacheFacade {
	if c == nil {
		c = cache.NewNopClient()
	}
	return &CacheFacade{cache: c, log: baseLog.With("service", "CacheFacade")}
}

// GetEdgeTypeDecision returns a previously recorded edge-type decision for
// the edge signature, if any.
func (f *CacheFacade) GetEdgeTypeDecision(ctx context.Context, signature string) (string, bool) {
	v, ok, err := f.cache.Get(ctx, edgeTypeDecisionKey+signature)
	if err != nil {
		f.log.Warn("edge-type decision cache read failed", "error", err)
		return "", false
	}
	return v, ok
}

func (f *CacheFacade) SetEdgeTypeDecision(ctx context.Context, signature, decision string) {
	if err := f.cache.Set(ctx, edgeTypeDecisionKey+signature, decision, edgeTypeDecisionTTL); err != nil {
		f.log.Warn("edge-type decision cache write failed", "error", err)
	}
}

// GetDiffResolution returns a prior resolution for an UNDECIDED diff entry.
func (f *CacheFacade) GetDiffResolution(ctx context.Context, signature string) (string, bool) {
	v, ok, err := f.cache.Get(ctx, diffResolutionKey+signature)
	if err != nil {
		f.log.Warn("diff resolution cache read failed", "error", err)
		return "", false
	}
	return v, ok
}

func (f *CacheFacade) SetDiffResolution(ctx context.Context, signature, resolution string) {
	if err := f.cache.Set(ctx, diffResolutionKey+signature, resolution, diffResolutionTTL); err != nil {
		f.log.Warn("diff resolution cache write failed", "error", err)
	}
}

func visualizationKey(userID, contentID uuid.UUID) string {
	return fmt.Sprintf(visualizationKeyTmpl, userID, contentID)
}

func (f *CacheFacade) GetVisualization(ctx context.Context, userID, contentID uuid.UUID) (*Visualization, bool) {
	raw, ok, err := f.cache.Get(ctx, visualizationKey(userID, contentID))
	if err != nil || !ok {
		if err != nil {
			f.log.Warn("visualization cache read failed", "error", err)
		}
		return nil, false
	}
	var viz Visualization
	if err := json.Unmarshal([]byte(raw), &viz); err != nil {
		f.log.Warn("visualization cache payload corrupt", "error", err)
		return nil, false
	}
	return &viz, true
}

func (f *CacheFacade) SetVisualization(ctx context.Context, userID, contentID uuid.UUID, viz *Visualization) {
	raw, err := json.Marshal(viz)
	if err != nil {
		return
	}
	if err := f.cache.Set(ctx, visualizationKey(userID, contentID), string(raw), visualizationTTL); err != nil {
		f.log.Warn("visualization cache write failed", "error", err)
	}
}

// InvalidateVisualization drops the rendered view for (user, content);
// called on every learner-graph mutation.
func (f *CacheFacade) InvalidateVisualization(ctx context.Context, userID, contentID uuid.UUID) {
	if err := f.cache.Del(ctx, visualizationKey(userID, contentID)); err != nil {
		f.log.Warn("visualization cache invalidation failed", "error", err)
	}
}
