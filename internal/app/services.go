package app

import (
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/cache"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/logger"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/realtime/bus"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/services"
)

type Services struct {
	CacheFacade     *services.CacheFacade
	RegistryLinker  *services.RegistryLinker
	Baseline        *services.BaselineBuilder
	Learner         *services.LearnerBuilder
	Comparator      *services.GraphComparator
	Thresholds      *services.ThresholdController
	Scheduler       *services.ActivityScheduler
	Recommendations *services.RecommendationEngine
}

func wireServices(cfg Config, reposet Repos, signals bus.Bus, log *logger.Logger) Services {
	var cacheClient cache.Client
	if cfg.RedisAddr != "" {
		c, err := cache.NewRedisClient(log)
		if err != nil {
			// The cache is strictly an optimization; run degraded.
			log.Warn("redis cache unavailable, running without cache", "error", err)
			cacheClient = cache.NewNopClient()
		} else {
			cacheClient = c
		}
	} else {
		cacheClient = cache.NewNopClient()
	}

	facade := services.NewCacheFacade(cacheClient, log)
	linker := services.NewRegistryLinker(reposet.Graphs, reposet.Nodes, reposet.Registry, log)
	source := services.NewHTTPContentSource(cfg.ContentAPIURL)

	baseline := services.NewBaselineBuilder(
		reposet.Graphs, reposet.Nodes, reposet.Edges, reposet.Evidence,
		linker, source, facade, nil, log)
	learner := services.NewLearnerBuilder(
		reposet.Graphs, reposet.Nodes, reposet.Edges, reposet.Evidence,
		facade, signals, log)
	comparator := services.NewGraphComparator(
		reposet.Graphs, reposet.Nodes, reposet.Edges, reposet.Evidence,
		reposet.Diffs, facade, log)
	thresholds := services.NewThresholdController(reposet.Outcomes, log)
	scheduler := services.NewActivityScheduler(comparator, thresholds, reposet.Graphs, log)
	recommendations := services.NewRecommendationEngine(
		reposet.Graphs, reposet.Nodes, reposet.Edges, reposet.Evidence,
		reposet.Registry, reposet.Diffs, log)

	return Services{
		CacheFacade:     facade,
		RegistryLinker:  linker,
		Baseline:        baseline,
		Learner:         learner,
		Comparator:      comparator,
		Thresholds:      thresholds,
		Scheduler:       scheduler,
		Recommendations: recommendations,
	}
}
