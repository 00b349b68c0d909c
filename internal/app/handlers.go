package app

import (
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/http/handlers"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/logger"
)

type Handlers struct {
	Graph  *handlers.GraphHandler
	Health *handlers.HealthHandler
}

func wireHandlers(log *logger.Logger, serviceset Services) Handlers {
	return Handlers{
		Graph: handlers.NewGraphHandler(
			log,
			serviceset.Baseline,
			serviceset.Learner,
			serviceset.Comparator,
			serviceset.Thresholds,
			serviceset.Recommendations,
		),
		Health: handlers.NewHealthHandler(),
	}
}
