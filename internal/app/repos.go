package app

import (
	"gorm.io/gorm"

	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/data/repos"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/logger"
)

type Repos struct {
	Graphs   repos.TopicGraphRepo
	Nodes    repos.TopicNodeRepo
	Edges    repos.TopicEdgeRepo
	Evidence repos.TopicEdgeEvidenceRepo
	Registry repos.TopicRegistryRepo
	Diffs    repos.GraphDiffRepo
	Outcomes repos.ThresholdOutcomeRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Graphs:   repos.NewTopicGraphRepo(db, log),
		Nodes:    repos.NewTopicNodeRepo(db, log),
		Edges:    repos.NewTopicEdgeRepo(db, log),
		Evidence: repos.NewTopicEdgeEvidenceRepo(db, log),
		Registry: repos.NewTopicRegistryRepo(db, log),
		Diffs:    repos.NewGraphDiffRepo(db, log),
		Outcomes: repos.NewThresholdOutcomeRepo(db, log),
	}
}
