package app

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func wireRouter(h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-User-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", h.Health.Check)

	v1 := router.Group("/api/v1/graphs")
	{
		v1.POST("/events", h.Graph.IngestEvent)
		v1.POST("/baseline", h.Graph.BuildBaseline)
		v1.POST("/compare", h.Graph.CompareGraphs)
		v1.GET("/visualization", h.Graph.GetVisualization)
		v1.GET("/recommendations", h.Graph.GetRecommendations)
		v1.GET("/threshold/:user_id", h.Graph.GetThresholdStatistics)
	}

	return router
}
