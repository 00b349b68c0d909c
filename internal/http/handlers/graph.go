package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/http/response"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/apierr"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/platform/logger"
	"github.com/bomyoungkim-gmail/aprendeai-app-sub007/internal/services"
)

type GraphHandler struct {
	log *logger.Logger

	baseline        *services.BaselineBuilder
	learner         *services.LearnerBuilder
	comparator      *services.GraphComparator
	thresholds      *services.ThresholdController
	recommendations *services.RecommendationEngine
}

func NewGraphHandler(
	log *logger.Logger,
	baseline *services.BaselineBuilder,
	learner *services.LearnerBuilder,
	comparator *services.GraphComparator,
	thresholds *services.ThresholdController,
	recommendations *services.RecommendationEngine,
) *GraphHandler {
	return &GraphHandler{
		log:             log.With("handler", "GraphHandler"),
		baseline:        baseline,
		learner:         learner,
		comparator:      comparator,
		thresholds:      thresholds,
		recommendations: recommendations,
	}
}

// POST /api/v1/graphs/events
func (h *GraphHandler) IngestEvent(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "unreadable_body", err)
		return
	}
	ev, err := services.ParseEvent(raw)
	if err != nil {
		response.RespondError(c, apierr.StatusOf(err), apierr.CodeOf(err), err)
		return
	}
	if err := h.learner.HandleEvent(c.Request.Context(), ev); err != nil {
		h.log.Error("IngestEvent failed", "error", err)
		response.RespondError(c, apierr.StatusOf(err), apierr.CodeOf(err), err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

type buildBaselineRequest struct {
	ContentID uuid.UUID  `json:"contentId" binding:"required"`
	ScopeType string     `json:"scopeType,omitempty"`
	ScopeID   *uuid.UUID `json:"scopeId,omitempty"`
}

// POST /api/v1/graphs/baseline
func (h *GraphHandler) BuildBaseline(c *gin.Context) {
	var req buildBaselineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	result, err := h.baseline.BuildBaseline(c.Request.Context(), services.BuildBaselineInput{
		ContentID: req.ContentID,
		ScopeType: req.ScopeType,
		ScopeID:   req.ScopeID,
	})
	if err != nil {
		h.log.Error("BuildBaseline failed", "error", err, "content_id", req.ContentID)
		response.RespondError(c, apierr.StatusOf(err), apierr.CodeOf(err), err)
		return
	}
	response.RespondOK(c, result)
}

type compareRequest struct {
	UserID    uuid.UUID `json:"userId" binding:"required"`
	ContentID uuid.UUID `json:"contentId" binding:"required"`
}

// POST /api/v1/graphs/compare
func (h *GraphHandler) CompareGraphs(c *gin.Context) {
	var req compareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	result, err := h.comparator.CompareGraphs(c.Request.Context(), req.UserID, req.ContentID)
	if err != nil {
		if !apierr.IsNotFound(err) {
			h.log.Error("CompareGraphs failed", "error", err, "user_id", req.UserID, "content_id", req.ContentID)
		}
		response.RespondError(c, apierr.StatusOf(err), apierr.CodeOf(err), err)
		return
	}
	response.RespondOK(c, result)
}

// GET /api/v1/graphs/visualization?user_id=...&content_id=...
func (h *GraphHandler) GetVisualization(c *gin.Context) {
	userID, err := uuid.Parse(c.Query("user_id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	contentID, err := uuid.Parse(c.Query("content_id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_content_id", err)
		return
	}
	viz, err := h.learner.GetVisualization(c.Request.Context(), userID, contentID)
	if err != nil {
		h.log.Error("GetVisualization failed", "error", err, "user_id", userID, "content_id", contentID)
		response.RespondError(c, apierr.StatusOf(err), apierr.CodeOf(err), err)
		return
	}
	response.RespondOK(c, viz)
}

// GET /api/v1/graphs/recommendations?user_id=...&context_content_id=...
func (h *GraphHandler) GetRecommendations(c *gin.Context) {
	userID, err := uuid.Parse(c.Query("user_id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	var contextContentID *uuid.UUID
	if raw := c.Query("context_content_id"); raw != "" {
		cid, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_context_content_id", err)
			return
		}
		contextContentID = &cid
	}
	recs, err := h.recommendations.GetRecommendations(c.Request.Context(), userID, contextContentID)
	if err != nil {
		h.log.Error("GetRecommendations failed", "error", err, "user_id", userID)
		response.RespondError(c, apierr.StatusOf(err), apierr.CodeOf(err), err)
		return
	}
	response.RespondOK(c, gin.H{"recommendations": recs})
}

// GET /api/v1/graphs/threshold/:user_id
func (h *GraphHandler) GetThresholdStatistics(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	stats, err := h.thresholds.GetStatistics(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("GetThresholdStatistics failed", "error", err, "user_id", userID)
		response.RespondError(c, apierr.StatusOf(err), apierr.CodeOf(err), err)
		return
	}
	response.RespondOK(c, stats)
}
