package analyses

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"feedback-backend/internal/feedbacks"
	"feedback-backend/internal/shared/server/respond"
)

// maxBatchSize bounds one batch analysis request.
const maxBatchSize = 20

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses", h.analyze)
	rg.POST("/analyses/batch", h.analyzeBatch)
	rg.GET("/analyses/:feedback_id", h.get)
}

type analyzeRequest struct {
	FeedbackID string `json:"feedback_id"`
	Force      bool   `json:"force_reanalysis"`
}

func (h *Handler) analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	a, err := h.Svc.Analyze(c.Request.Context(), req.FeedbackID, req.Force)
	if err != nil {
		switch {
		case errors.Is(err, feedbacks.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "feedback not found", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusBadGateway, "analysis_failed", err.Error(), nil)
		}
		return
	}

	respond.OK(c, a)
}

type analyzeBatchRequest struct {
	FeedbackIDs []string `json:"feedback_ids"`
	Force       bool     `json:"force_reanalysis"`
}

func (h *Handler) analyzeBatch(c *gin.Context) {
	var req analyzeBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if len(req.FeedbackIDs) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "feedback_ids is required", nil)
		return
	}
	if len(req.FeedbackIDs) > maxBatchSize {
		respond.Error(c, http.StatusBadRequest, "validation_error", "batch exceeds 20 items", nil)
		return
	}

	results := h.Svc.AnalyzeBatch(c.Request.Context(), req.FeedbackIDs, req.Force)

	completed := 0
	for _, r := range results {
		if r.Status == "completed" {
			completed++
		}
	}
	respond.OK(c, gin.H{
		"total":     len(results),
		"completed": completed,
		"failed":    len(results) - completed,
		"results":   results,
	})
}

func (h *Handler) get(c *gin.Context) {
	a, err := h.Svc.Get(c.Request.Context(), c.Param("feedback_id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
		}
		return
	}
	respond.OK(c, a)
}
