package orchestrate

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"feedback-backend/internal/analyses"
	"feedback-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches job routes to the router group. Extra
// middleware, such as a rate limit, applies to the trigger route only
// since it calls out to the workflow engine.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, triggerMiddleware ...gin.HandlerFunc) {
	rg.GET("/jobs", h.list)
	rg.GET("/jobs/:id", h.get)
	rg.POST("/jobs/:id/retry", h.retry)
	rg.POST("/jobs/:id/cancel", h.cancel)
	rg.POST("/trigger/:feedback_id", append(triggerMiddleware, h.trigger)...)
}

func (h *Handler) list(c *gin.Context) {
	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	status := Status(c.Query("status"))
	switch status {
	case "", StatusQueued, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
	default:
		respond.Error(c, http.StatusBadRequest, "validation_error", "unknown status filter", nil)
		return
	}

	jobs, err := h.Svc.List(c.Request.Context(), status, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list jobs", nil)
		return
	}
	if jobs == nil {
		jobs = []Job{}
	}
	respond.OK(c, jobs)
}

func (h *Handler) get(c *gin.Context) {
	job, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch job", nil)
		return
	}
	respond.OK(c, job)
}

func (h *Handler) trigger(c *gin.Context) {
	kind := Kind(c.Query("kind"))
	switch kind {
	case KindTicket, KindAlert, KindAssignment, KindFollowup:
	default:
		respond.Error(c, http.StatusBadRequest, "validation_error",
			"kind must be one of ticket, alert, assignment, followup", nil)
		return
	}

	job, err := h.Svc.Trigger(c.Request.Context(), c.Param("feedback_id"), kind)
	if err != nil {
		if errors.Is(err, analyses.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "feedback has no analysis to trigger from", nil)
			return
		}
		h.transitionError(c, err, "failed to trigger job")
		return
	}
	respond.OK(c, job)
}

func (h *Handler) retry(c *gin.Context) {
	job, err := h.Svc.Retry(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.transitionError(c, err, "failed to retry job")
		return
	}
	respond.OK(c, job)
}

func (h *Handler) cancel(c *gin.Context) {
	job, err := h.Svc.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.transitionError(c, err, "failed to cancel job")
		return
	}
	respond.OK(c, job)
}

func (h *Handler) transitionError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
	case errors.Is(err, ErrRetryBudgetExhausted):
		respond.Error(c, http.StatusConflict, "retry_budget_exhausted", err.Error(), nil)
	case errors.Is(err, ErrInvalidTransition):
		respond.Error(c, http.StatusConflict, "invalid_transition", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
