package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/guttosm/firdspulse/internal/domain/dto"
	"github.com/guttosm/firdspulse/internal/domain/models"
	"github.com/guttosm/firdspulse/internal/middleware"
	"github.com/guttosm/firdspulse/internal/service"
)

// MaxListLimit caps the limit query parameter of GET /api/v1/runs.
const MaxListLimit = 500

// Handler provides HTTP handlers for the run history and trigger endpoints.
//
// Responsibilities:
//   - Validate path and query parameters
//   - Delegate to the RunService
//   - Translate domain runs into response DTOs
type Handler struct {
	svc service.RunService
}

// NewHandler constructs a new Handler instance.
func NewHandler(svc service.RunService) *Handler {
	return &Handler{svc: svc}
}

// ListRuns handles GET /api/v1/runs.
//
// Query Parameters:
//   - limit (int, optional): page size, 1..MaxListLimit. Defaults to the repository default.
//   - since (string, optional): earliest run date in YYYY-MM-DD format.
//
// Responses:
//   - 200 OK: RunListResponse, newest first.
//   - 400 Bad Request: invalid limit or since.
//   - 503 Service Unavailable: run history disabled.
func (h *Handler) ListRuns(c *gin.Context) {
	var filter models.RunFilter

	// ─── Parse optional "limit" param ─────────────────────────
	if s := strings.TrimSpace(c.Query("limit")); s != "" {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil || n == 0 || n > MaxListLimit {
			middleware.AbortWithError(c, http.StatusBadRequest, "limit must be between 1 and 500", err)
			return
		}
		filter.Limit = n
	}

	// ─── Parse optional "since" param ─────────────────────────
	if s := strings.TrimSpace(c.Query("since")); s != "" {
		since, err := time.Parse("2006-01-02", s)
		if err != nil {
			middleware.AbortWithError(c, http.StatusBadRequest, "invalid since format, expected YYYY-MM-DD", err)
			return
		}
		filter.Since = &since
	}

	runs, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		h.serviceError(c, "failed to list runs", err)
		return
	}

	resp := dto.RunListResponse{Runs: make([]dto.RunResponse, 0, len(runs)), Count: len(runs)}
	for _, r := range runs {
		resp.Runs = append(resp.Runs, dto.NewRunResponse(r))
	}
	c.JSON(http.StatusOK, resp)
}

// LatestRun handles GET /api/v1/runs/latest.
func (h *Handler) LatestRun(c *gin.Context) {
	run, err := h.svc.Latest(c.Request.Context())
	if err != nil {
		h.serviceError(c, "failed to fetch latest run", err)
		return
	}
	if run == nil {
		middleware.AbortWithError(c, http.StatusNotFound, "no runs recorded", nil)
		return
	}
	c.JSON(http.StatusOK, dto.NewRunResponse(*run))
}

// GetRun handles GET /api/v1/runs/:id.
//
// Responses:
//   - 200 OK: RunResponse.
//   - 400 Bad Request: id is not a UUID.
//   - 404 Not Found: no run with that id.
func (h *Handler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, "invalid run id", err)
		return
	}

	run, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.serviceError(c, "failed to fetch run", err)
		return
	}
	if run == nil {
		middleware.AbortWithError(c, http.StatusNotFound, "run not found", nil)
		return
	}
	c.JSON(http.StatusOK, dto.NewRunResponse(*run))
}

// TriggerRun handles POST /api/v1/runs.
//
// Concurrent triggers share one run. If the run outlasts the request deadline the
// handler answers 202 and the run keeps going in the background.
//
// Responses:
//   - 200 OK: TriggerResponse with the finished run.
//   - 202 Accepted: run still in progress.
//   - 500 Internal Server Error: the run failed; the body carries the failing step.
func (h *Handler) TriggerRun(c *gin.Context) {
	run, shared, err := h.svc.Trigger(c.Request.Context())
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusAccepted, gin.H{"status": models.RunStatusRunning})
		return
	case errors.Is(err, context.Canceled):
		c.Abort()
		return
	case err != nil:
		middleware.AbortWithError(c, http.StatusInternalServerError, "run failed", err)
		return
	}
	c.JSON(http.StatusOK, dto.TriggerResponse{Run: dto.NewRunResponse(run), Shared: shared})
}

func (h *Handler) serviceError(c *gin.Context, msg string, err error) {
	if errors.Is(err, service.ErrRunLogDisabled) {
		middleware.AbortWithError(c, http.StatusServiceUnavailable, "run history is disabled", err)
		return
	}
	middleware.AbortWithError(c, http.StatusInternalServerError, msg, err)
}
