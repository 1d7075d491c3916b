package queryresults

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"docanalysis-backend/internal/processdata"
	"docanalysis-backend/internal/queue"
	"docanalysis-backend/internal/shared/server/respond"
	"docanalysis-backend/internal/textract"
)

// Handler exposes process records and the query-results stage over HTTP.
type Handler struct {
	Processor *Processor
	Repo      processdata.Repo
	Queue     queue.Client
}

// NewHandler constructs a Handler. q may be nil, in which case async runs are
// rejected.
func NewHandler(p *Processor, repo processdata.Repo, q queue.Client) *Handler {
	return &Handler{Processor: p, Repo: repo, Queue: q}
}

// RegisterRoutes attaches process-data routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/process-data/:id", h.getProcessData)
	rg.POST("/process-data/:id/query-results", h.runQueryResults)
}

func (h *Handler) getProcessData(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "process id is required", nil)
		return
	}
	c.Set("processId", id)

	rec, err := h.Repo.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "failed to fetch process data")
		return
	}
	respond.OK(c, rec)
}

func (h *Handler) runQueryResults(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "process id is required", nil)
		return
	}
	c.Set("processId", id)
	msg := queue.IDMessage{ID: id}

	async, _ := strconv.ParseBool(c.DefaultQuery("async", "false"))
	if async {
		c.Set("runMode", "async")
		if h.Queue == nil {
			respond.Error(c, http.StatusServiceUnavailable, "queue_unavailable", "async runs require a configured queue", nil)
			return
		}
		if err := h.Queue.Send(c.Request.Context(), msg); err != nil {
			respond.Error(c, http.StatusBadGateway, "enqueue_failed", "failed to enqueue run", nil)
			return
		}
		respond.Accepted(c, id, strings.TrimSuffix(c.Request.URL.Path, "/query-results"))
		return
	}

	c.Set("runMode", "sync")
	out, err := h.Processor.Handle(c.Request.Context(), msg)
	if err != nil {
		writeError(c, err, "failed to process query results")
		return
	}
	respond.OK(c, out)
}

func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, processdata.ErrMissingID):
		respond.Error(c, http.StatusBadRequest, "validation_error", "process id is required", nil)
	case errors.Is(err, processdata.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "process data not found", nil)
	case errors.Is(err, textract.ErrOutputNotFound):
		respond.Error(c, http.StatusNotFound, "analysis_not_found", "analysis output not found", nil)
	case errors.Is(err, processdata.ErrConflict):
		respond.Error(c, http.StatusConflict, "conflict", "process data was modified concurrently", nil)
	case errors.Is(err, textract.ErrJobInProgress):
		respond.Error(c, http.StatusConflict, "job_in_progress", "textract job has not finished", nil)
	case errors.Is(err, textract.ErrJobFailed):
		respond.Error(c, http.StatusUnprocessableEntity, "job_failed", "textract job failed", nil)
	case errors.Is(err, textract.ErrInvalidLocation):
		respond.Error(c, http.StatusUnprocessableEntity, "invalid_location", "process data has no analysis output location", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
