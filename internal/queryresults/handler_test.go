package queryresults

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docanalysis-backend/internal/processdata"
	"docanalysis-backend/internal/queue"
	"docanalysis-backend/internal/textract"
)

type fakeQueue struct {
	sent []queue.IDMessage
	err  error
}

func (f *fakeQueue) Send(ctx context.Context, msg queue.IDMessage) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func newTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r.Group("/api/v1"))
	return r
}

func serve(r http.Handler, method, path string) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(method, path, nil))
	return resp
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return body.Error.Code
}

func TestHandlerRunsStageSynchronously(t *testing.T) {
	quietLogs(t)
	repo := seedRepo(t, pendingRecord())
	p := &Processor{Repo: repo, Analysis: &fakeAnalysis{model: invoiceModel()}}
	r := newTestRouter(NewHandler(p, repo, nil))

	resp := serve(r, http.MethodPost, "/api/v1/process-data/proc-1/query-results")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"Id":"proc-1"}`, resp.Body.String())

	resp = serve(r, http.MethodGet, "/api/v1/process-data/proc-1")
	require.Equal(t, http.StatusOK, resp.Code)
	var rec processdata.ProcessData
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &rec))
	assert.Empty(t, rec.TaskToken)
	assert.True(t, rec.Queries[0].IsValid)
	assert.False(t, rec.Queries[2].IsValid)
}

func TestHandlerEnqueuesAsyncRuns(t *testing.T) {
	quietLogs(t)
	repo := processdata.NewMemoryRepo()
	q := &fakeQueue{}
	r := newTestRouter(NewHandler(&Processor{Repo: repo, Analysis: &fakeAnalysis{}}, repo, q))

	resp := serve(r, http.MethodPost, "/api/v1/process-data/proc-7/query-results?async=true")
	require.Equal(t, http.StatusAccepted, resp.Code)
	assert.Equal(t, []queue.IDMessage{{ID: "proc-7"}}, q.sent)
	assert.JSONEq(t, `{"Id":"proc-7","status":"queued"}`, resp.Body.String())
	assert.Equal(t, "/api/v1/process-data/proc-7", resp.Header().Get("Location"))
	assert.Equal(t, "no-store", resp.Header().Get("Cache-Control"))

	q.err = errors.New("throttled")
	resp = serve(r, http.MethodPost, "/api/v1/process-data/proc-7/query-results?async=1")
	assert.Equal(t, http.StatusBadGateway, resp.Code)
}

func TestHandlerAsyncWithoutQueue(t *testing.T) {
	quietLogs(t)
	repo := processdata.NewMemoryRepo()
	r := newTestRouter(NewHandler(&Processor{Repo: repo, Analysis: &fakeAnalysis{}}, repo, nil))

	resp := serve(r, http.MethodPost, "/api/v1/process-data/proc-7/query-results?async=true")
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Equal(t, "queue_unavailable", errorCode(t, resp))
}

func TestHandlerMapsErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"missing output", textract.ErrOutputNotFound, http.StatusNotFound, "analysis_not_found"},
		{"in progress", textract.ErrJobInProgress, http.StatusConflict, "job_in_progress"},
		{"failed job", textract.ErrJobFailed, http.StatusUnprocessableEntity, "job_failed"},
		{"bad location", textract.ErrInvalidLocation, http.StatusUnprocessableEntity, "invalid_location"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quietLogs(t)
			repo := seedRepo(t, pendingRecord())
			p := &Processor{Repo: repo, Analysis: &fakeAnalysis{err: tt.err}}
			r := newTestRouter(NewHandler(p, repo, nil))

			resp := serve(r, http.MethodPost, "/api/v1/process-data/proc-1/query-results")
			assert.Equal(t, tt.status, resp.Code)
			assert.Equal(t, tt.code, errorCode(t, resp))
		})
	}
}

func TestHandlerNotFoundAndConflict(t *testing.T) {
	quietLogs(t)
	repo := &countingRepo{Repo: seedRepo(t, pendingRecord()), saveErr: processdata.ErrConflict}
	p := &Processor{Repo: repo, Analysis: &fakeAnalysis{model: invoiceModel()}}
	r := newTestRouter(NewHandler(p, repo, nil))

	resp := serve(r, http.MethodGet, "/api/v1/process-data/unknown")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "not_found", errorCode(t, resp))

	resp = serve(r, http.MethodPost, "/api/v1/process-data/unknown/query-results")
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = serve(r, http.MethodPost, "/api/v1/process-data/proc-1/query-results")
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "conflict", errorCode(t, resp))
}
