package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"docanalysis-backend/internal/queryresults"
	"docanalysis-backend/internal/shared/telemetry"
)

func TestLoggingIncludesRequiredFields(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	defer telemetry.SetOutput(&buf)()

	var ctxRequestID string
	router := gin.New()
	router.Use(RequestID(), Logging())
	router.POST("/api/v1/process-data/:id/query-results", func(c *gin.Context) {
		c.Set("processId", c.Param("id"))
		c.Set("runMode", "sync")
		ctxRequestID = queryresults.RequestIDFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/process-data/proc-1/query-results", nil)
	req.Header.Set("X-Request-Id", "req-123")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if got := resp.Header().Get("X-Request-Id"); got != "req-123" {
		t.Fatalf("expected echoed request id, got %q", got)
	}
	if ctxRequestID != "req-123" {
		t.Fatalf("expected request id on request context, got %q", ctxRequestID)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	last := lines[len(lines)-1]
	var payload map[string]any
	if err := json.Unmarshal([]byte(last), &payload); err != nil {
		t.Fatalf("decode log json: %v", err)
	}

	required := []string{"request_id", "process_id", "run_mode", "duration_ms", "status", "route"}
	for _, key := range required {
		if _, ok := payload[key]; !ok {
			t.Fatalf("missing log field: %s", key)
		}
	}
	if payload["msg"] != "request.complete" {
		t.Fatalf("unexpected msg: %v", payload["msg"])
	}
	if payload["process_id"] != "proc-1" {
		t.Fatalf("unexpected process_id: %v", payload["process_id"])
	}
	if payload["route"] != "/api/v1/process-data/:id/query-results" {
		t.Fatalf("unexpected route: %v", payload["route"])
	}
}

func TestRequestIDGeneratedWhenMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/x", nil))

	if got := resp.Header().Get("X-Request-Id"); len(got) != 36 {
		t.Fatalf("expected uuid request id, got %q", got)
	}
}
