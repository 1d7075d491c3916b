package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"docanalysis-backend/internal/shared/metrics"
	"docanalysis-backend/internal/shared/server/respond"
	"docanalysis-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 with the standard error body. The
// panic is logged with the process id and run mode the handler had set.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			metrics.IncPanics()

			fields := map[string]any{
				"request_id": RequestIDFromContext(c),
				"route":      c.FullPath(),
				"panic":      fmt.Sprint(rec),
				"stack":      string(debug.Stack()),
			}
			if processID := c.GetString("processId"); processID != "" {
				fields["process_id"] = processID
			}
			if mode := c.GetString("runMode"); mode != "" {
				fields["run_mode"] = mode
			}
			telemetry.Error("http.panic", fields)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal_error", "unexpected server error", nil)
		}()
		c.Next()
	}
}
