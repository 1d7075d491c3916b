package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Queued is the body of a 202 for a run handed to the worker queue.
type Queued struct {
	ID        string `json:"Id"`
	Status    string `json:"status"`
	RequestID string `json:"requestId,omitempty"`
}

// JSON writes payload with status. Process records carry Step Functions task
// tokens, so nothing is cacheable.
func JSON(c *gin.Context, status int, payload any) {
	c.Header("Cache-Control", "no-store")
	c.JSON(status, payload)
}

// OK writes a 200 JSON response.
func OK(c *gin.Context, payload any) {
	JSON(c, http.StatusOK, payload)
}

// Accepted writes a 202 for processID and points Location at the record the
// run will update.
func Accepted(c *gin.Context, processID, location string) {
	if location != "" {
		c.Header("Location", location)
	}
	JSON(c, http.StatusAccepted, Queued{
		ID:        processID,
		Status:    "queued",
		RequestID: c.GetString("requestId"),
	})
}
