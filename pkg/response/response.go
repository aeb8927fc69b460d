package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/class-schedule/pkg/errors"
)

// Envelope wraps error responses.
type Envelope struct {
	Error *appErrors.Error `json:"error"`
}

// Ack is the acknowledgement body returned by destructive operations.
type Ack struct {
	Message string `json:"message"`
	ID      int64  `json:"id,omitempty"`
}

// JSON writes the payload as the bare response body. Resource endpoints
// return arrays and records unwrapped so browser clients can consume them
// directly.
func JSON(c *gin.Context, status int, data interface{}) {
	noStore(c)
	c.JSON(status, data)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data)
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	if appErr.Status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	noStore(c)
	c.JSON(appErr.Status, Envelope{Error: appErr})
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}
