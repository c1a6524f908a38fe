package common

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// GenericFailure is the only failure text a caller ever sees for internal errors.
const GenericFailure = "Sorry, something went wrong on our end. Please try again."

// Envelope is the uniform response body of every endpoint.
type Envelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Result    bool   `json:"result"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// OK writes a 200 envelope. result reports whether the call produced something
// (a found session, a non-empty list, ...), independent of success.
func OK(c *gin.Context, message string, result bool, data any) {
	c.JSON(http.StatusOK, Envelope{
		Success:   true,
		Message:   message,
		Result:    result,
		Data:      data,
		Timestamp: now(),
	})
}

func Fail(c *gin.Context, httpStatus int, message string) {
	c.AbortWithStatusJSON(httpStatus, Envelope{
		Success:   false,
		Message:   message,
		Result:    false,
		Data:      nil,
		Timestamp: now(),
	})
}
