package middleware

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
)

// ErrorResponse is the standard error body
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Display string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorHandler renders errors attached to the gin context as JSON with the
// status derived from the error mark.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err
			response := ErrorResponse{
				Success: false,
				Error: ErrorDetail{
					Display: displayMessage(err),
					Details: safeDetails(err),
				},
			}
			c.JSON(ierr.HTTPStatusFromErr(err), response)
		}
	}
}

// displayMessage returns the first hint, which is the user-safe message
func displayMessage(err error) string {
	for _, hint := range errors.GetAllHints(err) {
		if hint = strings.TrimSpace(hint); hint != "" {
			return hint
		}
	}
	return "An unexpected error occurred"
}

func safeDetails(err error) map[string]any {
	details := make(map[string]any)
	for _, sdp := range errors.GetAllSafeDetails(err) {
		for _, payload := range sdp.SafeDetails {
			if !strings.HasPrefix(payload, "__json__:") {
				continue
			}
			var jsonDetails map[string]any
			if jsonErr := json.Unmarshal([]byte(payload[len("__json__:"):]), &jsonDetails); jsonErr == nil {
				for k, v := range jsonDetails {
					details[k] = v
				}
			}
		}
	}
	if len(details) == 0 {
		return nil
	}
	return details
}
