package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/qazuor/qzpay-sub003/internal/types"
)

const headerRequestID = "X-Request-ID"

// RequestIDMiddleware propagates or mints a request id and stores it in the
// request context for logging and audit attribution.
func RequestIDMiddleware(c *gin.Context) {
	requestID := c.GetHeader(headerRequestID)
	if requestID == "" {
		requestID = types.GenerateUUID()
	}

	ctx := context.WithValue(c.Request.Context(), types.CtxRequestID, requestID)
	c.Request = c.Request.WithContext(ctx)
	c.Header(headerRequestID, requestID)
	c.Next()
}
