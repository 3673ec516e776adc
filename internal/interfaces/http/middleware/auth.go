package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NoticeFlow/pkg/errors"
	"github.com/turtacn/NoticeFlow/pkg/types/common"
)

const (
	// WebhookTokenHeader carries the shared secret configured on the chat
	// gateway.
	WebhookTokenHeader  = "X-Webhook-Token"
	AuthorizationHeader = "Authorization"
)

// HeaderToken rejects requests whose header does not carry token. An empty
// token disables the check.
func HeaderToken(header, token string, logger logging.Logger) gin.HandlerFunc {
	return tokenAuth(token, logger, func(c *gin.Context) string {
		return c.GetHeader(header)
	})
}

// BearerToken rejects requests without "Authorization: Bearer <token>". An
// empty token disables the check.
func BearerToken(token string, logger logging.Logger) gin.HandlerFunc {
	return tokenAuth(token, logger, extractBearerToken)
}

func tokenAuth(token string, logger logging.Logger, extract func(*gin.Context) string) gin.HandlerFunc {
	if token == "" {
		return func(c *gin.Context) { c.Next() }
	}
	want := []byte(token)
	return func(c *gin.Context) {
		got := extract(c)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			logger.Warn("Request rejected: invalid credentials",
				logging.String("path", c.Request.URL.Path),
				logging.String("request_id", c.GetString(RequestIDKey)))
			resp := common.NewErrorResponse(errors.ErrCodeUnauthorized.String(), "authentication required")
			resp.RequestID = c.GetString(RequestIDKey)
			c.AbortWithStatusJSON(errors.HTTPStatus(errors.ErrCodeUnauthorized), resp)
			return
		}
		c.Next()
	}
}

// extractBearerToken extracts the Bearer token from the Authorization header.
func extractBearerToken(c *gin.Context) string {
	auth := c.GetHeader(AuthorizationHeader)
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
