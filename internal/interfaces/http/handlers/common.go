// Package handlers implements the gin handlers behind the webhook, query and
// operations endpoints.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/NoticeFlow/internal/interfaces/http/middleware"
	"github.com/turtacn/NoticeFlow/pkg/errors"
	"github.com/turtacn/NoticeFlow/pkg/types/common"
)

// respondOK writes data wrapped in a success envelope.
func respondOK[T any](c *gin.Context, status int, data T) {
	resp := common.NewSuccessResponse(data)
	resp.RequestID = c.GetString(middleware.RequestIDKey)
	c.JSON(status, resp)
}

// respondError maps err to its HTTP status and aborts the chain. Messages of
// server-side failures are masked.
func respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatus(code)
	message := err.Error()
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		message = "internal server error"
	}
	_ = c.Error(err)

	resp := common.NewErrorResponse(code.String(), message)
	resp.RequestID = c.GetString(middleware.RequestIDKey)
	c.AbortWithStatusJSON(status, resp)
}
