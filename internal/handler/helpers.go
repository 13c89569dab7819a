package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/barbartender/bartender/internal/middleware"
	"github.com/barbartender/bartender/internal/pkg/errcode"
	appErr "github.com/barbartender/bartender/internal/pkg/errors"
	"github.com/barbartender/bartender/internal/pkg/response"
)

type errMapping struct {
	err     error
	code    int
	message string
}

// Checked in order; an empty message falls back to err.Error().
var errMappings = []errMapping{
	{appErr.ErrCodeNotFound, errcode.ErrCodeNotFound, "verification code not found, please register or resend"},
	{appErr.ErrCodeExpired, errcode.ErrCodeExpired, "verification code expired, please request a new one"},
	{appErr.ErrCodeInvalid, errcode.ErrCodeInvalid, "invalid verification code"},
	{appErr.ErrEmailTaken, errcode.ErrEmailTaken, "email already registered"},
	{appErr.ErrUsernameTaken, errcode.ErrUsernameTaken, "username already taken"},
	{appErr.ErrItemNumberTaken, errcode.ErrConflict, "unique item number already exists"},
	{appErr.ErrInvalidWorkbook, errcode.ErrInvalidFile, ""},
	{appErr.ErrUnauthorized, errcode.ErrUnauthorized, "unauthorized"},
	{appErr.ErrForbidden, errcode.ErrForbidden, "forbidden"},
	{appErr.ErrNotFound, errcode.ErrNotFound, "not found"},
	{appErr.ErrInvalid, errcode.ErrInvalid, ""},
	{appErr.ErrConflict, errcode.ErrConflict, "conflict"},
	{appErr.ErrTooMany, errcode.ErrTooMany, "too many requests"},
}

func getUserID(c *gin.Context) string {
	return c.GetString(middleware.ContextUserIDKey)
}

func requestLogger(c *gin.Context) *zap.Logger {
	return logutil.GetLogger(c.Request.Context()).With(
		zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("user_id", getUserID(c)),
	)
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	for _, m := range errMappings {
		if !errors.Is(err, m.err) {
			continue
		}
		requestLogger(c).Info("request rejected", zap.Error(err))
		msg := m.message
		if msg == "" {
			msg = err.Error()
		}
		response.Error(c, m.code, msg)
		return
	}
	requestLogger(c).Error("request failed", zap.Error(err))
	response.Error(c, errcode.ErrInternal, "internal error")
}

func invalidRequest(c *gin.Context, msg string) {
	response.Error(c, errcode.ErrInvalid, msg)
}
