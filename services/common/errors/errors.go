package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error is an HTTP-facing error: a status code, a client-safe message and
// the underlying cause, which is never serialized.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap returns a copy of e carrying err. The package level values are never mutated.
func (e *Error) Wrap(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Err: err}
}

func New(code int, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

var (
	ErrBadRequest       = New(http.StatusBadRequest, "Bad request", nil)
	ErrUnauthorized     = New(http.StatusUnauthorized, "Unauthorized", nil)
	ErrForbidden        = New(http.StatusForbidden, "Forbidden", nil)
	ErrInternalServer   = New(http.StatusInternalServerError, "Internal server error", nil)
	ErrInvalidSignature = New(http.StatusUnauthorized, "Invalid signature", nil)
	ErrInvalidToken     = New(http.StatusUnauthorized, "Invalid token", nil)
	ErrStoreUnavailable = New(http.StatusServiceUnavailable, "Record store unavailable", nil)
)

// As converts any error into an *Error, defaulting to 500.
func As(err error) *Error {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServer.Wrap(err)
}

// ErrorMiddleware renders the last error attached with c.Error.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		appErr := As(c.Errors.Last().Err)
		c.AbortWithStatusJSON(appErr.Code, appErr)
	}
}
