package handler

import (
	"errors"
	"net/http"

	"procurement/internal/service"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
)

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrDocumentNotFound),
		errors.Is(err, service.ErrTDSSectionNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrVendorNotFound),
		errors.Is(err, service.ErrUnknownKind):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrTDSOverlap),
		errors.Is(err, service.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrPayloadInvalid),
		errors.Is(err, service.ErrInvalidDecision),
		errors.Is(err, service.ErrInvalidTDSRule),
		errors.Is(err, service.ErrNoActiveTDSRule),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrInvalidVendor):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// respondError writes the error envelope. Internal errors are attached to the
// gin context for the request logger and hidden from the caller.
func respondError(c *gin.Context, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "internal server error"
	}
	c.JSON(code, response.Error(code, msg))
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
}
