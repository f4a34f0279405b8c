package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/barterx-accounts/internal/application"
	"github.com/oksasatya/barterx-accounts/pkg/response"
	"github.com/oksasatya/barterx-accounts/pkg/validation"
)

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, application.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, application.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, application.ErrUnverified),
		errors.Is(err, application.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, application.ErrInvalidCode),
		errors.Is(err, application.ErrExpired),
		errors.Is(err, application.ErrAlreadyDone),
		errors.Is(err, application.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err in the response envelope. Server errors are logged
// and their details kept out of the body.
func writeError(c *gin.Context, logger *logrus.Logger, err error) {
	status := statusFor(err)
	var verr *application.ValidationError
	switch {
	case errors.As(err, &verr):
		response.Error[any](c, status, "invalid payload", verr.Fields)
	case status == http.StatusInternalServerError:
		if logger != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"path":       c.FullPath(),
				"request_id": c.GetString("request_id"),
			}).Error("request failed")
		}
		response.Error[any](c, status, "internal server error", nil)
	default:
		response.Error[any](c, status, err.Error(), nil)
	}
}

func bindError(c *gin.Context, err error) {
	response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
}
