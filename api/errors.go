package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prescripto/booking/internal/domain"
)

const internalMessage = "Something went wrong. Please try again later."

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindUnauthorized:
		return http.StatusForbidden
	case domain.KindInvalidState, domain.KindConflict:
		return http.StatusConflict
	case domain.KindValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError renders a service error. Infrastructure detail is attached to the
// gin context for the request logger and never reaches the client.
func writeError(c *gin.Context, err error) {
	var derr *domain.Error
	if !errors.As(err, &derr) || derr.Kind == domain.KindInfrastructure {
		_ = c.Error(domain.Cause(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"code":    "INTERNAL_ERROR",
			"message": internalMessage,
		})
		return
	}
	c.JSON(statusFor(derr.Kind), gin.H{
		"success": false,
		"code":    derr.Code,
		"message": derr.Message,
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"code":    "VALIDATION_ERROR",
		"message": message,
	})
}
