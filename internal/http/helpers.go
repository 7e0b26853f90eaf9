// README: HTTP helper utilities for JSON error mapping.
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pirideshare/internal/modules/dispatch"
	"pirideshare/internal/modules/pricing"
)

func writeDispatchError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, dispatch.ErrBadRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, dispatch.ErrUnknownRide):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, dispatch.ErrRideTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, dispatch.ErrUnavailable), errors.Is(err, dispatch.ErrExhausted):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":      err.Error(),
			"suggestion": "try again in a few minutes or widen the pickup area",
		})
	case errors.Is(err, pricing.ErrUnknownVehicleClass):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
