// README: Rider-facing endpoints: request a ride, track it, price it.
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pirideshare/internal/http/middleware"
	"pirideshare/internal/modules/dispatch"
	"pirideshare/internal/types"
)

type rideRequestBody struct {
	RiderID      string      `json:"rider_id"`
	Pickup       types.Point `json:"pickup" binding:"required"`
	Destination  types.Point `json:"destination" binding:"required"`
	VehicleClass string      `json:"vehicle_class" binding:"required"`
}

func (s *Server) handleRequestRide(c *gin.Context) {
	var body rideRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	riderID := body.RiderID
	if uid := middleware.CallerUID(c); uid != "" {
		riderID = uid
	}

	ride, err := s.dispatcher.RequestDispatch(c.Request.Context(), dispatch.RideRequest{
		RiderID:      types.ID(riderID),
		Pickup:       body.Pickup,
		Destination:  body.Destination,
		VehicleClass: body.VehicleClass,
	})
	if err != nil {
		writeDispatchError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, ride)
}

func (s *Server) handleRideStatus(c *gin.Context) {
	res, err := s.dispatcher.Status(types.ID(c.Param("id")))
	if err != nil {
		writeDispatchError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleCancelRide(c *gin.Context) {
	if err := s.dispatcher.Cancel(c.Request.Context(), types.ID(c.Param("id"))); err != nil {
		writeDispatchError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

type quoteRequestBody struct {
	Pickup       types.Point `json:"pickup" binding:"required"`
	Destination  types.Point `json:"destination" binding:"required"`
	VehicleClass string      `json:"vehicle_class" binding:"required"`
}

func (s *Server) handleQuote(c *gin.Context) {
	var body quoteRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	quote, err := s.pricing.Quote(c.Request.Context(), body.Pickup, body.Destination, body.VehicleClass)
	if err != nil {
		writeDispatchError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (s *Server) handleSurge(c *gin.Context) {
	var q struct {
		Lat float64 `form:"lat" binding:"required"`
		Lng float64 `form:"lng" binding:"required"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng are required"})
		return
	}
	res := s.surge.At(c.Request.Context(), types.Point{Lat: q.Lat, Lng: q.Lng}, time.Now())
	c.JSON(http.StatusOK, res)
}
