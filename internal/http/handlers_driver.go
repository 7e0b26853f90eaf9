// README: Driver-facing endpoints: offer responses, location beacons,
// availability, airport queue position, and the push socket.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pirideshare/internal/modules/airport"
	"pirideshare/internal/modules/registry"
	"pirideshare/internal/types"
)

type driverResponseBody struct {
	DriverID string `json:"driver_id" binding:"required"`
	Accepted *bool  `json:"accepted" binding:"required"`
	Reason   string `json:"reason"`
}

func (s *Server) handleDriverResponse(c *gin.Context) {
	var body driverResponseBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	rideID := types.ID(c.Param("id"))
	err := s.dispatcher.SubmitDriverResponse(c.Request.Context(), rideID, types.ID(body.DriverID), *body.Accepted, body.Reason)
	if err != nil {
		writeDispatchError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ride_id": rideID, "accepted": *body.Accepted})
}

type locationUpdateBody struct {
	Position types.Point `json:"position" binding:"required"`
	Heading  *float64    `json:"heading"`
	SpeedKmh *float64    `json:"speed_kmh"`
}

func (s *Server) handleLocationUpdate(c *gin.Context) {
	var body locationUpdateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	rec := s.registry.Upsert(c.Request.Context(), types.ID(c.Param("id")), registry.Update{
		Position: &body.Position,
		Heading:  body.Heading,
		SpeedKmh: body.SpeedKmh,
	})
	c.JSON(http.StatusOK, rec)
}

type availabilityBody struct {
	Available *bool             `json:"available" binding:"required"`
	Vehicle   *registry.Vehicle `json:"vehicle"`
}

func (s *Server) handleAvailability(c *gin.Context) {
	var body availabilityBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	rec := s.registry.Upsert(c.Request.Context(), types.ID(c.Param("id")), registry.Update{
		Available: body.Available,
		Vehicle:   body.Vehicle,
	})
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleAirportQueue(c *gin.Context) {
	zone := c.Param("zone")
	entries := s.airport.Entries(zone)
	out := make([]gin.H, len(entries))
	for i, e := range entries {
		out[i] = gin.H{
			"driver_id":           e.DriverID,
			"position":            i + 1,
			"estimated_wait_mins": airport.EstimatedWaitMinutes(i + 1),
			"joined_at":           e.JoinedAt,
		}
	}
	c.JSON(http.StatusOK, gin.H{"airport": zone, "length": len(entries), "queue": out})
}

func (s *Server) handleDriverSocket(c *gin.Context) {
	driverID := types.ID(c.Param("id"))
	if driverID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "driver id required"})
		return
	}
	s.hub.ServeWs(c.Writer, c.Request, driverID)
}
