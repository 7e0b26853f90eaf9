// README: API gateway; registers HTTP routes and delegates to module services.
package http

import (
	"github.com/gin-gonic/gin"

	"pirideshare/internal/http/middleware"
	"pirideshare/internal/infra"
	"pirideshare/internal/modules/airport"
	"pirideshare/internal/modules/dispatch"
	"pirideshare/internal/modules/pricing"
	"pirideshare/internal/modules/registry"
	"pirideshare/internal/modules/surge"
	"pirideshare/internal/notify"
)

type ServerDeps struct {
	Dispatcher *dispatch.Dispatcher
	Pricing    *pricing.Service
	Surge      *surge.Service
	Registry   *registry.Registry
	Airport    *airport.Manager
	Hub        *notify.Hub
	Verifier   infra.TokenVerifier
}

type Server struct {
	dispatcher *dispatch.Dispatcher
	pricing    *pricing.Service
	surge      *surge.Service
	registry   *registry.Registry
	airport    *airport.Manager
	hub        *notify.Hub
	verifier   infra.TokenVerifier
}

func NewServer(deps ServerDeps) *Server {
	return &Server{
		dispatcher: deps.Dispatcher,
		pricing:    deps.Pricing,
		surge:      deps.Surge,
		registry:   deps.Registry,
		airport:    deps.Airport,
		hub:        deps.Hub,
		verifier:   deps.Verifier,
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(middleware.Logging(), middleware.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.String(200, "OK")
	})

	api := r.Group("/api")
	if s.verifier != nil {
		api.Use(middleware.Auth(s.verifier))
	}

	api.POST("/rides/request", s.handleRequestRide)
	api.GET("/rides/:id", s.handleRideStatus)
	api.POST("/rides/:id/cancel", s.handleCancelRide)
	api.POST("/rides/:id/respond", s.handleDriverResponse)

	api.POST("/fares/quote", s.handleQuote)
	api.GET("/surge", s.handleSurge)

	api.PUT("/drivers/:id/location", s.handleLocationUpdate)
	api.PUT("/drivers/:id/availability", s.handleAvailability)
	api.GET("/airports/:zone/queue", s.handleAirportQueue)

	// Browser WebSocket clients cannot set an Authorization header, so the
	// push socket sits outside the authenticated group.
	r.GET("/ws/drivers/:id", s.handleDriverSocket)

	return r
}
