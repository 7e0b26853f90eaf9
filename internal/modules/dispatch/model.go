// README: Ride requests, dispatch process states, and the error taxonomy the
// cascade surfaces to callers.
package dispatch

import (
	"errors"
	"time"

	"pirideshare/internal/modules/pricing"
	"pirideshare/internal/modules/registry"
	"pirideshare/internal/types"
)

type Status string

const (
	StatusRequested Status = "requested"
	StatusMatching  Status = "matching"
	StatusOffered   Status = "offered"
	StatusMatched   Status = "matched"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// RideRequest is the dispatcher's view of one ride. The quote travels with it
// so escalation can bump the fare without re-pricing.
type RideRequest struct {
	ID           types.ID          `json:"id"`
	RiderID      types.ID          `json:"rider_id"`
	Pickup       types.Point       `json:"pickup"`
	Destination  types.Point       `json:"destination"`
	VehicleClass string            `json:"vehicle_class"`
	RequestedAt  time.Time         `json:"requested_at"`
	Status       Status            `json:"status"`
	Quote        pricing.FareQuote `json:"quote"`
}

var (
	// ErrUnavailable: no candidate drivers at match time. Terminal for this
	// attempt; the rider should retry.
	ErrUnavailable = errors.New("no_drivers_available")
	// ErrExhausted: every candidate was tried or the attempt cap was hit.
	ErrExhausted = errors.New("no_drivers_accepted")
	// ErrRideTaken: a stale accept/decline arrived after the offer moved on.
	// An answer to the late driver, not a failure of the ride.
	ErrRideTaken = errors.New("ride already taken")
	// ErrUnknownRide: no active dispatch process for the ride.
	ErrUnknownRide = errors.New("ride not found")
	// ErrBadRequest: the request was malformed (missing rider, bad class).
	ErrBadRequest = errors.New("bad request")
)

// ScoredDriver pairs a registry record with its rank for a specific pickup.
type ScoredDriver struct {
	Driver     registry.DriverRecord `json:"driver"`
	Score      float64               `json:"score"`
	DistanceKm float64               `json:"distance_km"`
}

// Config carries the cascade's tunables.
type Config struct {
	OfferTimeout       time.Duration
	MaxAttempts        int
	EscalationTimeouts int
	EscalationFactor   float64
	DriverShare        float64
	SearchRadiusKm     float64
}

func DefaultConfig() Config {
	return Config{
		OfferTimeout:       7 * time.Second,
		MaxAttempts:        7,
		EscalationTimeouts: 2,
		EscalationFactor:   1.5,
		DriverShare:        0.80,
		SearchRadiusKm:     5.0,
	}
}

// Result is the terminal report pushed to the rider.
type Result struct {
	RideID   types.ID      `json:"ride_id"`
	Status   Status        `json:"status"`
	DriverID types.ID      `json:"driver_id,omitempty"`
	Attempts int           `json:"attempts"`
	Timeouts int           `json:"timeouts"`
	Elapsed  time.Duration `json:"elapsed"`
	Reason   string        `json:"reason,omitempty"`
}
