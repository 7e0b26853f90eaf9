// README: Driver directory records and partial-update commands.
package registry

import (
	"time"

	"pirideshare/internal/types"
)

// Vehicle describes the car a driver is currently operating.
type Vehicle struct {
	Class string `json:"class"`
	Plate string `json:"plate"`
	Color string `json:"color"`
}

// Location is the driver's last reported position.
type Location struct {
	Position  types.Point `json:"position"`
	Heading   float64     `json:"heading"`
	SpeedKmh  float64     `json:"speed_kmh"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Stats carries the performance numbers the candidate scorer consumes.
type Stats struct {
	AcceptanceRate float64   `json:"acceptance_rate"`
	CompletionRate float64   `json:"completion_rate"`
	AvgRating      float64   `json:"avg_rating"`
	CompletedTrips int       `json:"completed_trips"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// DriverRecord is the registry's view of one online driver. CurrentRideID is
// non-nil only while Available is false.
type DriverRecord struct {
	ID                 types.ID  `json:"id"`
	Location           Location  `json:"location"`
	Available          bool      `json:"available"`
	Vehicle            Vehicle   `json:"vehicle"`
	Stats              Stats     `json:"stats"`
	CurrentRideID      *types.ID `json:"current_ride_id,omitempty"`
	CurrentAirportZone *string   `json:"current_airport_zone,omitempty"`
}

// Update merges into an existing record; nil fields are left untouched.
type Update struct {
	Position  *types.Point
	Heading   *float64
	SpeedKmh  *float64
	Available *bool
	Vehicle   *Vehicle
	Stats     *Stats
}

// AirportZone is a circular geofence the registry watches for queue
// enrollment. Zones come from the surge configuration at startup/reload.
type AirportZone struct {
	ID       string
	Center   types.Point
	RadiusKm float64
}

// GeofenceWatcher receives airport-zone transitions. The airport queue
// manager implements it.
type GeofenceWatcher interface {
	OnEnterAirport(driverID types.ID, zoneID string)
	OnExitAirport(driverID types.ID, zoneID string)
}
