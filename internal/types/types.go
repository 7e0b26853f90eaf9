// README: Common value objects shared across modules.
package types

// ID identifies riders, drivers, and rides.
type ID string

// Point is a WGS84 coordinate pair in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
