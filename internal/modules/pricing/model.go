// README: Fare rate definitions and quote breakdowns.
package pricing

import "math"

// Rate is the per-vehicle-class price book.
type Rate struct {
	VehicleClass string  `json:"vehicle_class"`
	Base         float64 `json:"base"`
	PerMile      float64 `json:"per_mile"`
	PerMinute    float64 `json:"per_minute"`
}

// FareLine is one term of a quote's breakdown.
type FareLine struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// FareQuote is the rider-facing estimate. Estimated is true when the routing
// service was unavailable and the great-circle fallback was used.
type FareQuote struct {
	VehicleClass    string     `json:"vehicle_class"`
	DistanceMiles   float64    `json:"distance_miles"`
	DurationMinutes float64    `json:"duration_minutes"`
	Subtotal        float64    `json:"subtotal"`
	SurgeMultiplier float64    `json:"surge_multiplier"`
	Total           float64    `json:"total"`
	Breakdown       []FareLine `json:"breakdown"`
	Estimated       bool       `json:"estimated"`
}

// DefaultRates covers every vehicle class the platform dispatches; the rates
// table overrides these per deployment.
var DefaultRates = map[string]Rate{
	"economy": {VehicleClass: "economy", Base: 4.00, PerMile: 1.85, PerMinute: 0.35},
	"comfort": {VehicleClass: "comfort", Base: 6.00, PerMile: 2.35, PerMinute: 0.45},
	"xl":      {VehicleClass: "xl", Base: 7.50, PerMile: 2.95, PerMinute: 0.55},
	"luxury":  {VehicleClass: "luxury", Base: 10.00, PerMile: 3.75, PerMinute: 0.65},
}

// Round2 rounds to cents, applied exactly once on the surged total.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
