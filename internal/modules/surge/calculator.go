// README: Multi-factor surge calculator. Additive contributions (time rules,
// zones, supply/demand, hotspots) then multiplicative context (weather,
// organic demand), clamped, with the no-demand override applied last.
package surge

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"pirideshare/internal/types"
)

// DriverSupply is the registry-side snapshot.
type DriverSupply interface {
	CountAvailableNear(center types.Point, radiusKm float64) int
}

// RideDemand is the active-request-set snapshot owned by the dispatcher.
type RideDemand interface {
	CountPendingNear(center types.Point, radiusKm float64) int
	CountRecentNear(center types.Point, radiusKm float64, window time.Duration) int
}

// AirportQueues reports queue lengths for airport zones.
type AirportQueues interface {
	Len(zoneID string) int
}

// WeatherSource returns a condition label ("Clear", "Rain", ...) for a point.
// Implementations fall back to "Clear" on failure.
type WeatherSource interface {
	ConditionAt(ctx context.Context, p types.Point) string
}

// Weather multipliers from the platform's pricing model, keyed by both the
// canonical labels and the OpenWeather condition names the live feed reports.
var weatherMultipliers = map[string]float64{
	"clear":        1.0,
	"cloudy":       1.1,
	"clouds":       1.1,
	"drizzle":      1.3,
	"rain":         1.3,
	"snow":         1.8,
	"storm":        2.0,
	"thunderstorm": 2.0,
}

type Calculator struct {
	supply  DriverSupply
	demand  RideDemand
	queues  AirportQueues
	weather WeatherSource
}

func NewCalculator(supply DriverSupply, demand RideDemand, queues AirportQueues, weather WeatherSource) *Calculator {
	return &Calculator{supply: supply, demand: demand, queues: queues, weather: weather}
}

// Calculate runs the full surge computation for a pickup point at time now.
// Deterministic given fixed inputs.
func (c *Calculator) Calculate(ctx context.Context, pickup types.Point, now time.Time, snap *Snapshot) Result {
	cfg := snap.Config

	driverCount := c.supply.CountAvailableNear(pickup, cfg.SearchRadiusKm)
	requestCount := c.demand.CountPendingNear(pickup, cfg.SearchRadiusKm)

	if !cfg.Enabled {
		return normalResult(driverCount, requestCount)
	}

	m := 1.0
	var factors []string

	for _, rule := range snap.TimeRules {
		if rule.Matches(now) {
			m += rule.Contribution
			factors = append(factors, rule.Name)
		}
	}

	for _, zone := range snap.Zones {
		if !zone.Contains(pickup) {
			continue
		}
		if zone.Override.ActiveAt(now) {
			m += zone.Override.Multiplier
			factors = append(factors, fmt.Sprintf("Manual override: %s", zone.Override.Reason))
		} else {
			m += zone.BaseMultiplier
			factors = append(factors, fmt.Sprintf("%s zone", zone.ID))
		}
		if zone.Type == ZoneAirport && c.queues != nil && c.queues.Len(zone.ID) > cfg.LongQueueThreshold {
			m += cfg.LongQueueBonus
			factors = append(factors, "Long airport queue")
		}
		break // lowest tier wins; snapshot keeps zones tier-sorted
	}

	ratio := 0.0
	switch {
	case driverCount == 0 && requestCount > 0:
		m += cfg.NoDriversPenalty
		factors = append(factors, "No drivers available")
	case driverCount > 0:
		ratio = float64(requestCount) / float64(driverCount)
		if ratio >= cfg.HighDemandRatio {
			m += cfg.HighDemandBase + ratio*cfg.HighDemandScale
			factors = append(factors, "High demand")
		} else if ratio >= cfg.ModerateDemandRatio {
			m += cfg.ModerateDemandBonus
			factors = append(factors, "Moderate demand")
		}
	}

	if c.demand.CountRecentNear(pickup, cfg.HotspotRadiusKm, cfg.HotspotWindow) >= cfg.HotspotMinRequests {
		m += cfg.HotspotBonus
		factors = append(factors, "Demand hotspot")
	}

	if c.weather != nil {
		if wm := weatherMultiplier(c.weather.ConditionAt(ctx, pickup)); wm > 1.0 {
			m *= wm
			factors = append(factors, "Bad weather")
		}
	}
	if om, label := organicMultiplier(now); om > 1.0 {
		m *= om
		factors = append(factors, label)
	}

	m = math.Min(math.Max(m, 1.0), cfg.MaxMultiplier)

	// No surge without any pending demand, whatever the other factors say.
	if requestCount == 0 {
		return normalResult(driverCount, 0)
	}

	if len(factors) == 0 {
		factors = []string{"Normal"}
	}
	return Result{
		Multiplier:       round2(m),
		Factors:          factors,
		DemandLevel:      demandLevel(driverCount, requestCount, ratio),
		AvailableDrivers: driverCount,
		PendingRequests:  requestCount,
		IsActive:         m > 1.0,
	}
}

func normalResult(drivers, requests int) Result {
	return Result{
		Multiplier:       1.0,
		Factors:          []string{"Normal"},
		DemandLevel:      DemandLow,
		AvailableDrivers: drivers,
		PendingRequests:  requests,
		IsActive:         false,
	}
}

func demandLevel(drivers, requests int, ratio float64) DemandLevel {
	switch {
	case requests == 0:
		return DemandLow
	case drivers == 0:
		return DemandCritical
	case ratio >= 2.0:
		return DemandVeryHigh
	case ratio >= 1.2:
		return DemandHigh
	case ratio >= 0.5:
		return DemandModerate
	default:
		return DemandLow
	}
}

func weatherMultiplier(condition string) float64 {
	if m, ok := weatherMultipliers[strings.ToLower(condition)]; ok {
		return m
	}
	return 1.0
}

// organicMultiplier models commute and nightlife demand windows.
func organicMultiplier(t time.Time) (float64, string) {
	h := t.Hour()
	wd := t.Weekday()
	switch {
	case (wd == time.Friday || wd == time.Saturday) && (h >= 22 || h < 2):
		return 1.2, "Nightlife hours"
	case wd >= time.Monday && wd <= time.Friday && (h >= 7 && h < 9 || h >= 17 && h < 19):
		return 1.15, "Commute hours"
	default:
		return 1.0, ""
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
