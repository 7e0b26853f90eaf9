// README: Fare estimator: vehicle-class rates + routed distance/time + surge
// multiplier, with a great-circle fallback when routing is degraded.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"log"

	"pirideshare/internal/modules/geo"
	"pirideshare/internal/modules/surge"
	"pirideshare/internal/types"
)

const (
	// Fallback travel model when the routing service is unreachable.
	assumedSpeedKmh    = 30.0
	fallbackBufferMin  = 5.0
	minDurationMinutes = 5.0
)

var ErrUnknownVehicleClass = errors.New("unknown vehicle class")

// RouteEstimate is what the routing collaborator returns.
type RouteEstimate struct {
	DistanceKm      float64
	DurationMinutes float64
}

// Router is the external routing collaborator (Google Directions in prod).
type Router interface {
	Route(ctx context.Context, origin, destination types.Point) (RouteEstimate, error)
}

// SurgeSource supplies the multiplier applied to the subtotal.
type SurgeSource interface {
	Current(ctx context.Context, pickup types.Point) surge.Result
}

// RateSource is implemented by *Store; nil store means defaults only.
type RateSource interface {
	GetRate(ctx context.Context, vehicleClass string) (Rate, error)
}

type Service struct {
	rates  RateSource
	router Router
	surge  SurgeSource
}

func NewService(rates RateSource, router Router, surgeSource SurgeSource) *Service {
	return &Service{rates: rates, router: router, surge: surgeSource}
}

// Quote prices a trip. Routing failures degrade to a great-circle estimate
// rather than failing the quote.
func (s *Service) Quote(ctx context.Context, pickup, destination types.Point, vehicleClass string) (FareQuote, error) {
	rate, err := s.rate(ctx, vehicleClass)
	if err != nil {
		return FareQuote{}, err
	}

	est, estimated := s.travelEstimate(ctx, pickup, destination)
	minutes := est.DurationMinutes
	if minutes < minDurationMinutes {
		minutes = minDurationMinutes
	}
	miles := geo.KmToMiles(est.DistanceKm)

	res := s.surge.Current(ctx, pickup)

	distanceCharge := miles * rate.PerMile
	timeCharge := minutes * rate.PerMinute
	subtotal := rate.Base + distanceCharge + timeCharge
	total := Round2(subtotal * res.Multiplier)

	return FareQuote{
		VehicleClass:    vehicleClass,
		DistanceMiles:   miles,
		DurationMinutes: minutes,
		Subtotal:        Round2(subtotal),
		SurgeMultiplier: res.Multiplier,
		Total:           total,
		Breakdown: []FareLine{
			{Label: "Base fare", Amount: Round2(rate.Base)},
			{Label: fmt.Sprintf("Distance (%.1f mi)", miles), Amount: Round2(distanceCharge)},
			{Label: fmt.Sprintf("Time (%.0f min)", minutes), Amount: Round2(timeCharge)},
			{Label: fmt.Sprintf("Surge ×%.2f", res.Multiplier), Amount: Round2(total - subtotal)},
		},
		Estimated: estimated,
	}, nil
}

func (s *Service) rate(ctx context.Context, vehicleClass string) (Rate, error) {
	if s.rates != nil {
		switch r, err := s.rates.GetRate(ctx, vehicleClass); {
		case err == nil:
			return r, nil
		case errors.Is(err, ErrRateNotFound):
			// fall through to defaults
		default:
			log.Printf("pricing: rate lookup %s: %v, using defaults", vehicleClass, err)
		}
	}
	if r, ok := DefaultRates[vehicleClass]; ok {
		return r, nil
	}
	return Rate{}, fmt.Errorf("%w: %s", ErrUnknownVehicleClass, vehicleClass)
}

func (s *Service) travelEstimate(ctx context.Context, pickup, destination types.Point) (RouteEstimate, bool) {
	if s.router != nil {
		if est, err := s.router.Route(ctx, pickup, destination); err == nil {
			return est, false
		} else {
			log.Printf("pricing: routing degraded, using great-circle fallback: %v", err)
		}
	}
	distKm := geo.HaversineKm(pickup, destination)
	return RouteEstimate{
		DistanceKm:      distKm,
		DurationMinutes: distKm/assumedSpeedKmh*60 + fallbackBufferMin,
	}, true
}
