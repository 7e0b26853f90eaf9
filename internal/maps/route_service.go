// README: Google Directions adapter; the fare estimator consumes it through
// the pricing.Router interface and falls back to haversine when it errors.
package maps

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"pirideshare/internal/modules/pricing"
	"pirideshare/internal/types"
)

// RouteService handles interactions with the Google Maps Directions API.
type RouteService struct {
	client *maps.Client
}

// NewRouteService creates a new RouteService with the given API key.
func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

// Route returns the driving distance and duration between two coordinates.
func (s *RouteService) Route(ctx context.Context, origin, destination types.Point) (pricing.RouteEstimate, error) {
	r := &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", origin.Lat, origin.Lng),
		Destination: fmt.Sprintf("%f,%f", destination.Lat, destination.Lng),
		Mode:        maps.TravelModeDriving,
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return pricing.RouteEstimate{}, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return pricing.RouteEstimate{}, fmt.Errorf("no route found")
	}

	var meters int
	var seconds float64
	for _, leg := range routes[0].Legs {
		meters += leg.Distance.Meters
		seconds += leg.Duration.Seconds()
	}
	return pricing.RouteEstimate{
		DistanceKm:      float64(meters) / 1000.0,
		DurationMinutes: seconds / 60.0,
	}, nil
}
