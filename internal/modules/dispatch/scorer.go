// README: Candidate scorer: orders available drivers for a specific pickup by
// a weighted blend of proximity, rating, recency, and reliability.
package dispatch

import (
	"sort"
	"time"

	"pirideshare/internal/modules/geo"
	"pirideshare/internal/modules/registry"
	"pirideshare/internal/types"
)

// Component weights. They sum to 1 so a perfect driver scores 1.0.
const (
	weightDistance    = 0.40
	weightRating      = 0.25
	weightRecency     = 0.20
	weightReliability = 0.15
)

type Scorer struct {
	maxRadiusKm float64
}

func NewScorer(maxRadiusKm float64) *Scorer {
	return &Scorer{maxRadiusKm: maxRadiusKm}
}

// Rank scores drivers and sorts them best-first. Ties break toward the
// closer driver, then the higher-rated one.
func (s *Scorer) Rank(pickup types.Point, drivers []registry.DriverRecord, now time.Time) []ScoredDriver {
	scored := make([]ScoredDriver, 0, len(drivers))
	for _, d := range drivers {
		dist := geo.HaversineKm(pickup, d.Location.Position)
		scored = append(scored, ScoredDriver{
			Driver:     d,
			Score:      s.score(d, dist, now),
			DistanceKm: dist,
		})
	}
	sortScored(scored)
	return scored
}

func sortScored(scored []ScoredDriver) {
	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.DistanceKm != b.DistanceKm {
			return a.DistanceKm < b.DistanceKm
		}
		return a.Driver.Stats.AvgRating > b.Driver.Stats.AvgRating
	})
}

func (s *Scorer) score(d registry.DriverRecord, distKm float64, now time.Time) float64 {
	distance := 1.0 - distKm/s.maxRadiusKm
	if distance < 0 {
		distance = 0
	}

	rating := d.Stats.AvgRating * d.Stats.AvgRating / 25.0

	recency := recencyScore(now.Sub(d.Location.UpdatedAt))

	reliability := 0.6*d.Stats.AcceptanceRate + 0.4*d.Stats.CompletionRate

	return weightDistance*distance +
		weightRating*rating +
		weightRecency*recency +
		weightReliability*reliability
}

// recencyScore steps down as the driver's last location update ages out.
func recencyScore(age time.Duration) float64 {
	switch {
	case age < time.Minute:
		return 1.0
	case age < 5*time.Minute:
		return 0.8
	case age < 15*time.Minute:
		return 0.6
	default:
		return 0.3
	}
}
