package dispatch

import (
	"math"
	"testing"
	"time"

	"pirideshare/internal/modules/registry"
	"pirideshare/internal/types"
)

var pickupPoint = types.Point{Lat: 37.7749, Lng: -122.4194}

func driverAt(id types.ID, pos types.Point, rating, acceptance, completion float64, lastUpdate time.Time) registry.DriverRecord {
	return registry.DriverRecord{
		ID:        id,
		Available: true,
		Location:  registry.Location{Position: pos, UpdatedAt: lastUpdate},
		Vehicle:   registry.Vehicle{Class: "economy"},
		Stats: registry.Stats{
			AvgRating:      rating,
			AcceptanceRate: acceptance,
			CompletionRate: completion,
		},
	}
}

func TestPerfectDriverScoresOne(t *testing.T) {
	now := time.Now()
	s := NewScorer(5.0)
	d := driverAt("d1", pickupPoint, 5.0, 1.0, 1.0, now)

	ranked := s.Rank(pickupPoint, []registry.DriverRecord{d}, now)
	if len(ranked) != 1 {
		t.Fatalf("ranked %d drivers, want 1", len(ranked))
	}
	if math.Abs(ranked[0].Score-1.0) > 1e-9 {
		t.Errorf("score = %f, want 1.0", ranked[0].Score)
	}
}

func TestCloserDriverRanksFirst(t *testing.T) {
	now := time.Now()
	s := NewScorer(5.0)
	near := driverAt("near", types.Point{Lat: 37.7760, Lng: -122.4194}, 4.5, 0.9, 0.9, now)
	far := driverAt("far", types.Point{Lat: 37.8100, Lng: -122.4194}, 4.5, 0.9, 0.9, now)

	ranked := s.Rank(pickupPoint, []registry.DriverRecord{far, near}, now)
	if ranked[0].Driver.ID != "near" {
		t.Errorf("first = %s, want near", ranked[0].Driver.ID)
	}
}

func TestStaleLocationIsPenalized(t *testing.T) {
	now := time.Now()
	s := NewScorer(5.0)
	fresh := driverAt("fresh", pickupPoint, 4.0, 0.8, 0.8, now.Add(-30*time.Second))
	stale := driverAt("stale", pickupPoint, 4.0, 0.8, 0.8, now.Add(-20*time.Minute))

	ranked := s.Rank(pickupPoint, []registry.DriverRecord{stale, fresh}, now)
	if ranked[0].Driver.ID != "fresh" {
		t.Errorf("first = %s, want fresh", ranked[0].Driver.ID)
	}
	// Step function: fresh gets 1.0, stale 0.3 — difference is the full
	// recency weight times 0.7.
	wantDelta := weightRecency * 0.7
	if got := ranked[0].Score - ranked[1].Score; math.Abs(got-wantDelta) > 1e-9 {
		t.Errorf("score delta = %f, want %f", got, wantDelta)
	}
}

func TestRecencySteps(t *testing.T) {
	tests := []struct {
		age  time.Duration
		want float64
	}{
		{30 * time.Second, 1.0},
		{3 * time.Minute, 0.8},
		{10 * time.Minute, 0.6},
		{time.Hour, 0.3},
	}
	for _, tt := range tests {
		if got := recencyScore(tt.age); got != tt.want {
			t.Errorf("recencyScore(%v) = %f, want %f", tt.age, got, tt.want)
		}
	}
}

func TestEqualScoresBreakTiesByDistanceThenRating(t *testing.T) {
	now := time.Now()
	// Radius large enough that both distance components round to the same
	// score is hard to force exactly; instead verify the comparator directly
	// with hand-built entries.
	ranked := []ScoredDriver{
		{Driver: driverAt("b", pickupPoint, 4.0, 1, 1, now), Score: 0.8, DistanceKm: 2.0},
		{Driver: driverAt("a", pickupPoint, 4.0, 1, 1, now), Score: 0.8, DistanceKm: 1.0},
		{Driver: driverAt("c", pickupPoint, 5.0, 1, 1, now), Score: 0.8, DistanceKm: 2.0},
	}
	sortScored(ranked)
	if ranked[0].Driver.ID != "a" || ranked[1].Driver.ID != "c" || ranked[2].Driver.ID != "b" {
		t.Errorf("order = %s,%s,%s; want a,c,b",
			ranked[0].Driver.ID, ranked[1].Driver.ID, ranked[2].Driver.ID)
	}
}

func TestBeyondRadiusDistanceComponentIsZero(t *testing.T) {
	now := time.Now()
	s := NewScorer(1.0)
	// ~4km away with a 1km radius: distance term clamps at zero instead of
	// going negative.
	d := driverAt("d", types.Point{Lat: 37.8100, Lng: -122.4194}, 0, 0, 0, now.Add(-time.Hour))
	ranked := s.Rank(pickupPoint, []registry.DriverRecord{d}, now)
	want := weightRecency * 0.3
	if math.Abs(ranked[0].Score-want) > 1e-9 {
		t.Errorf("score = %f, want %f (recency floor only)", ranked[0].Score, want)
	}
}
