package geo

import (
	"math"
	"testing"

	"pirideshare/internal/types"
)

func TestHaversineKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		a, b      types.Point
		wantKm    float64
		tolerance float64
	}{
		{
			name:      "same point",
			a:         types.Point{Lat: 25.033, Lng: 121.565},
			b:         types.Point{Lat: 25.033, Lng: 121.565},
			wantKm:    0,
			tolerance: 0.001,
		},
		{
			name:      "downtown to airport (~20km)",
			a:         types.Point{Lat: 37.7749, Lng: -122.4194},
			b:         types.Point{Lat: 37.6213, Lng: -122.3790},
			wantKm:    17.2,
			tolerance: 1.0,
		},
		{
			name:      "New York to Los Angeles (~3944km)",
			a:         types.Point{Lat: 40.7128, Lng: -74.0060},
			b:         types.Point{Lat: 34.0522, Lng: -118.2437},
			wantKm:    3944,
			tolerance: 50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.a, tt.b)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("HaversineKm() = %f, want %f (±%f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestHaversineKm_Symmetry(t *testing.T) {
	a := types.Point{Lat: 25.0, Lng: 121.0}
	b := types.Point{Lat: 26.0, Lng: 122.0}
	d1 := HaversineKm(a, b)
	d2 := HaversineKm(b, a)
	if math.Abs(d1-d2) > 0.0001 {
		t.Errorf("haversine is not symmetric: %f vs %f", d1, d2)
	}
}

func TestInRadius(t *testing.T) {
	center := types.Point{Lat: 37.6213, Lng: -122.3790}
	inside := types.Point{Lat: 37.6250, Lng: -122.3800}
	outside := types.Point{Lat: 37.7749, Lng: -122.4194}

	if !InRadius(center, 2.0, inside) {
		t.Error("expected point ~0.4km away to be inside a 2km radius")
	}
	if InRadius(center, 2.0, outside) {
		t.Error("expected point ~17km away to be outside a 2km radius")
	}
	// Boundary: a point exactly at the center is always inside.
	if !InRadius(center, 0, center) {
		t.Error("center must be inside zero radius")
	}
}

func TestKmToMiles(t *testing.T) {
	if got := KmToMiles(1.609344); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("KmToMiles(1.609344) = %f, want 1.0", got)
	}
}

func TestSortByDistance(t *testing.T) {
	type item struct{ d float64 }
	items := []item{{3}, {1}, {2}, {0.5}}
	SortByDistance(items, func(i item) float64 { return i.d })
	for i := 1; i < len(items); i++ {
		if items[i-1].d > items[i].d {
			t.Fatalf("not sorted at index %d: %v", i, items)
		}
	}
}
