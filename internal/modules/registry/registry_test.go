package registry

import (
	"context"
	"sync"
	"testing"

	"pirideshare/internal/types"
)

var (
	downtown = types.Point{Lat: 37.7749, Lng: -122.4194}
	sfo      = types.Point{Lat: 37.6213, Lng: -122.3790}
)

func ptr[T any](v T) *T { return &v }

type fakeWatcher struct {
	mu     sync.Mutex
	enters []string
	exits  []string
}

func (w *fakeWatcher) OnEnterAirport(driverID types.ID, zoneID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.enters = append(w.enters, string(driverID)+"@"+zoneID)
}

func (w *fakeWatcher) OnExitAirport(driverID types.ID, zoneID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.exits = append(w.exits, string(driverID)+"@"+zoneID)
}

func TestUpsertMergesPartialState(t *testing.T) {
	ctx := context.Background()
	r := New()

	r.Upsert(ctx, "d1", Update{Position: &downtown, Vehicle: &Vehicle{Class: "economy", Plate: "ABC-123"}})
	r.Upsert(ctx, "d1", Update{Heading: ptr(90.0)})

	rec, ok := r.Get("d1")
	if !ok {
		t.Fatal("driver not found after upsert")
	}
	if rec.Vehicle.Plate != "ABC-123" {
		t.Errorf("vehicle lost on partial update: %+v", rec.Vehicle)
	}
	if rec.Location.Heading != 90.0 {
		t.Errorf("heading = %f, want 90", rec.Location.Heading)
	}
	if rec.Location.Position != downtown {
		t.Errorf("position lost on partial update: %+v", rec.Location.Position)
	}
	if !rec.Available {
		t.Error("new drivers should default to available")
	}
}

func TestQueryFiltersByRadiusAndPredicate(t *testing.T) {
	ctx := context.Background()
	r := New()
	r.Upsert(ctx, "near-free", Update{Position: &downtown})
	r.Upsert(ctx, "near-busy", Update{Position: &downtown, Available: ptr(false)})
	r.Upsert(ctx, "far", Update{Position: &sfo})

	got := r.Query(downtown, 5.0, func(d DriverRecord) bool { return d.Available })
	if len(got) != 1 || got[0].ID != "near-free" {
		t.Fatalf("query = %+v, want only near-free", got)
	}
	if n := r.CountAvailableNear(downtown, 5.0); n != 1 {
		t.Errorf("CountAvailableNear = %d, want 1", n)
	}
}

func TestReserveIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	r := New()
	r.Upsert(ctx, "d1", Update{Position: &downtown})

	const rides = 8
	var wg sync.WaitGroup
	wins := make(chan types.ID, rides)
	for i := 0; i < rides; i++ {
		rideID := types.ID(rune('a' + i))
		wg.Add(1)
		go func(id types.ID) {
			defer wg.Done()
			if r.Reserve("d1", id) {
				wins <- id
			}
		}(rideID)
	}
	wg.Wait()
	close(wins)

	var winners []types.ID
	for id := range wins {
		winners = append(winners, id)
	}
	if len(winners) != 1 {
		t.Fatalf("expected exactly 1 successful reservation, got %d", len(winners))
	}

	rec, _ := r.Get("d1")
	if rec.Available {
		t.Error("reserved driver must not be available")
	}
	if rec.CurrentRideID == nil || *rec.CurrentRideID != winners[0] {
		t.Errorf("CurrentRideID = %v, want %s", rec.CurrentRideID, winners[0])
	}

	// Release by the wrong ride is a no-op; by the holder it frees the driver.
	r.Release("d1", "someone-else")
	if rec, _ := r.Get("d1"); rec.Available {
		t.Error("release by non-holder must not free the driver")
	}
	r.Release("d1", winners[0])
	rec, _ = r.Get("d1")
	if !rec.Available || rec.CurrentRideID != nil {
		t.Errorf("after release: available=%v rideID=%v", rec.Available, rec.CurrentRideID)
	}
}

func TestGeofenceAutoEnrollAndDequeue(t *testing.T) {
	ctx := context.Background()
	r := New()
	w := &fakeWatcher{}
	r.SetWatcher(w)
	r.SetAirportZones([]AirportZone{{ID: "SFO", Center: sfo, RadiusKm: 3.0}})

	// Entering the geofence enrolls.
	r.Upsert(ctx, "d1", Update{Position: &sfo})
	rec, _ := r.Get("d1")
	if rec.CurrentAirportZone == nil || *rec.CurrentAirportZone != "SFO" {
		t.Fatalf("expected driver queued at SFO, got %v", rec.CurrentAirportZone)
	}
	if len(w.enters) != 1 || w.enters[0] != "d1@SFO" {
		t.Fatalf("enter events = %v", w.enters)
	}

	// A second update inside the zone is not a second enrollment.
	r.Upsert(ctx, "d1", Update{Position: ptr(types.Point{Lat: 37.6220, Lng: -122.3785})})
	if len(w.enters) != 1 {
		t.Fatalf("re-enrolled while still inside the zone: %v", w.enters)
	}

	// Leaving the geofence dequeues.
	r.Upsert(ctx, "d1", Update{Position: &downtown})
	rec, _ = r.Get("d1")
	if rec.CurrentAirportZone != nil {
		t.Errorf("still queued after exit: %v", *rec.CurrentAirportZone)
	}
	if len(w.exits) != 1 || w.exits[0] != "d1@SFO" {
		t.Fatalf("exit events = %v", w.exits)
	}

	// Going offline inside the zone also dequeues.
	r.Upsert(ctx, "d2", Update{Position: &sfo})
	r.Remove(ctx, "d2")
	found := false
	for _, e := range w.exits {
		if e == "d2@SFO" {
			found = true
		}
	}
	if !found {
		t.Errorf("offline driver was not dequeued: %v", w.exits)
	}
}

func TestBusyDriverIsNotEnrolled(t *testing.T) {
	ctx := context.Background()
	r := New()
	w := &fakeWatcher{}
	r.SetWatcher(w)
	r.SetAirportZones([]AirportZone{{ID: "SFO", Center: sfo, RadiusKm: 3.0}})

	r.Upsert(ctx, "d1", Update{Position: &downtown})
	if !r.Reserve("d1", "ride-1") {
		t.Fatal("reserve failed")
	}
	r.Upsert(ctx, "d1", Update{Position: &sfo})
	rec, _ := r.Get("d1")
	if rec.CurrentAirportZone != nil {
		t.Error("driver on a ride must not join the airport queue")
	}
}

func TestAssignDequeuesFromAirport(t *testing.T) {
	ctx := context.Background()
	r := New()
	w := &fakeWatcher{}
	r.SetWatcher(w)
	r.SetAirportZones([]AirportZone{{ID: "SFO", Center: sfo, RadiusKm: 3.0}})

	r.Upsert(ctx, "d1", Update{Position: &sfo})
	if !r.Reserve("d1", "ride-1") {
		t.Fatal("reserve failed")
	}
	if !r.Assign("d1", "ride-1") {
		t.Fatal("assign failed")
	}
	rec, _ := r.Get("d1")
	if rec.CurrentAirportZone != nil {
		t.Error("assigned driver should be dequeued from the airport")
	}
	if rec.Available {
		t.Error("assigned driver must stay unavailable")
	}
}

func TestAvailabilityFlipCannotBreakReservation(t *testing.T) {
	ctx := context.Background()
	r := New()
	r.Upsert(ctx, "d1", Update{Position: &downtown})

	if !r.Reserve("d1", "ride-1") {
		t.Fatal("reserve failed")
	}

	// A manual availability update while the offer is outstanding must not
	// free the driver for a second cascade.
	r.Upsert(ctx, "d1", Update{Available: ptr(true)})
	rec, _ := r.Get("d1")
	if rec.Available {
		t.Fatal("availability flip overrode an active reservation")
	}
	if rec.CurrentRideID == nil || *rec.CurrentRideID != "ride-1" {
		t.Fatalf("CurrentRideID = %v, want ride-1", rec.CurrentRideID)
	}
	if r.Reserve("d1", "ride-2") {
		t.Fatal("second cascade stole the reservation")
	}

	// Once the holder releases, the driver can go available again.
	r.Release("d1", "ride-1")
	r.Upsert(ctx, "d1", Update{Available: ptr(true)})
	if rec, _ := r.Get("d1"); !rec.Available {
		t.Error("driver should be available after the reservation is released")
	}
}

func TestQueryReturnsNearestFirst(t *testing.T) {
	ctx := context.Background()
	r := New()
	r.Upsert(ctx, "mid", Update{Position: ptr(types.Point{Lat: downtown.Lat + 0.010, Lng: downtown.Lng})})
	r.Upsert(ctx, "near", Update{Position: ptr(types.Point{Lat: downtown.Lat + 0.002, Lng: downtown.Lng})})
	r.Upsert(ctx, "edge", Update{Position: ptr(types.Point{Lat: downtown.Lat + 0.030, Lng: downtown.Lng})})

	got := r.Query(downtown, 5.0, nil)
	if len(got) != 3 {
		t.Fatalf("query returned %d drivers, want 3", len(got))
	}
	for i, want := range []types.ID{"near", "mid", "edge"} {
		if got[i].ID != want {
			t.Errorf("position %d = %s, want %s", i, got[i].ID, want)
		}
	}
}
