// README: In-memory driver registry; the dispatch core's source of truth for
// who is online, where, and whether they can take a ride.
package registry

import (
	"context"
	"log"
	"sync"
	"time"

	"pirideshare/internal/modules/geo"
	"pirideshare/internal/types"
)

// Registry owns every online DriverRecord. All mutation goes through its
// mutex; Query returns copies so callers never observe concurrent writes.
type Registry struct {
	mu       sync.RWMutex
	drivers  map[types.ID]*DriverRecord
	airports []AirportZone
	watcher  GeofenceWatcher
	mirror   *Mirror
}

func New() *Registry {
	return &Registry{drivers: make(map[types.ID]*DriverRecord)}
}

// SetWatcher wires the airport queue manager. Must be called before drivers
// start reporting locations.
func (r *Registry) SetWatcher(w GeofenceWatcher) {
	r.mu.Lock()
	r.watcher = w
	r.mu.Unlock()
}

// SetAirportZones replaces the watched geofences (called on config reload).
func (r *Registry) SetAirportZones(zones []AirportZone) {
	r.mu.Lock()
	r.airports = append([]AirportZone(nil), zones...)
	r.mu.Unlock()
}

// SetMirror attaches a best-effort Redis GEO mirror of driver positions.
func (r *Registry) SetMirror(m *Mirror) {
	r.mu.Lock()
	r.mirror = m
	r.mu.Unlock()
}

type transition struct {
	enter  bool
	driver types.ID
	zone   string
}

// Upsert merges u into the driver's record, creating it if absent. Airport
// geofence transitions triggered by the new position are delivered to the
// watcher after the lock is released.
func (r *Registry) Upsert(ctx context.Context, id types.ID, u Update) DriverRecord {
	var transitions []transition

	r.mu.Lock()
	rec, ok := r.drivers[id]
	if !ok {
		rec = &DriverRecord{ID: id, Available: true}
		r.drivers[id] = rec
	}
	now := time.Now()
	if u.Position != nil {
		rec.Location.Position = *u.Position
		rec.Location.UpdatedAt = now
		rec.Stats.LastActivityAt = now
	}
	if u.Heading != nil {
		rec.Location.Heading = *u.Heading
	}
	if u.SpeedKmh != nil {
		rec.Location.SpeedKmh = *u.SpeedKmh
	}
	if u.Available != nil {
		if *u.Available && rec.CurrentRideID != nil {
			// The reservation/assignment owns availability while a ride holds
			// the driver; a manual flip must not let a second cascade reserve
			// them mid-offer. Availability comes back via Release/Complete.
		} else {
			rec.Available = *u.Available
			if !rec.Available && rec.CurrentRideID == nil {
				// Driver went off-duty by hand; nothing to keep them queued for.
				transitions = append(transitions, r.exitAirportLocked(rec)...)
			}
		}
	}
	if u.Vehicle != nil {
		rec.Vehicle = *u.Vehicle
	}
	if u.Stats != nil {
		last := rec.Stats.LastActivityAt
		rec.Stats = *u.Stats
		if rec.Stats.LastActivityAt.IsZero() {
			rec.Stats.LastActivityAt = last
		}
	}
	if u.Position != nil {
		transitions = append(transitions, r.geofenceLocked(rec)...)
	}
	snapshot := *rec
	mirror := r.mirror
	watcher := r.watcher
	r.mu.Unlock()

	if mirror != nil && u.Position != nil {
		if err := mirror.Add(ctx, id, *u.Position); err != nil {
			log.Printf("registry: mirror add %s: %v", id, err)
		}
	}
	r.deliver(watcher, transitions)
	return snapshot
}

// Remove drops the driver on disconnect, dequeuing it from any airport queue.
func (r *Registry) Remove(ctx context.Context, id types.ID) {
	r.mu.Lock()
	rec, ok := r.drivers[id]
	var transitions []transition
	if ok {
		transitions = r.exitAirportLocked(rec)
		delete(r.drivers, id)
	}
	mirror := r.mirror
	watcher := r.watcher
	r.mu.Unlock()

	if !ok {
		return
	}
	if mirror != nil {
		if err := mirror.Remove(ctx, id); err != nil {
			log.Printf("registry: mirror remove %s: %v", id, err)
		}
	}
	r.deliver(watcher, transitions)
}

// Get returns a copy of the driver's record.
func (r *Registry) Get(id types.ID) (DriverRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.drivers[id]
	if !ok {
		return DriverRecord{}, false
	}
	return *rec, true
}

// Query returns copies of all drivers within radiusKm of center that satisfy
// pred, nearest first. A nil pred matches everything.
func (r *Registry) Query(center types.Point, radiusKm float64, pred func(DriverRecord) bool) []DriverRecord {
	r.mu.RLock()
	var out []DriverRecord
	for _, rec := range r.drivers {
		if !geo.InRadius(center, radiusKm, rec.Location.Position) {
			continue
		}
		cp := *rec
		if pred != nil && !pred(cp) {
			continue
		}
		out = append(out, cp)
	}
	r.mu.RUnlock()

	geo.SortByDistance(out, func(d DriverRecord) float64 {
		return geo.HaversineKm(center, d.Location.Position)
	})
	return out
}

// CountAvailableNear is the supply snapshot the surge calculator consumes.
func (r *Registry) CountAvailableNear(center types.Point, radiusKm float64) int {
	return len(r.Query(center, radiusKm, func(d DriverRecord) bool { return d.Available }))
}

// Reserve atomically claims the driver for rideID while an offer is pending.
// It fails if the driver is gone or already reserved, which is what prevents
// two concurrent cascades from double-booking one driver.
func (r *Registry) Reserve(driverID, rideID types.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.drivers[driverID]
	if !ok || !rec.Available {
		return false
	}
	rec.Available = false
	id := rideID
	rec.CurrentRideID = &id
	return true
}

// Release undoes a reservation after a decline or timeout. Releasing a
// reservation held by a different ride is a no-op.
func (r *Registry) Release(driverID, rideID types.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.drivers[driverID]
	if !ok || rec.CurrentRideID == nil || *rec.CurrentRideID != rideID {
		return
	}
	rec.CurrentRideID = nil
	rec.Available = true
}

// Assign converts a reservation into a firm assignment on acceptance and
// dequeues the driver from any airport queue.
func (r *Registry) Assign(driverID, rideID types.ID) bool {
	r.mu.Lock()
	rec, ok := r.drivers[driverID]
	if !ok || rec.CurrentRideID == nil || *rec.CurrentRideID != rideID {
		r.mu.Unlock()
		return false
	}
	transitions := r.exitAirportLocked(rec)
	watcher := r.watcher
	r.mu.Unlock()

	r.deliver(watcher, transitions)
	return true
}

// Complete frees the driver once the ride reaches a terminal state.
func (r *Registry) Complete(driverID, rideID types.ID) {
	r.Release(driverID, rideID)
}

func (r *Registry) geofenceLocked(rec *DriverRecord) []transition {
	var zone *AirportZone
	for i := range r.airports {
		if geo.InRadius(r.airports[i].Center, r.airports[i].RadiusKm, rec.Location.Position) {
			zone = &r.airports[i]
			break
		}
	}

	var out []transition
	switch {
	case zone == nil:
		out = r.exitAirportLocked(rec)
	case rec.CurrentAirportZone != nil && *rec.CurrentAirportZone == zone.ID:
		// Still inside the same geofence.
	default:
		out = r.exitAirportLocked(rec)
		if rec.Available {
			id := zone.ID
			rec.CurrentAirportZone = &id
			out = append(out, transition{enter: true, driver: rec.ID, zone: id})
		}
	}
	return out
}

func (r *Registry) exitAirportLocked(rec *DriverRecord) []transition {
	if rec.CurrentAirportZone == nil {
		return nil
	}
	zone := *rec.CurrentAirportZone
	rec.CurrentAirportZone = nil
	return []transition{{driver: rec.ID, zone: zone}}
}

func (r *Registry) deliver(w GeofenceWatcher, ts []transition) {
	if w == nil {
		return
	}
	for _, t := range ts {
		if t.enter {
			w.OnEnterAirport(t.driver, t.zone)
		} else {
			w.OnExitAirport(t.driver, t.zone)
		}
	}
}
