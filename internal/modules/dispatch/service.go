// README: The dispatcher: owns the active-request table, starts one cascade
// per ride, and routes driver responses to the matching process.
package dispatch

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"pirideshare/internal/modules/geo"
	"pirideshare/internal/modules/pricing"
	"pirideshare/internal/modules/registry"
	"pirideshare/internal/notify"
	"pirideshare/internal/types"
)

// Quoter prices a ride at request time; *pricing.Service in production.
type Quoter interface {
	Quote(ctx context.Context, pickup, destination types.Point, vehicleClass string) (pricing.FareQuote, error)
}

// Recorder is the persistence collaborator. Schema is not the core's concern.
type Recorder interface {
	RecordRideStatus(ctx context.Context, rideID types.ID, status Status, fields map[string]any) error
	RecordEarnings(ctx context.Context, driverID, rideID types.ID, amount float64) error
}

type requestStamp struct {
	pickup types.Point
	at     time.Time
}

// recentRetention bounds the request history kept for hotspot detection.
const recentRetention = 30 * time.Minute

type Dispatcher struct {
	cfg      Config
	registry *registry.Registry
	scorer   *Scorer
	quoter   Quoter
	notifier notify.Notifier
	recorder Recorder
	audit    *AuditStore

	mu     sync.Mutex
	procs  map[types.ID]*process
	recent []requestStamp

	// effects are side effects (persistence, audit, pushes) deferred by state
	// transitions; the entry point that took d.mu runs them after releasing
	// it, so a slow collaborator never stalls other cascades.
	effects []func()
}

func NewDispatcher(cfg Config, reg *registry.Registry, quoter Quoter, notifier notify.Notifier, recorder Recorder, audit *AuditStore) *Dispatcher {
	return &Dispatcher{
		cfg:      cfg,
		registry: reg,
		scorer:   NewScorer(cfg.SearchRadiusKm),
		quoter:   quoter,
		notifier: notifier,
		recorder: recorder,
		audit:    audit,
		procs:    make(map[types.ID]*process),
	}
}

// RequestDispatch quotes the ride, ranks candidates, and starts the cascade.
// It returns ErrUnavailable (0 attempts) when nobody is in range; otherwise
// the first offer is already out when it returns.
func (d *Dispatcher) RequestDispatch(ctx context.Context, req RideRequest) (RideRequest, error) {
	if req.RiderID == "" || req.VehicleClass == "" {
		return RideRequest{}, ErrBadRequest
	}
	if req.ID == "" {
		req.ID = types.ID(uuid.NewString())
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now()
	}

	quote, err := d.quoter.Quote(ctx, req.Pickup, req.Destination, req.VehicleClass)
	if err != nil {
		return RideRequest{}, err
	}
	req.Quote = quote
	req.Status = StatusMatching
	d.record(ctx, req.ID, StatusMatching, map[string]any{
		"rider_id":      req.RiderID,
		"vehicle_class": req.VehicleClass,
		"quoted_total":  quote.Total,
	})

	class := req.VehicleClass
	available := d.registry.Query(req.Pickup, d.cfg.SearchRadiusKm, func(r registry.DriverRecord) bool {
		return r.Available && r.Vehicle.Class == class
	})
	candidates := d.scorer.Rank(req.Pickup, available, time.Now())

	d.mu.Lock()
	d.noteRequestLocked(req.Pickup, req.RequestedAt)

	if len(candidates) == 0 {
		d.mu.Unlock()
		req.Status = StatusFailed
		d.record(ctx, req.ID, StatusFailed, map[string]any{"reason": ErrUnavailable.Error(), "attempts": 0})
		d.push(req.RiderID, notify.EventRideFailed, map[string]any{
			"ride_id":    req.ID,
			"reason":     ErrUnavailable.Error(),
			"attempts":   0,
			"suggestion": "try again in a few minutes or widen the pickup area",
		})
		return req, ErrUnavailable
	}

	p := &process{
		d:          d,
		ride:       &req,
		candidates: candidates,
		startedAt:  time.Now(),
	}
	d.procs[req.ID] = p
	rideID := req.ID
	d.enqueue(func() { d.auditDispatch(rideID, candidates) })
	p.advance()
	snapshot := *p.ride
	attempts := p.attempts
	effects := d.drainLocked()
	d.mu.Unlock()
	runEffects(effects)

	// Every candidate can be lost to a concurrent cascade between Query and
	// Reserve; that exhausts synchronously and must read as a failure.
	if snapshot.Status == StatusFailed {
		if attempts == 0 {
			return snapshot, ErrUnavailable
		}
		return snapshot, ErrExhausted
	}
	return snapshot, nil
}

// SubmitDriverResponse feeds an accept or decline into the matching cascade.
// Responses for unknown or already-settled rides get ErrRideTaken so the late
// driver hears "ride already taken" rather than an internal error.
func (d *Dispatcher) SubmitDriverResponse(ctx context.Context, rideID, driverID types.ID, accepted bool, reason string) error {
	d.mu.Lock()
	p, ok := d.procs[rideID]
	if !ok {
		d.mu.Unlock()
		d.push(driverID, notify.EventRideTaken, map[string]any{"ride_id": rideID})
		return ErrRideTaken
	}
	var err error
	if accepted {
		err = p.onAccept(driverID)
	} else {
		err = p.onDecline(driverID, reason)
	}
	effects := d.drainLocked()
	d.mu.Unlock()
	runEffects(effects)

	if err == ErrRideTaken {
		d.push(driverID, notify.EventRideTaken, map[string]any{"ride_id": rideID})
	}
	return err
}

// Cancel aborts an in-flight cascade on behalf of the rider.
func (d *Dispatcher) Cancel(ctx context.Context, rideID types.ID) error {
	d.mu.Lock()
	p, ok := d.procs[rideID]
	if ok {
		p.cancel()
		delete(d.procs, rideID)
	}
	d.mu.Unlock()
	if !ok {
		return ErrUnknownRide
	}
	d.record(ctx, rideID, StatusCancelled, nil)
	d.auditOutcome(rideID, StatusCancelled)
	return nil
}

// Status reports the current state of an active dispatch process.
func (d *Dispatcher) Status(rideID types.ID) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.procs[rideID]
	if !ok {
		return Result{}, ErrUnknownRide
	}
	return p.result(), nil
}

// ActiveCount is exported for the fleet-wide pending counter broadcast.
func (d *Dispatcher) ActiveCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.procs)
}

// CountPendingNear implements surge.RideDemand over the active-request set.
func (d *Dispatcher) CountPendingNear(center types.Point, radiusKm float64) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, p := range d.procs {
		if geo.InRadius(center, radiusKm, p.ride.Pickup) {
			n++
		}
	}
	return n
}

// CountRecentNear implements surge.RideDemand for hotspot detection; it
// counts requests (active or settled) made near center within the window.
func (d *Dispatcher) CountRecentNear(center types.Point, radiusKm float64, window time.Duration) int {
	cutoff := time.Now().Add(-window)
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, s := range d.recent {
		if s.at.After(cutoff) && geo.InRadius(center, radiusKm, s.pickup) {
			n++
		}
	}
	return n
}

// RunPendingBroadcast periodically tells the fleet how many requests are
// waiting, so idle drivers can reposition.
func (d *Dispatcher) RunPendingBroadcast(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if d.notifier == nil {
				continue
			}
			payload := map[string]any{"pending": d.ActiveCount()}
			if err := d.notifier.Broadcast(ctx, notify.EventPendingCount, payload); err != nil {
				d.logf("dispatch: pending broadcast: %v", err)
			}
		}
	}
}

// finishAccepted settles a won cascade. Caller holds d.mu; the persistence
// and push work is deferred so the lock is never held across collaborators.
func (d *Dispatcher) finishAccepted(p *process, driverID types.ID) {
	delete(d.procs, p.ride.ID)
	res := p.result()
	rideID := p.ride.ID
	riderID := p.ride.RiderID
	pickup := p.ride.Pickup
	total := p.ride.Quote.Total
	earnings := pricing.Round2(total * d.cfg.DriverShare)
	driver, _ := d.registry.Get(driverID)

	d.enqueue(func() {
		ctx := context.Background()
		d.record(ctx, rideID, StatusMatched, map[string]any{
			"driver_id": driverID,
			"attempts":  res.Attempts,
			"timeouts":  res.Timeouts,
			"total":     total,
		})
		if d.recorder != nil {
			if err := d.recorder.RecordEarnings(ctx, driverID, rideID, earnings); err != nil {
				d.logf("dispatch: record earnings %s: %v", rideID, err)
			}
		}
		d.auditOutcome(rideID, StatusMatched)
		d.push(riderID, notify.EventRideMatched, map[string]any{
			"ride_id":  rideID,
			"driver":   driver,
			"attempts": res.Attempts,
			"total":    total,
		})
		d.push(driverID, notify.EventRideMatched, map[string]any{
			"ride_id":  rideID,
			"pickup":   pickup,
			"earnings": earnings,
		})
	})
}

// finishExhausted settles a lost cascade. Caller holds d.mu.
func (d *Dispatcher) finishExhausted(p *process) {
	delete(d.procs, p.ride.ID)
	res := p.result()
	rideID := p.ride.ID
	riderID := p.ride.RiderID

	d.enqueue(func() {
		d.record(context.Background(), rideID, StatusFailed, map[string]any{
			"reason":   ErrExhausted.Error(),
			"attempts": res.Attempts,
			"timeouts": res.Timeouts,
		})
		d.auditOutcome(rideID, StatusFailed)
		d.push(riderID, notify.EventRideFailed, map[string]any{
			"ride_id":         rideID,
			"reason":          ErrExhausted.Error(),
			"attempts":        res.Attempts,
			"timeouts":        res.Timeouts,
			"elapsed_seconds": int(res.Elapsed / time.Second),
			"suggestion":      "try again shortly; drivers near you were busy",
		})
	})
}

// onOfferTimeout is the timer callback entry point; it re-resolves the
// process because the ride may have settled while the timer was in flight.
func (d *Dispatcher) onOfferTimeout(rideID types.ID, gen int) {
	d.mu.Lock()
	if p, ok := d.procs[rideID]; ok {
		p.onTimeout(gen)
	}
	effects := d.drainLocked()
	d.mu.Unlock()
	runEffects(effects)
}

// enqueue defers a side effect until the current entry point releases d.mu.
// Caller holds d.mu.
func (d *Dispatcher) enqueue(f func()) {
	d.effects = append(d.effects, f)
}

// drainLocked hands the queued effects to the caller. Caller holds d.mu.
func (d *Dispatcher) drainLocked() []func() {
	fs := d.effects
	d.effects = nil
	return fs
}

func runEffects(fs []func()) {
	for _, f := range fs {
		f()
	}
}

func (d *Dispatcher) noteRequestLocked(pickup types.Point, at time.Time) {
	cutoff := time.Now().Add(-recentRetention)
	kept := d.recent[:0]
	for _, s := range d.recent {
		if s.at.After(cutoff) {
			kept = append(kept, s)
		}
	}
	d.recent = append(kept, requestStamp{pickup: pickup, at: at})
}

func (d *Dispatcher) record(ctx context.Context, rideID types.ID, status Status, fields map[string]any) {
	if d.recorder == nil {
		return
	}
	if err := d.recorder.RecordRideStatus(ctx, rideID, status, fields); err != nil {
		d.logf("dispatch: record status %s=%s: %v", rideID, status, err)
	}
}

func (d *Dispatcher) auditDispatch(rideID types.ID, candidates []ScoredDriver) {
	if d.audit == nil {
		return
	}
	ids := make([]types.ID, len(candidates))
	for i, c := range candidates {
		ids[i] = c.Driver.ID
	}
	if err := d.audit.RecordDispatch(context.Background(), rideID, ids); err != nil {
		d.logf("dispatch: audit dispatch %s: %v", rideID, err)
	}
}

func (d *Dispatcher) auditOffer(rideID, driverID types.ID, attempt int) {
	if d.audit == nil {
		return
	}
	if err := d.audit.RecordOffer(context.Background(), rideID, driverID, attempt); err != nil {
		d.logf("dispatch: audit offer %s: %v", rideID, err)
	}
}

func (d *Dispatcher) auditResponse(rideID, driverID types.ID, outcome, reason string) {
	if d.audit == nil {
		return
	}
	if err := d.audit.RecordResponse(context.Background(), rideID, driverID, outcome, reason); err != nil {
		d.logf("dispatch: audit response %s: %v", rideID, err)
	}
}

func (d *Dispatcher) auditOutcome(rideID types.ID, status Status) {
	if d.audit == nil {
		return
	}
	if err := d.audit.RecordOutcome(context.Background(), rideID, string(status)); err != nil {
		d.logf("dispatch: audit outcome %s: %v", rideID, err)
	}
}

func (d *Dispatcher) logf(format string, args ...any) {
	log.Printf(format, args...)
}
