// README: One cascade per in-flight ride: sequential, timeout-bounded offers
// over an immutable candidate snapshot.
package dispatch

import (
	"context"
	"time"

	"pirideshare/internal/modules/pricing"
	"pirideshare/internal/notify"
	"pirideshare/internal/types"
)

type processState string

const (
	stateOffered   processState = "offered"
	stateAccepted  processState = "accepted"
	stateExhausted processState = "exhausted"
	stateCancelled processState = "cancelled"
)

// process drives the cascade for a single ride. All state transitions happen
// under d.mu (the dispatcher lock), so a process never holds more than one
// outstanding offer and stale timers are recognized by generation.
type process struct {
	d          *Dispatcher
	ride       *RideRequest
	candidates []ScoredDriver
	cursor     int
	attempts   int
	timeouts   int
	escalated  bool
	startedAt  time.Time
	state      processState
	timer      *time.Timer
	offerGen   int
}

// advance moves the cascade forward: escalates surge when stalled, reserves
// and offers to the next candidate, or exhausts. Caller holds d.mu.
func (p *process) advance() {
	for {
		if p.cursor >= len(p.candidates) || p.attempts >= p.d.cfg.MaxAttempts {
			p.exhaust()
			return
		}
		if p.timeouts >= p.d.cfg.EscalationTimeouts && !p.escalated {
			p.escalateFare()
		}
		cand := p.candidates[p.cursor]
		if !p.d.registry.Reserve(cand.Driver.ID, p.ride.ID) {
			// Lost the driver to a concurrent cascade or a disconnect; skip
			// without burning an attempt.
			p.cursor++
			continue
		}
		p.offer(cand)
		return
	}
}

// offer sends the time-boxed offer to the reserved candidate. Caller holds d.mu.
func (p *process) offer(cand ScoredDriver) {
	p.state = stateOffered
	p.ride.Status = StatusOffered
	p.attempts++
	p.offerGen++
	gen := p.offerGen

	earnings := pricing.Round2(p.ride.Quote.Total * p.d.cfg.DriverShare)
	payload := map[string]any{
		"ride_id":            p.ride.ID,
		"pickup":             p.ride.Pickup,
		"destination":        p.ride.Destination,
		"vehicle_class":      p.ride.VehicleClass,
		"estimated_earnings": earnings,
		"distance_km":        cand.DistanceKm,
		"expires_in_seconds": int(p.d.cfg.OfferTimeout / time.Second),
		"attempt":            p.attempts,
	}
	rideID := p.ride.ID
	driverID := cand.Driver.ID
	attempt := p.attempts
	p.d.enqueue(func() {
		p.d.push(driverID, notify.EventRideOffer, payload)
		p.d.auditOffer(rideID, driverID, attempt)
	})

	p.timer = time.AfterFunc(p.d.cfg.OfferTimeout, func() {
		p.d.onOfferTimeout(p.ride.ID, gen)
	})
}

// onAccept handles a driver accepting the current offer. Caller holds d.mu.
func (p *process) onAccept(driverID types.ID) error {
	if p.state != stateOffered || p.current() != driverID {
		return ErrRideTaken
	}
	p.cancelTimer()
	if !p.d.registry.Assign(driverID, p.ride.ID) {
		// Reservation vanished (driver disconnected mid-accept).
		p.cursor++
		p.advance()
		return ErrRideTaken
	}
	p.state = stateAccepted
	p.ride.Status = StatusMatched
	p.d.finishAccepted(p, driverID)
	return nil
}

// onDecline handles the current candidate refusing. Declines do not count
// toward surge escalation. Caller holds d.mu.
func (p *process) onDecline(driverID types.ID, reason string) error {
	if p.state != stateOffered || p.current() != driverID {
		return ErrRideTaken
	}
	p.cancelTimer()
	p.d.registry.Release(driverID, p.ride.ID)
	rideID := p.ride.ID
	p.d.enqueue(func() { p.d.auditResponse(rideID, driverID, "declined", reason) })
	p.cursor++
	p.advance()
	return nil
}

// onTimeout fires when the offer window elapses unanswered. Caller holds d.mu;
// the generation check makes a cancelled-but-already-fired timer a no-op.
func (p *process) onTimeout(gen int) {
	if p.state != stateOffered || gen != p.offerGen {
		return
	}
	driverID := p.current()
	p.d.registry.Release(driverID, p.ride.ID)
	rideID := p.ride.ID
	p.d.enqueue(func() { p.d.auditResponse(rideID, driverID, "timeout", "") })
	p.timeouts++
	p.cursor++
	p.advance()
}

// cancel tears the process down on rider cancellation. Caller holds d.mu.
func (p *process) cancel() {
	if p.state == stateOffered {
		p.cancelTimer()
		p.d.registry.Release(p.current(), p.ride.ID)
	}
	p.state = stateCancelled
	p.ride.Status = StatusCancelled
}

func (p *process) exhaust() {
	p.cancelTimer()
	p.state = stateExhausted
	p.ride.Status = StatusFailed
	p.d.finishExhausted(p)
}

// escalateFare applies the one-time surge bump once the cascade stalls.
func (p *process) escalateFare() {
	p.escalated = true
	q := &p.ride.Quote
	q.SurgeMultiplier *= p.d.cfg.EscalationFactor
	q.Total = pricing.Round2(q.Subtotal * q.SurgeMultiplier)
}

func (p *process) current() types.ID {
	return p.candidates[p.cursor].Driver.ID
}

// cancelTimer is idempotent; a timer that already fired is ignored via the
// offer generation check in onTimeout.
func (p *process) cancelTimer() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *process) result() Result {
	res := Result{
		RideID:   p.ride.ID,
		Status:   p.ride.Status,
		Attempts: p.attempts,
		Timeouts: p.timeouts,
		Elapsed:  time.Since(p.startedAt),
	}
	if p.state == stateAccepted {
		res.DriverID = p.current()
	}
	return res
}

// push is a tiny indirection so process methods don't need a context plumbed
// through timer callbacks.
func (d *Dispatcher) push(driverID types.ID, event notify.Event, payload any) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.Notify(context.Background(), driverID, event, payload); err != nil {
		d.logf("dispatch: notify %s %s: %v", driverID, event, err)
	}
}
