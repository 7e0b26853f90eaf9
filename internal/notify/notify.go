// README: Push-delivery port for driver devices and fleet-wide broadcasts.
package notify

import (
	"context"

	"pirideshare/internal/types"
)

// Event names the kind of push being delivered.
type Event string

const (
	EventRideOffer     Event = "ride_offer"
	EventRideTaken     Event = "ride_already_taken"
	EventRideMatched   Event = "ride_matched"
	EventRideFailed    Event = "ride_failed"
	EventQueuePosition Event = "airport_queue_position"
	EventQueueLeft     Event = "airport_queue_left"
	EventSurgeUpdate   Event = "surge_update"
	EventPendingCount  Event = "pending_requests"
)

// Notifier abstracts push delivery. Implementations must be safe for
// concurrent use; delivery is best-effort and must not block dispatch.
type Notifier interface {
	Notify(ctx context.Context, driverID types.ID, event Event, payload any) error
	Broadcast(ctx context.Context, event Event, payload any) error
}

// Fanout delivers through every child notifier and returns the first error.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, driverID types.ID, event Event, payload any) error {
	var first error
	for _, n := range f {
		if err := n.Notify(ctx, driverID, event, payload); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f Fanout) Broadcast(ctx context.Context, event Event, payload any) error {
	var first error
	for _, n := range f {
		if err := n.Broadcast(ctx, event, payload); err != nil && first == nil {
			first = err
		}
	}
	return first
}
