// README: NATS-backed Notifier; per-driver subjects plus a fleet broadcast
// subject so other services (rider apps, analytics) can subscribe.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"pirideshare/internal/types"
)

const (
	subjectDriverPrefix = "dispatch.driver."
	SubjectBroadcast    = "dispatch.broadcast"
)

type envelope struct {
	Event   Event `json:"event"`
	Payload any   `json:"payload"`
}

type NATSNotifier struct {
	conn *nats.Conn
}

func NewNATSNotifier(conn *nats.Conn) *NATSNotifier {
	return &NATSNotifier{conn: conn}
}

func (n *NATSNotifier) Notify(_ context.Context, driverID types.ID, event Event, payload any) error {
	return n.publish(subjectDriverPrefix+string(driverID), event, payload)
}

func (n *NATSNotifier) Broadcast(_ context.Context, event Event, payload any) error {
	return n.publish(SubjectBroadcast, event, payload)
}

func (n *NATSNotifier) publish(subject string, event Event, payload any) error {
	data, err := json.Marshal(envelope{Event: event, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}
	if err := n.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}
