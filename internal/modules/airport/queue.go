// README: Per-airport FIFO waiting lines for queued drivers. Membership is
// driven by registry geofence transitions; positions are always derived from
// queue order, never stored.
package airport

import (
	"context"
	"log"
	"sync"
	"time"

	"pirideshare/internal/notify"
	"pirideshare/internal/types"
)

type Entry struct {
	DriverID types.ID  `json:"driver_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// Manager owns every airport queue. It implements registry.GeofenceWatcher.
type Manager struct {
	mu       sync.Mutex
	queues   map[string][]Entry
	notifier notify.Notifier
}

func NewManager(notifier notify.Notifier) *Manager {
	return &Manager{queues: make(map[string][]Entry), notifier: notifier}
}

// Join appends the driver at the tail, dropping any stale entry for the same
// driver first, and tells every queued driver its current position.
func (m *Manager) Join(driverID types.ID, airport string) {
	m.mu.Lock()
	q := removeEntry(m.queues[airport], driverID)
	q = append(q, Entry{DriverID: driverID, JoinedAt: time.Now()})
	m.queues[airport] = q
	snapshot := append([]Entry(nil), q...)
	m.mu.Unlock()

	m.notifyPositions(airport, snapshot)
}

// Leave removes the driver and renumbers the rest.
func (m *Manager) Leave(driverID types.ID, airport string) {
	m.mu.Lock()
	before := len(m.queues[airport])
	q := removeEntry(m.queues[airport], driverID)
	m.queues[airport] = q
	removed := len(q) != before
	snapshot := append([]Entry(nil), q...)
	m.mu.Unlock()

	if !removed {
		return
	}
	m.push(driverID, notify.EventQueueLeft, map[string]any{"airport": airport})
	m.notifyPositions(airport, snapshot)
}

// DequeueNext pops the head of the line, renumbering the remainder.
func (m *Manager) DequeueNext(airport string) (types.ID, bool) {
	m.mu.Lock()
	q := m.queues[airport]
	if len(q) == 0 {
		m.mu.Unlock()
		return "", false
	}
	head := q[0]
	q = q[1:]
	m.queues[airport] = q
	snapshot := append([]Entry(nil), q...)
	m.mu.Unlock()

	m.notifyPositions(airport, snapshot)
	return head.DriverID, true
}

// Position returns the driver's 1-based place in line.
func (m *Manager) Position(driverID types.ID, airport string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.queues[airport] {
		if e.DriverID == driverID {
			return i + 1, true
		}
	}
	return 0, false
}

// Len is the queue-length snapshot the surge calculator consumes.
func (m *Manager) Len(airport string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues[airport])
}

// Entries returns a copy of the queue in FIFO order.
func (m *Manager) Entries(airport string) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.queues[airport]...)
}

// OnEnterAirport implements registry.GeofenceWatcher.
func (m *Manager) OnEnterAirport(driverID types.ID, zoneID string) {
	m.Join(driverID, zoneID)
}

// OnExitAirport implements registry.GeofenceWatcher.
func (m *Manager) OnExitAirport(driverID types.ID, zoneID string) {
	m.Leave(driverID, zoneID)
}

// EstimatedWaitMinutes is the rough pickup wait quoted to a queued driver.
func EstimatedWaitMinutes(position int) int {
	if w := position * 8; w > 5 {
		return w
	}
	return 5
}

func (m *Manager) notifyPositions(airport string, q []Entry) {
	for i, e := range q {
		pos := i + 1
		m.push(e.DriverID, notify.EventQueuePosition, map[string]any{
			"airport":            airport,
			"position":           pos,
			"estimated_wait_min": EstimatedWaitMinutes(pos),
		})
	}
}

func (m *Manager) push(driverID types.ID, event notify.Event, payload map[string]any) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Notify(context.Background(), driverID, event, payload); err != nil {
		log.Printf("airport: notify %s %s: %v", driverID, event, err)
	}
}

func removeEntry(q []Entry, driverID types.ID) []Entry {
	out := q[:0]
	for _, e := range q {
		if e.DriverID != driverID {
			out = append(out, e)
		}
	}
	return out
}
