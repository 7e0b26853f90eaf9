// README: Surge service: holds the active configuration snapshot, hot-reloads
// it on a timer, and answers multiplier queries.
package surge

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"pirideshare/internal/notify"
	"pirideshare/internal/types"
)

// ConfigLoader is implemented by *Store; tests inject fakes.
type ConfigLoader interface {
	LoadSnapshot(ctx context.Context) (*Snapshot, error)
}

type Service struct {
	loader   ConfigLoader
	calc     *Calculator
	notifier notify.Notifier
	interval time.Duration
	snap     atomic.Pointer[Snapshot]

	// OnReload, if set, observes every successfully applied snapshot
	// (the registry uses it to refresh airport geofences).
	OnReload func(*Snapshot)
}

func NewService(loader ConfigLoader, calc *Calculator, notifier notify.Notifier, reloadInterval time.Duration) *Service {
	s := &Service{loader: loader, calc: calc, notifier: notifier, interval: reloadInterval}
	s.snap.Store(DefaultSnapshot())
	return s
}

// Snapshot returns the active configuration.
func (s *Service) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Reload loads and validates a fresh snapshot, swapping it in atomically.
// A failed load keeps the previous snapshot.
func (s *Service) Reload(ctx context.Context) error {
	snap, err := s.loader.LoadSnapshot(ctx)
	if err != nil {
		return err
	}
	s.snap.Store(snap)
	if s.OnReload != nil {
		s.OnReload(snap)
	}
	return nil
}

// RunReloader polls the config store until ctx is cancelled.
func (s *Service) RunReloader(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Reload(ctx); err != nil {
				log.Printf("surge: reload failed, keeping previous config: %v", err)
			}
		}
	}
}

// Current computes the surge result for a pickup right now and broadcasts
// activation changes to the fleet.
func (s *Service) Current(ctx context.Context, pickup types.Point) Result {
	res := s.calc.Calculate(ctx, pickup, time.Now(), s.Snapshot())
	if res.IsActive && s.notifier != nil {
		if err := s.notifier.Broadcast(ctx, notify.EventSurgeUpdate, res); err != nil {
			log.Printf("surge: broadcast: %v", err)
		}
	}
	return res
}

// At is Current with an explicit clock, for deterministic callers and tests.
func (s *Service) At(ctx context.Context, pickup types.Point, now time.Time) Result {
	return s.calc.Calculate(ctx, pickup, now, s.Snapshot())
}
