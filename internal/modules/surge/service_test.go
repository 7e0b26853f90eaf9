package surge

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeLoader struct {
	snap *Snapshot
	err  error
}

func (f *fakeLoader) LoadSnapshot(context.Context) (*Snapshot, error) {
	return f.snap, f.err
}

func TestReloadSwapsSnapshot(t *testing.T) {
	fresh := DefaultSnapshot()
	fresh.Config.MaxMultiplier = 4.0
	loader := &fakeLoader{snap: fresh}

	var observed *Snapshot
	svc := NewService(loader, newCalc(1, 1, 0, "clear", nil), nil, time.Minute)
	svc.OnReload = func(s *Snapshot) { observed = s }

	if svc.Snapshot().Config.MaxMultiplier != 5.0 {
		t.Fatalf("expected default snapshot before reload")
	}
	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if svc.Snapshot().Config.MaxMultiplier != 4.0 {
		t.Error("snapshot was not swapped")
	}
	if observed != fresh {
		t.Error("OnReload did not observe the new snapshot")
	}
}

func TestFailedReloadKeepsPreviousSnapshot(t *testing.T) {
	loader := &fakeLoader{err: errors.New("db down")}
	svc := NewService(loader, newCalc(1, 1, 0, "clear", nil), nil, time.Minute)

	before := svc.Snapshot()
	if err := svc.Reload(context.Background()); err == nil {
		t.Fatal("expected reload error")
	}
	if svc.Snapshot() != before {
		t.Error("failed reload must not replace the snapshot")
	}
}
