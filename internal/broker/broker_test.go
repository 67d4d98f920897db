package broker

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/wrightlab/chunkcast/internal/unit"
)

type fakeRunner struct {
	failFirstN atomic.Int32
	calls      atomic.Int32
}

func (r *fakeRunner) RunUnit(ctx context.Context, u *unit.Unit) (int, error) {
	r.calls.Add(1)
	if r.failFirstN.Load() > 0 {
		r.failFirstN.Add(-1)
		return 0, errors.New("transient failure")
	}
	return u.Frames(), nil
}

func TestRunProcessesAllUnits(t *testing.T) {
	units := []*unit.Unit{
		{Index: 0, StartFrame: 0, EndFrame: 100},
		{Index: 1, StartFrame: 0, EndFrame: 200},
		{Index: 2, StartFrame: 0, EndFrame: 300},
	}
	r := &fakeRunner{}
	b := New(2, 1, r)

	outcomes := b.Run(context.Background(), units)
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	for _, o := range outcomes {
		if o.Err != nil {
			t.Errorf("unexpected error for unit %d: %v", o.Unit.Index, o.Err)
		}
	}
}

func TestRunRetriesUpToMaxTries(t *testing.T) {
	units := []*unit.Unit{{Index: 0, StartFrame: 0, EndFrame: 100}}
	r := &fakeRunner{}
	r.failFirstN.Store(2)
	b := New(1, 3, r)

	outcomes := b.Run(context.Background(), units)
	if outcomes[0].Err != nil {
		t.Fatalf("expected eventual success within max_tries, got %v", outcomes[0].Err)
	}
	if r.calls.Load() != 3 {
		t.Errorf("expected 3 attempts (2 failures + 1 success), got %d", r.calls.Load())
	}
}

func TestRunGivesUpAfterMaxTries(t *testing.T) {
	units := []*unit.Unit{{Index: 0, StartFrame: 0, EndFrame: 100}}
	r := &fakeRunner{}
	r.failFirstN.Store(5)
	b := New(1, 2, r)

	outcomes := b.Run(context.Background(), units)
	if outcomes[0].Err == nil {
		t.Fatal("expected error after exhausting max_tries")
	}
	if r.calls.Load() != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", r.calls.Load())
	}
}

func TestRunAdaptiveProcessesAllUnits(t *testing.T) {
	units := []*unit.Unit{
		{Index: 0, StartFrame: 0, EndFrame: 100},
		{Index: 1, StartFrame: 0, EndFrame: 100},
		{Index: 2, StartFrame: 0, EndFrame: 100},
		{Index: 3, StartFrame: 0, EndFrame: 100},
	}
	r := &fakeRunner{}
	b := New(2, 1, r)
	b.Adaptive = true

	outcomes := b.Run(context.Background(), units)
	if len(outcomes) != len(units) {
		t.Fatalf("expected %d outcomes, got %d", len(units), len(outcomes))
	}
	seen := make(map[int]bool)
	for _, o := range outcomes {
		if o.Err != nil {
			t.Errorf("unexpected error for unit %d: %v", o.Unit.Index, o.Err)
		}
		seen[o.Unit.Index] = true
	}
	for _, u := range units {
		if !seen[u.Index] {
			t.Errorf("unit %d never dispatched", u.Index)
		}
	}
}

func TestAdaptiveDispatcherPrefersNeighborOfCompleted(t *testing.T) {
	units := []*unit.Unit{
		{Index: 0}, {Index: 1}, {Index: 2}, {Index: 5},
	}
	d := newAdaptiveDispatcher(units)

	first, ok := d.next()
	if !ok || first.Index != 0 {
		t.Fatalf("expected lowest index 0 first, got %+v ok=%v", first, ok)
	}
	d.markComplete(0)

	second, ok := d.next()
	if !ok || second.Index != 1 {
		t.Fatalf("expected neighbor index 1 next, got %+v ok=%v", second, ok)
	}
}

func TestWorkerCountFloorsAtOne(t *testing.T) {
	if got := WorkerCount(1000000, 1920, 1080); got < 1 {
		t.Errorf("expected WorkerCount to floor at 1, got %d", got)
	}
}

func TestWorkerCountZeroDimensionsFallsBackToCPUBound(t *testing.T) {
	got := WorkerCount(2, 0, 0)
	if got < 1 {
		t.Errorf("expected positive worker count with zero resolution, got %d", got)
	}
}

func TestInterruptControllerTwoStageCancellation(t *testing.T) {
	sigCh := make(chan os.Signal, 2)
	ctl := NewInterruptController(context.Background(), sigCh)
	defer ctl.Stop()

	select {
	case <-ctl.Graceful().Done():
		t.Fatal("graceful context cancelled before any signal")
	default:
	}

	sigCh <- syscall.SIGINT
	waitDone(t, ctl.Graceful())

	select {
	case <-ctl.Hard().Done():
		t.Fatal("hard context cancelled after only one signal")
	default:
	}

	sigCh <- syscall.SIGINT
	waitDone(t, ctl.Hard())
}

func waitDone(t *testing.T, ctx context.Context) {
	t.Helper()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled in time")
	}
}
