package engine

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kyupark/socburn/internal/affinity"
	"github.com/kyupark/socburn/internal/clock"
	"github.com/kyupark/socburn/internal/control"
)

// eventLog records the order of lifecycle calls across fakes.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *eventLog) index(e string) int {
	for i, got := range l.snapshot() {
		if got == e {
			return i
		}
	}
	return -1
}

type fakeClock struct {
	log      *eventLog
	applyErr error
	reverts  int
}

func (c *fakeClock) Apply(clock.Profile) error {
	c.log.add("clock-apply")
	return c.applyErr
}

func (c *fakeClock) Revert() {
	c.reverts++
	c.log.add("clock-revert")
}

type fakeRecorder struct {
	log   *eventLog
	runID string
}

func (r *fakeRecorder) Start(runID string) {
	r.runID = runID
	r.log.add("recorder-start")
}

func (r *fakeRecorder) SignalStop() { r.log.add("recorder-signal") }

func (r *fakeRecorder) Wait() { r.log.add("recorder-wait") }

func newTestEngine(spec RunSpec, units []int, clk *fakeClock, rec *fakeRecorder, ctl *control.State) *Engine {
	e := New(spec, units, affinity.Noop{}, clk, rec, ctl, testLogger())
	e.phaseTick = 10 * time.Millisecond
	e.deadlineTick = 10 * time.Millisecond
	e.stabilize = time.Millisecond
	e.grace = 10 * time.Millisecond
	return e
}

// phaseTransitions reads the transition counter for one phase label, zero if
// the label has never been incremented.
func phaseTransitions(t *testing.T, phase string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "socburn_phase_transitions_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "phase" && lp.GetValue() == phase {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestResolveWorkers(t *testing.T) {
	tests := []struct {
		name  string
		spec  RunSpec
		units []int
		want  int
	}{
		{"requested count", RunSpec{Workers: 2}, []int{0, 1, 2, 3}, 2},
		{"zero means all units", RunSpec{Workers: 0}, []int{0, 1, 2, 3}, 4},
		{"negative means all units", RunSpec{Workers: -1}, []int{0, 1}, 2},
		{"clamped when pinning", RunSpec{Workers: 9, Pin: true}, []int{0, 1, 2}, 3},
		{"not clamped without pinning", RunSpec{Workers: 9}, []int{0, 1, 2}, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(tt.spec, tt.units, affinity.Noop{}, nil, nil, control.NewState(), testLogger())
			if got := e.ResolveWorkers(); got != tt.want {
				t.Errorf("ResolveWorkers() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestResolveWorkersNoTopology(t *testing.T) {
	e := New(RunSpec{}, nil, affinity.Noop{}, nil, nil, control.NewState(), testLogger())
	if got := e.ResolveWorkers(); got < 1 {
		t.Errorf("ResolveWorkers() = %d, want >= 1 without topology", got)
	}
}

func TestRunFullLifecycle(t *testing.T) {
	log := &eventLog{}
	clk := &fakeClock{log: log}
	rec := &fakeRecorder{log: log}
	ctl := control.NewState()

	spec := RunSpec{
		Workers:    4,
		Pin:        true,
		ActiveSec:  2,
		IdleSec:    1,
		TotalSec:   4,
		ActiveName: "burst",
		IdleName:   "pause",
		Profile:    clock.Profile{CPU: 12, RAM: 11},
	}
	e := newTestEngine(spec, []int{0, 1, 2, 3}, clk, rec, ctl)

	if err := e.Run("run-e2e"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if rec.runID != "run-e2e" {
		t.Errorf("recorder started with run ID %q, want run-e2e", rec.runID)
	}
	if clk.reverts != 1 {
		t.Fatalf("clock reverted %d times, want exactly 1", clk.reverts)
	}

	// apply precedes recorder start; revert is bracketed by the recorder's
	// stop signal and its join.
	order := []string{"clock-apply", "recorder-start", "recorder-signal", "clock-revert", "recorder-wait"}
	prev := -1
	for _, event := range order {
		idx := log.index(event)
		if idx < 0 {
			t.Fatalf("missing lifecycle event %q in %v", event, log.snapshot())
		}
		if idx <= prev {
			t.Fatalf("lifecycle order wrong: %v, want %v in order", log.snapshot(), order)
		}
		prev = idx
	}
}

func TestRunPhaseCycleCount(t *testing.T) {
	log := &eventLog{}
	clk := &fakeClock{log: log}
	rec := &fakeRecorder{log: log}
	ctl := control.NewState()

	// A 6-tick deadline over a 2+1 tick cycle: the deadline lands exactly on
	// a cycle boundary and the run holds two full active phases.
	spec := RunSpec{
		Workers:    1,
		ActiveSec:  2,
		IdleSec:    1,
		TotalSec:   6,
		ActiveName: "burst",
		IdleName:   "pause",
	}
	e := newTestEngine(spec, []int{0}, clk, rec, ctl)

	activeBefore := phaseTransitions(t, "burst")
	idleBefore := phaseTransitions(t, "pause")

	if err := e.Run("run-cycles"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !ctl.StopRequested() {
		t.Error("deadline did not latch the stop request")
	}

	active := phaseTransitions(t, "burst") - activeBefore
	idle := phaseTransitions(t, "pause") - idleBefore

	want := float64(spec.TotalSec / (spec.ActiveSec + spec.IdleSec))
	if active < want-1 || active > want+1 {
		t.Errorf("active transitions = %.0f, want %.0f +/- 1", active, want)
	}
	if idle < want-1 || idle > want {
		t.Errorf("idle transitions = %.0f, want %.0f or %.0f", idle, want-1, want)
	}
}

func TestRunClockApplyFailureIsAbsorbed(t *testing.T) {
	log := &eventLog{}
	clk := &fakeClock{log: log, applyErr: errors.New("permission denied")}
	rec := &fakeRecorder{log: log}
	ctl := control.NewState()

	spec := RunSpec{
		Workers:    1,
		ActiveSec:  1,
		IdleSec:    1,
		TotalSec:   2,
		ActiveName: "burst",
		IdleName:   "pause",
	}
	e := newTestEngine(spec, []int{0}, clk, rec, ctl)

	if err := e.Run("run-degraded"); err != nil {
		t.Fatalf("Run after clock failure: %v", err)
	}
	if clk.reverts != 1 {
		t.Errorf("clock reverted %d times, want 1", clk.reverts)
	}
}

func TestRunEndsOnExternalStop(t *testing.T) {
	log := &eventLog{}
	clk := &fakeClock{log: log}
	rec := &fakeRecorder{log: log}
	ctl := control.NewState()

	// No deadline: the run only ends on an external stop request.
	spec := RunSpec{
		Workers:    1,
		ActiveSec:  1,
		IdleSec:    1,
		ActiveName: "warm-up",
		IdleName:   "pulse",
	}
	e := newTestEngine(spec, []int{0}, clk, rec, ctl)

	go func() {
		time.Sleep(50 * time.Millisecond)
		ctl.RequestStop()
	}()

	done := make(chan error, 1)
	go func() { done <- e.Run("run-interrupt") }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run did not terminate on external stop")
	}

	if clk.reverts != 1 {
		t.Errorf("clock reverted %d times, want 1", clk.reverts)
	}
}
