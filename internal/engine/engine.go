package engine

import (
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/kyupark/socburn/internal/affinity"
	"github.com/kyupark/socburn/internal/clock"
	"github.com/kyupark/socburn/internal/control"
)

const (
	// waitPoll is how often the coordinating goroutine re-checks the stop
	// flag; its only blocking point.
	waitPoll = 500 * time.Millisecond

	// stabilizeDelay separates clock apply and recorder start from the
	// first phase transition.
	stabilizeDelay = 50 * time.Millisecond

	// graceDelay lets asynchronous teardown in the recorder settle before
	// the run is declared complete.
	graceDelay = time.Second
)

// ErrNoWorkers is returned when the worker pool cannot be built at all; the
// only engine failure that surfaces as a non-zero exit.
var ErrNoWorkers = errors.New("no workers could be resolved")

// TelemetryRecorder is the engine's view of the hardware recorder. It owns a
// termination flag distinct from the run's stop flag, so signaling and
// joining are separate steps in the shutdown order.
type TelemetryRecorder interface {
	Start(runID string)
	SignalStop()
	Wait()
}

// RunSpec is the immutable configuration of one run.
type RunSpec struct {
	// Workers is the requested pool size; <= 0 means one per online unit.
	Workers int
	// Pin requests binding each worker to an execution unit.
	Pin bool
	// ActiveSec and IdleSec are the phase durations.
	ActiveSec int
	IdleSec   int
	// TotalSec arms the deadline timer; <= 0 runs until interrupted.
	TotalSec int
	// ActiveName and IdleName label phase transitions in logs and metrics.
	ActiveName string
	IdleName   string
	// Profile is handed opaquely to the clock controller.
	Profile clock.Profile
}

// Engine composes the worker pool, phase controller, deadline timer and
// recorder around a shared control state, and owns the ordered shutdown.
type Engine struct {
	spec     RunSpec
	units    []int // resolved online units; nil when topology was unavailable
	pinner   affinity.Pinner
	clock    clock.Controller
	recorder TelemetryRecorder
	ctl      *control.State
	logger   *slog.Logger

	// test knobs; production values by default
	phaseTick    time.Duration
	deadlineTick time.Duration
	stabilize    time.Duration
	grace        time.Duration
}

// New builds an engine. units may be nil (degraded mode: generic worker
// count estimate, no pinning). The control state is supplied by the caller
// so an external interrupt handler can share it.
func New(spec RunSpec, units []int, pinner affinity.Pinner, clk clock.Controller, rec TelemetryRecorder, ctl *control.State, logger *slog.Logger) *Engine {
	return &Engine{
		spec:         spec,
		units:        units,
		pinner:       pinner,
		clock:        clk,
		recorder:     rec,
		ctl:          ctl,
		logger:       logger,
		phaseTick:    time.Second,
		deadlineTick: time.Second,
		stabilize:    stabilizeDelay,
		grace:        graceDelay,
	}
}

// ResolveWorkers returns the effective pool size: the requested count, or
// the online-unit count, or a hardware-thread estimate when topology is
// unavailable. The count is clamped to the unit count when pinning is on
// and a unit list exists.
func (e *Engine) ResolveWorkers() int {
	online := len(e.units)
	if online == 0 {
		online = runtime.NumCPU()
	}
	if online <= 0 {
		online = 1
	}

	n := e.spec.Workers
	if n <= 0 {
		n = online
	}
	if e.spec.Pin && len(e.units) > 0 && n > len(e.units) {
		n = len(e.units)
	}
	return n
}

// Run drives one complete load session and blocks until it has fully torn
// down. It returns ErrNoWorkers if the pool cannot be built; every other
// failure is best-effort instrumentation and is logged, not returned.
func (e *Engine) Run(runID string) error {
	workers := e.ResolveWorkers()
	if workers < 1 {
		return ErrNoWorkers
	}

	pin := e.spec.Pin && len(e.units) > 0
	e.logger.Info("run starting",
		"run_id", runID,
		"workers", workers,
		"pin", pin,
		"online_units", len(e.units),
		"total_s", e.spec.TotalSec,
	)

	// Clock control is instrumentation, not a precondition: a failed apply
	// means the run proceeds unthrottled.
	if err := e.clock.Apply(e.spec.Profile); err != nil {
		clockApplyFailuresTotal.Inc()
		e.logger.Warn("clock profile apply failed, continuing unthrottled", "error", err)
	}

	e.recorder.Start(runID)

	var aux sync.WaitGroup
	if e.spec.TotalSec > 0 {
		d := newDeadlineTimer(e.ctl, e.spec.TotalSec)
		d.tick = e.deadlineTick
		aux.Add(1)
		go func() {
			defer aux.Done()
			d.run()
		}()
	}

	time.Sleep(e.stabilize)

	p := newPhaseController(e.ctl, e.spec.ActiveSec, e.spec.IdleSec, e.spec.ActiveName, e.spec.IdleName, e.logger)
	p.tick = e.phaseTick
	var phaseWG sync.WaitGroup
	phaseWG.Add(1)
	go func() {
		defer phaseWG.Done()
		p.run()
	}()

	var pool sync.WaitGroup
	for i := 0; i < workers; i++ {
		w := &worker{
			index:  i,
			unit:   affinity.Unassigned,
			pinner: e.pinner,
			ctl:    e.ctl,
			logger: e.logger,
		}
		if pin {
			w.unit = e.units[i%len(e.units)]
		}
		pool.Add(1)
		go func() {
			defer pool.Done()
			w.run()
		}()
	}

	// The only blocking point in the main line of control: poll until some
	// source (deadline, interrupt) requests stop.
	for !e.ctl.StopRequested() {
		time.Sleep(waitPoll)
	}
	// Force the flag so every component converges even if we were woken by
	// something else. Idempotent.
	e.ctl.RequestStop()

	pool.Wait()
	e.logger.Info("workers joined", "run_id", runID, "workers", workers)

	// Shutdown order: recorder signaled, clocks reverted only after load
	// has fully stopped, then the remaining threads join.
	e.recorder.SignalStop()
	e.clock.Revert()
	phaseWG.Wait()
	aux.Wait()
	e.recorder.Wait()

	time.Sleep(e.grace)
	e.logger.Info("run complete", "run_id", runID)
	return nil
}
