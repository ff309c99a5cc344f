// Package control holds the shared flag pair coordinating a run: workEnabled
// gates worker computation and stopRequested requests cooperative shutdown.
// Both are level-triggered, so a reader joining mid-phase behaves correctly
// by re-reading the current value.
package control

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// State is the control surface shared by every loop in a run. Each run owns
// its own State; flags are never reused across runs. stopRequested is
// monotone: once set it is never cleared.
type State struct {
	work atomic.Bool
	stop atomic.Bool
}

// NewState returns a fresh control state with work enabled and stop clear.
func NewState() *State {
	s := &State{}
	s.work.Store(true)
	return s
}

// SetWork toggles the work-enabled flag. Only the phase controller calls this.
func (s *State) SetWork(enabled bool) {
	s.work.Store(enabled)
}

// WorkEnabled reports whether workers should be computing right now.
func (s *State) WorkEnabled() bool {
	return s.work.Load()
}

// RequestStop raises the stop flag. Safe to call from any goroutine and from
// more than one source; repeated calls have the same effect as one.
func (s *State) RequestStop() {
	s.stop.Store(true)
}

// StopRequested reports whether shutdown has been requested.
func (s *State) StopRequested() bool {
	return s.stop.Load()
}

// NotifyInterrupt routes SIGINT/SIGTERM to RequestStop. The signal path does
// nothing else; all teardown lives in the orchestrator's shutdown sequence.
// The returned func releases the signal registration.
func (s *State) NotifyInterrupt() func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case <-ch:
			s.RequestStop()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}
