package control

import (
	"sync"
	"testing"
)

func TestNewStateDefaults(t *testing.T) {
	s := NewState()
	if !s.WorkEnabled() {
		t.Error("fresh state should have work enabled")
	}
	if s.StopRequested() {
		t.Error("fresh state should not have stop requested")
	}
}

func TestSetWork(t *testing.T) {
	s := NewState()
	s.SetWork(false)
	if s.WorkEnabled() {
		t.Error("WorkEnabled = true after SetWork(false)")
	}
	s.SetWork(true)
	if !s.WorkEnabled() {
		t.Error("WorkEnabled = false after SetWork(true)")
	}
}

// Stop is monotone: repeated requests are indistinguishable from one, and the
// flag never reverts to false.
func TestRequestStopIdempotent(t *testing.T) {
	s := NewState()
	s.RequestStop()
	s.RequestStop()
	if !s.StopRequested() {
		t.Error("StopRequested = false after RequestStop")
	}

	s.SetWork(false)
	s.SetWork(true)
	if !s.StopRequested() {
		t.Error("stop flag must not be affected by work toggles")
	}
}

func TestRequestStopConcurrent(t *testing.T) {
	s := NewState()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RequestStop()
		}()
	}
	wg.Wait()
	if !s.StopRequested() {
		t.Error("StopRequested = false after concurrent RequestStop calls")
	}
}

func TestNotifyInterruptRelease(t *testing.T) {
	s := NewState()
	stop := s.NotifyInterrupt()
	stop()
	if s.StopRequested() {
		t.Error("releasing the signal registration must not request stop")
	}
}
