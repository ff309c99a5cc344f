package engine

import (
	"log/slog"
	"time"

	"github.com/kyupark/socburn/internal/control"
)

// phaseController drives the two-state active/idle cycle by toggling the
// shared work flag. It does not own the decision to stop; it only obeys the
// stop flag, checking it once per tick so a stop request is honored within
// one tick rather than at phase boundaries.
type phaseController struct {
	ctl        *control.State
	activeSec  int
	idleSec    int
	activeName string
	idleName   string
	logger     *slog.Logger

	// tick is one phase-duration second; tests shorten it.
	tick time.Duration
}

func newPhaseController(ctl *control.State, activeSec, idleSec int, activeName, idleName string, logger *slog.Logger) *phaseController {
	return &phaseController{
		ctl:        ctl,
		activeSec:  activeSec,
		idleSec:    idleSec,
		activeName: activeName,
		idleName:   idleName,
		logger:     logger,
		tick:       time.Second,
	}
}

// run cycles active then idle until stop is observed. The initial state is
// always active. A stop observed mid-phase exits without transitioning.
func (p *phaseController) run() {
	for !p.ctl.StopRequested() {
		p.ctl.SetWork(true)
		p.logger.Info("phase", "state", p.activeName, "seconds", p.activeSec)
		phaseTransitionsTotal.WithLabelValues(p.activeName).Inc()
		if !p.hold(p.activeSec) {
			return
		}

		p.ctl.SetWork(false)
		p.logger.Info("phase", "state", p.idleName, "seconds", p.idleSec)
		phaseTransitionsTotal.WithLabelValues(p.idleName).Inc()
		if !p.hold(p.idleSec) {
			return
		}
	}
}

// hold sleeps for the phase duration one tick at a time, reporting false as
// soon as stop is observed.
func (p *phaseController) hold(seconds int) bool {
	for s := 0; s < seconds; s++ {
		if p.ctl.StopRequested() {
			return false
		}
		time.Sleep(p.tick)
	}
	return !p.ctl.StopRequested()
}
