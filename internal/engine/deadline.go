package engine

import (
	"time"

	"github.com/kyupark/socburn/internal/control"
)

// deadlineTimer is a one-shot alarm: after totalSec seconds of wall time it
// raises the stop flag and exits. It never adapts to phase timing. A stop
// raised elsewhere ends it early.
type deadlineTimer struct {
	ctl      *control.State
	totalSec int
	tick     time.Duration
}

func newDeadlineTimer(ctl *control.State, totalSec int) *deadlineTimer {
	return &deadlineTimer{ctl: ctl, totalSec: totalSec, tick: time.Second}
}

func (d *deadlineTimer) run() {
	for s := 0; s < d.totalSec; s++ {
		if d.ctl.StopRequested() {
			return
		}
		time.Sleep(d.tick)
	}
	d.ctl.RequestStop()
}
