package engine

import (
	"log/slog"
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/kyupark/socburn/internal/affinity"
	"github.com/kyupark/socburn/internal/control"
)

const (
	// batchIterations amortizes flag-check overhead: the unit stays
	// saturated instead of oscillating on every load of the work flag.
	batchIterations = 1_000_000

	// idleSleep bounds how long a worker lags behind a phase transition.
	idleSleep = 50 * time.Millisecond
)

// sink receives a digest of every batch so the computed values stay live.
// Nothing reads it.
var sink atomic.Uint64

// worker owns one OS thread of busy computation. It observes the shared
// flags supplied by the orchestrator and never mutates them.
type worker struct {
	index  int
	unit   int // affinity.Unassigned when pinning is off or unavailable
	pinner affinity.Pinner
	ctl    *control.State
	logger *slog.Logger
}

// run binds to the assigned unit (best-effort) and grinds until stop is
// observed.
func (w *worker) run() {
	if w.unit != affinity.Unassigned {
		// Affinity applies to the OS thread, so the goroutine must stay on it.
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		if err := w.pinner.BindToUnit(w.unit); err != nil {
			w.logger.Warn("pin failed, continuing unpinned",
				"worker", w.index, "unit", w.unit, "error", err)
			w.unit = affinity.Unassigned
		} else {
			workersPinned.Inc()
			defer workersPinned.Dec()
		}
	}

	hotLoop(w.ctl)
}

// hotLoop mixes four floating-point recurrences with an LCG update, checking
// the shared flags once per batch. Values are re-seeded when they drift past
// the clamp bounds so the instruction mix never degenerates into denormal or
// overflow handling.
func hotLoop(ctl *control.State) {
	v0, v1, v2, v3 := 1.000001, 0.999999, 1.000003, 0.999997
	rng := uint32(123456789)

	for !ctl.StopRequested() {
		if !ctl.WorkEnabled() {
			time.Sleep(idleSleep)
			continue
		}

		for i := 0; i < batchIterations; i++ {
			v0 = v0*1.0000001 + 0.9999999
			v1 = v1*0.9999997 + 1.0000003
			v2 = v2*1.0000002 + 0.9999998
			v3 = v3*0.9999996 + 1.0000004

			rng = rng*1664525 + 1013904223

			if v0 > 1e30 {
				v0 = 1.0
			}
			if v1 < 1e-30 {
				v1 = 1.0
			}
		}

		// Publishing the batch digest forces the runtime to keep every
		// recurrence live; without a reachable result the whole loop could
		// legally be discarded.
		sink.Store(math.Float64bits(v0+v1+v2+v3) ^ uint64(rng))
		workerBatchesTotal.Inc()
	}
}
