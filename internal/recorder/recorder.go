// Package recorder samples hardware counters while load runs and persists
// them through the store. It owns its own termination flag, separate from
// the run's stop flag, because it keeps sampling through load teardown and
// is only told to stop after the clocks have been reverted.
package recorder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kyupark/socburn/internal/model"
	"github.com/kyupark/socburn/internal/store"
)

// DefaultInterval is how often counters are sampled.
const DefaultInterval = time.Second

// Probe reads one hardware counter.
type Probe interface {
	// Name identifies the counter in persisted samples, e.g. "cpufreq.policy0".
	Name() string
	Read() (float64, error)
}

// Recorder periodically reads every probe and persists the values. Start
// and Stop bracket exactly one sampling session.
type Recorder struct {
	store    store.Store
	probes   []Probe
	interval time.Duration
	logger   *slog.Logger
	mirror   io.Writer

	term atomic.Bool
	wg   sync.WaitGroup
}

// Option adjusts a Recorder.
type Option func(*Recorder)

// WithInterval overrides the sampling interval.
func WithInterval(d time.Duration) Option {
	return func(r *Recorder) { r.interval = d }
}

// WithMirror additionally writes each sample as a plain-text line, matching
// the kernel_hard_<cpu>_<ram>.txt files earlier tooling consumed.
func WithMirror(w io.Writer) Option {
	return func(r *Recorder) { r.mirror = w }
}

// New builds a recorder over the given probes.
func New(st store.Store, probes []Probe, logger *slog.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		store:    st,
		probes:   probes,
		interval: DefaultInterval,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start begins sampling on its own goroutine, tagging samples with runID.
func (r *Recorder) Start(runID string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.sampleLoop(runID)
	}()
}

// SignalStop raises the recorder's termination flag without waiting.
// The engine separates signal from join so clock rollback can happen in
// between.
func (r *Recorder) SignalStop() {
	r.term.Store(true)
}

// Wait blocks until the sampling goroutine drains.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

// Stop signals and waits. Idempotent.
func (r *Recorder) Stop() {
	r.SignalStop()
	r.Wait()
}

func (r *Recorder) sampleLoop(runID string) {
	seq := 0
	for !r.term.Load() {
		now := time.Now().UTC()
		for _, p := range r.probes {
			value, err := p.Read()
			if err != nil {
				// Counters come and go as devices idle; skip, don't abort.
				r.logger.Debug("probe read failed", "metric", p.Name(), "error", err)
				continue
			}
			r.record(runID, seq, p.Name(), value, now)
		}
		seq++

		// Sleep in short slices so Stop is honored promptly.
		deadline := time.Now().Add(r.interval)
		for !r.term.Load() && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (r *Recorder) record(runID string, seq int, metric string, value float64, now time.Time) {
	sample := &model.Sample{
		RunID:   runID,
		Seq:     seq,
		Metric:  metric,
		Value:   value,
		TakenAt: now,
	}
	if err := r.store.InsertSample(context.Background(), sample); err != nil {
		r.logger.Warn("persist sample failed", "metric", metric, "error", err)
	}
	if r.mirror != nil {
		fmt.Fprintf(r.mirror, "%d %s %s %.0f\n", seq, now.Format(time.RFC3339), metric, value)
	}
}
