// Command socburn generates a controlled, time-phased compute load across a
// device's CPU cores while pinning clock frequencies, so thermal and DVFS
// behavior can be measured under repeatable conditions. It is explicitly not
// thermally aware: it drives load and leaves measurement to the recorder.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kyupark/socburn/internal/affinity"
	"github.com/kyupark/socburn/internal/clock"
	"github.com/kyupark/socburn/internal/config"
	"github.com/kyupark/socburn/internal/control"
	"github.com/kyupark/socburn/internal/diag"
	"github.com/kyupark/socburn/internal/engine"
	"github.com/kyupark/socburn/internal/model"
	"github.com/kyupark/socburn/internal/recorder"
	"github.com/kyupark/socburn/internal/store"
	"github.com/kyupark/socburn/internal/topology"
	"github.com/kyupark/socburn/internal/trace"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "socburn:", err)
		return 2
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		logger.Error("create output directory", "dir", cfg.OutputDir, "error", err)
		return 1
	}

	units := topology.ReadOnline(topology.DefaultOnlinePath)
	if len(units) == 0 {
		logger.Warn("online CPU topology unavailable, pinning disabled")
	}

	clk, err := clock.NewSysfs(cfg.Device, clock.DefaultSysfsRoot, logger)
	if err != nil {
		logger.Error("resolve device", "error", err)
		return 2
	}
	logger.Info("clock table resolved",
		"device", cfg.Device,
		"cpu_khz", clk.CPUFreqs(cfg.CPUClock),
		"ram_khz", clk.RAMFreq(cfg.RAMClock),
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		logger.Error("open telemetry database", "path", cfg.DBPath, "error", err)
		return 1
	}
	defer db.Close()

	recOpts := []recorder.Option{}
	mirror, err := os.Create(cfg.MirrorPath())
	if err != nil {
		logger.Warn("telemetry mirror unavailable", "path", cfg.MirrorPath(), "error", err)
	} else {
		defer mirror.Close()
		recOpts = append(recOpts, recorder.WithMirror(mirror))
	}
	rec := recorder.New(db, recorder.DiscoverProbes(clock.DefaultSysfsRoot), logger, recOpts...)

	ctl := control.NewState()
	release := ctl.NotifyInterrupt()
	defer release()

	if cfg.MetricsAddr != "" {
		d := diag.NewServer(cfg.MetricsAddr, logger)
		d.Start()
		defer d.Stop()
	}

	runID := model.NewRunID()

	if cfg.TraceConfig != "" {
		session, err := trace.Start(trace.Config{
			ConfigPath: cfg.TraceConfig,
			OutputPath: filepath.Join(cfg.OutputDir, runID+".perfetto-trace"),
			DetachKey:  cfg.TraceDetachKey,
			UseSu:      cfg.TraceSu,
		}, logger)
		if err != nil {
			logger.Warn("trace capture unavailable", "error", err)
		} else {
			defer session.Stop()
		}
	}

	if err := affinity.BumpPriority(); err != nil {
		// Negative nice needs root; the run is valid without it.
		logger.Debug("priority bump failed", "error", err)
	}

	activeSec, idleSec, totalSec, activeName, idleName := cfg.Phases()
	spec := engine.RunSpec{
		Workers:    cfg.Workers,
		Pin:        cfg.Pin,
		ActiveSec:  activeSec,
		IdleSec:    idleSec,
		TotalSec:   totalSec,
		ActiveName: activeName,
		IdleName:   idleName,
		Profile:    cfg.Profile(),
	}
	eng := engine.New(spec, units, affinity.New(), clk, rec, ctl, logger)

	ctx := context.Background()
	runRow := &model.Run{
		ID:            runID,
		Device:        cfg.Device,
		Mode:          cfg.Mode,
		Status:        model.StatusRunning,
		Workers:       eng.ResolveWorkers(),
		Pinned:        cfg.Pin && len(units) > 0,
		CPUClock:      cfg.CPUClock,
		RAMClock:      cfg.RAMClock,
		PulseCPUClock: cfg.PulseCPUClock,
		PulseRAMClock: cfg.PulseRAMClock,
		StartedAt:     time.Now().UTC(),
	}
	if err := db.CreateRun(ctx, runRow); err != nil {
		logger.Warn("persist run record failed", "error", err)
	}

	if err := eng.Run(runID); err != nil {
		logger.Error("run failed", "run_id", runID, "error", err)
		if err := db.FinishRun(ctx, runID, model.StatusAborted); err != nil {
			logger.Warn("finalize run record failed", "error", err)
		}
		return 1
	}

	if err := db.FinishRun(ctx, runID, model.StatusCompleted); err != nil {
		logger.Warn("finalize run record failed", "error", err)
	}
	return 0
}
