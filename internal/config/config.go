// Package config turns process arguments into the immutable configuration
// record the engine consumes, and builds the process logger.
package config

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kyupark/socburn/internal/clock"
	"github.com/kyupark/socburn/internal/model"
)

const (
	defaultDevice   = "Pixel9"
	defaultOutput   = "output/"
	defaultDuration = 10
	defaultBurst    = 5
	defaultPause    = 5
	defaultPulse    = 1

	envLogLevel = "SOCBURN_LOG_LEVEL"
)

// Config is the run configuration. Read-only after Load.
type Config struct {
	Mode     string
	Device   string
	Workers  int
	Pin      bool
	Duration int // seconds; total in burst mode, warm-up budget in pulse mode
	Burst    int // seconds of compute per cycle (burst mode)
	Pause    int // seconds of idle per cycle (burst mode)
	Pulse    int // seconds of idle pulse per cycle (pulse mode)

	CPUClock      int
	RAMClock      int
	PulseCPUClock int
	PulseRAMClock int

	OutputDir   string
	DBPath      string
	MetricsAddr string

	TraceConfig    string
	TraceDetachKey string
	TraceSu        bool

	LogLevel slog.Level
}

// Load parses args (not including the program name) into a validated Config.
func Load(args []string) (*Config, error) {
	cfg := &Config{LogLevel: logLevelFromEnv()}

	fs := flag.NewFlagSet("socburn", flag.ContinueOnError)
	fs.StringVar(&cfg.Mode, "mode", model.ModeBurst, "load shape: burst (compute/idle cycle) or pulse (warm-up with idle pulses)")
	fs.StringVar(&cfg.Device, "device", defaultDevice, "device type ("+strings.Join(clock.Devices(), " | ")+")")
	fs.IntVar(&cfg.Workers, "threads", -1, "number of worker threads (-1: one per online CPU)")
	noPin := fs.Bool("nopin", false, "do not pin workers to specific cores")
	fs.IntVar(&cfg.Duration, "duration", defaultDuration, "total run duration in seconds (0: run until interrupted)")
	fs.IntVar(&cfg.Burst, "burst", defaultBurst, "compute burst seconds per cycle (burst mode)")
	fs.IntVar(&cfg.Pause, "pause", defaultPause, "idle pause seconds per cycle (burst mode)")
	fs.IntVar(&cfg.Pulse, "pulse", defaultPulse, "idle pulse seconds per cycle (pulse mode)")
	fs.IntVar(&cfg.CPUClock, "cpu-clock", clock.Off, "CPU clock index to maintain (-1: off)")
	fs.IntVar(&cfg.RAMClock, "ram-clock", clock.Off, "RAM clock index to maintain (-1: off)")
	fs.IntVar(&cfg.PulseCPUClock, "pulse-cpu-clock", clock.Off, "CPU clock index for the pulse phase (recorded, not applied)")
	fs.IntVar(&cfg.PulseRAMClock, "pulse-ram-clock", clock.Off, "RAM clock index for the pulse phase (recorded, not applied)")
	fs.StringVar(&cfg.OutputDir, "output", defaultOutput, "output directory path")
	fs.StringVar(&cfg.DBPath, "db", "", "telemetry database path (default: <output>/socburn.db)")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "listen address for /metrics and /healthz (empty: disabled)")
	fs.StringVar(&cfg.TraceConfig, "trace-config", "", "perfetto trace config path (empty: no trace capture)")
	fs.StringVar(&cfg.TraceDetachKey, "trace-detach", "", "perfetto detach session key (empty: background mode)")
	fs.BoolVar(&cfg.TraceSu, "trace-su", false, "run perfetto under su")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.Pin = !*noPin

	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.OutputDir, "socburn.db")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate rejects configurations that must abort before any thread spawns.
func (c *Config) validate() error {
	if c.Mode != model.ModeBurst && c.Mode != model.ModePulse {
		return fmt.Errorf("invalid mode %q (want %s or %s)", c.Mode, model.ModeBurst, model.ModePulse)
	}
	if !clock.KnownDevice(c.Device) {
		return fmt.Errorf("unknown device %q (known: %s)", c.Device, strings.Join(clock.Devices(), ", "))
	}
	if c.Duration < 0 {
		return fmt.Errorf("invalid duration %d", c.Duration)
	}
	switch c.Mode {
	case model.ModeBurst:
		if c.Burst < 1 || c.Pause < 0 {
			return fmt.Errorf("invalid burst/pause durations %d/%d", c.Burst, c.Pause)
		}
	case model.ModePulse:
		if c.Pulse < 1 {
			return fmt.Errorf("invalid pulse duration %d", c.Pulse)
		}
		if c.Duration > 0 && c.Duration <= c.Pulse {
			return fmt.Errorf("duration %d must exceed pulse %d", c.Duration, c.Pulse)
		}
	}
	return nil
}

// Phases resolves the mode into phase durations, names and the total run
// budget. In pulse mode the warm-up length is the configured duration minus
// the pulse length, and the deadline allows one extra pulse on top.
func (c *Config) Phases() (activeSec, idleSec, totalSec int, activeName, idleName string) {
	switch c.Mode {
	case model.ModePulse:
		active := c.Duration - c.Pulse
		if active < 0 {
			active = 0
		}
		total := 0
		if c.Duration > 0 {
			total = c.Duration + c.Pulse
		}
		return active, c.Pulse, total, "warm-up", "pulse"
	default:
		return c.Burst, c.Pause, c.Duration, "burst", "pause"
	}
}

// Profile returns the maintain clock profile applied for the whole run.
func (c *Config) Profile() clock.Profile {
	return clock.Profile{CPU: c.CPUClock, RAM: c.RAMClock}
}

// MirrorPath names the plain-text telemetry mirror after the maintain clock
// indices, matching the files earlier tooling consumed.
func (c *Config) MirrorPath() string {
	name := fmt.Sprintf("kernel_hard_%d_%d.txt", c.CPUClock, c.RAMClock)
	return filepath.Join(c.OutputDir, name)
}

func logLevelFromEnv() slog.Level {
	if v := os.Getenv(envLogLevel); v != "" {
		return parseLogLevel(v)
	}
	return slog.LevelInfo
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured text logger writing to w at the configured
// level. Progress output is advisory and human-readable, not a protocol.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
