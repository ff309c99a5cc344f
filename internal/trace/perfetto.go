// Package trace manages an external perfetto capture process alongside a
// run. Capture is best-effort instrumentation: every failure is logged and
// absorbed, never surfaced into the load path.
package trace

import (
	"fmt"
	"log/slog"
	"os/exec"
	"syscall"
	"time"
)

// DefaultBinary is where Android ships the perfetto CLI.
const DefaultBinary = "/system/bin/perfetto"

// stopTimeout bounds how long Stop waits for the capture process to exit.
const stopTimeout = 5 * time.Second

// Config describes one capture session.
type Config struct {
	// Binary is the perfetto executable; DefaultBinary when empty.
	Binary string
	// ConfigPath is the textproto trace config passed via -c.
	ConfigPath string
	// OutputPath receives the captured trace.
	OutputPath string
	// DetachKey selects detached mode: the launcher exits immediately and
	// Stop reattaches with --stop --attach=KEY. Empty selects background
	// mode, where Stop signals the tracked process. Detached mode requires
	// write_into_file:true in the trace config.
	DetachKey string
	// UseSu wraps the invocation in "su -c" for devices where the tracing
	// service needs root.
	UseSu bool
}

// Session is a started capture.
type Session struct {
	cfg    Config
	cmd    *exec.Cmd
	logger *slog.Logger
}

// Start launches the capture process. In background mode the process is
// tracked for later termination; in detached mode the launcher is waited
// for and only the session key is retained.
func Start(cfg Config, logger *slog.Logger) (*Session, error) {
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}

	argv := startArgs(cfg)
	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start perfetto: %w", err)
	}

	s := &Session{cfg: cfg, cmd: cmd, logger: logger}
	if cfg.DetachKey != "" {
		// The detached launcher exits once the session is handed to the
		// tracing service.
		if err := cmd.Wait(); err != nil {
			return nil, fmt.Errorf("detach perfetto session: %w", err)
		}
		s.cmd = nil
	}

	logger.Info("trace capture started", "output", cfg.OutputPath, "detach_key", cfg.DetachKey)
	return s, nil
}

// Stop terminates the capture. Errors are logged, not returned; a capture
// that fails to stop cleanly must not hold up run teardown.
func (s *Session) Stop() {
	if s.cfg.DetachKey != "" {
		argv := stopArgs(s.cfg)
		if err := exec.Command(argv[0], argv[1:]...).Run(); err != nil {
			s.logger.Warn("stopping detached trace failed", "key", s.cfg.DetachKey, "error", err)
		}
		return
	}

	if s.cmd == nil || s.cmd.Process == nil {
		return
	}
	if err := s.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		s.logger.Warn("signaling trace process failed", "pid", s.cmd.Process.Pid, "error", err)
	}

	// Reap without blocking teardown forever.
	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()
	select {
	case <-done:
	case <-time.After(stopTimeout):
		s.logger.Warn("trace process did not exit, killing", "pid", s.cmd.Process.Pid)
		_ = s.cmd.Process.Kill()
		<-done
	}
}

func startArgs(cfg Config) []string {
	var inner []string
	if cfg.DetachKey != "" {
		inner = []string{cfg.Binary, "--txt", "-c", cfg.ConfigPath, "--detach=" + cfg.DetachKey, "-o", cfg.OutputPath}
	} else {
		inner = []string{cfg.Binary, "--background", "--txt", "-c", cfg.ConfigPath, "-o", cfg.OutputPath}
	}
	return wrapSu(cfg.UseSu, inner)
}

func stopArgs(cfg Config) []string {
	return wrapSu(cfg.UseSu, []string{cfg.Binary, "--stop", "--attach=" + cfg.DetachKey})
}

// wrapSu rewrites argv as a single "su -c" command line when root is needed.
func wrapSu(useSu bool, argv []string) []string {
	if !useSu {
		return argv
	}
	joined := argv[0]
	for _, a := range argv[1:] {
		joined += " " + a
	}
	return []string{"/system/bin/su", "-c", joined}
}
