package model

import "time"

// Load mode constants. Burst alternates compute bursts with idle pauses;
// pulse holds a long warm-up and injects short idle pulses.
const (
	ModeBurst = "burst"
	ModePulse = "pulse"
)

// Run status constants.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusAborted   = "aborted"
)

// Run represents one load-generation session and the settings it ran under.
type Run struct {
	ID            string     `json:"id"`
	Device        string     `json:"device"`
	Mode          string     `json:"mode"`
	Status        string     `json:"status"`
	Workers       int        `json:"workers"`
	Pinned        bool       `json:"pinned"`
	CPUClock      int        `json:"cpu_clock"`
	RAMClock      int        `json:"ram_clock"`
	PulseCPUClock int        `json:"pulse_cpu_clock"`
	PulseRAMClock int        `json:"pulse_ram_clock"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// Sample is a single telemetry reading taken during a run.
type Sample struct {
	ID      int64     `json:"id"`
	RunID   string    `json:"run_id"`
	Seq     int       `json:"seq"`
	Metric  string    `json:"metric"`
	Value   float64   `json:"value"`
	TakenAt time.Time `json:"taken_at"`
}
