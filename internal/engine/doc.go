// Package engine generates a phased compute load across the SoC's execution
// units. It orchestrates the run lifecycle: pinned worker threads driving a
// deterministic busy loop, a phase controller alternating active and idle
// intervals, an optional deadline timer, and an ordered shutdown that joins
// every thread and reverts the clock profile exactly once.
package engine
