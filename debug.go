package fabrik

import (
	"fmt"
	"time"
)

// debugStats holds per-solve timing and convergence metrics.
// Only populated when the solver is in debug mode.
type debugStats struct {
	buildTime   time.Duration
	solveTime   time.Duration
	graphCount  int
	jointCount  int
	iterations  int
	unconverged int
}

// SetDebugMode enables or disables debug mode. When enabled, per-solve
// timing and iteration stats are written to the solver's log.
func (s *Solver) SetDebugMode(enabled bool) {
	s.debug = enabled
}

// debugLog prints timing and convergence stats.
func (s *Solver) debugLog(stats debugStats) {
	if !s.debug {
		return
	}
	_, _ = fmt.Fprintf(s.log,
		"[fabrik] build: %v | solve: %v | total: %v\n",
		stats.buildTime, stats.solveTime, stats.buildTime+stats.solveTime)
	_, _ = fmt.Fprintf(s.log,
		"[fabrik] graphs: %d | joints: %d | iterations: %d | unconverged: %d\n",
		stats.graphCount, stats.jointCount, stats.iterations, stats.unconverged)
}

// warnOnce logs a warning the first time key is seen. Malformed chains are
// retried every frame but each distinct failure is logged once.
func (s *Solver) warnOnce(key, format string, args ...any) {
	if s.warned[key] {
		return
	}
	s.warned[key] = true
	_, _ = fmt.Fprintf(s.log, "[fabrik] warning: "+format+"\n", args...)
}
