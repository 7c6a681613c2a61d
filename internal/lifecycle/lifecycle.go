// Package lifecycle tracks the process phase reported by the health endpoint.
package lifecycle

import "sync/atomic"

// Phase is the process lifecycle phase.
type Phase int32

const (
	// Starting covers config load through the first realtime connect attempt.
	Starting Phase = iota
	Running
	// ShuttingDown is set on SIGTERM/SIGINT. Health returns 503 while draining.
	ShuttingDown
)

func (p Phase) String() string {
	switch p {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting-down"
	default:
		return "unknown"
	}
}

var phase atomic.Int32

// SetPhase records the current phase.
func SetPhase(p Phase) {
	phase.Store(int32(p))
}

// CurrentPhase returns the last phase set, Starting by default.
func CurrentPhase() Phase {
	return Phase(phase.Load())
}

// IsShuttingDown returns true if the process is draining and should not receive new traffic.
func IsShuttingDown() bool {
	return CurrentPhase() == ShuttingDown
}
