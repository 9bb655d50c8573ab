// Package navigation arbitrates between tracking, obstacle avoidance and
// target-loss behaviors, and maps the fused state to wheel speeds.
package navigation

import "fmt"

// Mode is the externally observable navigation state. Exactly one is active
// per cycle.
type Mode int

const (
	ModeIdle Mode = iota + 1
	ModeTracking
	ModeAvoiding
	ModeHolding
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "IDLE"
	case ModeTracking:
		return "TRACKING"
	case ModeAvoiding:
		return "AVOIDING"
	case ModeHolding:
		return "HOLDING"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}
