package navigation

import (
	"time"

	"markerfollower/estimator"
	"markerfollower/obstacle"
)

// StateMachine evaluates the mode transition rules once per cycle. All
// timing is measured against the injected monotonic clock, never against
// cycle counts; cycle duration varies with estimator latency.
type StateMachine struct {
	now         func() time.Time
	holdTimeout time.Duration
	maneuver    *Maneuver

	mode        Mode
	modeEntered time.Time
	lastValidAt time.Time
	everValid   bool
}

func NewStateMachine(timing ManeuverTiming, holdTimeout time.Duration, now func() time.Time) *StateMachine {
	if now == nil {
		now = time.Now
	}
	sm := &StateMachine{
		now:         now,
		holdTimeout: holdTimeout,
		maneuver:    NewManeuver(timing, now),
		mode:        ModeIdle,
	}
	sm.modeEntered = now()
	return sm
}

// Transition applies the priority rules and returns the active mode:
// a blocked obstacle preempts everything; an in-flight maneuver holds
// AVOIDING even after the obstacle clears; then a valid target tracks,
// a fresh last-known target holds, and everything else idles.
func (sm *StateMachine) Transition(target estimator.TargetState, obst obstacle.State) Mode {
	now := sm.now()
	if target.Valid {
		sm.lastValidAt = now
		sm.everValid = true
	}

	switch {
	case obst.Blocked:
		// Entry and re-trigger both restart the timed sequence from
		// turn-away.
		sm.maneuver.Begin()
		sm.setMode(ModeAvoiding, now)
	case sm.mode == ModeAvoiding && sm.maneuver.Advance(false):
		// Timed sequence still running; obstacle clearing mid-maneuver
		// does not abort it.
	case target.Valid:
		sm.setMode(ModeTracking, now)
	case sm.everValid && now.Sub(sm.lastValidAt) < sm.holdTimeout:
		sm.setMode(ModeHolding, now)
	default:
		sm.setMode(ModeIdle, now)
	}
	return sm.mode
}

func (sm *StateMachine) Mode() Mode {
	return sm.mode
}

// ModeEntered reports when the current mode was entered.
func (sm *StateMachine) ModeEntered() time.Time {
	return sm.modeEntered
}

// Phase reports the active avoidance phase, PhaseNone outside AVOIDING.
func (sm *StateMachine) Phase() ManeuverPhase {
	return sm.maneuver.Phase()
}

func (sm *StateMachine) setMode(m Mode, now time.Time) {
	if sm.mode != m {
		sm.mode = m
		sm.modeEntered = now
	}
}
