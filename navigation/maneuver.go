package navigation

import (
	"fmt"
	"time"

	"markerfollower/utils"
)

// ManeuverPhase identifies the active step of the timed bypass sequence.
type ManeuverPhase int

const (
	PhaseNone ManeuverPhase = iota
	PhaseTurnAway
	PhaseForward
	PhaseTurnBack
	PhaseRecovery
)

func (p ManeuverPhase) String() string {
	switch p {
	case PhaseNone:
		return "NONE"
	case PhaseTurnAway:
		return "TURN_AWAY"
	case PhaseForward:
		return "FORWARD"
	case PhaseTurnBack:
		return "TURN_BACK"
	case PhaseRecovery:
		return "RECOVERY"
	default:
		return fmt.Sprintf("ManeuverPhase(%d)", int(p))
	}
}

// ManeuverTiming carries the fixed phase durations. The turn-back phase
// mirrors the turn-away duration.
type ManeuverTiming struct {
	TurnDuration    time.Duration
	ForwardDuration time.Duration
	RecoveryDelay   time.Duration
}

func (t ManeuverTiming) Validate() error {
	if err := utils.ValidatePositive("turn duration", t.TurnDuration.Seconds()); err != nil {
		return err
	}
	if err := utils.ValidatePositive("forward duration", t.ForwardDuration.Seconds()); err != nil {
		return err
	}
	if err := utils.ValidatePositive("recovery delay", t.RecoveryDelay.Seconds()); err != nil {
		return err
	}
	return nil
}

// Maneuver is the timed obstacle-bypass sequence: turn away, drive forward,
// turn back, then hold a stop through the recovery delay. Each phase is
// measured from its own entry timestamp, so the sequence does not care when
// the obstacle first appeared.
type Maneuver struct {
	now    func() time.Time
	timing ManeuverTiming
	phase  ManeuverPhase
	start  time.Time
}

func NewManeuver(timing ManeuverTiming, now func() time.Time) *Maneuver {
	if now == nil {
		now = time.Now
	}
	return &Maneuver{now: now, timing: timing}
}

// Begin enters (or re-enters) the turn-away phase.
func (m *Maneuver) Begin() {
	m.enter(PhaseTurnAway)
}

func (m *Maneuver) Active() bool {
	return m.phase != PhaseNone
}

func (m *Maneuver) Phase() ManeuverPhase {
	return m.phase
}

// Advance walks the phase table once per cycle and reports whether the
// sequence is still running. A blocked reading restarts from turn-away so
// the robot never drives forward into an obstacle that is still there.
func (m *Maneuver) Advance(blocked bool) bool {
	if m.phase == PhaseNone {
		return false
	}
	if blocked {
		m.enter(PhaseTurnAway)
		return true
	}

	elapsed := m.now().Sub(m.start)
	switch m.phase {
	case PhaseTurnAway:
		if elapsed >= m.timing.TurnDuration {
			m.enter(PhaseForward)
		}
	case PhaseForward:
		if elapsed >= m.timing.ForwardDuration {
			m.enter(PhaseTurnBack)
		}
	case PhaseTurnBack:
		if elapsed >= m.timing.TurnDuration {
			m.enter(PhaseRecovery)
		}
	case PhaseRecovery:
		if elapsed >= m.timing.RecoveryDelay {
			m.phase = PhaseNone
		}
	}
	return m.phase != PhaseNone
}

func (m *Maneuver) enter(p ManeuverPhase) {
	m.phase = p
	m.start = m.now()
}
