package navigation

import (
	"fmt"
	"math"

	"markerfollower/estimator"
	"markerfollower/utils"
)

// WheelCommand is a pair of normalized wheel speeds in [-1, 1], the only
// artifact crossing the boundary to the motor driver.
type WheelCommand struct {
	Left  float64
	Right float64
}

// MotionParams are the steering gains and clamps, in normalized speed units
// and the estimator's distance unit.
type MotionParams struct {
	BaseSpeed         float64
	TurnGain          float64
	MinSpeed          float64
	MaxSpeed          float64
	DistanceComp      float64
	ReferenceDistance float64
	// StopDistance forces forward speed to zero on close approach while
	// turning correction stays live for fine centering.
	StopDistance      float64
	TurnSpeed         float64
	AvoidForwardSpeed float64
}

func (p MotionParams) Validate() error {
	if err := utils.ValidatePositive("base speed", p.BaseSpeed); err != nil {
		return err
	}
	if err := utils.ValidatePositive("min speed", p.MinSpeed); err != nil {
		return err
	}
	if err := utils.ValidateUnitInterval("max speed", p.MaxSpeed); err != nil {
		return err
	}
	if err := utils.ValidateOrdered("min speed", p.MinSpeed, "max speed", p.MaxSpeed); err != nil {
		return err
	}
	if err := utils.ValidatePositive("turn speed", p.TurnSpeed); err != nil {
		return err
	}
	if err := utils.ValidatePositive("avoid forward speed", p.AvoidForwardSpeed); err != nil {
		return err
	}
	if p.TurnGain < 0 {
		return fmt.Errorf("turn gain must not be negative, got %v", p.TurnGain)
	}
	if p.DistanceComp < 0 {
		return fmt.Errorf("distance compensation must not be negative, got %v", p.DistanceComp)
	}
	return nil
}

// Compute is the steering law: a pure mapping from (target, mode, phase) to
// wheel speeds. It holds no state; session memory lives with the caller.
func Compute(target estimator.TargetState, mode Mode, phase ManeuverPhase, p MotionParams) WheelCommand {
	switch mode {
	case ModeAvoiding:
		return maneuverCommand(phase, p)

	case ModeTracking, ModeHolding:
		speed := p.BaseSpeed - p.DistanceComp*math.Max(0, p.ReferenceDistance-target.Distance)
		speed = utils.Clamp(speed, p.MinSpeed, p.MaxSpeed)
		if target.Distance < p.StopDistance {
			speed = 0
		}
		return WheelCommand{
			Left:  utils.Clamp(speed-p.TurnGain*target.LateralOffset, -1, 1),
			Right: utils.Clamp(speed+p.TurnGain*target.LateralOffset, -1, 1),
		}

	default:
		// IDLE creeps straight at minimum speed, never zero, so the robot
		// is not immobilized forever when no information is available.
		creep := utils.Clamp(p.MinSpeed, -1, 1)
		return WheelCommand{Left: creep, Right: creep}
	}
}

func maneuverCommand(phase ManeuverPhase, p MotionParams) WheelCommand {
	turn := utils.Clamp(p.TurnSpeed, 0, 1)
	switch phase {
	case PhaseTurnAway:
		// Bypass to the right first, matching the turn-back mirror.
		return WheelCommand{Left: -turn, Right: turn}
	case PhaseTurnBack:
		return WheelCommand{Left: turn, Right: -turn}
	case PhaseForward:
		v := utils.Clamp(p.AvoidForwardSpeed, -1, 1)
		return WheelCommand{Left: v, Right: v}
	default:
		// Recovery holds a stop while clearance settles.
		return WheelCommand{}
	}
}
