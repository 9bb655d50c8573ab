// Package markerfollower steers a wheeled robot toward a visually identified
// fiducial marker while avoiding close-range obstacles, using one camera and
// one range sensor.
package markerfollower

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"go.viam.com/rdk/logging"

	"markerfollower/estimator"
	"markerfollower/navigation"
	"markerfollower/obstacle"
)

// FrameSource supplies one camera frame per cycle.
type FrameSource interface {
	Frame(ctx context.Context) (image.Image, error)
}

// DriveTrain accepts one normalized wheel-speed pair per cycle.
type DriveTrain interface {
	SetSpeeds(ctx context.Context, left, right float64) error
	Stop(ctx context.Context) error
}

// CycleSnapshot records everything one cycle decided, enough to reconstruct
// the decision offline.
type CycleSnapshot struct {
	At       time.Time
	Mode     navigation.Mode
	Phase    navigation.ManeuverPhase
	Target   estimator.TargetState
	Obstacle obstacle.State
	Command  navigation.WheelCommand
}

// Follower is the control loop driver. It owns all mutable session state and
// runs the fixed per-cycle order: capture, estimate, sense, decide, steer,
// emit. Cycles never overlap; the snapshot mutex exists only so DoCommand
// status reads do not race the single cycle writer.
type Follower struct {
	logger   logging.Logger
	frames   FrameSource
	detector estimator.Detector
	est      *estimator.Estimator
	monitor  *obstacle.Monitor
	machine  *navigation.StateMachine
	motion   navigation.MotionParams
	drive    DriveTrain
	now      func() time.Time

	mu   sync.Mutex
	snap CycleSnapshot
}

func NewFollower(
	logger logging.Logger,
	frames FrameSource,
	detector estimator.Detector,
	est *estimator.Estimator,
	monitor *obstacle.Monitor,
	machine *navigation.StateMachine,
	motion navigation.MotionParams,
	drive DriveTrain,
	now func() time.Time,
) *Follower {
	if now == nil {
		now = time.Now
	}
	return &Follower{
		logger:   logger,
		frames:   frames,
		detector: detector,
		est:      est,
		monitor:  monitor,
		machine:  machine,
		motion:   motion,
		drive:    drive,
		now:      now,
		snap:     CycleSnapshot{Mode: navigation.ModeIdle},
	}
}

// Cycle performs one full pass and emits exactly one wheel command. The only
// error it returns is an actuator fault; camera and range glitches are
// absorbed by continuing on the previous cycle's state.
func (f *Follower) Cycle(ctx context.Context) error {
	var obs []estimator.MarkerObservation
	frame, err := f.frames.Frame(ctx)
	if err != nil {
		f.logger.Debugf("frame capture failed, continuing with prior target: %v", err)
	} else {
		obs, err = f.detector.Detect(ctx, frame)
		if err != nil {
			f.logger.Debugf("marker detection failed, continuing with prior target: %v", err)
			obs = nil
		}
	}

	target := f.est.Estimate(obs)
	obst := f.monitor.Sense(ctx)
	mode := f.machine.Transition(target, obst)
	phase := f.machine.Phase()

	cmd := navigation.Compute(target, mode, phase, f.motion)
	if obst.Emergency {
		// Inside the emergency band nothing outranks a full stop.
		cmd = navigation.WheelCommand{}
	}

	f.mu.Lock()
	f.snap = CycleSnapshot{
		At:       f.now(),
		Mode:     mode,
		Phase:    phase,
		Target:   target,
		Obstacle: obst,
		Command:  cmd,
	}
	f.mu.Unlock()

	f.logger.Debugf(
		"cycle mode=%s phase=%s target(dist=%.1f off=%+.2f conf=%.2f valid=%t) range=%.1f blocked=%t cmd(L=%+.2f R=%+.2f)",
		mode, phase, target.Distance, target.LateralOffset, target.Confidence, target.Valid,
		obst.Range, obst.Blocked, cmd.Left, cmd.Right,
	)

	if err := f.drive.SetSpeeds(ctx, cmd.Left, cmd.Right); err != nil {
		return fmt.Errorf("drive rejected command: %w", err)
	}
	return nil
}

// Snapshot returns the most recent cycle's observable output.
func (f *Follower) Snapshot() CycleSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}
