package markerfollower

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/components/motor"
	"go.viam.com/rdk/components/sensor"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	genericservice "go.viam.com/rdk/services/generic"
	rdkutils "go.viam.com/utils"

	"markerfollower/estimator"
	"markerfollower/navigation"
	"markerfollower/obstacle"
	"markerfollower/utils"
)

var Model = resource.NewModel("viam", "marker-follower", "follower")

func init() {
	resource.RegisterService(genericservice.API, Model,
		resource.Registration[resource.Resource, *Config]{
			Constructor: newFollowerService,
		},
	)
}

// CalibrationConfig is the camera intrinsic record, loaded once at startup.
type CalibrationConfig struct {
	Matrix     [9]float64 `json:"matrix"`      // 3x3 row-major, pixels
	DistCoeffs [5]float64 `json:"dist_coeffs"` // Brown-Conrady k1,k2,p1,p2,k3
	Width      int        `json:"width"`
	Height     int        `json:"height"`
}

type MarkerConfig struct {
	Size                float64  `json:"size"` // real edge length, distance unit
	ValidCodes          []string `json:"valid_codes"`
	ValidCodeDigits     int      `json:"valid_code_digits"`
	MaxDistance         float64  `json:"max_distance"`
	DeadZoneRatio       float64  `json:"dead_zone_ratio"` // fraction of half image width
	ConfidenceThreshold float64  `json:"confidence_threshold"`
}

type MotionConfig struct {
	BaseSpeed         float64 `json:"base_speed"`
	TurnGain          float64 `json:"turn_gain"`
	MinSpeed          float64 `json:"min_speed"`
	MaxSpeed          float64 `json:"max_speed"`
	DistanceComp      float64 `json:"distance_comp"`
	ReferenceDistance float64 `json:"reference_distance"`
	StopDistance      float64 `json:"stop_distance"`
	TurnSpeed         float64 `json:"turn_speed"`
	AvoidForwardSpeed float64 `json:"avoid_forward_speed"`
	TurnDurationS     float64 `json:"turn_duration_s"`
	ForwardDurationS  float64 `json:"forward_duration_s"`
	RecoveryDelayS    float64 `json:"recovery_delay_s"`
	SafeDistance      float64 `json:"safe_distance"`
	ObstacleStopDist  float64 `json:"obstacle_stop_distance"`
	MinPlausibleRange float64 `json:"min_plausible_range"`
	MaxPlausibleRange float64 `json:"max_plausible_range"`
	HoldTimeoutS      float64 `json:"hold_timeout_s"`
}

type Config struct {
	CameraName      string  `json:"camera_name"`
	RangeSensorName string  `json:"range_sensor_name"`
	LeftMotorName   string  `json:"left_motor_name"`
	RightMotorName  string  `json:"right_motor_name"`
	UpdateRateHz    float64 `json:"update_rate_hz"`
	EnableOnStart   bool    `json:"enable_on_start"`
	// RangeScale converts the range sensor's unit into the unit the
	// distance thresholds are configured in (default 1.0).
	RangeScale  float64           `json:"range_scale"`
	Calibration CalibrationConfig `json:"calibration"`
	Marker      MarkerConfig      `json:"marker"`
	Motion      MotionConfig      `json:"motion"`
}

// Validate ensures all parts of the config are valid and important fields
// exist, and fills defaults for optional numerics. Returns the component
// names the service depends on.
func (cfg *Config) Validate(path string) ([]string, []string, error) {
	if cfg.CameraName == "" {
		return nil, nil, errors.New("camera_name is required")
	}
	if cfg.RangeSensorName == "" {
		return nil, nil, errors.New("range_sensor_name is required")
	}
	if cfg.LeftMotorName == "" {
		return nil, nil, errors.New("left_motor_name is required")
	}
	if cfg.RightMotorName == "" {
		return nil, nil, errors.New("right_motor_name is required")
	}
	if cfg.UpdateRateHz <= 0 {
		return nil, nil, errors.New("update_rate_hz must be greater than 0")
	}
	if cfg.RangeScale == 0 {
		cfg.RangeScale = 1.0
	}

	if cfg.Marker.Size <= 0 {
		return nil, nil, errors.New("marker.size must be greater than 0")
	}
	if cfg.Marker.DeadZoneRatio == 0 {
		cfg.Marker.DeadZoneRatio = 0.05
	}
	if cfg.Marker.ConfidenceThreshold == 0 {
		cfg.Marker.ConfidenceThreshold = 0.5
	}
	if cfg.Marker.MaxDistance == 0 {
		cfg.Marker.MaxDistance = 150.0
	}

	m := &cfg.Motion
	if m.BaseSpeed == 0 {
		m.BaseSpeed = 0.35
	}
	if m.TurnGain == 0 {
		m.TurnGain = 0.02
	}
	if m.MinSpeed == 0 {
		m.MinSpeed = 0.1
	}
	if m.MaxSpeed == 0 {
		m.MaxSpeed = 1.0
	}
	if m.DistanceComp == 0 {
		m.DistanceComp = 0.01
	}
	if m.ReferenceDistance == 0 {
		m.ReferenceDistance = 60.0
	}
	if m.StopDistance == 0 {
		m.StopDistance = 22.0
	}
	if m.TurnSpeed == 0 {
		m.TurnSpeed = 0.28
	}
	if m.AvoidForwardSpeed == 0 {
		m.AvoidForwardSpeed = 0.21
	}
	if m.TurnDurationS == 0 {
		m.TurnDurationS = 0.8
	}
	if m.ForwardDurationS == 0 {
		m.ForwardDurationS = 0.6
	}
	if m.RecoveryDelayS == 0 {
		m.RecoveryDelayS = 1.0
	}
	if m.SafeDistance == 0 {
		m.SafeDistance = 30.0
	}
	if m.ObstacleStopDist == 0 {
		m.ObstacleStopDist = 12.0
	}
	if m.MinPlausibleRange == 0 {
		m.MinPlausibleRange = 2.0
	}
	if m.MaxPlausibleRange == 0 {
		m.MaxPlausibleRange = 500.0
	}
	if m.HoldTimeoutS == 0 {
		m.HoldTimeoutS = 3.0
	}

	return []string{cfg.CameraName, cfg.RangeSensorName, cfg.LeftMotorName, cfg.RightMotorName}, nil, nil
}

type followerService struct {
	resource.AlwaysRebuild

	name   resource.Name
	logger logging.Logger
	cfg    *Config

	follower *Follower
	frames   FrameSource
	detector estimator.Detector
	drive    DriveTrain

	mu      sync.Mutex
	worker  *rdkutils.StoppableWorkers
	running bool
}

func newFollowerService(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (resource.Resource, error) {
	conf, err := resource.NativeConfig[*Config](rawConf)
	if err != nil {
		return nil, err
	}

	return NewFollowerService(ctx, deps, rawConf.ResourceName(), conf, logger)
}

// NewFollowerService wires the estimator, monitor, state machine and
// steering law onto the configured camera, range sensor and motor pair.
// Configuration errors surface here, before any actuation.
func NewFollowerService(ctx context.Context, deps resource.Dependencies, name resource.Name, conf *Config, logger logging.Logger) (resource.Resource, error) {
	cam, err := camera.FromDependencies(deps, conf.CameraName)
	if err != nil {
		return nil, fmt.Errorf("failed to get camera %q: %w", conf.CameraName, err)
	}
	rng, err := sensor.FromDependencies(deps, conf.RangeSensorName)
	if err != nil {
		return nil, fmt.Errorf("failed to get range sensor %q: %w", conf.RangeSensorName, err)
	}
	left, err := motor.FromDependencies(deps, conf.LeftMotorName)
	if err != nil {
		return nil, fmt.Errorf("failed to get left motor %q: %w", conf.LeftMotorName, err)
	}
	right, err := motor.FromDependencies(deps, conf.RightMotorName)
	if err != nil {
		return nil, fmt.Errorf("failed to get right motor %q: %w", conf.RightMotorName, err)
	}

	cal, err := estimator.NewCalibrationProfile(
		conf.Calibration.Matrix, conf.Calibration.DistCoeffs,
		conf.Calibration.Width, conf.Calibration.Height)
	if err != nil {
		return nil, fmt.Errorf("invalid calibration: %w", err)
	}

	est, err := estimator.New(cal, estimator.Params{
		MarkerSize:          conf.Marker.Size,
		ValidCodes:          conf.Marker.ValidCodes,
		ValidCodeDigits:     conf.Marker.ValidCodeDigits,
		MaxDistance:         conf.Marker.MaxDistance,
		DeadZoneRatio:       conf.Marker.DeadZoneRatio,
		ConfidenceThreshold: conf.Marker.ConfidenceThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid marker params: %w", err)
	}

	monitor, err := obstacle.NewMonitor(
		&sensorRangeFinder{sensor: rng, scale: conf.RangeScale},
		obstacle.Params{
			SafeDistance: conf.Motion.SafeDistance,
			StopDistance: conf.Motion.ObstacleStopDist,
			MinPlausible: conf.Motion.MinPlausibleRange,
			MaxPlausible: conf.Motion.MaxPlausibleRange,
		})
	if err != nil {
		return nil, fmt.Errorf("invalid obstacle params: %w", err)
	}

	timing := navigation.ManeuverTiming{
		TurnDuration:    secondsToDuration(conf.Motion.TurnDurationS),
		ForwardDuration: secondsToDuration(conf.Motion.ForwardDurationS),
		RecoveryDelay:   secondsToDuration(conf.Motion.RecoveryDelayS),
	}
	if err := timing.Validate(); err != nil {
		return nil, fmt.Errorf("invalid maneuver timing: %w", err)
	}

	motion := navigation.MotionParams{
		BaseSpeed:         conf.Motion.BaseSpeed,
		TurnGain:          conf.Motion.TurnGain,
		MinSpeed:          conf.Motion.MinSpeed,
		MaxSpeed:          conf.Motion.MaxSpeed,
		DistanceComp:      conf.Motion.DistanceComp,
		ReferenceDistance: conf.Motion.ReferenceDistance,
		StopDistance:      conf.Motion.StopDistance,
		TurnSpeed:         conf.Motion.TurnSpeed,
		AvoidForwardSpeed: conf.Motion.AvoidForwardSpeed,
	}
	if err := motion.Validate(); err != nil {
		return nil, fmt.Errorf("invalid motion params: %w", err)
	}
	if err := utils.ValidatePositive("hold timeout", conf.Motion.HoldTimeoutS); err != nil {
		return nil, err
	}

	machine := navigation.NewStateMachine(timing, secondsToDuration(conf.Motion.HoldTimeoutS), time.Now)
	frames := &cameraFrameSource{cam: cam}
	detector := estimator.NewZXingDetector(conf.Marker.Size)
	drive := &motorDriveTrain{left: left, right: right}

	s := &followerService{
		name:     name,
		logger:   logger,
		cfg:      conf,
		frames:   frames,
		detector: detector,
		drive:    drive,
		follower: NewFollower(logger, frames, detector, est, monitor, machine, motion, drive, time.Now),
	}

	if conf.EnableOnStart {
		s.enable()
		logger.Info("marker follower started")
	}

	return s, nil
}

func (s *followerService) Name() resource.Name {
	return s.name
}

func (s *followerService) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.worker.Stop()
		s.running = false
	}
	return s.drive.Stop(ctx)
}

// DoCommand exposes the per-cycle observable output plus loop control and a
// one-off marker scan.
func (s *followerService) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	switch cmd["command"] {
	case "status":
		return snapshotToMap(s.follower.Snapshot()), nil

	case "enable":
		if s.cfg.EnableOnStart {
			return nil, errors.New("loop control is unavailable when enable_on_start is set")
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.running {
			return nil, errors.New("already enabled")
		}
		s.enableLocked()
		return map[string]interface{}{"status": "enabled"}, nil

	case "disable":
		if s.cfg.EnableOnStart {
			return nil, errors.New("loop control is unavailable when enable_on_start is set")
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.running {
			return nil, errors.New("already disabled")
		}
		s.worker.Stop()
		s.running = false
		if err := s.drive.Stop(ctx); err != nil {
			return nil, err
		}
		return map[string]interface{}{"status": "disabled"}, nil

	case "scan":
		return s.scan(ctx)

	default:
		return nil, fmt.Errorf("invalid command: %v", cmd["command"])
	}
}

// scan grabs one frame and lists every decodable marker in view, without
// touching the control loop's state.
func (s *followerService) scan(ctx context.Context) (map[string]interface{}, error) {
	frame, err := s.frames.Frame(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to capture frame: %w", err)
	}
	obs, err := s.detector.Detect(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("failed to detect markers: %w", err)
	}

	markers := make([]interface{}, 0, len(obs))
	for _, m := range obs {
		var cx, cy float64
		for _, c := range m.Corners {
			cx += c.X / 4
			cy += c.Y / 4
		}
		markers = append(markers, map[string]interface{}{
			"code":     m.Code,
			"center_x": cx,
			"center_y": cy,
		})
	}
	return map[string]interface{}{"markers": markers}, nil
}

func (s *followerService) enable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enableLocked()
}

func (s *followerService) enableLocked() {
	s.worker = rdkutils.NewBackgroundStoppableWorkers()
	s.worker.Add(s.runLoop)
	s.running = true
}

func (s *followerService) runLoop(ctx context.Context) {
	interval := time.Duration(float64(time.Second) / s.cfg.UpdateRateHz)
	s.logger.Infof("control loop running at %.1f Hz (interval %v)", s.cfg.UpdateRateHz, interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := s.drive.Stop(context.Background()); err != nil {
				s.logger.Errorf("failed to stop drive on shutdown: %v", err)
			}
			return
		case <-ticker.C:
			if err := s.follower.Cycle(ctx); err != nil {
				// Actuator faults do not corrupt session state; the next
				// cycle retries with fresh sensing.
				s.logger.Errorf("cycle failed: %v", err)
			}
		}
	}
}

func snapshotToMap(snap CycleSnapshot) map[string]interface{} {
	return map[string]interface{}{
		"at":    snap.At.Format(time.RFC3339Nano),
		"mode":  snap.Mode.String(),
		"phase": snap.Phase.String(),
		"target": map[string]interface{}{
			"distance":       snap.Target.Distance,
			"lateral_offset": snap.Target.LateralOffset,
			"confidence":     snap.Target.Confidence,
			"valid":          snap.Target.Valid,
			"code":           snap.Target.Code,
		},
		"obstacle": map[string]interface{}{
			"range":     snap.Obstacle.Range,
			"blocked":   snap.Obstacle.Blocked,
			"emergency": snap.Obstacle.Emergency,
			"plausible": snap.Obstacle.Plausible,
		},
		"wheel_command": map[string]interface{}{
			"left":  snap.Command.Left,
			"right": snap.Command.Right,
		},
	}
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
