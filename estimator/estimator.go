// Package estimator turns decoded fiducial markers into a distance and
// lateral offset relative to the camera, using the pinhole relation and the
// camera's calibration profile.
package estimator

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/golang/geo/r2"

	"markerfollower/utils"
)

// MarkerObservation is one decoded marker in a single frame. Corners are
// distorted pixel coordinates ordered top-left, top-right, bottom-right,
// bottom-left.
type MarkerObservation struct {
	Code     string
	Corners  [4]r2.Point
	RealSize float64
}

// TargetState is the estimator's per-cycle output. When Valid is false the
// remaining fields carry the previous cycle's values; whether to act on them
// is the caller's decision.
type TargetState struct {
	Distance      float64
	LateralOffset float64 // positive means the target is to the robot's right
	Confidence    float64
	Valid         bool
	Code          string
}

// Params configures marker acceptance and measurement.
type Params struct {
	// MarkerSize is the real edge length, in the same unit as the desired
	// distance output.
	MarkerSize float64
	// ValidCodes is the ordered allow-list; order breaks exact distance
	// ties. Empty accepts any decodable code.
	ValidCodes []string
	// ValidCodeDigits, when non-zero, additionally requires codes to be
	// exactly that many decimal digits.
	ValidCodeDigits     int
	MaxDistance         float64
	DeadZoneRatio       float64 // fraction of half image width
	ConfidenceThreshold float64
}

// Detector finds and decodes markers in a frame. Production uses the ZXing
// implementation; tests hand in synthetic observations.
type Detector interface {
	Detect(ctx context.Context, frame image.Image) ([]MarkerObservation, error)
}

// Estimator owns the calibration profile and the previous cycle's target
// state. Not safe for concurrent use; the control loop is its only caller.
type Estimator struct {
	cal    *CalibrationProfile
	params Params
	prior  TargetState
}

func New(cal *CalibrationProfile, params Params) (*Estimator, error) {
	if err := utils.ValidatePositive("marker size", params.MarkerSize); err != nil {
		return nil, err
	}
	if err := utils.ValidateUnitInterval("dead zone ratio", params.DeadZoneRatio); err != nil {
		return nil, err
	}
	if err := utils.ValidateUnitInterval("confidence threshold", params.ConfidenceThreshold); err != nil {
		return nil, err
	}
	if params.MaxDistance < 0 {
		return nil, fmt.Errorf("max distance must not be negative, got %v", params.MaxDistance)
	}
	return &Estimator{cal: cal, params: params}, nil
}

// Estimate selects the best target among the frame's observations. Nearest
// wins; exact distance ties go to the code listed first in the allow-list.
// With no qualifying candidate the prior state is returned with Valid unset.
func (e *Estimator) Estimate(obs []MarkerObservation) TargetState {
	var best TargetState
	bestRank := 0
	found := false

	for _, m := range obs {
		rank, ok := e.allowed(m.Code)
		if !ok {
			continue
		}
		st, ok := e.measure(m)
		if !ok {
			continue
		}
		if !found || st.Distance < best.Distance ||
			(st.Distance == best.Distance && rank < bestRank) {
			best = st
			bestRank = rank
			found = true
		}
	}

	if !found {
		e.prior.Valid = false
		return e.prior
	}
	e.prior = best
	return best
}

// Last returns the most recent target state without consuming a frame.
func (e *Estimator) Last() TargetState {
	return e.prior
}

func (e *Estimator) allowed(code string) (int, bool) {
	if code == "" {
		return 0, false
	}
	if d := e.params.ValidCodeDigits; d > 0 {
		if len(code) != d {
			return 0, false
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				return 0, false
			}
		}
	}
	if len(e.params.ValidCodes) == 0 {
		return 0, true
	}
	for i, c := range e.params.ValidCodes {
		if c == code {
			return i, true
		}
	}
	return 0, false
}

func (e *Estimator) measure(m MarkerObservation) (TargetState, bool) {
	var und [4]r2.Point
	for i, pt := range m.Corners {
		und[i] = e.cal.Undistort(pt)
	}

	// Apparent size is the mean of the top and bottom edge lengths.
	top := und[1].Sub(und[0]).Norm()
	bottom := und[2].Sub(und[3]).Norm()
	pixelSize := (top + bottom) / 2
	if pixelSize < 1e-5 {
		return TargetState{}, false
	}

	size := m.RealSize
	if size <= 0 {
		size = e.params.MarkerSize
	}
	distance := size * e.cal.Fx / pixelSize
	if e.params.MaxDistance > 0 && distance > e.params.MaxDistance {
		return TargetState{}, false
	}

	confidence := cornerRegularity(und)
	if confidence < e.params.ConfidenceThreshold {
		return TargetState{}, false
	}

	centroid := und[0].Add(und[1]).Add(und[2]).Add(und[3]).Mul(0.25)
	offsetPx := centroid.X - e.cal.Cx
	halfWidth := float64(e.cal.Width) / 2

	// Offsets inside the dead zone are reported as exactly zero to keep
	// pixel jitter from rippling into the steering differential.
	var offset float64
	if math.Abs(offsetPx) >= e.params.DeadZoneRatio*halfWidth {
		offset = offsetPx * distance / e.cal.Fx
	}

	return TargetState{
		Distance:      distance,
		LateralOffset: offset,
		Confidence:    confidence,
		Valid:         true,
		Code:          m.Code,
	}, true
}

// cornerRegularity scores how square the undistorted quad looks: opposite
// edges and diagonals of a frontal marker should match in length.
func cornerRegularity(c [4]r2.Point) float64 {
	top := c[1].Sub(c[0]).Norm()
	bottom := c[2].Sub(c[3]).Norm()
	left := c[3].Sub(c[0]).Norm()
	right := c[2].Sub(c[1]).Norm()
	d1 := c[2].Sub(c[0]).Norm()
	d2 := c[3].Sub(c[1]).Norm()

	score := utils.Regularity(top, bottom) *
		utils.Regularity(left, right) *
		utils.Regularity(d1, d2)
	return utils.Clamp(score, 0, 1)
}
