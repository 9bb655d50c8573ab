// Package obstacle classifies single-shot range readings against a safety
// threshold, with basic rejection of the glitches single-sample ultrasonic
// sensors are prone to.
package obstacle

import (
	"context"

	"markerfollower/utils"
)

// State is the per-cycle clearance classification. When Plausible is false
// the reading was a glitch and Blocked carries the previous cycle's flag.
type State struct {
	Range     float64
	Blocked   bool
	Emergency bool
	Plausible bool
}

// RangeFinder is a single synchronous range reading per invocation,
// unit-consistent with Params.SafeDistance.
type RangeFinder interface {
	Distance(ctx context.Context) (float64, error)
}

type Params struct {
	SafeDistance float64
	// StopDistance, when non-zero, marks readings below it as an emergency
	// stop band.
	StopDistance float64
	// Readings outside [MinPlausible, MaxPlausible] are treated as sensor
	// glitches.
	MinPlausible float64
	MaxPlausible float64
}

// Monitor wraps a range finder with glitch rejection. Not safe for
// concurrent use.
type Monitor struct {
	reader RangeFinder
	params Params
	prev   State
}

func NewMonitor(reader RangeFinder, params Params) (*Monitor, error) {
	if err := utils.ValidatePositive("safe distance", params.SafeDistance); err != nil {
		return nil, err
	}
	if err := utils.ValidateOrdered("min plausible range", params.MinPlausible,
		"max plausible range", params.MaxPlausible); err != nil {
		return nil, err
	}
	if params.StopDistance != 0 {
		if err := utils.ValidatePositive("stop distance", params.StopDistance); err != nil {
			return nil, err
		}
		if err := utils.ValidateOrdered("stop distance", params.StopDistance,
			"safe distance", params.SafeDistance); err != nil {
			return nil, err
		}
	}
	return &Monitor{
		reader: reader,
		params: params,
		// Until the first plausible reading, report open clearance at the
		// far plausible bound.
		prev: State{Range: params.MaxPlausible},
	}, nil
}

// Sense reads and classifies the current clearance. A failed or implausible
// reading retains the previous blocked flag so one spurious near-zero echo
// never triggers an avoidance maneuver.
func (m *Monitor) Sense(ctx context.Context) State {
	r, err := m.reader.Distance(ctx)
	if err != nil || r < m.params.MinPlausible || r > m.params.MaxPlausible {
		st := m.prev
		st.Plausible = false
		return st
	}

	st := State{
		Range:     r,
		Blocked:   r < m.params.SafeDistance,
		Emergency: m.params.StopDistance > 0 && r < m.params.StopDistance,
		Plausible: true,
	}
	m.prev = st
	return st
}
