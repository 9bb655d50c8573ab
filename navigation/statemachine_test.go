package navigation

import (
	"testing"
	"time"

	"markerfollower/estimator"
	"markerfollower/obstacle"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1000, 0)}
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func testTiming() ManeuverTiming {
	return ManeuverTiming{
		TurnDuration:    1 * time.Second,
		ForwardDuration: 500 * time.Millisecond,
		RecoveryDelay:   2 * time.Second,
	}
}

func newTestMachine(clock *fakeClock) *StateMachine {
	return NewStateMachine(testTiming(), 3*time.Second, clock.now)
}

func validTarget() estimator.TargetState {
	return estimator.TargetState{Distance: 50, Confidence: 1, Valid: true, Code: "12345"}
}

func lostTarget() estimator.TargetState {
	return estimator.TargetState{Distance: 50, Confidence: 1, Valid: false, Code: "12345"}
}

func clear() obstacle.State {
	return obstacle.State{Range: 100, Plausible: true}
}

func blocked() obstacle.State {
	return obstacle.State{Range: 10, Blocked: true, Plausible: true}
}

func TestInitialStateIsIdle(t *testing.T) {
	sm := newTestMachine(newFakeClock())
	if sm.Mode() != ModeIdle {
		t.Fatalf("expected IDLE before any cycle, got %s", sm.Mode())
	}
}

func TestTrackingOnValidTarget(t *testing.T) {
	sm := newTestMachine(newFakeClock())
	if mode := sm.Transition(validTarget(), clear()); mode != ModeTracking {
		t.Fatalf("expected TRACKING, got %s", mode)
	}
}

func TestObstaclePreemptsEveryMode(t *testing.T) {
	setups := map[string]func(*StateMachine, *fakeClock){
		"from idle": func(sm *StateMachine, c *fakeClock) {},
		"from tracking": func(sm *StateMachine, c *fakeClock) {
			sm.Transition(validTarget(), clear())
		},
		"from holding": func(sm *StateMachine, c *fakeClock) {
			sm.Transition(validTarget(), clear())
			c.advance(time.Second)
			sm.Transition(lostTarget(), clear())
		},
	}

	for name, setup := range setups {
		clock := newFakeClock()
		sm := newTestMachine(clock)
		setup(sm, clock)
		if mode := sm.Transition(validTarget(), blocked()); mode != ModeAvoiding {
			t.Fatalf("%s: blocked obstacle must preempt to AVOIDING, got %s", name, mode)
		}
	}
}

func TestManeuverPhaseTable(t *testing.T) {
	clock := newFakeClock()
	sm := newTestMachine(clock)

	sm.Transition(lostTarget(), blocked())
	if sm.Phase() != PhaseTurnAway {
		t.Fatalf("expected TURN_AWAY on entry, got %s", sm.Phase())
	}

	// Obstacle clears immediately; the timed sequence keeps running.
	steps := []struct {
		at    time.Duration
		mode  Mode
		phase ManeuverPhase
	}{
		{999 * time.Millisecond, ModeAvoiding, PhaseTurnAway},
		{1001 * time.Millisecond, ModeAvoiding, PhaseForward},
		{1500 * time.Millisecond, ModeAvoiding, PhaseForward},
		{1502 * time.Millisecond, ModeAvoiding, PhaseTurnBack},
		{2501 * time.Millisecond, ModeAvoiding, PhaseTurnBack},
		{2503 * time.Millisecond, ModeAvoiding, PhaseRecovery},
		{4502 * time.Millisecond, ModeAvoiding, PhaseRecovery},
	}
	base := clock.t
	for _, step := range steps {
		clock.t = base.Add(step.at)
		mode := sm.Transition(lostTarget(), clear())
		if mode != step.mode || sm.Phase() != step.phase {
			t.Fatalf("t=%v: expected %s/%s, got %s/%s",
				step.at, step.mode, step.phase, mode, sm.Phase())
		}
	}

	// Recovery completes; the same cycle re-evaluates target state.
	clock.t = base.Add(4504 * time.Millisecond)
	if mode := sm.Transition(validTarget(), clear()); mode != ModeTracking {
		t.Fatalf("expected TRACKING after maneuver completes, got %s", mode)
	}
}

func TestManeuverCompletionFallsToIdle(t *testing.T) {
	clock := newFakeClock()
	sm := newTestMachine(clock)

	sm.Transition(lostTarget(), blocked())
	// Walk each phase to completion without ever seeing a target.
	for _, hop := range []time.Duration{1001 * time.Millisecond, 501 * time.Millisecond, 1001 * time.Millisecond, 2001 * time.Millisecond} {
		clock.advance(hop)
		sm.Transition(lostTarget(), clear())
	}
	clock.advance(time.Millisecond)
	if mode := sm.Transition(lostTarget(), clear()); mode != ModeIdle {
		t.Fatalf("with no target ever valid, expected IDLE after maneuver, got %s", mode)
	}
}

func TestReblockRestartsManeuver(t *testing.T) {
	clock := newFakeClock()
	sm := newTestMachine(clock)

	sm.Transition(lostTarget(), blocked())
	clock.advance(1100 * time.Millisecond)
	sm.Transition(lostTarget(), clear())
	if sm.Phase() != PhaseForward {
		t.Fatalf("setup: expected FORWARD, got %s", sm.Phase())
	}

	// Obstacle shows up again mid-forward: restart from turn-away.
	clock.advance(100 * time.Millisecond)
	if mode := sm.Transition(lostTarget(), blocked()); mode != ModeAvoiding {
		t.Fatalf("expected AVOIDING, got %s", mode)
	}
	if sm.Phase() != PhaseTurnAway {
		t.Fatalf("re-block must restart from TURN_AWAY, got %s", sm.Phase())
	}

	// And the restarted turn-away runs its full duration again.
	clock.advance(999 * time.Millisecond)
	sm.Transition(lostTarget(), clear())
	if sm.Phase() != PhaseTurnAway {
		t.Fatalf("restarted turn-away should still be running, got %s", sm.Phase())
	}
}

func TestHoldThenIdle(t *testing.T) {
	clock := newFakeClock()
	sm := newTestMachine(clock)

	sm.Transition(validTarget(), clear())
	lostAt := clock.t

	checks := []struct {
		at   time.Duration
		mode Mode
	}{
		{100 * time.Millisecond, ModeHolding},
		{1 * time.Second, ModeHolding},
		{2999 * time.Millisecond, ModeHolding},
		{3 * time.Second, ModeIdle},
		{10 * time.Second, ModeIdle},
	}
	for _, check := range checks {
		clock.t = lostAt.Add(check.at)
		if mode := sm.Transition(lostTarget(), clear()); mode != check.mode {
			t.Fatalf("t=%v after loss: expected %s, got %s", check.at, check.mode, mode)
		}
	}
}

func TestNeverValidGoesStraightToIdle(t *testing.T) {
	sm := newTestMachine(newFakeClock())
	if mode := sm.Transition(lostTarget(), clear()); mode != ModeIdle {
		t.Fatalf("without a last-known target there is nothing to hold, got %s", mode)
	}
}

func TestReacquireDuringHold(t *testing.T) {
	clock := newFakeClock()
	sm := newTestMachine(clock)

	sm.Transition(validTarget(), clear())
	clock.advance(time.Second)
	if mode := sm.Transition(lostTarget(), clear()); mode != ModeHolding {
		t.Fatalf("setup: expected HOLDING, got %s", mode)
	}
	clock.advance(time.Second)
	if mode := sm.Transition(validTarget(), clear()); mode != ModeTracking {
		t.Fatalf("reacquired target must resume TRACKING, got %s", mode)
	}
}
