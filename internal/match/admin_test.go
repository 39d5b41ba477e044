package match

import (
	"errors"
	"testing"

	"github.com/ernie/arena/internal/domain"
)

func TestOverridesRequireMatch(t *testing.T) {
	h := newHarness(t, testOptions())
	ops := map[string]func() error{
		"start":      h.o.ForceStartGame,
		"pvp":        h.o.ForceEnablePvp,
		"feast":      h.o.ForceSpawnFeast,
		"border":     h.o.ForceStartBorderShrinking,
		"finalfight": h.o.ForceStartFinalFight,
		"end":        h.o.ForceEndGame,
		"next":       h.o.ForceNextPhase,
		"transition": func() error { return h.o.ForceStateTransition(domain.PhaseActive) },
	}
	for name, op := range ops {
		if err := op(); !errors.Is(err, ErrNoMatch) {
			t.Errorf("%s: err = %v, want ErrNoMatch", name, err)
		}
	}
}

func TestForceNextPhaseWalksLifecycle(t *testing.T) {
	h := newHarness(t, testOptions())
	h.init(t)
	h.admit(t, 3)

	want := []domain.Phase{
		domain.PhaseStarting,
		domain.PhaseActive,
		domain.PhaseFeast,
		domain.PhaseBorderShrinking,
		domain.PhaseFinalFight,
		domain.PhaseEnding,
		domain.PhaseFinished,
	}
	for _, phase := range want {
		if err := h.o.ForceNextPhase(); err != nil {
			t.Fatalf("ForceNextPhase to %s: %v", phase, err)
		}
		if phase == domain.PhaseFeast {
			h.feastBuilt(t)
		}
		h.requirePhase(t, phase)

		switch phase {
		case domain.PhaseFeast:
			if h.world.feasts() != 1 {
				t.Fatalf("feast calls = %d", h.world.feasts())
			}
		case domain.PhaseBorderShrinking:
			if !h.o.Status().BorderShrinking {
				t.Fatal("border should be shrinking")
			}
		case domain.PhaseFinalFight:
			if !h.o.escalator.Active() {
				t.Fatal("escalator should be active")
			}
		case domain.PhaseEnding:
			if h.o.escalator.Active() || h.o.Status().BorderShrinking {
				t.Fatal("ending should stop every controller")
			}
		}
	}

	if err := h.o.ForceNextPhase(); !errors.Is(err, ErrNoMatch) {
		t.Fatalf("after finish: err = %v, want ErrNoMatch", err)
	}
}

func TestForceStateTransitionRejectsBackwards(t *testing.T) {
	h := newHarness(t, testOptions())
	h.startActive(t, 2)

	if err := h.o.ForceStateTransition(domain.PhaseWaiting); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("to waiting: err = %v", err)
	}
	if err := h.o.ForceStateTransition(domain.PhaseStarting); !errors.Is(err, ErrInvalidPhase) {
		t.Fatalf("to starting: err = %v", err)
	}
	if err := h.o.ForceStateTransition(domain.PhaseActive); err != nil {
		t.Fatalf("to current phase: %v", err)
	}

	if err := h.o.ForceStateTransition(domain.PhaseBorderShrinking); err != nil {
		t.Fatalf("to border shrinking: %v", err)
	}
	if err := h.o.ForceStateTransition(domain.PhaseFeast); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("back to feast: err = %v", err)
	}
	h.requirePhase(t, domain.PhaseBorderShrinking)
	if h.world.feasts() != 0 {
		t.Fatal("rejected transition still built the feast")
	}
}

func TestForceSpawnFeastIsIdempotent(t *testing.T) {
	h := newHarness(t, testOptions())
	h.startActive(t, 2)

	if err := h.o.ForceSpawnFeast(); err != nil {
		t.Fatalf("first spawn: %v", err)
	}
	if err := h.o.ForceSpawnFeast(); err != nil {
		t.Fatalf("spawn while building: %v", err)
	}
	h.feastBuilt(t)
	h.requirePhase(t, domain.PhaseFeast)
	first := h.o.Status().FeastLocation

	if err := h.o.ForceSpawnFeast(); err != nil {
		t.Fatalf("spawn after built: %v", err)
	}
	second := h.o.Status().FeastLocation
	if first == nil || second == nil || *first != *second {
		t.Fatalf("locations %v and %v differ", first, second)
	}

	h.advance(h.opts.PvpDelay + h.opts.FeastDelay)
	if h.world.feasts() != 1 {
		t.Fatalf("builder calls = %d, want 1", h.world.feasts())
	}
	if len(h.dispatch.posts) != 0 {
		t.Fatal("a second build was started")
	}
}

func TestForceSpawnFeastFailure(t *testing.T) {
	h := newHarness(t, testOptions())
	h.startActive(t, 2)
	h.world.failFeast(errors.New("structure too large"))

	if err := h.o.ForceSpawnFeast(); err != nil {
		t.Fatalf("ForceSpawnFeast: %v", err)
	}
	h.feastBuilt(t)
	h.requirePhase(t, domain.PhaseActive)
	if h.o.Status().FeastSpawned {
		t.Fatal("failed build reported a feast")
	}

	h.world.failFeast(nil)
	if err := h.o.ForceSpawnFeast(); err != nil {
		t.Fatalf("retry: %v", err)
	}
	h.feastBuilt(t)
	h.requirePhase(t, domain.PhaseFeast)
}

func TestForceEnablePvp(t *testing.T) {
	h := newHarness(t, testOptions())
	h.init(t)
	h.admit(t, 2)
	if err := h.o.ForceEnablePvp(); !errors.Is(err, ErrInvalidPhase) {
		t.Fatalf("in waiting: err = %v", err)
	}
	h.o.CancelMatch("reset")

	h.startActive(t, 2)
	if err := h.o.ForceEnablePvp(); err != nil {
		t.Fatalf("ForceEnablePvp: %v", err)
	}
	if err := h.o.ForceEnablePvp(); err != nil {
		t.Fatalf("second ForceEnablePvp: %v", err)
	}
	h.advance(h.opts.PvpDelay)

	n := 0
	for _, m := range h.present.broadcasts {
		if m == "PvP is now enabled!" {
			n++
		}
	}
	if !h.present.pvp || n != 1 {
		t.Fatalf("pvp %v announced %d times", h.present.pvp, n)
	}
}

func TestForceEndGameWithoutWinner(t *testing.T) {
	h := newHarness(t, testOptions())
	h.startActive(t, 3)

	if err := h.o.ForceEndGame(); err != nil {
		t.Fatalf("ForceEndGame: %v", err)
	}
	if err := h.o.ForceEndGame(); err != nil {
		t.Fatalf("repeat ForceEndGame: %v", err)
	}
	h.requirePhase(t, domain.PhaseEnding)
	if len(h.present.winners) != 0 {
		t.Fatal("no winner with three alive")
	}
}

func TestAction(t *testing.T) {
	h := newHarness(t, testOptions())
	h.init(t)
	h.admit(t, 2)

	if err := h.o.Action("explode"); err == nil {
		t.Fatal("unknown action should fail")
	}
	if err := h.o.Action("start"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.o.Action("cancel"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if h.o.IsMatchRunning() {
		t.Fatal("cancel action left a match running")
	}
}
