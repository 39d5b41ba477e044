package match

import (
	"fmt"

	"github.com/ernie/arena/internal/domain"
)

// Operator overrides. Callers authorize before invoking; every override
// runs the same path its timer would have run.

func (o *Orchestrator) requireRunning() error {
	if !o.IsMatchRunning() {
		return ErrNoMatch
	}
	return nil
}

// ForceStartGame starts the countdown regardless of player count
func (o *Orchestrator) ForceStartGame() error {
	if err := o.requireRunning(); err != nil {
		return err
	}
	if phase := o.machine.Current(); phase != domain.PhaseWaiting {
		return fmt.Errorf("starting from %s: %w", phase.DisplayName(), ErrInvalidPhase)
	}
	return o.beginStarting("forced by operator")
}

// ForceEnablePvp enables PvP now instead of after the delay
func (o *Orchestrator) ForceEnablePvp() error {
	if err := o.requireRunning(); err != nil {
		return err
	}
	if phase := o.machine.Current(); !phase.IsActivePlay() {
		return fmt.Errorf("enabling pvp in %s: %w", phase.DisplayName(), ErrInvalidPhase)
	}
	o.enablePvp("forced by operator")
	return nil
}

// ForceSpawnFeast starts building the feast now. The match enters FEAST
// when the platform is ready; a repeat while building is a no-op.
func (o *Orchestrator) ForceSpawnFeast() error {
	if err := o.requireRunning(); err != nil {
		return err
	}
	return o.spawnFeast("forced by operator")
}

// ForceStartBorderShrinking starts the border now
func (o *Orchestrator) ForceStartBorderShrinking() error {
	if err := o.requireRunning(); err != nil {
		return err
	}
	return o.startBorderShrinking("forced by operator")
}

// ForceStartFinalFight starts escalation now
func (o *Orchestrator) ForceStartFinalFight() error {
	if err := o.requireRunning(); err != nil {
		return err
	}
	return o.startFinalFight("forced by operator")
}

// ForceEndGame moves the match to ENDING, crowning a winner if exactly one
// player is alive
func (o *Orchestrator) ForceEndGame() error {
	if err := o.requireRunning(); err != nil {
		return err
	}
	if o.machine.Current() == domain.PhaseEnding {
		return nil
	}
	if !o.machine.AttemptTransition(domain.PhaseEnding, "forced by operator") {
		return o.transitionErr(domain.PhaseEnding)
	}
	return nil
}

// ForceStateTransition moves the match to target through the override for
// that phase
func (o *Orchestrator) ForceStateTransition(target domain.Phase) error {
	if err := o.requireRunning(); err != nil {
		return err
	}
	current := o.machine.Current()

	switch target {
	case domain.PhaseWaiting:
		if current != domain.PhaseWaiting {
			return o.transitionErr(target)
		}
		return nil
	case domain.PhaseStarting:
		return o.ForceStartGame()
	case domain.PhaseActive:
		if current == domain.PhaseActive {
			return nil
		}
		if current != domain.PhaseStarting {
			return o.transitionErr(target)
		}
		return o.finishCountdown("forced by operator")
	case domain.PhaseFeast:
		if !o.machine.CanTransition(target) {
			return o.transitionErr(target)
		}
		return o.ForceSpawnFeast()
	case domain.PhaseBorderShrinking:
		if !o.machine.CanTransition(target) {
			return o.transitionErr(target)
		}
		return o.ForceStartBorderShrinking()
	case domain.PhaseFinalFight:
		if !o.machine.CanTransition(target) {
			return o.transitionErr(target)
		}
		return o.ForceStartFinalFight()
	case domain.PhaseEnding:
		return o.ForceEndGame()
	case domain.PhaseFinished:
		if !o.machine.AttemptTransition(domain.PhaseFinished, "forced by operator") {
			return o.transitionErr(target)
		}
		return nil
	}
	return fmt.Errorf("%q: %w", target, ErrInvalidPhase)
}

// ForceNextPhase advances to the phase after the current one
func (o *Orchestrator) ForceNextPhase() error {
	if err := o.requireRunning(); err != nil {
		return err
	}
	return o.ForceStateTransition(o.machine.Current().Next())
}

// Action runs a named operator override. Names match the admin CLI and
// HTTP routes.
func (o *Orchestrator) Action(name string) error {
	switch name {
	case "start":
		return o.ForceStartGame()
	case "pvp":
		return o.ForceEnablePvp()
	case "feast":
		return o.ForceSpawnFeast()
	case "border":
		return o.ForceStartBorderShrinking()
	case "finalfight", "final-fight":
		return o.ForceStartFinalFight()
	case "end":
		return o.ForceEndGame()
	case "next":
		return o.ForceNextPhase()
	case "cancel":
		return o.CancelMatch("cancelled by operator")
	}
	return fmt.Errorf("unknown action %q", name)
}

// Actions lists the names accepted by Action
var Actions = []string{"start", "pvp", "feast", "border", "finalfight", "end", "next", "cancel"}
