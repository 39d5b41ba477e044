package domain

import (
	"fmt"
	"strings"
)

// Phase is one stage of the match lifecycle
type Phase string

// Phases in progression order
const (
	PhaseWaiting         Phase = "waiting"
	PhaseStarting        Phase = "starting"
	PhaseActive          Phase = "active"
	PhaseFeast           Phase = "feast"
	PhaseBorderShrinking Phase = "border_shrinking"
	PhaseFinalFight      Phase = "final_fight"
	PhaseEnding          Phase = "ending"
	PhaseFinished        Phase = "finished"
)

// Phases lists every phase in intended progression order
var Phases = []Phase{
	PhaseWaiting,
	PhaseStarting,
	PhaseActive,
	PhaseFeast,
	PhaseBorderShrinking,
	PhaseFinalFight,
	PhaseEnding,
	PhaseFinished,
}

// IsActivePlay reports whether players are fighting in this phase
func (p Phase) IsActivePlay() bool {
	switch p {
	case PhaseActive, PhaseFeast, PhaseBorderShrinking, PhaseFinalFight:
		return true
	}
	return false
}

// AcceptsNewPlayers reports whether players may still join the match
func (p Phase) AcceptsNewPlayers() bool {
	return p == PhaseWaiting
}

// AllowsLoadoutSelection reports whether players may still pick a kit
func (p Phase) AllowsLoadoutSelection() bool {
	return p == PhaseWaiting
}

// IsTerminal reports whether the match is over
func (p Phase) IsTerminal() bool {
	return p == PhaseFinished
}

// Next returns the phase that follows p in progression order.
// FINISHED is its own successor.
func (p Phase) Next() Phase {
	for i, ph := range Phases {
		if ph == p && i+1 < len(Phases) {
			return Phases[i+1]
		}
	}
	return PhaseFinished
}

// DisplayName returns the upper-case operator-facing name, e.g. BORDER_SHRINKING
func (p Phase) DisplayName() string {
	return strings.ToUpper(string(p))
}

func (p Phase) valid() bool {
	for _, ph := range Phases {
		if ph == p {
			return true
		}
	}
	return false
}

// ParsePhase parses a phase name case-insensitively. Hyphens and spaces are
// accepted in place of underscores.
func ParsePhase(s string) (Phase, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.NewReplacer("-", "_", " ", "_").Replace(name)
	p := Phase(name)
	if !p.valid() {
		return "", fmt.Errorf("unknown phase %q", s)
	}
	return p, nil
}
