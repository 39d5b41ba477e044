package match

import (
	"github.com/ernie/arena/internal/domain"
	"github.com/rs/zerolog"
)

// legalEdges lists the allowed destinations of every phase. FINISHED is
// reachable from everywhere and is added by allowed().
var legalEdges = map[domain.Phase][]domain.Phase{
	domain.PhaseWaiting:         {domain.PhaseStarting},
	domain.PhaseStarting:        {domain.PhaseActive},
	domain.PhaseActive:          {domain.PhaseFeast, domain.PhaseBorderShrinking, domain.PhaseFinalFight, domain.PhaseEnding},
	domain.PhaseFeast:           {domain.PhaseBorderShrinking, domain.PhaseFinalFight, domain.PhaseEnding},
	domain.PhaseBorderShrinking: {domain.PhaseFinalFight, domain.PhaseEnding},
	domain.PhaseFinalFight:      {domain.PhaseEnding},
	domain.PhaseEnding:          {domain.PhaseFinished},
}

func allowed(from, to domain.Phase) bool {
	if to == domain.PhaseFinished {
		return true
	}
	for _, p := range legalEdges[from] {
		if p == to {
			return true
		}
	}
	return false
}

// PhaseListener is told about every phase change after it happened
type PhaseListener func(from, to domain.Phase, reason string)

// PhaseMachine holds the current phase and validates transitions.
// Listeners run synchronously, before the transition call returns, and may
// themselves request further transitions.
type PhaseMachine struct {
	current   domain.Phase
	listeners []PhaseListener
	log       zerolog.Logger
}

// NewPhaseMachine creates a machine in WAITING
func NewPhaseMachine(logger zerolog.Logger) *PhaseMachine {
	return &PhaseMachine{
		current: domain.PhaseWaiting,
		log:     logger.With().Str("component", "phase").Logger(),
	}
}

// Subscribe registers a listener
func (m *PhaseMachine) Subscribe(l PhaseListener) {
	m.listeners = append(m.listeners, l)
}

// Current returns the current phase
func (m *PhaseMachine) Current() domain.Phase {
	return m.current
}

// CanTransition reports whether target is reachable from the current phase
func (m *PhaseMachine) CanTransition(target domain.Phase) bool {
	return target == m.current || allowed(m.current, target)
}

// AttemptTransition moves to target if the edge is legal. Moving to the
// current phase succeeds without notifying anyone.
func (m *PhaseMachine) AttemptTransition(target domain.Phase, reason string) bool {
	if target == m.current {
		return true
	}
	if !allowed(m.current, target) {
		m.log.Warn().
			Str("from", string(m.current)).
			Str("to", string(target)).
			Str("reason", reason).
			Msg("Refused illegal phase transition")
		return false
	}

	from := m.current
	m.current = target
	m.log.Info().Str("from", string(from)).Str("to", string(target)).Str("reason", reason).Msg("Phase changed")
	m.notify(from, target, reason)
	return true
}

// ForceTransition moves to target without consulting the edge table.
// Reserved for shutdown and rescue paths.
func (m *PhaseMachine) ForceTransition(target domain.Phase, reason string) {
	from := m.current
	m.current = target
	m.log.Error().Str("from", string(from)).Str("to", string(target)).Str("reason", reason).Msg("Phase forced")
	if from != target {
		m.notify(from, target, reason)
	}
}

// Reset returns to WAITING without notifying listeners
func (m *PhaseMachine) Reset() {
	m.current = domain.PhaseWaiting
}

func (m *PhaseMachine) notify(from, to domain.Phase, reason string) {
	for _, l := range m.listeners {
		l(from, to, reason)
	}
}
