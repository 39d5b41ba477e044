package match

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EscalatorConfig controls the final fight
type EscalatorConfig struct {
	Interval time.Duration
	MaxLevel int
	Grace    time.Duration
}

// Roster is the read-only view of alive players the escalator needs
type Roster interface {
	AliveCount() int
	AliveIDs() []uuid.UUID
}

// Escalator applies a damage-over-time effect to every alive player that
// grows each interval. Once the level has sat at the cap for the grace
// window, every remaining player is eliminated.
type Escalator struct {
	cfg       EscalatorConfig
	sched     *Scheduler
	roster    Roster
	effects   Effects
	eliminate func(ids []uuid.UUID)
	log       zerolog.Logger

	task  *Task
	level int
	capAt time.Time
}

// NewEscalator creates an inactive escalator. eliminate is called with
// every remaining player when the grace window runs out.
func NewEscalator(cfg EscalatorConfig, sched *Scheduler, roster Roster, effects Effects, eliminate func([]uuid.UUID), logger zerolog.Logger) *Escalator {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.MaxLevel <= 0 {
		cfg.MaxLevel = 10
	}
	return &Escalator{
		cfg:       cfg,
		sched:     sched,
		roster:    roster,
		effects:   effects,
		eliminate: eliminate,
		log:       logger.With().Str("component", "final_fight").Logger(),
	}
}

// Start begins escalating. It returns false when already active.
func (e *Escalator) Start() bool {
	if e.task.Active() {
		return false
	}
	e.task = e.sched.Every("final-fight", e.cfg.Interval, e.tick)
	e.log.Info().Int("alive", e.roster.AliveCount()).Msg("Final fight started")
	return true
}

func (e *Escalator) tick(now time.Time) {
	if e.roster.AliveCount() <= 1 {
		e.log.Debug().Msg("One or fewer players left, stopping escalation")
		e.Stop()
		return
	}

	if e.level >= e.cfg.MaxLevel && !e.capAt.IsZero() && now.Sub(e.capAt) >= e.cfg.Grace {
		remaining := e.roster.AliveIDs()
		e.log.Warn().Int("players", len(remaining)).Dur("at_cap", now.Sub(e.capAt)).Msg("Grace window expired, eliminating remaining players")
		e.Stop()
		e.eliminate(remaining)
		return
	}

	if e.level < e.cfg.MaxLevel {
		e.level++
	}
	for _, id := range e.roster.AliveIDs() {
		e.effects.ApplyDamageOverTime(id, e.level)
	}
	if e.level >= e.cfg.MaxLevel && e.capAt.IsZero() {
		e.capAt = now
		e.log.Info().Time("cap_at", now).Msg("Escalation reached maximum level")
	}
	e.log.Debug().Int("level", e.level).Msg("Escalation tick")
}

// Stop cancels escalation, clears effects from alive players and resets
// the level. Safe to repeat.
func (e *Escalator) Stop() {
	wasActive := e.task.Active()
	e.task.Cancel()
	e.task = nil
	if wasActive || e.level > 0 {
		for _, id := range e.roster.AliveIDs() {
			e.effects.ClearDamageOverTime(id)
		}
	}
	e.level = 0
	e.capAt = time.Time{}
}

// Active reports whether escalation is running
func (e *Escalator) Active() bool {
	return e.task.Active()
}

// Level returns the current escalation level
func (e *Escalator) Level() int {
	return e.level
}

// CapReachedAt returns when the level first hit the cap, or zero
func (e *Escalator) CapReachedAt() time.Time {
	return e.capAt
}
