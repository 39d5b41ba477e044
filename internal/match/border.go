package match

import (
	"time"

	"github.com/ernie/arena/internal/domain"
	"github.com/rs/zerolog"
)

// BorderState is the lifecycle of the border within a match
type BorderState int

const (
	BorderIdle BorderState = iota
	BorderShrinking
	BorderStopped
)

func (s BorderState) String() string {
	switch s {
	case BorderShrinking:
		return "shrinking"
	case BorderStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// BorderConfig sizes the playable area
type BorderConfig struct {
	InitialRadius float64
	MinRadius     float64
	ShrinkPerStep float64
	Step          time.Duration
}

// Border shrinks the playable radius in discrete steps so other components
// can poll Radius between steps.
type Border struct {
	cfg      BorderConfig
	sched    *Scheduler
	onChange func(center domain.Location, radius float64)
	log      zerolog.Logger

	center domain.Location
	radius float64
	state  BorderState
	task   *Task
}

// NewBorder creates an idle border. onChange is called after every step.
func NewBorder(cfg BorderConfig, sched *Scheduler, onChange func(domain.Location, float64), logger zerolog.Logger) *Border {
	if onChange == nil {
		onChange = func(domain.Location, float64) {}
	}
	return &Border{
		cfg:      cfg,
		sched:    sched,
		onChange: onChange,
		log:      logger.With().Str("component", "border").Logger(),
		radius:   cfg.InitialRadius,
	}
}

// Initialize places the border for a new match
func (b *Border) Initialize(center domain.Location) {
	b.Reset()
	b.center = center
	b.radius = b.cfg.InitialRadius
	b.onChange(b.center, b.radius)
}

// Start begins shrinking. It returns false when the border is already
// shrinking or already at its minimum.
func (b *Border) Start() bool {
	if b.state != BorderIdle {
		return false
	}
	if b.radius <= b.cfg.MinRadius {
		b.state = BorderStopped
		return false
	}
	b.state = BorderShrinking
	b.task = b.sched.Every("border-shrink", b.cfg.Step, b.step)
	b.log.Info().Float64("radius", b.radius).Float64("min", b.cfg.MinRadius).Msg("Border shrinking")
	return true
}

func (b *Border) step(time.Time) {
	next := b.radius - b.cfg.ShrinkPerStep
	if next <= b.cfg.MinRadius {
		next = b.cfg.MinRadius
	}
	b.radius = next
	b.onChange(b.center, b.radius)
	if b.radius <= b.cfg.MinRadius {
		b.task.Cancel()
		b.task = nil
		b.state = BorderStopped
		b.log.Info().Float64("radius", b.radius).Msg("Border reached minimum")
	}
}

// Radius returns the live radius
func (b *Border) Radius() float64 {
	return b.radius
}

// Center returns the border center
func (b *Border) Center() domain.Location {
	return b.center
}

// State returns the border lifecycle state
func (b *Border) State() BorderState {
	return b.state
}

// Shrinking reports whether the border is moving
func (b *Border) Shrinking() bool {
	return b.state == BorderShrinking
}

// NearMinimum reports whether the radius is within margin of the minimum
func (b *Border) NearMinimum(margin float64) bool {
	return b.radius <= b.cfg.MinRadius+margin
}

// Halt cancels pending steps, keeping the current radius
func (b *Border) Halt() {
	b.task.Cancel()
	b.task = nil
	if b.state == BorderShrinking {
		b.state = BorderIdle
	}
}

// Reset cancels pending steps and clears center and radius
func (b *Border) Reset() {
	b.task.Cancel()
	b.task = nil
	b.state = BorderIdle
	b.center = domain.Location{}
	b.radius = b.cfg.InitialRadius
}
