package world

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/ernie/arena/internal/config"
	"github.com/ernie/arena/internal/domain"
	"github.com/rs/zerolog"
)

const (
	KindSpawn = "spawn"
	KindFeast = "feast"
)

// Painter asks the game host to build a structure
type Painter interface {
	Paint(ctx context.Context, s domain.StructureEvent) error
}

// Options bounds where structures may be placed
type Options struct {
	SpawnRadius    float64
	InitialRadius  float64
	FeastRadius    float64
	BorderDistance float64
}

// OptionsFromConfig reads placement bounds from the world and feast sections
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SpawnRadius:    cfg.World.SpawnRadius,
		InitialRadius:  cfg.World.BorderInitialRadius,
		FeastRadius:    cfg.Feast.Radius,
		BorderDistance: cfg.Feast.BorderDistance,
	}
}

// Planner picks platform locations and hands them to a Painter
type Planner struct {
	opts    Options
	painter Painter
	log     zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewPlanner creates a planner. seed fixes feast placement for replays.
func NewPlanner(opts Options, painter Painter, seed int64, logger zerolog.Logger) *Planner {
	return &Planner{
		opts:    opts,
		painter: painter,
		log:     logger.With().Str("component", "world").Logger(),
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// GenerateSpawnPlatform paints the spawn platform at center
func (p *Planner) GenerateSpawnPlatform(ctx context.Context, center domain.Location) error {
	s := domain.StructureEvent{
		Kind:     KindSpawn,
		Location: center,
		Radius:   p.opts.SpawnRadius,
	}
	if err := p.painter.Paint(ctx, s); err != nil {
		return fmt.Errorf("painting spawn platform: %w", err)
	}
	p.log.Debug().Stringer("location", center).Float64("radius", s.Radius).Msg("Spawn platform painted")
	return nil
}

// GenerateFeastPlatform picks a point between the avoided spawn area and
// the border margin, then paints the feast there
func (p *Planner) GenerateFeastPlatform(ctx context.Context, world string, center domain.Location, avoidRadius float64) (domain.Location, error) {
	loc := p.FeastLocation(world, center, avoidRadius)
	s := domain.StructureEvent{
		Kind:        KindFeast,
		Location:    loc,
		Radius:      p.opts.FeastRadius,
		AvoidRadius: avoidRadius,
	}
	if err := p.painter.Paint(ctx, s); err != nil {
		return domain.Location{}, fmt.Errorf("painting feast platform: %w", err)
	}
	return loc, nil
}

// FeastLocation returns a candidate feast location without painting it
func (p *Planner) FeastLocation(world string, center domain.Location, avoidRadius float64) domain.Location {
	lo, hi := p.feastRing(avoidRadius)

	p.mu.Lock()
	dist := lo + p.rng.Float64()*(hi-lo)
	angle := p.rng.Float64() * 2 * math.Pi
	p.mu.Unlock()

	return domain.Location{
		World: world,
		X:     math.Round(center.X + dist*math.Cos(angle)),
		Y:     center.Y,
		Z:     math.Round(center.Z + dist*math.Sin(angle)),
	}
}

// feastRing returns the allowed distance range from the center. A border
// too small for the margin collapses the ring onto its inner edge.
func (p *Planner) feastRing(avoidRadius float64) (lo, hi float64) {
	lo = avoidRadius + p.opts.FeastRadius
	hi = p.opts.InitialRadius - p.opts.BorderDistance - p.opts.FeastRadius
	if hi < lo {
		hi = lo
	}
	return lo, hi
}
