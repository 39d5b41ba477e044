package world

import (
	"context"
	"errors"
	"testing"

	"github.com/ernie/arena/internal/domain"
	"github.com/rs/zerolog"
)

type recordingPainter struct {
	painted []domain.StructureEvent
	err     error
}

func (r *recordingPainter) Paint(ctx context.Context, s domain.StructureEvent) error {
	if r.err != nil {
		return r.err
	}
	r.painted = append(r.painted, s)
	return nil
}

var testOpts = Options{SpawnRadius: 20, InitialRadius: 500, FeastRadius: 10, BorderDistance: 50}

func TestFeastLocationStaysInRing(t *testing.T) {
	p := NewPlanner(testOpts, &recordingPainter{}, 42, zerolog.Nop())
	center := domain.Location{World: "world", X: 100, Y: 64, Z: -200}

	for i := 0; i < 500; i++ {
		loc := p.FeastLocation("world", center, 20)
		d := loc.DistanceXZ(center)
		// rounding to whole blocks can move a point by up to ~0.71
		if d < 30-1 || d > 440+1 {
			t.Fatalf("distance %.1f outside [30, 440]", d)
		}
		if loc.Y != center.Y || loc.World != "world" {
			t.Fatalf("location %v", loc)
		}
	}
}

func TestFeastLocationSmallBorder(t *testing.T) {
	opts := testOpts
	opts.InitialRadius = 40
	p := NewPlanner(opts, &recordingPainter{}, 1, zerolog.Nop())
	center := domain.Location{World: "world"}

	loc := p.FeastLocation("world", center, 20)
	if d := loc.DistanceXZ(center); d < 29 || d > 31 {
		t.Fatalf("distance %.1f, want the inner edge at 30", d)
	}
}

func TestFeastLocationDeterministic(t *testing.T) {
	center := domain.Location{World: "world"}
	a := NewPlanner(testOpts, &recordingPainter{}, 7, zerolog.Nop()).FeastLocation("world", center, 20)
	b := NewPlanner(testOpts, &recordingPainter{}, 7, zerolog.Nop()).FeastLocation("world", center, 20)
	if a != b {
		t.Fatalf("same seed gave %v and %v", a, b)
	}
}

func TestGeneratePlatforms(t *testing.T) {
	painter := &recordingPainter{}
	p := NewPlanner(testOpts, painter, 3, zerolog.Nop())
	ctx := context.Background()
	center := domain.Location{World: "world", Y: 100}

	if err := p.GenerateSpawnPlatform(ctx, center); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	loc, err := p.GenerateFeastPlatform(ctx, "world", center, 20)
	if err != nil {
		t.Fatalf("feast: %v", err)
	}

	if len(painter.painted) != 2 {
		t.Fatalf("painted %d structures", len(painter.painted))
	}
	spawn, feast := painter.painted[0], painter.painted[1]
	if spawn.Kind != KindSpawn || spawn.Radius != 20 || spawn.Location != center {
		t.Fatalf("spawn = %+v", spawn)
	}
	if feast.Kind != KindFeast || feast.Location != loc || feast.AvoidRadius != 20 {
		t.Fatalf("feast = %+v", feast)
	}
}

func TestGenerateFeastPaintError(t *testing.T) {
	painter := &recordingPainter{err: errors.New("host offline")}
	p := NewPlanner(testOpts, painter, 3, zerolog.Nop())

	if _, err := p.GenerateFeastPlatform(context.Background(), "world", domain.Location{}, 20); err == nil {
		t.Fatal("expected an error")
	}
}
