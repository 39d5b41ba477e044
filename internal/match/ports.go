package match

import (
	"context"
	"time"

	"github.com/ernie/arena/internal/domain"
	"github.com/google/uuid"
)

// Persistence stores match, party and elimination records
type Persistence interface {
	CreateMatch(ctx context.Context, serverID string) (int64, error)
	MarkMatchStarted(ctx context.Context, matchID int64, at time.Time) error
	MarkMatchEnded(ctx context.Context, matchID int64, at time.Time) error
	CreateParty(ctx context.Context, matchID int64, party domain.Party) (int64, error)
	RecordElimination(ctx context.Context, e domain.Elimination) error
	RecordKitSelection(ctx context.Context, playerID uuid.UUID, kit string) error
}

// Ledger awards and deducts credits asynchronously. Result channels are
// buffered and receive exactly one value.
type Ledger interface {
	Award(playerID uuid.UUID, amount int64, reason string) <-chan domain.CreditResult
	Deduct(playerID uuid.UUID, amount int64, reason string) <-chan domain.CreditResult
	BalanceOf(playerID uuid.UUID) int64
	Preload(playerID uuid.UUID)
}

// WorldBuilder asks the host to materialize platforms
type WorldBuilder interface {
	GenerateSpawnPlatform(ctx context.Context, center domain.Location) error
	GenerateFeastPlatform(ctx context.Context, world string, center domain.Location, avoidRadius float64) (domain.Location, error)
}

// Presenter shows match state to players
type Presenter interface {
	SetRestricted(player uuid.UUID, restricted bool)
	SetSpectator(player uuid.UUID)
	Broadcast(message string)
	Tell(player uuid.UUID, message string)
	UpdateTracking(snapshot domain.TrackingSnapshot)
	BorderChanged(center domain.Location, radius float64)
	PhaseChanged(from, to domain.Phase, reason string)
	SetPvp(enabled bool)
	Eliminated(kill domain.KillEvent)
	AnnounceWinner(winner domain.WinnerEvent)
}

// Effects applies final-fight effects to player entities
type Effects interface {
	ApplyDamageOverTime(player uuid.UUID, level int)
	ClearDamageOverTime(player uuid.UUID)
	Eliminate(player uuid.UUID)
}

// Dispatcher hands closures to the tick goroutine
type Dispatcher interface {
	Post(fn func()) bool
}
