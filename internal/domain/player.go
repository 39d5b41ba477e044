package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Party groups players who share kill-assist credit
type Party struct {
	ID        uuid.UUID `json:"id"`
	MatchID   int64     `json:"match_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Location is a point in a named world
type Location struct {
	World string  `json:"world"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

// DistanceXZ returns the horizontal distance between two locations
func (l Location) DistanceXZ(o Location) float64 {
	return math.Hypot(l.X-o.X, l.Z-o.Z)
}

func (l Location) String() string {
	return fmt.Sprintf("%s(%.0f, %.0f, %.0f)", l.World, l.X, l.Y, l.Z)
}

// CreditResult is the outcome of an asynchronous ledger operation.
// OK is false when a deduction was refused for insufficient balance.
type CreditResult struct {
	OK      bool
	Balance int64
	Err     error
}

// TrackingSnapshot feeds per-player compass and scoreboard hooks
type TrackingSnapshot struct {
	Alive         []uuid.UUID             `json:"alive"`
	Parties       map[uuid.UUID]uuid.UUID `json:"parties"`
	FeastLocation *Location               `json:"feast_location,omitempty"`
	BorderRadius  float64                 `json:"border_radius"`
}
