package domain

import (
	"time"

	"github.com/google/uuid"
)

// MatchSession is the backing record of one match on this server
type MatchSession struct {
	ID        int64      `json:"id"`
	ServerID  string     `json:"server_id"`
	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// MatchRecord is a stored match with its outcome, for listings
type MatchRecord struct {
	ID           int64      `json:"id"`
	ServerID     string     `json:"server_id"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	Parties      int        `json:"parties"`
	Eliminations int        `json:"eliminations"`
	Winner       *uuid.UUID `json:"winner,omitempty"`
}

// DeathReason classifies how a player left the alive set
type DeathReason string

const (
	DeathPlayer       DeathReason = "player"
	DeathEnvironment  DeathReason = "environment"
	DeathDisconnected DeathReason = "disconnected"
	DeathFinalFight   DeathReason = "final_fight"
	DeathWinner       DeathReason = "winner"
)

// Elimination is a journal entry for a player's end of match
type Elimination struct {
	MatchID int64       `json:"match_id"`
	Player  uuid.UUID   `json:"player"`
	Party   uuid.UUID   `json:"party"`
	Killer  *uuid.UUID  `json:"killer,omitempty"`
	Reason  DeathReason `json:"reason"`
	Message string      `json:"message,omitempty"`
	At      time.Time   `json:"at"`
}

// MatchStatus is a point-in-time snapshot of the orchestrator
type MatchStatus struct {
	Running         bool          `json:"running"`
	Phase           Phase         `json:"phase"`
	Session         *MatchSession `json:"session,omitempty"`
	Alive           []uuid.UUID   `json:"alive"`
	Dead            []uuid.UUID   `json:"dead"`
	Parties         []Party       `json:"parties"`
	PvpEnabled      bool          `json:"pvp_enabled"`
	FeastSpawned    bool          `json:"feast_spawned"`
	FeastLocation   *Location     `json:"feast_location,omitempty"`
	BorderRadius    float64       `json:"border_radius"`
	BorderShrinking bool          `json:"border_shrinking"`
	EscalationLevel int           `json:"escalation_level"`
	WaitRemaining   int           `json:"wait_remaining_seconds,omitempty"`
}
