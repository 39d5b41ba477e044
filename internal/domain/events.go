package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event types published to websocket clients and the host bus
const (
	EventPhaseChange    = "phase_change"
	EventBroadcast      = "broadcast"
	EventTell           = "tell"
	EventRestrict       = "restrict"
	EventSpectate       = "spectate"
	EventTracking       = "tracking"
	EventBorder         = "border"
	EventDamageOverTime = "damage_over_time"
	EventClearDamage    = "clear_damage"
	EventEliminate      = "eliminate"
	EventKill           = "kill"
	EventWinner         = "winner"
	EventStructure      = "structure"
	EventPvp            = "pvp"
)

// Event is a real-time notification about the running match
type Event struct {
	Type      string      `json:"event"`
	ServerID  string      `json:"server_id"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// PhaseChangeEvent is sent after every successful transition
type PhaseChangeEvent struct {
	From   Phase  `json:"from"`
	To     Phase  `json:"to"`
	Reason string `json:"reason,omitempty"`
	Forced bool   `json:"forced,omitempty"`
}

// MessageEvent carries a broadcast or a message to one player
type MessageEvent struct {
	Player  *uuid.UUID `json:"player,omitempty"`
	Message string     `json:"message"`
}

// PlayerStateEvent toggles presentation state for one player
type PlayerStateEvent struct {
	Player     uuid.UUID `json:"player"`
	Restricted bool      `json:"restricted,omitempty"`
	Level      int       `json:"level,omitempty"`
}

// PvpEvent reports whether players may damage each other
type PvpEvent struct {
	Enabled bool `json:"enabled"`
}

// BorderEvent reports the current border
type BorderEvent struct {
	Center Location `json:"center"`
	Radius float64  `json:"radius"`
}

// KillEvent is sent when a player is eliminated
type KillEvent struct {
	Victim  uuid.UUID   `json:"victim"`
	Killer  *uuid.UUID  `json:"killer,omitempty"`
	Reason  DeathReason `json:"reason"`
	Message string      `json:"message,omitempty"`
	Alive   int         `json:"alive"`
}

// WinnerEvent is sent when a match ends with a single survivor
type WinnerEvent struct {
	Player  uuid.UUID `json:"player"`
	Party   string    `json:"party"`
	Credits int64     `json:"credits"`
}

// StructureEvent asks the host to paint a platform
type StructureEvent struct {
	Kind        string   `json:"kind"` // "spawn" or "feast"
	Location    Location `json:"location"`
	Radius      float64  `json:"radius"`
	AvoidRadius float64  `json:"avoid_radius,omitempty"`
}
