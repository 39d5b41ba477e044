package domain

import (
	"time"

	"github.com/google/uuid"
)

// Host event types reported by the game host
const (
	HostJoin     = "join"
	HostQuit     = "quit"
	HostDeath    = "death"
	HostKit      = "kit"
	HostShutdown = "shutdown"
)

// HostEvent is something the game host observed about a player.
// Killer is nil for environmental deaths.
type HostEvent struct {
	Type      string     `json:"type"`
	Timestamp time.Time  `json:"timestamp"`
	Player    uuid.UUID  `json:"player"`
	Killer    *uuid.UUID `json:"killer,omitempty"`
	Message   string     `json:"message,omitempty"`
	Kit       string     `json:"kit,omitempty"`
}
