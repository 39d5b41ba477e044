package present

import (
	"context"
	"sync"
	"time"

	"github.com/ernie/arena/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Sink receives match events. Emit must not block.
type Sink interface {
	Emit(ev domain.Event)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ev domain.Event)

func (f SinkFunc) Emit(ev domain.Event) { f(ev) }

// Fanout turns presenter and effect calls into events and copies each one
// to every sink. It also paints structures by emitting them.
type Fanout struct {
	serverID string
	now      func() time.Time
	log      zerolog.Logger

	mu    sync.RWMutex
	sinks []Sink
}

// NewFanout creates a fanout stamping events with serverID. A nil clock
// means time.Now.
func NewFanout(serverID string, clock func() time.Time, logger zerolog.Logger, sinks ...Sink) *Fanout {
	if clock == nil {
		clock = time.Now
	}
	return &Fanout{
		serverID: serverID,
		now:      clock,
		log:      logger.With().Str("component", "present").Logger(),
		sinks:    sinks,
	}
}

// AddSink registers another sink
func (f *Fanout) AddSink(s Sink) {
	f.mu.Lock()
	f.sinks = append(f.sinks, s)
	f.mu.Unlock()
}

func (f *Fanout) emit(eventType string, data interface{}) {
	ev := domain.Event{
		Type:      eventType,
		ServerID:  f.serverID,
		Timestamp: f.now().UTC(),
		Data:      data,
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, s := range f.sinks {
		s.Emit(ev)
	}
}

func (f *Fanout) SetRestricted(player uuid.UUID, restricted bool) {
	f.emit(domain.EventRestrict, domain.PlayerStateEvent{Player: player, Restricted: restricted})
}

func (f *Fanout) SetSpectator(player uuid.UUID) {
	f.emit(domain.EventSpectate, domain.PlayerStateEvent{Player: player})
}

func (f *Fanout) Broadcast(message string) {
	f.log.Info().Msg(message)
	f.emit(domain.EventBroadcast, domain.MessageEvent{Message: message})
}

func (f *Fanout) Tell(player uuid.UUID, message string) {
	f.emit(domain.EventTell, domain.MessageEvent{Player: &player, Message: message})
}

func (f *Fanout) UpdateTracking(snapshot domain.TrackingSnapshot) {
	f.emit(domain.EventTracking, snapshot)
}

func (f *Fanout) BorderChanged(center domain.Location, radius float64) {
	f.emit(domain.EventBorder, domain.BorderEvent{Center: center, Radius: radius})
}

func (f *Fanout) PhaseChanged(from, to domain.Phase, reason string) {
	f.emit(domain.EventPhaseChange, domain.PhaseChangeEvent{From: from, To: to, Reason: reason})
}

func (f *Fanout) SetPvp(enabled bool) {
	f.emit(domain.EventPvp, domain.PvpEvent{Enabled: enabled})
}

func (f *Fanout) Eliminated(kill domain.KillEvent) {
	f.emit(domain.EventKill, kill)
}

func (f *Fanout) AnnounceWinner(winner domain.WinnerEvent) {
	f.emit(domain.EventWinner, winner)
}

func (f *Fanout) ApplyDamageOverTime(player uuid.UUID, level int) {
	f.emit(domain.EventDamageOverTime, domain.PlayerStateEvent{Player: player, Level: level})
}

func (f *Fanout) ClearDamageOverTime(player uuid.UUID) {
	f.emit(domain.EventClearDamage, domain.PlayerStateEvent{Player: player})
}

func (f *Fanout) Eliminate(player uuid.UUID) {
	f.emit(domain.EventEliminate, domain.PlayerStateEvent{Player: player})
}

// Paint emits the structure for hosts listening on the event stream. It
// never waits for the host to build it.
func (f *Fanout) Paint(ctx context.Context, s domain.StructureEvent) error {
	f.emit(domain.EventStructure, s)
	return nil
}
