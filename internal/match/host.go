package match

import (
	"github.com/ernie/arena/internal/domain"
)

// HandleHostEvent routes an event reported by the game host to the matching
// player operation. Must run on the tick goroutine.
func (o *Orchestrator) HandleHostEvent(ev domain.HostEvent) {
	log := o.log.With().Str("event", ev.Type).Str("player", ev.Player.String()).Logger()

	switch ev.Type {
	case domain.HostJoin:
		if err := o.OnPlayerAdmitted(ev.Player); err != nil {
			log.Debug().Err(err).Msg("Join not admitted")
			o.presenter.SetSpectator(ev.Player)
		}
	case domain.HostQuit:
		o.OnPlayerDisconnected(ev.Player)
	case domain.HostDeath:
		msg := ev.Message
		if msg == "" {
			msg = "Died"
		}
		o.HandlePlayerDeath(ev.Player, ev.Killer, msg)
	case domain.HostKit:
		if err := o.SelectKit(ev.Player, ev.Kit); err != nil {
			log.Debug().Err(err).Str("kit", ev.Kit).Msg("Kit selection refused")
			o.presenter.Tell(ev.Player, "You can't pick that kit: "+err.Error())
		}
	case domain.HostShutdown:
		o.Shutdown("host shutting down")
	default:
		log.Warn().Msg("Ignoring unknown host event")
	}
}
