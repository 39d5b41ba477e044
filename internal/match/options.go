package match

import (
	"time"

	"github.com/ernie/arena/internal/config"
	"github.com/ernie/arena/internal/domain"
)

// CreditAmounts are the ledger amounts granted per reason
type CreditAmounts struct {
	GameStarted       int64
	SurvivedMinute    int64
	Kill              int64
	PartyMemberKill   int64
	WonLarge          int64
	WonSmall          int64
	LargeMatchParties int
	DisconnectPenalty int64
}

// Options is everything the orchestrator reads from configuration
type Options struct {
	ServerID      string
	MinPlayers    int
	MaxPlayers    int
	MaxWait       time.Duration
	WaitExtension time.Duration
	Countdown     time.Duration
	PvpDelay      time.Duration
	FeastDelay    time.Duration
	MaxDuration   time.Duration
	EndingDelay   time.Duration
	AutoRestart   bool
	RestartDelay  time.Duration
	SetupTimeout  time.Duration

	Center       domain.Location
	BorderMargin float64
	PartySize    int
	Kits         map[string]int64

	Border     BorderConfig
	Feast      FeastConfig
	FinalFight EscalatorConfig
	Credits    CreditAmounts
}

// OptionsFrom maps the file configuration onto orchestrator options
func OptionsFrom(cfg *config.Config) Options {
	return Options{
		ServerID:      cfg.Server.ID,
		MinPlayers:    cfg.Match.MinPlayers,
		MaxPlayers:    cfg.Match.MaxPlayers,
		MaxWait:       cfg.Match.MaxWait,
		WaitExtension: cfg.Match.WaitExtension,
		Countdown:     cfg.Match.Countdown,
		PvpDelay:      cfg.Match.PvpDelay,
		FeastDelay:    cfg.Feast.Delay,
		MaxDuration:   cfg.Match.MaxDuration,
		EndingDelay:   cfg.Match.EndingDelay,
		AutoRestart:   cfg.Match.AutoRestart,
		RestartDelay:  cfg.Match.RestartDelay,
		SetupTimeout:  cfg.Database.WriteTimeout,
		Center: domain.Location{
			World: cfg.World.Name,
			X:     cfg.World.CenterX,
			Y:     cfg.World.CenterY,
			Z:     cfg.World.CenterZ,
		},
		BorderMargin: cfg.FinalFight.BorderMargin,
		PartySize:    cfg.Party.Size,
		Kits:         cfg.Kits,
		Border: BorderConfig{
			InitialRadius: cfg.World.BorderInitialRadius,
			MinRadius:     cfg.World.BorderMinRadius,
			ShrinkPerStep: cfg.World.BorderShrinkPerStep,
			Step:          cfg.World.BorderStep,
		},
		Feast: FeastConfig{
			Enabled:          cfg.Feast.IsEnabled(),
			AvoidRadius:      cfg.World.SpawnRadius,
			ReminderInterval: cfg.Feast.ReminderInterval,
			BuildTimeout:     cfg.Database.WriteTimeout,
		},
		FinalFight: EscalatorConfig{
			Interval: cfg.FinalFight.Interval,
			MaxLevel: cfg.FinalFight.MaxLevel,
			Grace:    cfg.FinalFight.Grace,
		},
		Credits: CreditAmounts{
			GameStarted:       cfg.Credits.GameStarted,
			SurvivedMinute:    cfg.Credits.SurvivedMinute,
			Kill:              cfg.Credits.Kill,
			PartyMemberKill:   cfg.Credits.PartyMemberKill,
			WonLarge:          cfg.Credits.WonLarge,
			WonSmall:          cfg.Credits.WonSmall,
			LargeMatchParties: cfg.Credits.LargeMatchParties,
			DisconnectPenalty: cfg.Credits.DisconnectPenalty,
		},
	}
}
