package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Match      MatchConfig      `yaml:"match"`
	World      WorldConfig      `yaml:"world"`
	Feast      FeastConfig      `yaml:"feast"`
	FinalFight FinalFightConfig `yaml:"final_fight"`
	Credits    CreditsConfig    `yaml:"credits"`
	Party      PartyConfig      `yaml:"party"`
	Kits       map[string]int64 `yaml:"kits"`
	NATS       NATSConfig       `yaml:"nats"`
	Feed       FeedConfig       `yaml:"feed"`
	Nakama     NakamaConfig     `yaml:"nakama"`
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenDuration time.Duration `yaml:"token_duration"`
}

// ServerConfig holds HTTP server and tick loop settings
type ServerConfig struct {
	ID           string        `yaml:"id"`
	ListenAddr   string        `yaml:"listen_addr"`
	HTTPPort     int           `yaml:"http_port"`
	TickInterval time.Duration `yaml:"tick_interval"`
	StaticDir    string        `yaml:"static_dir"`
}

// LogConfig selects the log level and output format
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console", "json" or "" for auto
}

// DatabaseConfig holds SQLite settings
type DatabaseConfig struct {
	Path         string        `yaml:"path"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// MatchConfig holds the match timeline
type MatchConfig struct {
	MinPlayers    int           `yaml:"min_players"`
	MaxPlayers    int           `yaml:"max_players"`
	MaxWait       time.Duration `yaml:"max_wait"`
	WaitExtension time.Duration `yaml:"wait_extension"`
	Countdown     time.Duration `yaml:"countdown"`
	PvpDelay      time.Duration `yaml:"pvp_delay"`
	MaxDuration   time.Duration `yaml:"max_duration"`
	EndingDelay   time.Duration `yaml:"ending_delay"`
	AutoRestart   bool          `yaml:"auto_restart"`
	RestartDelay  time.Duration `yaml:"restart_delay"`
}

// WorldConfig holds spawn and border settings
type WorldConfig struct {
	Name                string        `yaml:"name"`
	CenterX             float64       `yaml:"center_x"`
	CenterY             float64       `yaml:"center_y"`
	CenterZ             float64       `yaml:"center_z"`
	SpawnRadius         float64       `yaml:"spawn_radius"`
	BorderInitialRadius float64       `yaml:"border_initial_radius"`
	BorderMinRadius     float64       `yaml:"border_min_radius"`
	BorderShrinkPerStep float64       `yaml:"border_shrink_per_step"`
	BorderStep          time.Duration `yaml:"border_step"`
}

// FeastConfig holds feast settings
type FeastConfig struct {
	Enabled          *bool         `yaml:"enabled"`
	Delay            time.Duration `yaml:"delay"`
	Radius           float64       `yaml:"radius"`
	BorderDistance   float64       `yaml:"border_distance"`
	ReminderInterval time.Duration `yaml:"reminder_interval"`
}

// IsEnabled reports whether the feast is enabled (default true)
func (f FeastConfig) IsEnabled() bool {
	return f.Enabled == nil || *f.Enabled
}

// FinalFightConfig holds escalation settings
type FinalFightConfig struct {
	Interval     time.Duration `yaml:"interval"`
	MaxLevel     int           `yaml:"max_level"`
	Grace        time.Duration `yaml:"grace"`
	BorderMargin float64       `yaml:"border_margin"`
}

// CreditsConfig holds credit amounts per reason
type CreditsConfig struct {
	GameStarted       int64 `yaml:"game_started"`
	SurvivedMinute    int64 `yaml:"survived_minute"`
	Kill              int64 `yaml:"kill"`
	PartyMemberKill   int64 `yaml:"party_member_kill"`
	WonLarge          int64 `yaml:"won_large"`
	WonSmall          int64 `yaml:"won_small"`
	LargeMatchParties int   `yaml:"large_match_parties"`
	DisconnectPenalty int64 `yaml:"disconnect_penalty"`
	Workers           int   `yaml:"workers"`
	QueueSize         int   `yaml:"queue_size"`
}

// PartyConfig holds party assignment settings
type PartyConfig struct {
	Size int `yaml:"size"`
}

// NATSConfig holds host bus settings
type NATSConfig struct {
	URL           string `yaml:"url"`
	Embedded      bool   `yaml:"embedded"`
	EmbeddedPort  int    `yaml:"embedded_port"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Enabled reports whether the host bus is configured
func (n NATSConfig) Enabled() bool {
	return n.URL != "" || n.Embedded
}

// FeedConfig holds the host event log path and UDP listener
type FeedConfig struct {
	LogPath      string        `yaml:"log_path"`
	PollInterval time.Duration `yaml:"poll_interval"`
	UDPAddr      string        `yaml:"udp_addr"`
}

// NakamaConfig selects the Nakama wallet key used for credits
type NakamaConfig struct {
	WalletKey string `yaml:"wallet_key"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config file: %w", err)
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.ID == "" {
		cfg.Server.ID = "arena-1"
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = "127.0.0.1"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Server.TickInterval == 0 {
		cfg.Server.TickInterval = 50 * time.Millisecond
	}
	// Note: StaticDir intentionally has no default - empty means don't serve static files

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "/var/lib/arena/arena.db"
	}
	if cfg.Database.WriteTimeout == 0 {
		cfg.Database.WriteTimeout = 5 * time.Second
	}

	if cfg.Auth.TokenDuration == 0 {
		cfg.Auth.TokenDuration = 24 * time.Hour
	}

	m := &cfg.Match
	if m.MinPlayers == 0 {
		m.MinPlayers = 2
	}
	if m.MaxPlayers == 0 {
		m.MaxPlayers = 24
	}
	if m.MaxWait == 0 {
		m.MaxWait = 5 * time.Minute
	}
	if m.WaitExtension == 0 {
		m.WaitExtension = 30 * time.Second
	}
	if m.Countdown == 0 {
		m.Countdown = 10 * time.Second
	}
	if m.PvpDelay == 0 {
		m.PvpDelay = 30 * time.Second
	}
	if m.MaxDuration == 0 {
		m.MaxDuration = 45 * time.Minute
	}
	if m.EndingDelay == 0 {
		m.EndingDelay = 10 * time.Second
	}
	if m.RestartDelay == 0 {
		m.RestartDelay = 15 * time.Second
	}

	w := &cfg.World
	if w.Name == "" {
		w.Name = "world"
	}
	if w.CenterY == 0 {
		w.CenterY = 100
	}
	if w.SpawnRadius == 0 {
		w.SpawnRadius = 20
	}
	if w.BorderInitialRadius == 0 {
		w.BorderInitialRadius = 500
	}
	if w.BorderMinRadius == 0 {
		w.BorderMinRadius = 15
	}
	if w.BorderShrinkPerStep == 0 {
		w.BorderShrinkPerStep = 0.25
	}
	if w.BorderStep == 0 {
		w.BorderStep = time.Second
	}

	f := &cfg.Feast
	if f.Delay == 0 {
		f.Delay = 10 * time.Minute
	}
	if f.Radius == 0 {
		f.Radius = 10
	}
	if f.BorderDistance == 0 {
		f.BorderDistance = 50
	}
	if f.ReminderInterval == 0 {
		f.ReminderInterval = 2 * time.Minute
	}

	ff := &cfg.FinalFight
	if ff.Interval == 0 {
		ff.Interval = time.Minute
	}
	if ff.MaxLevel == 0 {
		ff.MaxLevel = 10
	}
	if ff.Grace == 0 {
		ff.Grace = 10 * time.Second
	}
	if ff.BorderMargin == 0 {
		ff.BorderMargin = 5
	}

	c := &cfg.Credits
	if c.GameStarted == 0 {
		c.GameStarted = 3
	}
	if c.SurvivedMinute == 0 {
		c.SurvivedMinute = 1
	}
	if c.Kill == 0 {
		c.Kill = 50
	}
	if c.PartyMemberKill == 0 {
		c.PartyMemberKill = 25
	}
	if c.WonLarge == 0 {
		c.WonLarge = 500
	}
	if c.WonSmall == 0 {
		c.WonSmall = 100
	}
	if c.LargeMatchParties == 0 {
		c.LargeMatchParties = 4
	}
	if c.DisconnectPenalty == 0 {
		c.DisconnectPenalty = -30
	}
	if c.Workers == 0 {
		c.Workers = 2
	}
	if c.QueueSize == 0 {
		c.QueueSize = 256
	}

	if cfg.Party.Size == 0 {
		cfg.Party.Size = 1
	}

	if cfg.NATS.SubjectPrefix == "" {
		cfg.NATS.SubjectPrefix = "arena"
	}

	if cfg.Feed.PollInterval == 0 {
		cfg.Feed.PollInterval = 100 * time.Millisecond
	}

	if cfg.Nakama.WalletKey == "" {
		cfg.Nakama.WalletKey = "credits"
	}
}

// Validate rejects settings the match cannot run with
func (cfg *Config) Validate() error {
	var errs []error
	if cfg.Match.MinPlayers < 1 {
		errs = append(errs, errors.New("match.min_players must be at least 1"))
	}
	if cfg.Match.MaxPlayers < cfg.Match.MinPlayers {
		errs = append(errs, errors.New("match.max_players must not be below match.min_players"))
	}
	if cfg.World.BorderMinRadius > cfg.World.BorderInitialRadius {
		errs = append(errs, errors.New("world.border_min_radius must not exceed world.border_initial_radius"))
	}
	if cfg.World.BorderShrinkPerStep < 0 {
		errs = append(errs, errors.New("world.border_shrink_per_step must not be negative"))
	}
	if cfg.FinalFight.MaxLevel < 1 {
		errs = append(errs, errors.New("final_fight.max_level must be at least 1"))
	}
	if cfg.Party.Size < 1 {
		errs = append(errs, errors.New("party.size must be at least 1"))
	}
	for kit, cost := range cfg.Kits {
		if cost < 0 {
			errs = append(errs, fmt.Errorf("kits.%s has a negative cost", kit))
		}
	}
	return errors.Join(errs...)
}
