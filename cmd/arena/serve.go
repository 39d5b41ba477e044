package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ernie/arena/internal/api"
	"github.com/ernie/arena/internal/auth"
	"github.com/ernie/arena/internal/bus"
	"github.com/ernie/arena/internal/config"
	"github.com/ernie/arena/internal/credits"
	"github.com/ernie/arena/internal/domain"
	"github.com/ernie/arena/internal/feed"
	"github.com/ernie/arena/internal/match"
	"github.com/ernie/arena/internal/present"
	"github.com/ernie/arena/internal/storage"
	"github.com/ernie/arena/internal/world"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"
)

// cmdServe runs the orchestrator, the HTTP API and the host bridges
func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	cfgPath := *configPath
	if cfgPath == "" {
		if _, err := os.Stat(defaultConfigPath); err != nil {
			fatal("no config file found at %s. Use --config to specify a config file.", defaultConfigPath)
		}
		cfgPath = defaultConfigPath
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatal("failed to load config: %v", err)
	}

	logger := newLogger(cfg.Log)
	logger.Info().Str("version", version).Str("server", cfg.Server.ID).Msg("Arena starting")

	if err := serve(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Arena stopped with an error")
	}
	logger.Info().Msg("Shutdown complete")
}

func serve(cfg *config.Config, logger zerolog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer store.Close()
	logger.Info().Str("path", cfg.Database.Path).Msg("Database initialized")

	if n, err := store.EndOpenMatches(ctx, cfg.Server.ID, time.Now()); err != nil {
		logger.Warn().Err(err).Msg("Failed to close matches left open by a previous run")
	} else if n > 0 {
		logger.Warn().Int64("matches", n).Msg("Closed matches left open by a previous run")
	}

	ledger := credits.NewLedger(store, cfg.Credits.Workers, cfg.Credits.QueueSize, cfg.Database.WriteTimeout, logger)
	defer ledger.Close()

	fanout := present.NewFanout(cfg.Server.ID, nil, logger)
	var painter world.Painter = fanout

	var hostBus *bus.Client
	if cfg.NATS.Enabled() {
		url := cfg.NATS.URL
		if cfg.NATS.Embedded {
			embedded, err := bus.StartEmbedded("127.0.0.1", cfg.NATS.EmbeddedPort)
			if err != nil {
				return err
			}
			defer embedded.Shutdown()
			url = embedded.ClientURL()
			logger.Info().Str("url", url).Msg("Embedded NATS server started")
		}
		hostBus, err = bus.Connect(url, cfg.NATS.SubjectPrefix, cfg.Server.ID, logger)
		if err != nil {
			return err
		}
		defer hostBus.Close()
		fanout.AddSink(hostBus)
		painter = hostBus
	}

	sched := match.NewScheduler(time.Now())
	loop := match.NewLoop(sched, cfg.Server.TickInterval, logger)
	journal := match.NewJournal(0, cfg.Database.WriteTimeout, logger)
	orch := match.New(match.OptionsFrom(cfg), match.Deps{
		Persistence: store,
		Ledger:      ledger,
		World:       world.NewPlanner(world.OptionsFromConfig(cfg), painter, time.Now().UnixNano(), logger),
		Presenter:   fanout,
		Effects:     fanout,
		Dispatcher:  loop,
		Scheduler:   sched,
		Journal:     journal,
		Logger:      logger,
		Seed:        time.Now().UnixNano(),
	})

	authService := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration)
	if cfg.Auth.JWTSecret == "" {
		logger.Warn().Msg("No JWT secret configured. Auth tokens will use an empty secret.")
	}
	router := api.NewRouter(api.Deps{
		Store:     store,
		Match:     orch,
		Runner:    loop,
		Auth:      authService,
		ServerID:  cfg.Server.ID,
		StaticDir: cfg.Server.StaticDir,
		Logger:    logger,
	})
	fanout.AddSink(router.Spectators())
	router.StartSpectators(ctx)

	go loop.Run(ctx)

	hostEvent := func(ev domain.HostEvent) {
		loop.Post(func() { orch.HandleHostEvent(ev) })
	}
	if hostBus != nil {
		if _, err := hostBus.SubscribeHost(hostEvent); err != nil {
			return err
		}
	}
	if cfg.Feed.LogPath != "" {
		tailer := feed.NewTailer(cfg.Feed.LogPath, cfg.Feed.PollInterval)
		if err := tailer.Start(); err != nil {
			return err
		}
		defer tailer.Stop()
		go forwardFeed(ctx, tailer, hostEvent, logger)
		logger.Info().Str("path", cfg.Feed.LogPath).Msg("Tailing host event log")
	}
	if cfg.Feed.UDPAddr != "" {
		listener, err := feed.ListenUDP(cfg.Feed.UDPAddr)
		if err != nil {
			return err
		}
		go func() {
			err := listener.Serve(ctx, hostEvent, func(err error) {
				logger.Warn().Err(err).Msg("Bad host event datagram")
			})
			if err != nil {
				logger.Error().Err(err).Msg("Host event listener stopped")
			}
		}()
		logger.Info().Stringer("addr", listener.Addr()).Msg("Listening for host events over UDP")
	}

	var initErr error
	if err := loop.Do(ctx, func() { initErr = orch.InitializeMatch(ctx) }); err != nil {
		return err
	}
	if initErr != nil {
		logger.Error().Err(initErr).Msg("Failed to open the first match; use 'arena admin open' to retry")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.ListenAddr, cfg.Server.HTTPPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info().Stringer("signal", sig).Msg("Shutting down")
	case err := <-serverErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := server.Shutdown(httpCtx); err != nil {
		logger.Warn().Err(err).Msg("HTTP server shutdown error")
	}

	if err := loop.Do(httpCtx, func() { orch.Shutdown("server stopping") }); err != nil {
		logger.Warn().Err(err).Msg("Failed to end the running match")
	}
	cancel()
	<-loop.Done()
	orch.Close()
	return runErr
}

// forwardFeed hands tailed host events to the tick goroutine
func forwardFeed(ctx context.Context, tailer *feed.Tailer, handle func(domain.HostEvent), logger zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-tailer.Events:
			handle(ev)
		case err := <-tailer.Errors:
			logger.Warn().Err(err).Msg("Host log tailer error")
		}
	}
}
