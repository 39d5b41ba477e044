package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

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

// queueDispatcher collects work posted from ledger goroutines so the
// replay loop can run it between host events
type queueDispatcher chan func()

func (q queueDispatcher) Post(fn func()) bool {
	select {
	case q <- fn:
		return true
	default:
		return false
	}
}

func (q queueDispatcher) drain() {
	for {
		select {
		case fn := <-q:
			fn()
		default:
			return
		}
	}
}

// settle runs posted work until nothing arrives for quiet
func (q queueDispatcher) settle(quiet time.Duration) {
	for {
		select {
		case fn := <-q:
			fn()
		case <-time.After(quiet):
			return
		}
	}
}

// cmdReplay drives a match from a recorded host log on a virtual clock
func cmdReplay(args []string) {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	db := fs.String("db", "", "database to write to (default: a temporary file)")
	showEvents := fs.Bool("events", false, "print every presentation event")
	settle := fs.Duration("settle", 0, "advance the clock this long after the last event")
	seed := fs.Int64("seed", 1, "seed for party names and feast placement")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fatal("usage: arena replay [--events] [--db path] <log>")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v, using defaults\n", err)
		cfg = config.Default()
	}
	logger := newLogger(cfg.Log)

	var events []domain.HostEvent
	if _, err := feed.ReplayFile(fs.Arg(0), func(ev domain.HostEvent) {
		events = append(events, ev)
	}); err != nil {
		fatal("%v", err)
	}
	if len(events) == 0 {
		fatal("no host events in %s", fs.Arg(0))
	}

	path := *db
	if path == "" {
		dir, err := os.MkdirTemp("", "arena-replay-")
		if err != nil {
			fatal("%v", err)
		}
		defer os.RemoveAll(dir)
		path = filepath.Join(dir, "replay.db")
	}

	st, err := replay(cfg, path, events, replayOptions{
		showEvents: *showEvents,
		settle:     *settle,
		seed:       *seed,
	}, logger)
	if err != nil {
		fatal("%v", err)
	}
	printReplaySummary(len(events), st)
}

type replayOptions struct {
	showEvents bool
	settle     time.Duration
	seed       int64
}

func replay(cfg *config.Config, dbPath string, events []domain.HostEvent, opts replayOptions, logger zerolog.Logger) (domain.MatchStatus, error) {
	ctx := context.Background()

	store, err := storage.New(dbPath)
	if err != nil {
		return domain.MatchStatus{}, fmt.Errorf("initializing database: %w", err)
	}
	defer store.Close()

	sched := match.NewScheduler(events[0].Timestamp)
	queue := make(queueDispatcher, 1024)

	fanout := present.NewFanout(cfg.Server.ID, sched.Now, logger)
	if opts.showEvents {
		fanout.AddSink(present.SinkFunc(func(ev domain.Event) {
			fmt.Printf("%s  %-10s %v\n", ev.Timestamp.Format("15:04:05"), ev.Type, ev.Data)
		}))
	}

	ledger := credits.NewLedger(store, cfg.Credits.Workers, cfg.Credits.QueueSize, cfg.Database.WriteTimeout, logger)
	orch := match.New(match.OptionsFrom(cfg), match.Deps{
		Persistence: store,
		Ledger:      ledger,
		World:       world.NewPlanner(world.OptionsFromConfig(cfg), fanout, opts.seed, logger),
		Presenter:   fanout,
		Effects:     fanout,
		Dispatcher:  queue,
		Scheduler:   sched,
		Journal:     match.NewJournal(0, cfg.Database.WriteTimeout, logger),
		Logger:      logger,
		Seed:        opts.seed,
	})

	if err := orch.InitializeMatch(ctx); err != nil {
		ledger.Close()
		orch.Close()
		return domain.MatchStatus{}, err
	}

	for _, ev := range events {
		queue.drain()
		sched.Advance(ev.Timestamp)
		orch.HandleHostEvent(ev)
	}
	queue.settle(100 * time.Millisecond)
	if opts.settle > 0 {
		sched.Advance(sched.Now().Add(opts.settle))
		queue.settle(100 * time.Millisecond)
	}

	status := orch.Status()
	ledger.Close()
	queue.settle(50 * time.Millisecond)
	orch.Close()
	return status, nil
}

func printReplaySummary(events int, st domain.MatchStatus) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Events:\t%d\n", events)
	if st.Session != nil {
		fmt.Fprintf(w, "Match:\t#%d\n", st.Session.ID)
	}
	fmt.Fprintf(w, "Phase:\t%s\n", st.Phase.DisplayName())
	fmt.Fprintf(w, "Alive:\t%d\n", len(st.Alive))
	fmt.Fprintf(w, "Eliminated:\t%d\n", len(st.Dead))
	fmt.Fprintf(w, "Parties:\t%d\n", len(st.Parties))
	fmt.Fprintf(w, "Feast:\t%s\n", onOff(st.FeastSpawned))
	fmt.Fprintf(w, "Border:\t%.0f\n", st.BorderRadius)
	w.Flush()
}
