package match

import (
	"context"
	"fmt"
	"time"

	"github.com/ernie/arena/internal/domain"
	"github.com/rs/zerolog"
)

// FeastConfig controls the feast event
type FeastConfig struct {
	Enabled          bool
	AvoidRadius      float64
	ReminderInterval time.Duration
	BuildTimeout     time.Duration
}

// Feast spawns the one-time mid-match loot platform
type Feast struct {
	cfg       FeastConfig
	sched     *Scheduler
	builder   WorldBuilder
	presenter Presenter
	dispatch  Dispatcher
	log       zerolog.Logger

	location  *domain.Location
	building  bool
	gen       int
	reminders *Task
	remaining time.Duration
}

// NewFeast creates a feast scheduler
func NewFeast(cfg FeastConfig, sched *Scheduler, builder WorldBuilder, presenter Presenter, dispatch Dispatcher, logger zerolog.Logger) *Feast {
	if cfg.ReminderInterval <= 0 {
		cfg.ReminderInterval = 2 * time.Minute
	}
	if cfg.BuildTimeout <= 0 {
		cfg.BuildTimeout = 5 * time.Second
	}
	return &Feast{
		cfg:       cfg,
		sched:     sched,
		builder:   builder,
		presenter: presenter,
		dispatch:  dispatch,
		log:       logger.With().Str("component", "feast").Logger(),
	}
}

// Enabled reports whether the feast is configured to happen
func (f *Feast) Enabled() bool {
	return f.cfg.Enabled
}

// StartReminders broadcasts the time left until the feast, which spawns
// in until. No-op when disabled, already spawned or already reminding.
func (f *Feast) StartReminders(until time.Duration) {
	if !f.cfg.Enabled || f.location != nil || f.reminders.Active() {
		return
	}
	f.remaining = until
	f.reminders = f.sched.Every("feast-reminder", f.cfg.ReminderInterval, f.remind)
}

func (f *Feast) remind(time.Time) {
	f.remaining -= f.cfg.ReminderInterval
	if f.location != nil || f.remaining <= 0 {
		f.StopReminders()
		return
	}
	minutes := int((f.remaining + time.Minute - 1) / time.Minute)
	f.presenter.Broadcast(fmt.Sprintf("The feast begins in %d minute%s!", minutes, plural(minutes)))
}

// Spawn starts building the feast platform near center. The builder runs
// on its own goroutine and done is posted back to the tick goroutine with
// the result. Spawn returns false without building when the feast already
// exists or a build is in flight.
func (f *Feast) Spawn(world string, center domain.Location, done func(domain.Location, error)) bool {
	if f.location != nil || f.building {
		return false
	}
	f.building = true
	gen := f.gen

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), f.cfg.BuildTimeout)
		defer cancel()

		loc, err := f.builder.GenerateFeastPlatform(ctx, world, center, f.cfg.AvoidRadius)
		if !f.dispatch.Post(func() { f.built(gen, world, loc, err, done) }) {
			f.log.Warn().Str("world", world).Msg("Feast platform finished after the tick loop stopped")
		}
	}()
	return true
}

func (f *Feast) built(gen int, world string, loc domain.Location, err error, done func(domain.Location, error)) {
	if gen != f.gen {
		f.log.Debug().Str("world", world).Msg("Dropping feast platform built for a previous match")
		return
	}
	f.building = false
	if err != nil {
		f.log.Error().Err(err).Str("world", world).Msg("Failed to generate feast platform")
		done(domain.Location{}, err)
		return
	}

	f.location = &loc
	f.StopReminders()
	f.log.Info().Stringer("location", loc).Msg("Feast spawned")
	done(loc, nil)
}

// Building reports whether a platform build is in flight
func (f *Feast) Building() bool {
	return f.building
}

// Spawned reports whether the feast exists this match
func (f *Feast) Spawned() bool {
	return f.location != nil
}

// Location returns the feast location, or nil before it spawns
func (f *Feast) Location() *domain.Location {
	if f.location == nil {
		return nil
	}
	loc := *f.location
	return &loc
}

// StopReminders cancels the reminder broadcasts
func (f *Feast) StopReminders() {
	f.reminders.Cancel()
	f.reminders = nil
}

// Reset forgets the feast for a new match
func (f *Feast) Reset() {
	f.StopReminders()
	f.location = nil
	f.building = false
	f.gen++
	f.remaining = 0
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
