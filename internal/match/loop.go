package match

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrLoopStopped is returned when work is posted after the loop exited
var ErrLoopStopped = errors.New("tick loop stopped")

// Loop is the single gameplay goroutine. Every mutation of match state
// happens inside a closure run by Loop, either posted from another goroutine
// or fired by the scheduler on a tick.
type Loop struct {
	sched *Scheduler
	tick  time.Duration
	clock func() time.Time
	log   zerolog.Logger

	posts chan func()
	done  chan struct{}
	once  sync.Once
}

// NewLoop creates a loop advancing sched every tick
func NewLoop(sched *Scheduler, tick time.Duration, logger zerolog.Logger) *Loop {
	if tick <= 0 {
		tick = 50 * time.Millisecond
	}
	return &Loop{
		sched: sched,
		tick:  tick,
		clock: time.Now,
		log:   logger.With().Str("component", "loop").Logger(),
		posts: make(chan func(), 256),
		done:  make(chan struct{}),
	}
}

// Post hands fn to the tick goroutine. It blocks while the queue is full and
// returns false once the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.posts <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do runs fn on the tick goroutine and waits for it to finish
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrLoopStopped
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrLoopStopped
	}
}

// Run drives the loop until ctx is cancelled
func (l *Loop) Run(ctx context.Context) {
	defer l.once.Do(func() { close(l.done) })

	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()

	l.log.Info().Dur("tick", l.tick).Msg("Tick loop started")
	for {
		select {
		case <-ctx.Done():
			l.log.Info().Msg("Tick loop stopped")
			return
		case fn := <-l.posts:
			l.run("posted", fn)
		case <-ticker.C:
			l.run("tick", func() { l.sched.Advance(l.clock()) })
		}
	}
}

// Done is closed when Run returns
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) run(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Str("kind", kind).Err(fmt.Errorf("%v", r)).Msg("Recovered from panic on tick goroutine")
		}
	}()
	fn()
}
