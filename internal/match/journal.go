package match

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type journalEntry struct {
	name string
	fn   func(ctx context.Context) error
}

// Journal runs persistence writes in order on its own goroutine so the tick
// goroutine never waits on the database. Failed writes are logged and
// dropped.
type Journal struct {
	entries chan journalEntry
	timeout time.Duration
	log     zerolog.Logger

	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
	done    chan struct{}
}

// NewJournal starts a journal with room for size queued writes
func NewJournal(size int, timeout time.Duration, logger zerolog.Logger) *Journal {
	if size <= 0 {
		size = 1024
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	j := &Journal{
		entries: make(chan journalEntry, size),
		timeout: timeout,
		log:     logger.With().Str("component", "journal").Logger(),
		done:    make(chan struct{}),
	}
	go j.run()
	return j
}

// Submit queues a write. It never blocks; when the queue is full the write
// is dropped and logged.
func (j *Journal) Submit(name string, fn func(ctx context.Context) error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		j.log.Warn().Str("write", name).Msg("Journal closed, dropping write")
		return
	}
	j.pending.Add(1)
	select {
	case j.entries <- journalEntry{name: name, fn: fn}:
	default:
		j.pending.Done()
		j.log.Error().Str("write", name).Msg("Journal queue full, dropping write")
	}
}

func (j *Journal) run() {
	defer close(j.done)
	for e := range j.entries {
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		if err := e.fn(ctx); err != nil {
			j.log.Warn().Err(err).Str("write", e.name).Msg("Persistence write failed")
		}
		cancel()
		j.pending.Done()
	}
}

// Flush waits until every queued write has run
func (j *Journal) Flush() {
	j.pending.Wait()
}

// Close drains the queue and stops the worker. Safe to repeat.
func (j *Journal) Close() {
	j.mu.Lock()
	if !j.closed {
		j.closed = true
		close(j.entries)
	}
	j.mu.Unlock()
	<-j.done
}
