package credits

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/ernie/arena/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrLedgerClosed = errors.New("ledger closed")
	ErrQueueFull    = errors.New("ledger queue full")
)

// Store persists balances. AdjustCredits refuses a change that would go
// negative when requireFunds is set, returning ok false.
type Store interface {
	Balance(ctx context.Context, player uuid.UUID) (int64, error)
	AdjustCredits(ctx context.Context, player uuid.UUID, delta int64, reason string, requireFunds bool) (balance int64, ok bool, err error)
}

type job struct {
	player       uuid.UUID
	delta        int64
	reason       string
	requireFunds bool
	preload      bool
	result       chan domain.CreditResult
}

// Ledger applies credit changes on a pool of workers. Every player is
// pinned to one worker so their changes apply in submission order.
// Balances are cached for synchronous reads.
type Ledger struct {
	store   Store
	timeout time.Duration
	log     zerolog.Logger
	shards  []chan job
	wg      sync.WaitGroup

	mu     sync.RWMutex
	cache  map[uuid.UUID]int64
	closed bool
}

// NewLedger starts workers goroutines, each with room for queue jobs
func NewLedger(store Store, workers, queue int, timeout time.Duration, logger zerolog.Logger) *Ledger {
	if workers <= 0 {
		workers = 2
	}
	if queue <= 0 {
		queue = 256
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	l := &Ledger{
		store:   store,
		timeout: timeout,
		log:     logger.With().Str("component", "ledger").Logger(),
		shards:  make([]chan job, workers),
		cache:   make(map[uuid.UUID]int64),
	}
	for i := range l.shards {
		l.shards[i] = make(chan job, queue)
		l.wg.Add(1)
		go l.worker(l.shards[i])
	}
	return l
}

// Award adds amount to a player's balance. Negative amounts are penalties
// and floor at zero.
func (l *Ledger) Award(player uuid.UUID, amount int64, reason string) <-chan domain.CreditResult {
	return l.submit(job{player: player, delta: amount, reason: reason})
}

// Deduct removes amount if the player can afford it
func (l *Ledger) Deduct(player uuid.UUID, amount int64, reason string) <-chan domain.CreditResult {
	return l.submit(job{player: player, delta: -amount, reason: reason, requireFunds: true})
}

// Preload warms the cache for a player
func (l *Ledger) Preload(player uuid.UUID) {
	l.submit(job{player: player, preload: true})
}

// BalanceOf returns the cached balance. It may lag in-flight changes.
func (l *Ledger) BalanceOf(player uuid.UUID) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cache[player]
}

// Refresh reads a balance from the store and caches it
func (l *Ledger) Refresh(ctx context.Context, player uuid.UUID) (int64, error) {
	bal, err := l.store.Balance(ctx, player)
	if err != nil {
		return 0, err
	}
	l.setCached(player, bal)
	return bal, nil
}

// Close stops accepting work and waits for queued jobs to finish
func (l *Ledger) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	for _, ch := range l.shards {
		close(ch)
	}
	l.mu.Unlock()
	l.wg.Wait()
}

func (l *Ledger) submit(j job) <-chan domain.CreditResult {
	j.result = make(chan domain.CreditResult, 1)

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		j.result <- domain.CreditResult{Err: ErrLedgerClosed}
		return j.result
	}
	select {
	case l.shards[l.shardFor(j.player)] <- j:
	default:
		l.log.Error().Str("player", j.player.String()).Str("reason", j.reason).Msg("Ledger queue full, dropping credit change")
		j.result <- domain.CreditResult{Err: ErrQueueFull}
	}
	return j.result
}

func (l *Ledger) shardFor(player uuid.UUID) int {
	h := fnv.New32a()
	h.Write(player[:])
	return int(h.Sum32() % uint32(len(l.shards)))
}

func (l *Ledger) worker(jobs <-chan job) {
	defer l.wg.Done()
	for j := range jobs {
		j.result <- l.apply(j)
	}
}

func (l *Ledger) apply(j job) domain.CreditResult {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	if j.preload {
		bal, err := l.Refresh(ctx, j.player)
		if err != nil {
			l.log.Warn().Err(err).Str("player", j.player.String()).Msg("Failed to load balance")
			return domain.CreditResult{Err: err}
		}
		return domain.CreditResult{OK: true, Balance: bal}
	}

	bal, ok, err := l.store.AdjustCredits(ctx, j.player, j.delta, j.reason, j.requireFunds)
	if err != nil {
		l.log.Error().Err(err).Str("player", j.player.String()).Int64("delta", j.delta).Str("reason", j.reason).Msg("Credit change failed")
		return domain.CreditResult{Err: err}
	}
	l.setCached(j.player, bal)
	if !ok {
		l.log.Debug().Str("player", j.player.String()).Int64("balance", bal).Int64("delta", j.delta).Msg("Insufficient credits")
	} else {
		l.log.Debug().Str("player", j.player.String()).Int64("delta", j.delta).Int64("balance", bal).Str("reason", j.reason).Msg("Credits changed")
	}
	return domain.CreditResult{OK: ok, Balance: bal}
}

func (l *Ledger) setCached(player uuid.UUID, bal int64) {
	l.mu.Lock()
	l.cache[player] = bal
	l.mu.Unlock()
}
