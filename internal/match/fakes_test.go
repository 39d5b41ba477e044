package match

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ernie/arena/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type fakeMatch struct {
	serverID string
	started  time.Time
	ended    time.Time
}

type fakePersistence struct {
	mu        sync.Mutex
	nextID    int64
	createErr error
	matches   map[int64]*fakeMatch
	parties   []domain.Party
	elims     []domain.Elimination
	kits      map[uuid.UUID]string
}

func newFakePersistence() *fakePersistence {
	return &fakePersistence{matches: make(map[int64]*fakeMatch), kits: make(map[uuid.UUID]string)}
}

func (p *fakePersistence) CreateMatch(ctx context.Context, serverID string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return 0, p.createErr
	}
	p.nextID++
	p.matches[p.nextID] = &fakeMatch{serverID: serverID}
	return p.nextID, nil
}

func (p *fakePersistence) MarkMatchStarted(ctx context.Context, id int64, at time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.matches[id]
	if !ok {
		return errors.New("no such match")
	}
	m.started = at
	return nil
}

func (p *fakePersistence) MarkMatchEnded(ctx context.Context, id int64, at time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.matches[id]
	if !ok {
		return errors.New("no such match")
	}
	m.ended = at
	return nil
}

func (p *fakePersistence) CreateParty(ctx context.Context, matchID int64, party domain.Party) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.parties = append(p.parties, party)
	return int64(len(p.parties)), nil
}

func (p *fakePersistence) RecordElimination(ctx context.Context, e domain.Elimination) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elims = append(p.elims, e)
	return nil
}

func (p *fakePersistence) RecordKitSelection(ctx context.Context, id uuid.UUID, kit string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kits[id] = kit
	return nil
}

func (p *fakePersistence) match(id int64) fakeMatch {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m, ok := p.matches[id]; ok {
		return *m
	}
	return fakeMatch{}
}

func (p *fakePersistence) eliminations() []domain.Elimination {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Elimination(nil), p.elims...)
}

type creditOp struct {
	player uuid.UUID
	amount int64
	reason string
}

type fakeLedger struct {
	mu       sync.Mutex
	balances map[uuid.UUID]int64
	awards   []creditOp
	deducts  []creditOp
	preload  []uuid.UUID
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{balances: make(map[uuid.UUID]int64)}
}

func (l *fakeLedger) Award(id uuid.UUID, amount int64, reason string) <-chan domain.CreditResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[id] += amount
	l.awards = append(l.awards, creditOp{id, amount, reason})
	ch := make(chan domain.CreditResult, 1)
	ch <- domain.CreditResult{OK: true, Balance: l.balances[id]}
	return ch
}

func (l *fakeLedger) Deduct(id uuid.UUID, amount int64, reason string) <-chan domain.CreditResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch := make(chan domain.CreditResult, 1)
	if l.balances[id] < amount {
		ch <- domain.CreditResult{OK: false, Balance: l.balances[id]}
		return ch
	}
	l.balances[id] -= amount
	l.deducts = append(l.deducts, creditOp{id, amount, reason})
	ch <- domain.CreditResult{OK: true, Balance: l.balances[id]}
	return ch
}

func (l *fakeLedger) BalanceOf(id uuid.UUID) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[id]
}

func (l *fakeLedger) Preload(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.preload = append(l.preload, id)
}

func (l *fakeLedger) set(id uuid.UUID, balance int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[id] = balance
}

func (l *fakeLedger) awardsFor(reason string) []creditOp {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []creditOp
	for _, a := range l.awards {
		if a.reason == reason {
			out = append(out, a)
		}
	}
	return out
}

type fakeWorld struct {
	mu         sync.Mutex
	spawnCalls int
	feastCalls int
	feastErr   error
	// gate, when set, holds feast builds until it is closed
	gate chan struct{}
}

func (w *fakeWorld) GenerateSpawnPlatform(ctx context.Context, center domain.Location) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.spawnCalls++
	return nil
}

func (w *fakeWorld) GenerateFeastPlatform(ctx context.Context, world string, center domain.Location, avoid float64) (domain.Location, error) {
	w.mu.Lock()
	gate := w.gate
	w.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.Location{}, ctx.Err()
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.feastCalls++
	if w.feastErr != nil {
		return domain.Location{}, w.feastErr
	}
	return domain.Location{World: world, X: center.X + avoid + 10, Y: center.Y, Z: center.Z}, nil
}

func (w *fakeWorld) failFeast(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.feastErr = err
}

func (w *fakeWorld) feasts() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.feastCalls
}

// waitSpawns waits for n spawn platform builds
func (w *fakeWorld) waitSpawns(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		w.mu.Lock()
		got := w.spawnCalls
		w.mu.Unlock()
		if got == n {
			return
		}
		if got > n || time.Now().After(deadline) {
			t.Fatalf("spawn platform calls = %d, want %d", got, n)
		}
		time.Sleep(time.Millisecond)
	}
}

type phaseChange struct {
	from, to domain.Phase
}

type fakePresenter struct {
	restricted map[uuid.UUID]bool
	spectators []uuid.UUID
	broadcasts []string
	tells      map[uuid.UUID][]string
	phases     []phaseChange
	pvp        bool
	kills      []domain.KillEvent
	winners    []domain.WinnerEvent
	radii      []float64
	tracking   int
}

func newFakePresenter() *fakePresenter {
	return &fakePresenter{restricted: make(map[uuid.UUID]bool), tells: make(map[uuid.UUID][]string)}
}

func (p *fakePresenter) SetRestricted(id uuid.UUID, r bool) { p.restricted[id] = r }
func (p *fakePresenter) SetSpectator(id uuid.UUID) { p.spectators = append(p.spectators, id) }
func (p *fakePresenter) Broadcast(msg string) { p.broadcasts = append(p.broadcasts, msg) }
func (p *fakePresenter) Tell(id uuid.UUID, msg string) { p.tells[id] = append(p.tells[id], msg) }
func (p *fakePresenter) UpdateTracking(domain.TrackingSnapshot) {
	p.tracking++
}
func (p *fakePresenter) BorderChanged(_ domain.Location, r float64) { p.radii = append(p.radii, r) }
func (p *fakePresenter) PhaseChanged(from, to domain.Phase, _ string) {
	p.phases = append(p.phases, phaseChange{from, to})
}
func (p *fakePresenter) SetPvp(enabled bool) { p.pvp = enabled }
func (p *fakePresenter) Eliminated(k domain.KillEvent) { p.kills = append(p.kills, k) }
func (p *fakePresenter) AnnounceWinner(w domain.WinnerEvent) { p.winners = append(p.winners, w) }

func (p *fakePresenter) spectatorCount(id uuid.UUID) int {
	n := 0
	for _, s := range p.spectators {
		if s == id {
			n++
		}
	}
	return n
}

type fakeEffects struct {
	levels     map[uuid.UUID]int
	cleared    []uuid.UUID
	eliminated []uuid.UUID
}

func newFakeEffects() *fakeEffects {
	return &fakeEffects{levels: make(map[uuid.UUID]int)}
}

func (e *fakeEffects) ApplyDamageOverTime(id uuid.UUID, level int) { e.levels[id] = level }
func (e *fakeEffects) ClearDamageOverTime(id uuid.UUID) {
	delete(e.levels, id)
	e.cleared = append(e.cleared, id)
}
func (e *fakeEffects) Eliminate(id uuid.UUID) { e.eliminated = append(e.eliminated, id) }

type fakeDispatcher struct {
	posts chan func()
}

func (d *fakeDispatcher) Post(fn func()) bool {
	d.posts <- fn
	return true
}

// runPosted runs the next closure handed to the dispatcher
func (d *fakeDispatcher) runPosted(t *testing.T) {
	t.Helper()
	select {
	case fn := <-d.posts:
		fn()
	case <-time.After(2 * time.Second):
		t.Fatal("nothing was posted to the tick goroutine")
	}
}

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testOptions() Options {
	return Options{
		ServerID:      "test",
		MinPlayers:    2,
		MaxPlayers:    8,
		MaxWait:       time.Minute,
		WaitExtension: 30 * time.Second,
		Countdown:     10 * time.Second,
		PvpDelay:      30 * time.Second,
		FeastDelay:    5 * time.Minute,
		MaxDuration:   20 * time.Minute,
		EndingDelay:   5 * time.Second,
		RestartDelay:  10 * time.Second,
		SetupTimeout:  time.Second,
		Center:        domain.Location{World: "world", Y: 64},
		BorderMargin:  5,
		PartySize:     1,
		Border: BorderConfig{
			InitialRadius: 100,
			MinRadius:     10,
			ShrinkPerStep: 10,
			Step:          time.Second,
		},
		Feast: FeastConfig{
			Enabled:          true,
			AvoidRadius:      20,
			ReminderInterval: 2 * time.Minute,
			BuildTimeout:     time.Second,
		},
		FinalFight: EscalatorConfig{Interval: time.Minute, MaxLevel: 3, Grace: 10 * time.Second},
		Credits: CreditAmounts{
			GameStarted:       3,
			SurvivedMinute:    1,
			Kill:              50,
			PartyMemberKill:   25,
			WonLarge:          500,
			WonSmall:          100,
			LargeMatchParties: 4,
			DisconnectPenalty: -30,
		},
	}
}

type harness struct {
	o        *Orchestrator
	opts     Options
	sched    *Scheduler
	persist  *fakePersistence
	ledger   *fakeLedger
	world    *fakeWorld
	present  *fakePresenter
	effects  *fakeEffects
	dispatch *fakeDispatcher
	journal  *Journal
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{
		opts:     opts,
		sched:    NewScheduler(testStart),
		persist:  newFakePersistence(),
		ledger:   newFakeLedger(),
		world:    &fakeWorld{},
		present:  newFakePresenter(),
		effects:  newFakeEffects(),
		dispatch: &fakeDispatcher{posts: make(chan func(), 16)},
		journal:  NewJournal(64, time.Second, zerolog.Nop()),
	}
	h.o = New(opts, Deps{
		Persistence: h.persist,
		Ledger:      h.ledger,
		World:       h.world,
		Presenter:   h.present,
		Effects:     h.effects,
		Dispatcher:  h.dispatch,
		Scheduler:   h.sched,
		Journal:     h.journal,
		Logger:      zerolog.Nop(),
		Seed:        1,
	})
	t.Cleanup(h.o.Close)
	return h
}

func (h *harness) advance(d time.Duration) {
	h.sched.Advance(h.sched.Now().Add(d))
}

func (h *harness) init(t *testing.T) {
	t.Helper()
	if err := h.o.InitializeMatch(context.Background()); err != nil {
		t.Fatalf("InitializeMatch: %v", err)
	}
}

func (h *harness) admit(t *testing.T, n int) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
		if err := h.o.OnPlayerAdmitted(ids[i]); err != nil {
			t.Fatalf("admit player %d: %v", i, err)
		}
	}
	return ids
}

// startActive opens a match with n players and runs it to ACTIVE
func (h *harness) startActive(t *testing.T, n int) []uuid.UUID {
	t.Helper()
	h.init(t)
	ids := h.admit(t, n)
	if err := h.o.ForceStartGame(); err != nil {
		t.Fatalf("ForceStartGame: %v", err)
	}
	h.advance(h.opts.Countdown)
	if got := h.o.CurrentPhase(); got != domain.PhaseActive {
		t.Fatalf("phase after countdown = %s, want active", got)
	}
	return ids
}

// feastBuilt runs the feast build result posted back to the tick goroutine
func (h *harness) feastBuilt(t *testing.T) {
	t.Helper()
	h.dispatch.runPosted(t)
}

func (h *harness) requirePhase(t *testing.T, want domain.Phase) {
	t.Helper()
	if got := h.o.CurrentPhase(); got != want {
		t.Fatalf("phase = %s, want %s", got, want)
	}
}
