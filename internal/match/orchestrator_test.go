package match

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ernie/arena/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func containsMessage(msgs []string, substr string) bool {
	for _, m := range msgs {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func TestInitializeMatch(t *testing.T) {
	h := newHarness(t, testOptions())
	h.init(t)

	if !h.o.IsMatchRunning() {
		t.Fatal("match should be running")
	}
	h.requirePhase(t, domain.PhaseWaiting)
	h.world.waitSpawns(t, 1)
	if got := h.o.Status().WaitRemaining; got != 60 {
		t.Fatalf("wait remaining = %d, want 60", got)
	}
	if err := h.o.InitializeMatch(context.Background()); !errors.Is(err, ErrMatchRunning) {
		t.Fatalf("second InitializeMatch: err = %v, want ErrMatchRunning", err)
	}
}

func TestInitializeMatchAbortsWhenRecordFails(t *testing.T) {
	h := newHarness(t, testOptions())
	h.persist.createErr = errors.New("database locked")

	err := h.o.InitializeMatch(context.Background())
	if !errors.Is(err, h.persist.createErr) {
		t.Fatalf("err = %v, want wrapped database error", err)
	}
	if h.o.IsMatchRunning() || h.o.Session() != nil {
		t.Fatal("no match should exist after a failed setup")
	}
	if h.sched.Pending() != 0 {
		t.Fatalf("pending tasks = %d", h.sched.Pending())
	}
}

func TestForceStartGameReachesActive(t *testing.T) {
	h := newHarness(t, testOptions())
	h.init(t)
	ids := h.admit(t, 3)

	if err := h.o.ForceStartGame(); err != nil {
		t.Fatalf("ForceStartGame: %v", err)
	}
	h.requirePhase(t, domain.PhaseStarting)
	for _, id := range ids {
		if !h.present.restricted[id] {
			t.Fatalf("%s not restricted during countdown", id)
		}
	}
	if !h.o.IsMatchRunning() || h.o.AliveCount() != 3 {
		t.Fatalf("running %v alive %d", h.o.IsMatchRunning(), h.o.AliveCount())
	}

	h.advance(h.opts.Countdown)
	h.requirePhase(t, domain.PhaseActive)
	for _, id := range ids {
		if h.present.restricted[id] {
			t.Fatalf("%s still restricted after countdown", id)
		}
	}
	if !h.o.IsMatchRunning() || h.o.AliveCount() != 3 {
		t.Fatalf("running %v alive %d", h.o.IsMatchRunning(), h.o.AliveCount())
	}
	if got := len(h.ledger.awardsFor("Joined a match")); got != 3 {
		t.Fatalf("start credits = %d, want 3", got)
	}

	h.journal.Flush()
	if !h.persist.match(1).started.Equal(testStart) {
		t.Fatalf("started at %v, want %v", h.persist.match(1).started, testStart)
	}
}

func TestKillAwardsKiller(t *testing.T) {
	h := newHarness(t, testOptions())
	ids := h.startActive(t, 3)
	a, b := ids[0], ids[1]

	h.o.HandlePlayerDeath(b, &a, "b was slain by a")

	if !h.o.tracker.IsDead(b) || h.o.tracker.IsAlive(b) {
		t.Fatal("b should be dead")
	}
	kills := h.ledger.awardsFor("Killed a player")
	if len(kills) != 1 || kills[0].player != a || kills[0].amount != 50 {
		t.Fatalf("kill awards = %+v", kills)
	}
	if got := h.ledger.awardsFor("Party member killed a player"); len(got) != 0 {
		t.Fatalf("solo party got assist awards: %+v", got)
	}
	if h.o.AliveCount() != 2 {
		t.Fatalf("alive = %d, want 2", h.o.AliveCount())
	}
	if h.present.spectatorCount(b) != 1 {
		t.Fatal("b should be a spectator")
	}
	if len(h.present.kills) != 1 || h.present.kills[0].Alive != 2 || h.present.kills[0].Reason != domain.DeathPlayer {
		t.Fatalf("kill events = %+v", h.present.kills)
	}
	h.requirePhase(t, domain.PhaseActive)
}

func TestDeathIsIdempotent(t *testing.T) {
	h := newHarness(t, testOptions())
	ids := h.startActive(t, 3)
	a, b, c := ids[0], ids[1], ids[2]

	h.o.HandlePlayerDeath(b, &a, "first")
	h.o.HandlePlayerDeath(b, &c, "second")
	h.o.HandlePlayerDeath(b, nil, "third")
	h.o.OnPlayerDisconnected(b)

	if got := len(h.ledger.awardsFor("Killed a player")); got != 1 {
		t.Fatalf("kill awards = %d, want 1", got)
	}
	if h.present.spectatorCount(b) != 1 {
		t.Fatalf("spectator transitions = %d, want 1", h.present.spectatorCount(b))
	}
	h.journal.Flush()
	if got := len(h.persist.eliminations()); got != 1 {
		t.Fatalf("eliminations = %d, want 1", got)
	}
}

func TestLastPlayerStandingWins(t *testing.T) {
	tests := []struct {
		name    string
		players int
		bonus   int64
	}{
		{"small match", 2, 100},
		{"large match", 4, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testOptions())
			ids := h.startActive(t, tt.players)
			winner := ids[0]

			for _, id := range ids[1:] {
				h.o.HandlePlayerDeath(id, &winner, "slain")
			}
			h.requirePhase(t, domain.PhaseEnding)

			won := h.ledger.awardsFor("Won the match")
			if len(won) != 1 || won[0].player != winner || won[0].amount != tt.bonus {
				t.Fatalf("win awards = %+v, want %d to winner", won, tt.bonus)
			}
			if len(h.present.winners) != 1 || h.present.winners[0].Player != winner {
				t.Fatalf("winners = %+v", h.present.winners)
			}

			h.advance(h.opts.EndingDelay)
			h.requirePhase(t, domain.PhaseFinished)
			if h.o.IsMatchRunning() {
				t.Fatal("finished match still running")
			}

			h.journal.Flush()
			if h.persist.match(1).ended.IsZero() {
				t.Fatal("match end not recorded")
			}
			elims := h.persist.eliminations()
			if len(elims) != tt.players {
				t.Fatalf("eliminations = %d, want %d", len(elims), tt.players)
			}
			if last := elims[len(elims)-1]; last.Player != winner || last.Reason != domain.DeathWinner {
				t.Fatalf("last journal entry = %+v", last)
			}
		})
	}
}

func TestCancelMatchInWaiting(t *testing.T) {
	h := newHarness(t, testOptions())
	h.init(t)
	h.admit(t, 2)

	if err := h.o.CancelMatch("not enough players"); err != nil {
		t.Fatalf("CancelMatch: %v", err)
	}
	if h.o.IsMatchRunning() {
		t.Fatal("match still running after cancel")
	}
	if len(h.o.AliveIDs()) != 0 || len(h.o.DeadIDs()) != 0 {
		t.Fatal("player sets not cleared")
	}
	if h.sched.Pending() != 0 {
		t.Fatalf("pending tasks = %d", h.sched.Pending())
	}

	h.init(t)
	if s := h.o.Session(); s == nil || s.ID != 2 {
		t.Fatalf("session after restart = %+v", s)
	}
	h.journal.Flush()
	if h.persist.match(1).ended.IsZero() {
		t.Fatal("cancelled match end not recorded")
	}
}

func TestCancelMatchDuringCountdown(t *testing.T) {
	h := newHarness(t, testOptions())
	h.init(t)
	ids := h.admit(t, 2)
	h.o.ForceStartGame()

	if err := h.o.CancelMatch("operator abort"); err != nil {
		t.Fatalf("CancelMatch: %v", err)
	}
	for _, id := range ids {
		if h.present.restricted[id] {
			t.Fatal("cancel should release restrictions")
		}
	}
	h.advance(time.Minute)
	h.requirePhase(t, domain.PhaseWaiting)
	if h.o.IsMatchRunning() {
		t.Fatal("countdown survived cancel")
	}
}

func TestCancelMatchRefused(t *testing.T) {
	h := newHarness(t, testOptions())
	if err := h.o.CancelMatch("x"); !errors.Is(err, ErrNoMatch) {
		t.Fatalf("err = %v, want ErrNoMatch", err)
	}

	h.startActive(t, 2)
	if err := h.o.CancelMatch("x"); !errors.Is(err, ErrNotCancellable) {
		t.Fatalf("err = %v, want ErrNotCancellable", err)
	}
	h.requirePhase(t, domain.PhaseActive)
}

func TestWaitingStartsWhenLobbyFull(t *testing.T) {
	opts := testOptions()
	opts.MaxPlayers = 3
	h := newHarness(t, opts)
	h.init(t)
	h.admit(t, 3)

	h.advance(time.Second)
	h.requirePhase(t, domain.PhaseStarting)
}

func TestWaitingStartsWhenEveryoneHasKit(t *testing.T) {
	h := newHarness(t, testOptions())
	h.init(t)
	ids := h.admit(t, 2)
	for _, id := range ids {
		if err := h.o.SelectKit(id, "archer"); err != nil {
			t.Fatalf("SelectKit: %v", err)
		}
	}

	h.advance(time.Second)
	h.requirePhase(t, domain.PhaseStarting)
	h.journal.Flush()
	if len(h.persist.kits) != 2 {
		t.Fatalf("recorded kits = %d", len(h.persist.kits))
	}
}

func TestWaitingNeedsMinimumPlayers(t *testing.T) {
	h := newHarness(t, testOptions())
	h.init(t)
	ids := h.admit(t, 1)
	h.o.SelectKit(ids[0], "archer")

	h.advance(time.Minute)
	h.requirePhase(t, domain.PhaseWaiting)
	if got := h.o.Status().WaitRemaining; got != 30 {
		t.Fatalf("wait remaining after extension = %d, want 30", got)
	}
	if !containsMessage(h.present.broadcasts, "Not enough players") {
		t.Fatalf("broadcasts = %v", h.present.broadcasts)
	}

	h.admit(t, 1)
	h.advance(29 * time.Second)
	h.requirePhase(t, domain.PhaseWaiting)
	h.advance(time.Second)
	h.requirePhase(t, domain.PhaseStarting)
}

func TestAdmission(t *testing.T) {
	h := newHarness(t, testOptions())
	if err := h.o.OnPlayerAdmitted(uuid.New()); !errors.Is(err, ErrNoMatch) {
		t.Fatalf("err = %v, want ErrNoMatch", err)
	}

	h.init(t)
	ids := h.admit(t, 2)
	if err := h.o.OnPlayerAdmitted(ids[0]); err != nil {
		t.Fatalf("re-admit: %v", err)
	}
	if h.o.AliveCount() != 2 || len(h.ledger.preload) != 2 {
		t.Fatalf("alive %d preloaded %d", h.o.AliveCount(), len(h.ledger.preload))
	}

	h.o.ForceStartGame()
	late := uuid.New()
	if err := h.o.OnPlayerAdmitted(late); !errors.Is(err, ErrJoinClosed) {
		t.Fatalf("err = %v, want ErrJoinClosed", err)
	}
	h.o.HandleHostEvent(domain.HostEvent{Type: domain.HostJoin, Player: late})
	if h.present.spectatorCount(late) != 1 {
		t.Fatal("late joiner should spectate")
	}
}

func TestTeamModeAssistCredits(t *testing.T) {
	opts := testOptions()
	opts.PartySize = 2
	h := newHarness(t, opts)
	ids := h.startActive(t, 4)

	if got := h.o.tracker.PartyCount(); got != 2 {
		t.Fatalf("parties = %d, want 2", got)
	}
	h.o.HandlePlayerDeath(ids[2], &ids[0], "slain")

	assists := h.ledger.awardsFor("Party member killed a player")
	if len(assists) != 1 || assists[0].player != ids[1] || assists[0].amount != 25 {
		t.Fatalf("assist awards = %+v", assists)
	}
	h.journal.Flush()
	if len(h.persist.parties) != 2 {
		t.Fatalf("persisted parties = %d", len(h.persist.parties))
	}
}

func TestDisconnect(t *testing.T) {
	h := newHarness(t, testOptions())
	h.init(t)
	ids := h.admit(t, 2)
	h.o.OnPlayerDisconnected(ids[0])
	if h.o.AliveCount() != 1 || h.o.tracker.IsDead(ids[0]) {
		t.Fatal("waiting disconnect should withdraw, not kill")
	}
	h.o.CancelMatch("reset")

	ids = h.startActive(t, 3)
	h.o.OnPlayerDisconnected(ids[0])
	if !h.o.tracker.IsDead(ids[0]) {
		t.Fatal("disconnect during play should eliminate")
	}
	penalty := h.ledger.awardsFor("Left a running match")
	if len(penalty) != 1 || penalty[0].amount != -30 {
		t.Fatalf("penalty = %+v", penalty)
	}
	if k := h.present.kills[len(h.present.kills)-1]; k.Reason != domain.DeathDisconnected || k.Message != "Disconnected" {
		t.Fatalf("kill event = %+v", k)
	}
	h.requirePhase(t, domain.PhaseActive)
}

func TestMatchRunsToFinalFight(t *testing.T) {
	h := newHarness(t, testOptions())
	ids := h.startActive(t, 3)

	h.advance(h.opts.PvpDelay)
	if !h.present.pvp {
		t.Fatal("pvp should be enabled after the delay")
	}

	h.advance(h.opts.FeastDelay)
	h.requirePhase(t, domain.PhaseActive)
	h.feastBuilt(t)
	h.requirePhase(t, domain.PhaseFeast)
	st := h.o.Status()
	if h.world.feasts() != 1 || st.FeastLocation == nil || !st.BorderShrinking {
		t.Fatalf("feast calls %d location %v shrinking %v", h.world.feasts(), st.FeastLocation, st.BorderShrinking)
	}
	if !containsMessage(h.present.broadcasts, "The feast begins in") {
		t.Fatal("no feast reminders were sent")
	}

	h.advance(9 * time.Second)
	if r := h.o.Status().BorderRadius; r != 10 {
		t.Fatalf("radius = %v, want 10", r)
	}

	// Survival loop notices the border at its minimum on the next minute
	h.advance(21 * time.Second)
	h.requirePhase(t, domain.PhaseFinalFight)
	if got := len(h.ledger.awardsFor("Survived one minute")); got != 18 {
		t.Fatalf("survival awards = %d, want 18", got)
	}

	// Level 3 cap is reached after three minutes; the next tick is past grace
	h.advance(3 * time.Minute)
	if h.o.Status().EscalationLevel != 3 || h.effects.levels[ids[0]] != 3 {
		t.Fatalf("escalation level = %d", h.o.Status().EscalationLevel)
	}
	h.advance(time.Minute)
	if len(h.effects.eliminated) != 3 {
		t.Fatalf("eliminated = %d, want 3", len(h.effects.eliminated))
	}
	h.requirePhase(t, domain.PhaseEnding)
	if len(h.present.winners) != 0 || !containsMessage(h.present.broadcasts, "without a winner") {
		t.Fatal("nobody should win when everyone succumbs")
	}

	h.advance(h.opts.EndingDelay)
	h.requirePhase(t, domain.PhaseFinished)
	if h.sched.Pending() != 0 {
		t.Fatalf("pending tasks after finish = %d", h.sched.Pending())
	}
}

func TestFeastDisabledShrinksBorder(t *testing.T) {
	opts := testOptions()
	opts.Feast.Enabled = false
	h := newHarness(t, opts)
	h.startActive(t, 2)

	h.advance(opts.PvpDelay + opts.FeastDelay)
	h.requirePhase(t, domain.PhaseBorderShrinking)
	if h.world.feasts() != 0 || !h.o.Status().BorderShrinking {
		t.Fatal("border should shrink without a feast")
	}
}

func TestSafetyTimerStartsFinalFight(t *testing.T) {
	opts := testOptions()
	opts.MaxDuration = 2 * time.Minute
	opts.Border.InitialRadius = 1000
	opts.Border.ShrinkPerStep = 1
	h := newHarness(t, opts)
	h.startActive(t, 2)

	h.advance(opts.PvpDelay + opts.FeastDelay)
	h.feastBuilt(t)
	h.requirePhase(t, domain.PhaseFeast)
	h.advance(opts.MaxDuration - time.Second)
	h.requirePhase(t, domain.PhaseFeast)
	h.advance(time.Second)
	h.requirePhase(t, domain.PhaseFinalFight)
	if !h.o.escalator.Active() {
		t.Fatal("escalator should be active")
	}
}

func TestShutdownFinishesMatch(t *testing.T) {
	h := newHarness(t, testOptions())
	h.startActive(t, 2)

	h.o.Shutdown("host stopping")
	h.requirePhase(t, domain.PhaseFinished)
	if h.o.IsMatchRunning() || h.sched.Pending() != 0 {
		t.Fatalf("running %v pending %d", h.o.IsMatchRunning(), h.sched.Pending())
	}
	last := h.present.phases[len(h.present.phases)-1]
	if last.from != domain.PhaseActive || last.to != domain.PhaseFinished {
		t.Fatalf("last phase change = %+v", last)
	}
}

func TestAutoRestart(t *testing.T) {
	opts := testOptions()
	opts.AutoRestart = true
	h := newHarness(t, opts)
	ids := h.startActive(t, 2)

	h.o.HandlePlayerDeath(ids[1], &ids[0], "slain")
	h.advance(opts.EndingDelay)
	h.requirePhase(t, domain.PhaseFinished)

	h.advance(opts.RestartDelay)
	h.requirePhase(t, domain.PhaseWaiting)
	if s := h.o.Session(); !h.o.IsMatchRunning() || s == nil || s.ID != 2 {
		t.Fatalf("restart session = %+v", s)
	}
	if h.o.AliveCount() != 0 {
		t.Fatal("restart kept old players")
	}
}

func TestKitPurchase(t *testing.T) {
	opts := testOptions()
	opts.Kits = map[string]int64{"archer": 20, "knight": 0}
	h := newHarness(t, opts)
	h.init(t)
	ids := h.admit(t, 2)

	if err := h.o.SelectKit(ids[0], "wizard"); !errors.Is(err, ErrUnknownKit) {
		t.Fatalf("unknown kit: err = %v", err)
	}
	if err := h.o.SelectKit(uuid.New(), "knight"); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("stranger: err = %v", err)
	}
	if err := h.o.SelectKit(ids[1], "archer"); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("broke player: err = %v", err)
	}

	if err := h.o.SelectKit(ids[1], "knight"); err != nil {
		t.Fatalf("free kit: %v", err)
	}
	if k, _ := h.o.tracker.Kit(ids[1]); k != "knight" {
		t.Fatalf("free kit not applied immediately: %q", k)
	}

	h.ledger.set(ids[0], 100)
	if err := h.o.SelectKit(ids[0], "archer"); err != nil {
		t.Fatalf("paid kit: %v", err)
	}
	if _, ok := h.o.tracker.Kit(ids[0]); ok {
		t.Fatal("paid kit applied before the charge returned")
	}
	h.dispatch.runPosted(t)
	if k, _ := h.o.tracker.Kit(ids[0]); k != "archer" {
		t.Fatalf("kit = %q, want archer", k)
	}
	if bal := h.ledger.BalanceOf(ids[0]); bal != 80 {
		t.Fatalf("balance = %d, want 80", bal)
	}

	h.o.ForceStartGame()
	if err := h.o.SelectKit(ids[0], "knight"); !errors.Is(err, ErrLoadoutClosed) {
		t.Fatalf("after start: err = %v", err)
	}
}

func TestKitPurchaseInFlightBlocksSelection(t *testing.T) {
	opts := testOptions()
	opts.Kits = map[string]int64{"archer": 20, "wizard": 30, "knight": 0}
	h := newHarness(t, opts)
	h.init(t)
	ids := h.admit(t, 2)
	h.ledger.set(ids[0], 100)

	if err := h.o.SelectKit(ids[0], "archer"); err != nil {
		t.Fatalf("archer: %v", err)
	}
	for _, kit := range []string{"wizard", "archer", "knight"} {
		if err := h.o.SelectKit(ids[0], kit); !errors.Is(err, ErrPurchasePending) {
			t.Fatalf("%s while charging: err = %v, want ErrPurchasePending", kit, err)
		}
	}
	h.dispatch.runPosted(t)

	if k, _ := h.o.tracker.Kit(ids[0]); k != "archer" {
		t.Fatalf("kit = %q, want archer", k)
	}
	if bal := h.ledger.BalanceOf(ids[0]); bal != 80 {
		t.Fatalf("balance = %d, want 80 after one charge", bal)
	}

	// Once the charge lands the player may switch again
	if err := h.o.SelectKit(ids[0], "wizard"); err != nil {
		t.Fatalf("wizard after charge: %v", err)
	}
	h.dispatch.runPosted(t)
	if k, _ := h.o.tracker.Kit(ids[0]); k != "wizard" {
		t.Fatalf("kit = %q, want wizard", k)
	}
	if bal := h.ledger.BalanceOf(ids[0]); bal != 50 {
		t.Fatalf("balance = %d, want 50", bal)
	}
}

func TestDeathDuringFinalFightClearsEffects(t *testing.T) {
	h := newHarness(t, testOptions())
	ids := h.startActive(t, 3)

	if err := h.o.ForceStartFinalFight(); err != nil {
		t.Fatalf("ForceStartFinalFight: %v", err)
	}
	h.advance(h.opts.FinalFight.Interval)
	if h.effects.levels[ids[0]] != 1 {
		t.Fatalf("level = %d, want 1", h.effects.levels[ids[0]])
	}

	h.o.HandlePlayerDeath(ids[0], &ids[1], "slain")
	if _, ok := h.effects.levels[ids[0]]; ok {
		t.Fatal("dead player kept damage over time")
	}
	if h.effects.levels[ids[1]] != 1 || !h.o.escalator.Active() {
		t.Fatal("alive players should keep escalating")
	}
}

func TestKitPurchaseRefundedWhenSelectionCloses(t *testing.T) {
	opts := testOptions()
	opts.Kits = map[string]int64{"archer": 20}
	h := newHarness(t, opts)
	h.init(t)
	ids := h.admit(t, 2)
	h.ledger.set(ids[0], 50)

	if err := h.o.SelectKit(ids[0], "archer"); err != nil {
		t.Fatalf("SelectKit: %v", err)
	}
	h.o.ForceStartGame()
	h.dispatch.runPosted(t)

	refunds := h.ledger.awardsFor("Refund for kit archer")
	if len(refunds) != 1 || refunds[0].amount != 20 {
		t.Fatalf("refunds = %+v", refunds)
	}
	if _, ok := h.o.tracker.Kit(ids[0]); ok {
		t.Fatal("kit applied after selection closed")
	}
}

func TestHostEventsDriveMatch(t *testing.T) {
	h := newHarness(t, testOptions())
	h.init(t)
	a, b := uuid.New(), uuid.New()
	h.o.HandleHostEvent(domain.HostEvent{Type: domain.HostJoin, Player: a})
	h.o.HandleHostEvent(domain.HostEvent{Type: domain.HostJoin, Player: b})
	h.o.HandleHostEvent(domain.HostEvent{Type: domain.HostKit, Player: a, Kit: "archer"})
	if h.o.AliveCount() != 2 {
		t.Fatalf("alive = %d", h.o.AliveCount())
	}

	h.o.ForceStartGame()
	h.advance(h.opts.Countdown)
	h.o.HandleHostEvent(domain.HostEvent{Type: domain.HostDeath, Player: b, Killer: &a, Message: "b fell"})
	h.requirePhase(t, domain.PhaseEnding)
	if len(h.present.winners) != 1 || h.present.winners[0].Player != a {
		t.Fatalf("winners = %+v", h.present.winners)
	}

	h.o.HandleHostEvent(domain.HostEvent{Type: domain.HostShutdown})
	h.requirePhase(t, domain.PhaseFinished)
}

func TestNewAppliesDefaults(t *testing.T) {
	opts := testOptions()
	opts.SetupTimeout = 0
	opts.PartySize = 0
	o := New(opts, Deps{
		Persistence: newFakePersistence(),
		Ledger:      newFakeLedger(),
		World:       &fakeWorld{},
		Presenter:   newFakePresenter(),
		Effects:     newFakeEffects(),
		Dispatcher:  &fakeDispatcher{posts: make(chan func(), 1)},
		Logger:      zerolog.Nop(),
	})
	defer o.Close()

	if o.opts.SetupTimeout != 5*time.Second {
		t.Fatalf("setup timeout = %v, want 5s", o.opts.SetupTimeout)
	}
	if o.opts.PartySize != 1 {
		t.Fatalf("party size = %d, want 1", o.opts.PartySize)
	}
	if o.journal == nil || o.sched == nil {
		t.Fatal("journal and scheduler should be created when not supplied")
	}
}
