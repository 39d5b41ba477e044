package match

import (
	"context"
	"fmt"
	"time"

	"github.com/ernie/arena/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Deps are the collaborators an Orchestrator drives
type Deps struct {
	Persistence Persistence
	Ledger      Ledger
	World       WorldBuilder
	Presenter   Presenter
	Effects     Effects
	Dispatcher  Dispatcher
	Scheduler   *Scheduler
	Journal     *Journal
	Logger      zerolog.Logger
	Seed        int64
}

// Orchestrator coordinates one match at a time. Every method must be
// called on the tick goroutine.
type Orchestrator struct {
	opts      Options
	persist   Persistence
	ledger    Ledger
	world     WorldBuilder
	presenter Presenter
	effects   Effects
	dispatch  Dispatcher
	sched     *Scheduler
	journal   *Journal
	log       zerolog.Logger

	machine   *PhaseMachine
	tracker   *Tracker
	border    *Border
	feast     *Feast
	escalator *Escalator
	namer     *partyNamer

	session    *domain.MatchSession
	pvpEnabled bool
	purchases  map[uuid.UUID]uint64
	purchaseN  uint64
	waitLeft   time.Duration
	countLeft  int

	waitTask      *Task
	countdownTask *Task
	pvpTask       *Task
	feastTask     *Task
	borderTask    *Task
	survivalTask  *Task
	safetyTask    *Task
	finishTask    *Task
	restartTask   *Task
}

// New builds an orchestrator and its controllers. Phase notifications are
// wired only after every component exists.
func New(opts Options, deps Deps) *Orchestrator {
	if deps.Scheduler == nil {
		deps.Scheduler = NewScheduler(time.Now())
	}
	if opts.SetupTimeout <= 0 {
		opts.SetupTimeout = 5 * time.Second
	}
	if deps.Journal == nil {
		deps.Journal = NewJournal(0, opts.SetupTimeout, deps.Logger)
	}
	if opts.PartySize < 1 {
		opts.PartySize = 1
	}

	o := &Orchestrator{
		opts:      opts,
		persist:   deps.Persistence,
		ledger:    deps.Ledger,
		world:     deps.World,
		presenter: deps.Presenter,
		effects:   deps.Effects,
		dispatch:  deps.Dispatcher,
		sched:     deps.Scheduler,
		journal:   deps.Journal,
		log:       deps.Logger.With().Str("component", "orchestrator").Str("server", opts.ServerID).Logger(),
		namer:     newPartyNamer(deps.Seed),
		purchases: make(map[uuid.UUID]uint64),
	}

	o.machine = NewPhaseMachine(deps.Logger)
	o.tracker = NewTracker(func() domain.Party {
		return o.namer.party(o.matchID(), o.sched.Now())
	})
	o.border = NewBorder(opts.Border, o.sched, deps.Presenter.BorderChanged, deps.Logger)
	o.feast = NewFeast(opts.Feast, o.sched, deps.World, deps.Presenter, deps.Dispatcher, deps.Logger)
	o.escalator = NewEscalator(opts.FinalFight, o.sched, o.tracker, deps.Effects, o.eliminateAll, deps.Logger)

	o.machine.Subscribe(o.onPhaseChange)
	return o
}

// --- Lifecycle ---

// InitializeMatch creates the backing record and opens the waiting phase.
// A record failure aborts setup and leaves no match behind.
func (o *Orchestrator) InitializeMatch(ctx context.Context) error {
	if o.IsMatchRunning() {
		return ErrMatchRunning
	}

	setupCtx, cancel := context.WithTimeout(ctx, o.opts.SetupTimeout)
	defer cancel()

	id, err := o.persist.CreateMatch(setupCtx, o.opts.ServerID)
	if err != nil {
		o.log.Error().Err(err).Msg("Failed to create match record, aborting setup")
		return fmt.Errorf("creating match record: %w", err)
	}

	o.cancelAllScheduled()
	o.resetControllers()
	o.machine.Reset()
	o.session = &domain.MatchSession{
		ID:        id,
		ServerID:  o.opts.ServerID,
		CreatedAt: o.sched.Now(),
	}

	o.buildSpawnPlatform(context.WithoutCancel(ctx))
	o.border.Initialize(o.opts.Center)

	o.waitLeft = o.opts.MaxWait
	o.waitTask = o.sched.Every("waiting", time.Second, o.waitingTick)

	o.log.Info().Int64("match", id).Msg("Match initialized, waiting for players")
	o.presenter.Broadcast(fmt.Sprintf("A new match is open. %d players needed to start.", o.opts.MinPlayers))
	return nil
}

// buildSpawnPlatform paints the lobby platform on its own goroutine. Nothing
// on the tick goroutine waits for it; a failure is only logged.
func (o *Orchestrator) buildSpawnPlatform(ctx context.Context) {
	world, center, timeout, log := o.world, o.opts.Center, o.opts.SetupTimeout, o.log
	go func() {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := world.GenerateSpawnPlatform(ctx, center); err != nil {
			log.Warn().Err(err).Msg("Failed to generate spawn platform")
		}
	}()
}

// CancelMatch abandons a match that has not started fighting yet
func (o *Orchestrator) CancelMatch(reason string) error {
	if !o.IsMatchRunning() {
		return ErrNoMatch
	}
	phase := o.machine.Current()
	if phase != domain.PhaseWaiting && phase != domain.PhaseStarting {
		return fmt.Errorf("cancelling in %s: %w", phase.DisplayName(), ErrNotCancellable)
	}

	o.cancelAllScheduled()
	if phase == domain.PhaseStarting {
		for _, id := range o.tracker.AliveIDs() {
			o.presenter.SetRestricted(id, false)
		}
	}
	o.markEnded()
	o.resetControllers()
	o.session = nil
	o.machine.Reset()

	o.log.Warn().Str("reason", reason).Msg("Match cancelled")
	o.presenter.Broadcast("The match was cancelled: " + reason)
	return nil
}

// Shutdown ends any match immediately, bypassing the transition table
func (o *Orchestrator) Shutdown(reason string) {
	if o.IsMatchRunning() {
		o.machine.ForceTransition(domain.PhaseFinished, reason)
	}
	o.cancelAllScheduled()
}

// Close stops the persistence journal after pending writes complete
func (o *Orchestrator) Close() {
	o.journal.Close()
}

// Tick advances the scheduler clock; the tick loop calls this
func (o *Orchestrator) Tick(now time.Time) {
	o.sched.Advance(now)
}

// --- Queries ---

// CurrentPhase returns the current phase
func (o *Orchestrator) CurrentPhase() domain.Phase {
	return o.machine.Current()
}

// IsMatchRunning reports whether a non-terminal match exists
func (o *Orchestrator) IsMatchRunning() bool {
	return o.session != nil && !o.machine.Current().IsTerminal()
}

// AliveIDs returns the alive players
func (o *Orchestrator) AliveIDs() []uuid.UUID {
	return o.tracker.AliveIDs()
}

// DeadIDs returns the eliminated players
func (o *Orchestrator) DeadIDs() []uuid.UUID {
	return o.tracker.DeadIDs()
}

// AliveCount returns the number of alive players
func (o *Orchestrator) AliveCount() int {
	return o.tracker.AliveCount()
}

// Session returns a copy of the current match record
func (o *Orchestrator) Session() *domain.MatchSession {
	if o.session == nil {
		return nil
	}
	s := *o.session
	return &s
}

// Status returns a snapshot of the match
func (o *Orchestrator) Status() domain.MatchStatus {
	st := domain.MatchStatus{
		Running:         o.IsMatchRunning(),
		Phase:           o.machine.Current(),
		Session:         o.Session(),
		Alive:           o.tracker.AliveIDs(),
		Dead:            o.tracker.DeadIDs(),
		Parties:         o.tracker.Parties(),
		PvpEnabled:      o.pvpEnabled,
		FeastSpawned:    o.feast.Spawned(),
		FeastLocation:   o.feast.Location(),
		BorderRadius:    o.border.Radius(),
		BorderShrinking: o.border.Shrinking(),
		EscalationLevel: o.escalator.Level(),
	}
	if st.Running && st.Phase == domain.PhaseWaiting {
		st.WaitRemaining = int(o.waitLeft / time.Second)
	}
	return st
}

// --- Player events ---

// OnPlayerAdmitted adds a player to the waiting match
func (o *Orchestrator) OnPlayerAdmitted(id uuid.UUID) error {
	if !o.IsMatchRunning() {
		return ErrNoMatch
	}
	if !o.machine.Current().AcceptsNewPlayers() {
		return ErrJoinClosed
	}
	if o.tracker.IsAlive(id) {
		return nil
	}

	party, err := o.tracker.Admit(id, o.partyFor())
	if err != nil {
		return err
	}
	if o.tracker.PartySize(party.ID) == 1 {
		matchID := o.session.ID
		o.journal.Submit("create party", func(ctx context.Context) error {
			_, err := o.persist.CreateParty(ctx, matchID, party)
			return err
		})
	}
	o.ledger.Preload(id)

	count := o.tracker.AliveCount()
	o.log.Info().Str("player", id.String()).Str("party", party.Name).Int("players", count).Msg("Player admitted")
	o.presenter.Tell(id, fmt.Sprintf("You joined %s.", party.Name))
	o.presenter.Broadcast(fmt.Sprintf("%d/%d players ready.", count, o.opts.MaxPlayers))
	return nil
}

// partyFor returns the party a new player should join, or nil for a
// fresh one
func (o *Orchestrator) partyFor() *domain.Party {
	if o.opts.PartySize <= 1 {
		return nil
	}
	latest, ok := o.tracker.LatestParty()
	if !ok || o.tracker.PartySize(latest.ID) >= o.opts.PartySize {
		return nil
	}
	return &latest
}

// OnPlayerDisconnected withdraws a waiting player, or eliminates a player
// who leaves a running match
func (o *Orchestrator) OnPlayerDisconnected(id uuid.UUID) {
	if !o.IsMatchRunning() {
		return
	}
	phase := o.machine.Current()
	if phase == domain.PhaseWaiting {
		if o.tracker.Withdraw(id) {
			o.log.Info().Str("player", id.String()).Msg("Player left before the match started")
		}
		return
	}
	if phase == domain.PhaseEnding || !o.tracker.IsAlive(id) {
		return
	}

	o.handleDeath(id, nil, "Disconnected", domain.DeathDisconnected)
	if o.opts.Credits.DisconnectPenalty != 0 {
		o.ledger.Award(id, o.opts.Credits.DisconnectPenalty, "Left a running match")
	}
}

// HandlePlayerDeath eliminates victim. A second report for the same victim
// is ignored.
func (o *Orchestrator) HandlePlayerDeath(victim uuid.UUID, killer *uuid.UUID, message string) {
	reason := domain.DeathEnvironment
	if killer != nil {
		reason = domain.DeathPlayer
	}
	o.handleDeath(victim, killer, message, reason)
}

func (o *Orchestrator) handleDeath(victim uuid.UUID, killer *uuid.UUID, message string, reason domain.DeathReason) {
	defer o.recoverFor(victim, "death")

	if !o.processDeath(victim, killer, message, reason) {
		return
	}
	o.checkWinCondition("player eliminated")
}

// processDeath records one elimination without evaluating the win
// condition. It returns false when victim was not alive.
func (o *Orchestrator) processDeath(victim uuid.UUID, killer *uuid.UUID, message string, reason domain.DeathReason) bool {
	if !o.tracker.RecordDeath(victim) {
		return false
	}

	if killer != nil && *killer != victim && o.tracker.IsAlive(*killer) {
		o.ledger.Award(*killer, o.opts.Credits.Kill, "Killed a player")
		for _, mate := range o.tracker.PartyMates(*killer) {
			o.ledger.Award(mate, o.opts.Credits.PartyMemberKill, "Party member killed a player")
		}
	}

	o.presenter.SetSpectator(victim)
	if o.escalator.Active() {
		o.effects.ClearDamageOverTime(victim)
	}

	party, _ := o.tracker.PartyOf(victim)
	o.journalElimination(domain.Elimination{
		Player:  victim,
		Party:   party.ID,
		Killer:  killer,
		Reason:  reason,
		Message: message,
		At:      o.sched.Now(),
	})

	alive := o.tracker.AliveCount()
	o.presenter.Eliminated(domain.KillEvent{
		Victim:  victim,
		Killer:  killer,
		Reason:  reason,
		Message: message,
		Alive:   alive,
	})
	o.log.Info().Str("player", victim.String()).Str("reason", string(reason)).Int("alive", alive).Msg("Player eliminated")
	return true
}

// eliminateAll is the final-fight safety valve: every id dies, then the
// win condition is evaluated once
func (o *Orchestrator) eliminateAll(ids []uuid.UUID) {
	for _, id := range ids {
		if o.processDeath(id, nil, "Succumbed to the final fight", domain.DeathFinalFight) {
			o.effects.Eliminate(id)
		}
	}
	o.checkWinCondition("final fight grace window expired")
}

func (o *Orchestrator) checkWinCondition(reason string) {
	if o.tracker.AliveCount() > 1 {
		return
	}
	phase := o.machine.Current()
	if phase == domain.PhaseEnding || phase.IsTerminal() {
		return
	}
	o.machine.AttemptTransition(domain.PhaseEnding, reason)
}

// SelectKit records a kit choice. Paid kits are charged through the ledger
// and applied once the charge returns to the tick goroutine.
func (o *Orchestrator) SelectKit(id uuid.UUID, kit string) error {
	if !o.IsMatchRunning() {
		return ErrNoMatch
	}
	if !o.machine.Current().AllowsLoadoutSelection() {
		return ErrLoadoutClosed
	}
	if !o.tracker.IsAlive(id) {
		return ErrNotParticipant
	}
	if _, pending := o.purchases[id]; pending {
		return ErrPurchasePending
	}

	cost, known := o.opts.Kits[kit]
	if len(o.opts.Kits) > 0 && !known {
		return fmt.Errorf("%q: %w", kit, ErrUnknownKit)
	}
	if cost <= 0 {
		o.applyKit(id, kit)
		return nil
	}
	if o.ledger.BalanceOf(id) < cost {
		return fmt.Errorf("%s costs %d credits: %w", kit, cost, ErrInsufficientCredits)
	}

	o.purchaseN++
	seq := o.purchaseN
	o.purchases[id] = seq

	matchID := o.session.ID
	result := o.ledger.Deduct(id, cost, "Purchased kit "+kit)
	go func() {
		res := <-result
		o.dispatch.Post(func() {
			o.completeKitPurchase(matchID, seq, id, kit, cost, res)
		})
	}()
	return nil
}

func (o *Orchestrator) completeKitPurchase(matchID int64, seq uint64, id uuid.UUID, kit string, cost int64, res domain.CreditResult) {
	if o.purchases[id] == seq {
		delete(o.purchases, id)
	}
	if res.Err != nil {
		o.log.Error().Err(res.Err).Str("player", id.String()).Str("kit", kit).Msg("Kit purchase failed")
		o.presenter.Tell(id, "Something went wrong while buying that kit. Please try again.")
		return
	}
	if !res.OK {
		o.presenter.Tell(id, fmt.Sprintf("You need %d credits for %s (you have %d).", cost, kit, res.Balance))
		return
	}
	stillOpen := o.session != nil && o.session.ID == matchID &&
		o.machine.Current().AllowsLoadoutSelection() && o.tracker.IsAlive(id)
	if !stillOpen {
		o.ledger.Award(id, cost, "Refund for kit "+kit)
		o.presenter.Tell(id, "Kit selection closed before your purchase completed. You were refunded.")
		return
	}
	o.applyKit(id, kit)
}

func (o *Orchestrator) applyKit(id uuid.UUID, kit string) {
	o.tracker.SetKit(id, kit)
	o.journal.Submit("record kit", func(ctx context.Context) error {
		return o.persist.RecordKitSelection(ctx, id, kit)
	})
	o.presenter.Tell(id, fmt.Sprintf("You selected the %s kit.", kit))
}

// --- Phase reactions ---

func (o *Orchestrator) onPhaseChange(from, to domain.Phase, reason string) {
	o.presenter.PhaseChanged(from, to, reason)

	switch to {
	case domain.PhaseStarting:
		o.onStarting()
	case domain.PhaseActive:
		o.onActive()
	case domain.PhaseFeast:
		o.border.Start()
		o.startSafetyTimer()
	case domain.PhaseBorderShrinking:
		o.border.Start()
		o.startSafetyTimer()
		o.presenter.Broadcast("The border is closing in!")
	case domain.PhaseFinalFight:
		o.safetyTask.Cancel()
		if o.escalator.Start() {
			o.presenter.Broadcast("The final fight has begun! Poison grows stronger every minute.")
		}
	case domain.PhaseEnding:
		o.onEnding()
	case domain.PhaseFinished:
		o.onFinished(from)
	}
}

func (o *Orchestrator) onStarting() {
	o.waitTask.Cancel()
	now := o.sched.Now()
	o.session.StartedAt = &now
	matchID := o.session.ID
	o.journal.Submit("mark match started", func(ctx context.Context) error {
		return o.persist.MarkMatchStarted(ctx, matchID, now)
	})

	for _, id := range o.tracker.AliveIDs() {
		o.presenter.SetRestricted(id, true)
		if o.opts.Credits.GameStarted != 0 {
			o.ledger.Award(id, o.opts.Credits.GameStarted, "Joined a match")
		}
	}
	o.refreshTracking()

	o.countLeft = int(o.opts.Countdown / time.Second)
	if o.countLeft <= 0 {
		o.countLeft = 1
	}
	o.countdownTask.Cancel()
	o.countdownTask = o.sched.Every("countdown", time.Second, o.countdownTick)
	o.presenter.Broadcast(fmt.Sprintf("The match starts in %d seconds!", o.countLeft))
}

func (o *Orchestrator) countdownTick(time.Time) {
	o.countLeft--
	if o.countLeft > 0 {
		if o.countLeft <= 5 {
			o.presenter.Broadcast(fmt.Sprintf("%d...", o.countLeft))
		}
		return
	}
	o.finishCountdown("countdown finished")
}

// finishCountdown ends STARTING; shared by the timer and operators
func (o *Orchestrator) finishCountdown(reason string) error {
	o.countdownTask.Cancel()
	if !o.machine.AttemptTransition(domain.PhaseActive, reason) {
		return o.transitionErr(domain.PhaseActive)
	}
	return nil
}

func (o *Orchestrator) onActive() {
	o.countdownTask.Cancel()
	for _, id := range o.tracker.AliveIDs() {
		o.presenter.SetRestricted(id, false)
	}
	o.presenter.Broadcast(fmt.Sprintf("The match has begun! PvP is enabled in %s.", o.opts.PvpDelay))

	if !o.pvpEnabled && !o.pvpTask.Active() {
		o.pvpTask = o.sched.After("pvp", o.opts.PvpDelay, func(time.Time) {
			o.enablePvp("pvp delay elapsed")
		})
	}

	until := o.opts.PvpDelay + o.opts.FeastDelay
	if o.feast.Enabled() {
		if !o.feast.Spawned() && !o.feastTask.Active() {
			o.feast.StartReminders(until)
			o.feastTask = o.sched.After("feast", until, func(time.Time) {
				if err := o.spawnFeast("feast delay elapsed"); err != nil {
					o.log.Warn().Err(err).Msg("Scheduled feast did not spawn")
				}
			})
		}
	} else if !o.borderTask.Active() {
		o.borderTask = o.sched.After("border", until, func(time.Time) {
			if err := o.startBorderShrinking("feast disabled, border delay elapsed"); err != nil {
				o.log.Warn().Err(err).Msg("Scheduled border shrink did not start")
			}
		})
	}

	if !o.survivalTask.Active() {
		o.survivalTask = o.sched.Every("survival", time.Minute, o.survivalTick)
	}
	o.refreshTracking()
	o.checkWinCondition("match became active")
}

func (o *Orchestrator) survivalTick(time.Time) {
	if !o.machine.Current().IsActivePlay() {
		return
	}
	if o.opts.Credits.SurvivedMinute != 0 {
		for _, id := range o.tracker.AliveIDs() {
			o.ledger.Award(id, o.opts.Credits.SurvivedMinute, "Survived one minute")
		}
	}
	o.refreshTracking()

	if o.border.State() != BorderIdle && o.border.NearMinimum(o.opts.BorderMargin) && !o.escalator.Active() {
		if err := o.startFinalFight("border reached its minimum"); err != nil {
			o.log.Warn().Err(err).Msg("Could not start final fight")
		}
	}
}

func (o *Orchestrator) startSafetyTimer() {
	if o.safetyTask.Active() || o.escalator.Active() {
		return
	}
	o.safetyTask = o.sched.After("final-fight-safety", o.opts.MaxDuration, func(time.Time) {
		if err := o.startFinalFight("maximum match duration reached"); err != nil {
			o.log.Warn().Err(err).Msg("Safety timer could not start final fight")
		}
	})
}

func (o *Orchestrator) onEnding() {
	o.cancelAllScheduled()

	alive := o.tracker.AliveIDs()
	if len(alive) == 1 {
		winner := alive[0]
		bonus := o.opts.Credits.WonSmall
		if o.tracker.PartyCount() >= o.opts.Credits.LargeMatchParties {
			bonus = o.opts.Credits.WonLarge
		}
		o.ledger.Award(winner, bonus, "Won the match")

		party, _ := o.tracker.PartyOf(winner)
		o.journalElimination(domain.Elimination{
			Player: winner,
			Party:  party.ID,
			Reason: domain.DeathWinner,
			At:     o.sched.Now(),
		})
		o.presenter.AnnounceWinner(domain.WinnerEvent{Player: winner, Party: party.Name, Credits: bonus})
		o.log.Info().Str("player", winner.String()).Int64("credits", bonus).Int("parties", o.tracker.PartyCount()).Msg("Match won")
	} else {
		o.presenter.Broadcast("The match ended without a winner.")
		o.log.Info().Int("alive", len(alive)).Msg("Match ended without a winner")
	}

	o.markEnded()
	o.finishTask = o.sched.After("finish", o.opts.EndingDelay, func(time.Time) {
		o.machine.AttemptTransition(domain.PhaseFinished, "ending delay elapsed")
	})
}

func (o *Orchestrator) onFinished(from domain.Phase) {
	o.cancelAllScheduled()
	if from == domain.PhaseStarting {
		for _, id := range o.tracker.AliveIDs() {
			o.presenter.SetRestricted(id, false)
		}
	}
	o.markEnded()

	if o.opts.AutoRestart {
		o.restartTask = o.sched.After("restart", o.opts.RestartDelay, func(time.Time) {
			if err := o.InitializeMatch(context.Background()); err != nil {
				o.log.Error().Err(err).Msg("Automatic restart failed")
			}
		})
	}
}

// --- Shared paths, used by timers and operators alike ---

func (o *Orchestrator) beginStarting(reason string) error {
	if !o.machine.AttemptTransition(domain.PhaseStarting, reason) {
		return o.transitionErr(domain.PhaseStarting)
	}
	return nil
}

func (o *Orchestrator) enablePvp(reason string) {
	o.pvpTask.Cancel()
	if o.pvpEnabled {
		return
	}
	o.pvpEnabled = true
	o.presenter.SetPvp(true)
	o.presenter.Broadcast("PvP is now enabled!")
	o.log.Info().Str("reason", reason).Msg("PvP enabled")
}

func (o *Orchestrator) spawnFeast(reason string) error {
	phase := o.machine.Current()
	if !phase.IsActivePlay() {
		return fmt.Errorf("spawning feast in %s: %w", phase.DisplayName(), ErrInvalidPhase)
	}
	o.feastTask.Cancel()
	if o.feast.Spawned() {
		return nil
	}

	matchID := o.session.ID
	if o.feast.Spawn(o.opts.Center.World, o.border.Center(), func(loc domain.Location, err error) {
		o.feastBuilt(matchID, reason, loc, err)
	}) {
		o.log.Info().Str("reason", reason).Msg("Building feast platform")
	}
	return nil
}

// feastBuilt finishes a feast spawn once the platform exists. A match that
// moved on while the build ran keeps its phase.
func (o *Orchestrator) feastBuilt(matchID int64, reason string, loc domain.Location, err error) {
	if o.matchID() != matchID || !o.IsMatchRunning() {
		return
	}
	if err != nil {
		o.log.Warn().Err(err).Str("reason", reason).Msg("Feast platform could not be generated")
		return
	}
	phase := o.machine.Current()
	if !phase.IsActivePlay() {
		return
	}

	o.presenter.Broadcast(fmt.Sprintf("The feast has appeared at %.0f, %.0f, %.0f!", loc.X, loc.Y, loc.Z))
	o.refreshTracking()
	if phase == domain.PhaseActive {
		o.machine.AttemptTransition(domain.PhaseFeast, reason)
	}
}

func (o *Orchestrator) startBorderShrinking(reason string) error {
	phase := o.machine.Current()
	if !phase.IsActivePlay() {
		return fmt.Errorf("shrinking border in %s: %w", phase.DisplayName(), ErrInvalidPhase)
	}
	o.borderTask.Cancel()
	o.border.Start()
	if phase == domain.PhaseActive || phase == domain.PhaseFeast {
		if !o.machine.AttemptTransition(domain.PhaseBorderShrinking, reason) {
			return o.transitionErr(domain.PhaseBorderShrinking)
		}
	}
	return nil
}

func (o *Orchestrator) startFinalFight(reason string) error {
	phase := o.machine.Current()
	if !phase.IsActivePlay() {
		return fmt.Errorf("starting final fight in %s: %w", phase.DisplayName(), ErrInvalidPhase)
	}
	o.safetyTask.Cancel()
	if phase == domain.PhaseFinalFight {
		o.escalator.Start()
		return nil
	}
	if !o.machine.AttemptTransition(domain.PhaseFinalFight, reason) {
		return o.transitionErr(domain.PhaseFinalFight)
	}
	return nil
}

// --- Helpers ---

func (o *Orchestrator) waitingTick(time.Time) {
	if o.machine.Current() != domain.PhaseWaiting {
		o.waitTask.Cancel()
		return
	}

	count := o.tracker.AliveCount()
	if o.readyToStart(count) {
		if err := o.beginStarting("enough players are ready"); err != nil {
			o.log.Warn().Err(err).Msg("Auto start failed")
		}
		return
	}

	o.waitLeft -= time.Second
	if o.waitLeft <= 0 {
		if count >= o.opts.MinPlayers {
			if err := o.beginStarting("waiting time elapsed"); err != nil {
				o.log.Warn().Err(err).Msg("Auto start failed")
			}
			return
		}
		o.waitLeft = o.opts.WaitExtension
		o.presenter.Broadcast(fmt.Sprintf("Not enough players (%d/%d). Waiting %s longer.", count, o.opts.MinPlayers, o.opts.WaitExtension))
		return
	}

	secs := int(o.waitLeft / time.Second)
	if secs%30 == 0 || secs <= 10 {
		o.presenter.Broadcast(fmt.Sprintf("The match starts in %d seconds (%d/%d players).", secs, count, o.opts.MinPlayers))
	}
}

// readyToStart is the early-start rule: the minimum player count is always
// required, then either a full lobby or everyone holding a kit.
func (o *Orchestrator) readyToStart(count int) bool {
	if count < o.opts.MinPlayers {
		return false
	}
	return count >= o.opts.MaxPlayers || o.tracker.AllAliveHaveKits()
}

// cancelAllScheduled cancels every callback owned by the orchestrator and
// its controllers. Safe to repeat.
func (o *Orchestrator) cancelAllScheduled() {
	for _, t := range []*Task{
		o.waitTask, o.countdownTask, o.pvpTask, o.feastTask, o.borderTask,
		o.survivalTask, o.safetyTask, o.finishTask, o.restartTask,
	} {
		t.Cancel()
	}
	o.feast.StopReminders()
	o.border.Halt()
	o.escalator.Stop()
}

func (o *Orchestrator) resetControllers() {
	o.escalator.Stop()
	o.feast.Reset()
	o.border.Reset()
	o.tracker.Reset()
	o.namer.reset()
	o.pvpEnabled = false
	clear(o.purchases)
	o.waitLeft = 0
	o.countLeft = 0
}

func (o *Orchestrator) markEnded() {
	if o.session == nil || o.session.EndedAt != nil {
		return
	}
	now := o.sched.Now()
	o.session.EndedAt = &now
	matchID := o.session.ID
	o.journal.Submit("mark match ended", func(ctx context.Context) error {
		return o.persist.MarkMatchEnded(ctx, matchID, now)
	})
}

func (o *Orchestrator) journalElimination(e domain.Elimination) {
	e.MatchID = o.matchID()
	o.journal.Submit("record elimination", func(ctx context.Context) error {
		return o.persist.RecordElimination(ctx, e)
	})
}

func (o *Orchestrator) refreshTracking() {
	snap := domain.TrackingSnapshot{
		Alive:         o.tracker.AliveIDs(),
		Parties:       make(map[uuid.UUID]uuid.UUID),
		FeastLocation: o.feast.Location(),
		BorderRadius:  o.border.Radius(),
	}
	for _, id := range snap.Alive {
		if p, ok := o.tracker.PartyOf(id); ok {
			snap.Parties[id] = p.ID
		}
	}
	o.presenter.UpdateTracking(snap)
}

func (o *Orchestrator) matchID() int64 {
	if o.session == nil {
		return 0
	}
	return o.session.ID
}

func (o *Orchestrator) transitionErr(target domain.Phase) error {
	return fmt.Errorf("%s to %s: %w", o.machine.Current().DisplayName(), target.DisplayName(), ErrInvalidTransition)
}

// recoverFor logs a panic from a player-facing path and gives the player a
// generic notice
func (o *Orchestrator) recoverFor(player uuid.UUID, what string) {
	if r := recover(); r != nil {
		o.log.Error().Str("player", player.String()).Str("path", what).Err(fmt.Errorf("%v", r)).Msg("Recovered from panic")
		o.presenter.Tell(player, "Something went wrong. The error has been logged.")
	}
}
