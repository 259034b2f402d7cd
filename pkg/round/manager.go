package round

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"roundforge-api/internal/engineerr"
	"roundforge-api/internal/kvstore"
	"roundforge-api/pkg/eventbus"
	"roundforge-api/pkg/journal"
	"roundforge-api/pkg/llm"
	"roundforge-api/pkg/market"
	"roundforge-api/pkg/portfolio"
	"roundforge-api/pkg/strategy"
)

// Defaults carries the round-engine-wide knobs a round falls back to when a
// CreateRoundConfig leaves a field unset, plus the tunables shared by every round's
// execution scheduler (spec SPEC_FULL.md §4.9).
type Defaults struct {
	ExecutionInterval    time.Duration
	MaxPositionFraction  float64
	TradingFeeRate       float64
	MinParticipants      int
	MaxParticipants      int
	StartingBalance      float64
	DurationSeconds      int64
	AutoStartDelay       time.Duration
	MaxFanOutConcurrency int
}

// DefaultDefaults mirrors the reference round configuration from spec §3/§4.6.
func DefaultDefaults() Defaults {
	return Defaults{
		ExecutionInterval:    30 * time.Second,
		MaxPositionFraction:  0.3,
		TradingFeeRate:       0.001,
		MinParticipants:      1,
		MaxParticipants:      10,
		StartingBalance:      10000,
		DurationSeconds:      int64((24 * time.Hour).Seconds()),
		AutoStartDelay:       5 * time.Second,
		MaxFanOutConcurrency: 10,
	}
}

// Manager is the Round Manager (spec §4.6): the composition root wiring the KV
// Store, Price Feed, LLM Client, Strategy Registry, Portfolio Engine and Event Bus
// into round lifecycle and per-tick execution. One Manager serves every round; each
// active round gets its own scheduler goroutine, tracked by cancelFns.
type Manager struct {
	store    kvstore.Store
	feed     *market.Feed
	parser   llm.StrategyParser
	signaler llm.SignalGenerator
	registry *strategy.Registry
	bus      *eventbus.Bus
	defaults Defaults

	mu         sync.Mutex
	cancelFns  map[string]context.CancelFunc
	roundLocks map[string]*sync.Mutex

	now      func() time.Time
	recorder journal.Recorder
	repo     SnapshotRepository
}

// SnapshotRepository durably persists round and participant state outside the
// kvstore.Store hot path (spec SPEC_FULL.md's persistence ambient stack). A
// *repo.RoundRepository satisfies this without pkg/round importing pkg/repo,
// which would otherwise cycle back through pkg/round itself.
type SnapshotRepository interface {
	SaveSnapshot(ctx context.Context, r *Round, participants []*Participant) error
}

// New constructs a Manager. parser and signaler are typically the same *llm.Client
// value, accepted as two narrow interfaces so tests can fake each independently.
func New(store kvstore.Store, feed *market.Feed, parser llm.StrategyParser, signaler llm.SignalGenerator, registry *strategy.Registry, bus *eventbus.Bus, defaults Defaults) *Manager {
	return &Manager{
		store:     store,
		feed:      feed,
		parser:    parser,
		signaler:  signaler,
		registry:  registry,
		bus:       bus,
		defaults:   defaults,
		cancelFns:  make(map[string]context.CancelFunc),
		roundLocks: make(map[string]*sync.Mutex),
		now:        time.Now,
		recorder:   journal.NoopRecorder{},
	}
}

// roundLock returns the mutex serializing every join observation for roundID
// (spec §5/§8 property 1: |participants(R)| <= MaxParticipants), creating it
// on first use. Entries are never evicted: deleting one while a JoinRound call
// still held it would let a concurrent joiner acquire a fresh mutex for the
// same round and run unserialized against it.
func (m *Manager) roundLock(roundID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.roundLocks[roundID]
	if !ok {
		l = &sync.Mutex{}
		m.roundLocks[roundID] = l
	}
	return l
}

// SetRecorder wires a journal.Recorder, e.g. a journal.PostgresRecorder, to
// capture every signal cycle for later replay (spec SPEC_FULL.md §4.10). Must
// be called before StartRound; it is not safe to swap concurrently with a
// running scheduler.
func (m *Manager) SetRecorder(r journal.Recorder) {
	if r == nil {
		r = journal.NoopRecorder{}
	}
	m.recorder = r
}

// SetSnapshotRepository wires a durable side-store, e.g. a
// *repo.RoundRepository, that mirrors every round/participant write the
// kvstore.Store takes. Like SetRecorder, this must be called before
// StartRound and is diagnostic-only: a write failure is logged, never
// returned to the caller, since the kvstore.Store write already succeeded.
func (m *Manager) SetSnapshotRepository(repo SnapshotRepository) {
	m.repo = repo
}

func (m *Manager) save(ctx context.Context, r *Round) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return engineerr.Wrap(engineerr.KindInternal, "failed to encode round", err)
	}
	if err := m.store.Set(ctx, roundKey(r.ID), string(raw), 0); err != nil {
		return engineerr.Wrap(engineerr.KindStoreUnavailable, "failed to persist round", err)
	}
	m.mirrorSnapshot(ctx, r.ID)
	return nil
}

func (m *Manager) saveParticipant(ctx context.Context, p *Participant) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return engineerr.Wrap(engineerr.KindInternal, "failed to encode participant", err)
	}
	if err := m.store.Set(ctx, participantKey(p.RoundID, p.Wallet), string(raw), 0); err != nil {
		return engineerr.Wrap(engineerr.KindStoreUnavailable, "failed to persist participant", err)
	}
	m.mirrorSnapshot(ctx, p.RoundID)
	return nil
}

// mirrorSnapshot best-effort copies a round's current round+participant state
// to the configured SnapshotRepository, if any. A failure here is logged and
// otherwise ignored: the kvstore.Store write this follows already succeeded,
// so the round is never blocked on the durable side-store being reachable.
func (m *Manager) mirrorSnapshot(ctx context.Context, roundID string) {
	if m.repo == nil {
		return
	}
	r, err := m.GetRound(ctx, roundID)
	if err != nil {
		logx.WithContext(ctx).Infof("round: snapshot mirror skipped, round=%s not found: %v", roundID, err)
		return
	}
	wallets, err := m.store.SMembers(ctx, participantsSetKey(roundID))
	if err != nil {
		logx.WithContext(ctx).Infof("round: snapshot mirror skipped, failed to list participants for round=%s: %v", roundID, err)
		return
	}
	participants := make([]*Participant, 0, len(wallets))
	for _, wallet := range wallets {
		p, err := m.getParticipant(ctx, roundID, wallet)
		if err != nil {
			continue
		}
		participants = append(participants, p)
	}
	if err := m.repo.SaveSnapshot(ctx, r, participants); err != nil {
		logx.WithContext(ctx).Infof("round: snapshot mirror failed for round=%s: %v", roundID, err)
	}
}

// GetRound loads a round by id.
func (m *Manager) GetRound(ctx context.Context, id string) (*Round, error) {
	raw, ok, err := m.store.Get(ctx, roundKey(id))
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindStoreUnavailable, "failed to load round", err)
	}
	if !ok {
		return nil, engineerr.Newf(engineerr.KindNotFound, "round %s not found", id)
	}
	var r Round
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, engineerr.Wrap(engineerr.KindInternal, "failed to decode round", err)
	}
	return &r, nil
}

func (m *Manager) getParticipant(ctx context.Context, roundID, wallet string) (*Participant, error) {
	raw, ok, err := m.store.Get(ctx, participantKey(roundID, wallet))
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindStoreUnavailable, "failed to load participant", err)
	}
	if !ok {
		return nil, engineerr.Newf(engineerr.KindNotFound, "participant %s not found in round %s", wallet, roundID)
	}
	var p Participant
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, engineerr.Wrap(engineerr.KindInternal, "failed to decode participant", err)
	}
	return &p, nil
}

// ListRounds returns every round whose status is in statuses (all rounds if
// statuses is empty), newest first.
func (m *Manager) ListRounds(ctx context.Context, statuses ...Status) ([]*Round, error) {
	keys, err := m.store.Keys(ctx, "round:*")
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindStoreUnavailable, "failed to scan round keyspace", err)
	}
	want := make(map[Status]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}

	var out []*Round
	for _, key := range keys {
		if strings.Contains(key, ":participant") || strings.Contains(key, ":logs:") ||
			strings.Contains(key, ":leaderboard") || strings.Contains(key, "round:number:") ||
			key == roundCounterKey {
			continue
		}
		raw, ok, err := m.store.Get(ctx, key)
		if err != nil || !ok {
			continue
		}
		var r Round
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			continue
		}
		if len(want) == 0 || want[r.Status] {
			out = append(out, &r)
		}
	}

	sortRoundsByNumberDesc(out)
	return out, nil
}

func sortRoundsByNumberDesc(rounds []*Round) {
	for i := 1; i < len(rounds); i++ {
		for j := i; j > 0 && rounds[j-1].Number < rounds[j].Number; j-- {
			rounds[j-1], rounds[j] = rounds[j], rounds[j-1]
		}
	}
}

// CreateRound allocates a round id, fills in any unset Settings from m.defaults, and
// persists the round in StatusWaiting (spec §4.6 / §6 create-round).
func (m *Manager) CreateRound(ctx context.Context, cfg CreateRoundConfig) (*Round, error) {
	if strings.TrimSpace(cfg.Title) == "" {
		return nil, engineerr.New(engineerr.KindValidation, "title is required")
	}

	number, err := m.store.Incr(ctx, roundCounterKey)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindStoreUnavailable, "failed to allocate round number", err)
	}
	id := strconv.FormatInt(number, 10)

	startingBalance := cfg.StartingBalance
	if startingBalance <= 0 {
		startingBalance = m.defaults.StartingBalance
	}
	durationSeconds := cfg.DurationSeconds
	if durationSeconds <= 0 {
		durationSeconds = m.defaults.DurationSeconds
	}
	minParticipants := cfg.MinParticipants
	if minParticipants <= 0 {
		minParticipants = m.defaults.MinParticipants
	}
	maxParticipants := cfg.MaxParticipants
	if maxParticipants <= 0 {
		maxParticipants = m.defaults.MaxParticipants
	}
	executionInterval := m.defaults.ExecutionInterval
	if cfg.ExecutionIntervalSec > 0 {
		executionInterval = time.Duration(cfg.ExecutionIntervalSec) * time.Second
	}

	now := m.now()
	r := &Round{
		ID:              id,
		Number:          number,
		Title:           cfg.Title,
		Description:     cfg.Description,
		DurationMs:      durationSeconds * 1000,
		StartingBalance: startingBalance,
		MinParticipants: minParticipants,
		MaxParticipants: maxParticipants,
		Settings: Settings{
			ExecutionInterval:   executionInterval,
			MaxPositionFraction: m.defaults.MaxPositionFraction,
			TradingFeeRate:      m.defaults.TradingFeeRate,
			AllowedSymbols:      cfg.AllowedTokens,
			AutoStart:           cfg.AutoStart,
			ExpectedProfitPct:   cfg.ExpectedProfitPct,
		},
		Status:    StatusWaiting,
		CreatedAt: now,
	}

	if err := m.save(ctx, r); err != nil {
		return nil, err
	}
	if err := m.store.Set(ctx, roundNumberKey(number), id, 0); err != nil {
		return nil, engineerr.Wrap(engineerr.KindStoreUnavailable, "failed to index round number", err)
	}
	if err := m.store.SAdd(ctx, activeRoundsKey, id); err != nil {
		return nil, engineerr.Wrap(engineerr.KindStoreUnavailable, "failed to index waiting round", err)
	}

	m.bus.Publish(eventbus.TopicRoundCreated, r)
	return r, nil
}

// CanJoin reports whether req.Wallet may currently join round id, without mutating
// any state (spec §6 can-join-round). This is an advisory read, not linearized
// against concurrent joins; JoinRound re-checks the same conditions under the
// round's mutex before committing.
func (m *Manager) CanJoin(ctx context.Context, roundID, wallet string) (bool, string, error) {
	r, err := m.GetRound(ctx, roundID)
	if err != nil {
		return false, "", err
	}
	return m.canJoin(ctx, r, wallet)
}

// canJoin is the capacity/eligibility check shared by CanJoin and JoinRound. r
// must already be loaded by the caller so JoinRound can reuse the same round
// record it later mutates, rather than reading it twice.
func (m *Manager) canJoin(ctx context.Context, r *Round, wallet string) (bool, string, error) {
	if r.Status != StatusWaiting {
		return false, "round is not accepting participants", nil
	}
	if r.Stats.TotalParticipants >= r.MaxParticipants {
		return false, "round is full", nil
	}
	if _, err := m.getParticipant(ctx, r.ID, wallet); err == nil {
		return false, "already joined", nil
	}
	return true, "", nil
}

// resolveBinding resolves a JoinRequest's exactly-one-of {Strategy, StrategyID,
// LicenseStrategyID} into a StrategyBinding (spec §4.6 join protocol, §9 "mixed-
// ownership strategy binding").
func (m *Manager) resolveBinding(ctx context.Context, roundID string, req JoinRequest) (StrategyBinding, error) {
	set := 0
	if strings.TrimSpace(req.Strategy) != "" {
		set++
	}
	if req.StrategyID != 0 {
		set++
	}
	if req.LicenseStrategyID != 0 {
		set++
	}
	if set != 1 {
		return StrategyBinding{}, engineerr.New(engineerr.KindValidation, "exactly one of strategy, strategy_id, license_strategy_id is required")
	}

	switch {
	case strings.TrimSpace(req.Strategy) != "":
		parsed, err := m.parser.ParseStrategy(ctx, req.Strategy)
		if err != nil {
			logx.WithContext(ctx).Errorf("round: inline ParseStrategy failed for wallet=%s: %v", req.Wallet, err)
		}
		return StrategyBinding{Kind: BindingInline, InlineText: req.Strategy, Parsed: parsed}, nil

	case req.StrategyID != 0:
		s, err := m.registry.Get(ctx, req.StrategyID)
		if err != nil {
			return StrategyBinding{}, err
		}
		if !strings.EqualFold(s.Owner, req.Wallet) {
			return StrategyBinding{}, engineerr.New(engineerr.KindValidation, "strategy is not owned by this wallet")
		}
		return StrategyBinding{Kind: BindingOwned, StrategyID: s.ID, Parsed: s.Parsed}, nil

	default:
		s, err := m.registry.Get(ctx, req.LicenseStrategyID)
		if err != nil {
			return StrategyBinding{}, err
		}
		lic, err := m.registry.License(ctx, req.Wallet, req.LicenseStrategyID, roundID)
		if err != nil {
			return StrategyBinding{}, err
		}
		return StrategyBinding{
			Kind:           BindingLicensed,
			StrategyID:     s.ID,
			LicensorWallet: lic.StrategyOwner,
			RoyaltyPct:     lic.RoyaltyPct,
			Parsed:         s.Parsed,
		}, nil
	}
}

// JoinRound admits req.Wallet into round id with a freshly funded portfolio, and
// arms the round's auto-start timer the first time capacity is reached (spec §4.6).
// The read-check-increment-write sequence is serialized by roundLock(roundID), so
// concurrent joins against a round at capacity cannot all observe a free slot and
// overshoot MaxParticipants (spec §5/§8 property 1).
func (m *Manager) JoinRound(ctx context.Context, roundID string, req JoinRequest) (*Participant, error) {
	lock := m.roundLock(roundID)
	lock.Lock()
	defer lock.Unlock()

	r, err := m.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	ok, reason, err := m.canJoin(ctx, r, req.Wallet)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, engineerr.New(engineerr.KindConflict, reason)
	}

	binding, err := m.resolveBinding(ctx, roundID, req)
	if err != nil {
		return nil, err
	}

	p := &Participant{
		RoundID:   roundID,
		Wallet:    req.Wallet,
		Username:  req.Username,
		Binding:   binding,
		Portfolio: portfolio.New(r.StartingBalance),
		JoinedAt:  m.now(),
		Active:    true,
	}
	if err := m.saveParticipant(ctx, p); err != nil {
		return nil, err
	}
	if err := m.store.SAdd(ctx, participantsSetKey(roundID), req.Wallet); err != nil {
		return nil, engineerr.Wrap(engineerr.KindStoreUnavailable, "failed to index participant", err)
	}
	if err := m.store.ZAdd(ctx, leaderboardKey(roundID), 0, req.Wallet); err != nil {
		return nil, engineerr.Wrap(engineerr.KindStoreUnavailable, "failed to seed leaderboard entry", err)
	}

	r.Stats.TotalParticipants++
	armed := false
	if !r.AutoStartArmed && r.Settings.AutoStart && r.Stats.TotalParticipants >= r.MaxParticipants {
		r.AutoStartArmed = true
		armed = true
	}
	if err := m.save(ctx, r); err != nil {
		return nil, err
	}

	m.bus.Publish(eventbus.TopicParticipantJoined, p)

	if armed {
		go func() {
			time.Sleep(m.defaults.AutoStartDelay)
			if err := m.StartRound(context.Background(), roundID); err != nil && !engineerr.IsKind(err, engineerr.KindConflict) {
				logx.Errorf("round: auto-start failed for round=%s: %v", roundID, err)
			}
		}()
	}

	return p, nil
}

// StartRound transitions a waiting round to active (idempotently refusing a second
// start) and launches its execution scheduler goroutine (spec §4.6).
func (m *Manager) StartRound(ctx context.Context, roundID string) error {
	r, err := m.GetRound(ctx, roundID)
	if err != nil {
		return err
	}
	if r.Status != StatusWaiting {
		return engineerr.Newf(engineerr.KindConflict, "round %s is not waiting (status=%s)", roundID, r.Status)
	}
	if r.Stats.TotalParticipants < r.MinParticipants {
		return engineerr.Newf(engineerr.KindValidation, "round %s needs at least %d participants to start", roundID, r.MinParticipants)
	}

	now := m.now()
	r.Status = StatusActive
	r.StartAt = now
	r.EndAt = now.Add(time.Duration(r.DurationMs) * time.Millisecond)
	if err := m.save(ctx, r); err != nil {
		return err
	}
	if err := m.store.SRem(ctx, activeRoundsKey, roundID); err != nil {
		return engineerr.Wrap(engineerr.KindStoreUnavailable, "failed to unindex waiting round", err)
	}
	if err := m.store.SAdd(ctx, runningRoundsKey, roundID); err != nil {
		return engineerr.Wrap(engineerr.KindStoreUnavailable, "failed to index running round", err)
	}

	tickCtx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.cancelFns[roundID] = cancel
	m.mu.Unlock()

	m.bus.Publish(eventbus.TopicRoundStarted, r)
	go m.runScheduler(tickCtx, roundID)

	go func() {
		timer := time.NewTimer(time.Until(r.EndAt))
		defer timer.Stop()
		select {
		case <-timer.C:
			_ = m.EndRound(context.Background(), roundID)
		case <-tickCtx.Done():
		}
	}()

	return nil
}

// EndRound stops the round's scheduler, marks it finished (or cancelled if it never
// started), and, for a round that was active, rebuilds the leaderboard one final
// time (spec §4.6).
func (m *Manager) EndRound(ctx context.Context, roundID string) error {
	r, err := m.GetRound(ctx, roundID)
	if err != nil {
		return err
	}
	if r.Status == StatusFinished || r.Status == StatusCancelled {
		return engineerr.Newf(engineerr.KindConflict, "round %s already ended (status=%s)", roundID, r.Status)
	}

	m.mu.Lock()
	if cancel, ok := m.cancelFns[roundID]; ok {
		cancel()
		delete(m.cancelFns, roundID)
	}
	m.mu.Unlock()

	wasActive := r.Status == StatusActive
	r.Status = StatusFinished
	if !wasActive {
		r.Status = StatusCancelled
	}
	r.EndAt = m.now()
	if err := m.save(ctx, r); err != nil {
		return err
	}

	_ = m.store.SRem(ctx, activeRoundsKey, roundID)
	_ = m.store.SRem(ctx, runningRoundsKey, roundID)
	if err := m.store.SAdd(ctx, finishedRoundsKey, roundID); err != nil {
		return engineerr.Wrap(engineerr.KindStoreUnavailable, "failed to index finished round", err)
	}

	if wasActive {
		if _, err := m.rebuildLeaderboard(ctx, roundID); err != nil {
			logx.WithContext(ctx).Errorf("round: final leaderboard rebuild failed for round=%s: %v", roundID, err)
		}
	}

	m.bus.Publish(eventbus.TopicRoundEnded, r)
	return nil
}

// Leaderboard returns round id's current ranking from the sorted-set index, without
// recomputing anything (spec §6 get-leaderboard).
func (m *Manager) Leaderboard(ctx context.Context, roundID string, limit int) ([]LeaderboardEntry, error) {
	entries, err := m.store.ZRevRangeByRank(ctx, leaderboardKey(roundID), limit)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindStoreUnavailable, "failed to load leaderboard", err)
	}

	out := make([]LeaderboardEntry, 0, len(entries))
	for i, e := range entries {
		p, err := m.getParticipant(ctx, roundID, e.Member)
		if err != nil {
			continue
		}
		out = append(out, LeaderboardEntry{
			Rank:          i + 1,
			Wallet:        p.Wallet,
			Username:      p.Username,
			Pnl:           p.Portfolio.RealizedPnl + sumUnrealized(p.Portfolio),
			PnlPercentage: p.Portfolio.PercentPnl,
			TotalValue:    p.Portfolio.TotalValue,
			Trades:        p.Portfolio.Trades,
			WinRate:       p.Portfolio.WinRate,
		})
	}
	return out, nil
}

func sumUnrealized(pf *portfolio.Portfolio) float64 {
	var total float64
	for _, pos := range pf.Positions {
		total += pos.UnrealizedPnl
	}
	return total
}

// EnhancedLeaderboard layers a profit score and letter grade onto Leaderboard (spec
// §6 get-enhanced-leaderboard).
func (m *Manager) EnhancedLeaderboard(ctx context.Context, roundID string, limit int) ([]EnhancedLeaderboardEntry, error) {
	base, err := m.Leaderboard(ctx, roundID, limit)
	if err != nil {
		return nil, err
	}
	r, err := m.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	out := make([]EnhancedLeaderboardEntry, 0, len(base))
	for _, entry := range base {
		out = append(out, EnhancedLeaderboardEntry{
			LeaderboardEntry: entry,
			ProfitScore:      profitScore(entry.PnlPercentage, r.Settings.ExpectedProfitPct),
			Grade:            grade(entry.PnlPercentage),
		})
	}
	return out, nil
}

// profitScore is actual%/expected% (spec §4.6 get-enhanced-leaderboard, §3 Round
// Settings). A round configured with no expected-profit target leaves the ratio
// undefined, so it reports 0 rather than dividing by zero.
func profitScore(actualPct, expectedPct float64) float64 {
	if expectedPct == 0 {
		return 0
	}
	return actualPct / expectedPct
}

func grade(pnlPct float64) string {
	switch {
	case pnlPct >= 20:
		return "A"
	case pnlPct >= 10:
		return "B"
	case pnlPct >= 0:
		return "C"
	case pnlPct >= -10:
		return "D"
	default:
		return "F"
	}
}

// ParticipantLogs returns wallet's append-only trade log for round id, oldest first.
func (m *Manager) ParticipantLogs(ctx context.Context, roundID, wallet string) ([]TradeLogEntry, error) {
	raw, err := m.store.HGetAll(ctx, logsKey(roundID, wallet))
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindStoreUnavailable, "failed to load participant logs", err)
	}
	out := make([]TradeLogEntry, 0, len(raw))
	for _, v := range raw {
		var entry TradeLogEntry
		if err := json.Unmarshal([]byte(v), &entry); err != nil {
			continue
		}
		out = append(out, entry)
	}
	sortLogsByTimestamp(out)
	return out, nil
}

func sortLogsByTimestamp(entries []TradeLogEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j-1].Timestamp.After(entries[j].Timestamp); j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
}

func (m *Manager) appendLog(ctx context.Context, roundID, wallet string, entry TradeLogEntry) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	field := fmt.Sprintf("%d", entry.Timestamp.UnixNano())
	if err := m.store.HSet(ctx, logsKey(roundID, wallet), field, string(raw)); err != nil {
		logx.WithContext(ctx).Errorf("round: failed to append log for round=%s wallet=%s: %v", roundID, wallet, err)
	}
}
