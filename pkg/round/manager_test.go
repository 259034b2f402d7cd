package round

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roundforge-api/internal/engineerr"
	"roundforge-api/internal/kvstore"
	"roundforge-api/pkg/eventbus"
	"roundforge-api/pkg/llm"
	"roundforge-api/pkg/market"
	"roundforge-api/pkg/strategy"
)

type fakeParser struct{ parsed llm.ParsedStrategy }

func (f *fakeParser) ParseStrategy(context.Context, string) (llm.ParsedStrategy, error) {
	return f.parsed, nil
}

type fakeSignaler struct {
	signal llm.Signal
	calls  int64

	// failSymbol, if set, makes GenerateSignal return failErr instead of signal
	// for any snapshot of that symbol, whichever participant asks.
	failSymbol string
	failErr    error

	// onCall, if set, runs synchronously inside GenerateSignal — used to land a
	// concurrent state change (e.g. EndRound) mid-tick in tests.
	onCall func()
}

func (f *fakeSignaler) GenerateSignal(_ context.Context, snap market.Snapshot, _ llm.ParsedStrategy) (llm.Signal, error) {
	atomic.AddInt64(&f.calls, 1)
	if f.onCall != nil {
		f.onCall()
	}
	if f.failSymbol != "" && snap.Symbol == f.failSymbol {
		return llm.Signal{}, f.failErr
	}
	return f.signal, nil
}

func testFeed(t *testing.T) *market.Feed {
	t.Helper()
	cfg := &market.Config{
		Chain:            "base",
		CacheTTL:         time.Hour,
		MinLiquidityUSD:  100,
		DexAggregatorURL: "http://127.0.0.1:1/unreachable",
		SpotFallbackURL:  "http://127.0.0.1:1/unreachable",
		Whitelist: map[string]market.WhitelistEntry{
			"ETH": {Symbol: "ETH", Address: "0xabc", Chain: "base", ReferencePrice: 3000},
		},
	}
	client := &http.Client{Timeout: 20 * time.Millisecond}
	return market.NewFeed(cfg, client)
}

func newTestManager(t *testing.T, parsed llm.ParsedStrategy, signal llm.Signal) (*Manager, *fakeSignaler) {
	t.Helper()
	store := kvstore.NewMemoryStore()
	parser := &fakeParser{parsed: parsed}
	signaler := &fakeSignaler{signal: signal}
	registry := strategy.New(store, parser)
	bus := eventbus.New()
	defaults := DefaultDefaults()
	defaults.AutoStartDelay = time.Millisecond
	defaults.ExecutionInterval = time.Hour
	mgr := New(store, testFeed(t), parser, signaler, registry, bus, defaults)
	return mgr, signaler
}

func TestCreateRoundAppliesDefaults(t *testing.T) {
	mgr, _ := newTestManager(t, llm.ParsedStrategy{}, llm.Signal{Action: "HOLD"})
	r, err := mgr.CreateRound(context.Background(), CreateRoundConfig{Title: "Test Round"})
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, r.Status)
	assert.Equal(t, mgr.defaults.StartingBalance, r.StartingBalance)
	assert.Equal(t, mgr.defaults.MaxParticipants, r.MaxParticipants)
}

func TestCreateRoundRejectsEmptyTitle(t *testing.T) {
	mgr, _ := newTestManager(t, llm.ParsedStrategy{}, llm.Signal{Action: "HOLD"})
	_, err := mgr.CreateRound(context.Background(), CreateRoundConfig{})
	require.Error(t, err)
	assert.Equal(t, engineerr.KindValidation, engineerr.KindOf(err))
}

func TestJoinRoundInlineBinding(t *testing.T) {
	mgr, _ := newTestManager(t, llm.ParsedStrategy{StrategyType: "technical", Symbols: []string{"ETH"}}, llm.Signal{Action: "HOLD"})
	r, err := mgr.CreateRound(context.Background(), CreateRoundConfig{Title: "R1", MinParticipants: 1, MaxParticipants: 5})
	require.NoError(t, err)

	p, err := mgr.JoinRound(context.Background(), r.ID, JoinRequest{
		Wallet:   "0x1111111111111111111111111111111111111111",
		Username: "alice",
		Strategy: "buy low sell high",
	})
	require.NoError(t, err)
	assert.Equal(t, BindingInline, p.Binding.Kind)
	assert.Equal(t, "technical", p.Binding.Parsed.StrategyType)
	assert.Equal(t, r.StartingBalance, p.Portfolio.Cash)
}

func TestJoinRoundRejectsMultipleBindingSources(t *testing.T) {
	mgr, _ := newTestManager(t, llm.ParsedStrategy{}, llm.Signal{Action: "HOLD"})
	r, err := mgr.CreateRound(context.Background(), CreateRoundConfig{Title: "R1"})
	require.NoError(t, err)

	_, err = mgr.JoinRound(context.Background(), r.ID, JoinRequest{
		Wallet:     "0x1111111111111111111111111111111111111111",
		Strategy:   "text",
		StrategyID: 1,
	})
	require.Error(t, err)
	assert.Equal(t, engineerr.KindValidation, engineerr.KindOf(err))
}

func TestJoinRoundSelfLicenseBan(t *testing.T) {
	mgr, _ := newTestManager(t, llm.ParsedStrategy{}, llm.Signal{Action: "HOLD"})
	ctx := context.Background()
	owner := "0x1111111111111111111111111111111111111111"

	s, err := mgr.registry.Register(ctx, owner, "my strategy", 10, "S1", "desc")
	require.NoError(t, err)

	r, err := mgr.CreateRound(ctx, CreateRoundConfig{Title: "R1"})
	require.NoError(t, err)

	_, err = mgr.JoinRound(ctx, r.ID, JoinRequest{Wallet: owner, LicenseStrategyID: s.ID})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "own strategy")
}

func TestJoinRoundFullRejectsExtraParticipant(t *testing.T) {
	mgr, _ := newTestManager(t, llm.ParsedStrategy{}, llm.Signal{Action: "HOLD"})
	ctx := context.Background()
	r, err := mgr.CreateRound(ctx, CreateRoundConfig{Title: "R1", MaxParticipants: 1, MinParticipants: 1})
	require.NoError(t, err)

	_, err = mgr.JoinRound(ctx, r.ID, JoinRequest{Wallet: "0x1111111111111111111111111111111111111111", Strategy: "a"})
	require.NoError(t, err)

	_, err = mgr.JoinRound(ctx, r.ID, JoinRequest{Wallet: "0x2222222222222222222222222222222222222222", Strategy: "b"})
	require.Error(t, err)
	assert.Equal(t, engineerr.KindConflict, engineerr.KindOf(err))
}

func TestStartRoundRequiresMinParticipants(t *testing.T) {
	mgr, _ := newTestManager(t, llm.ParsedStrategy{}, llm.Signal{Action: "HOLD"})
	ctx := context.Background()
	r, err := mgr.CreateRound(ctx, CreateRoundConfig{Title: "R1", MinParticipants: 2, MaxParticipants: 5})
	require.NoError(t, err)

	err = mgr.StartRound(ctx, r.ID)
	require.Error(t, err)
	assert.Equal(t, engineerr.KindValidation, engineerr.KindOf(err))
}

func TestStartRoundAndEndRoundLifecycle(t *testing.T) {
	mgr, _ := newTestManager(t, llm.ParsedStrategy{Symbols: []string{"ETH"}}, llm.Signal{Action: "HOLD"})
	ctx := context.Background()
	r, err := mgr.CreateRound(ctx, CreateRoundConfig{Title: "R1", MinParticipants: 1, MaxParticipants: 5, DurationSeconds: 3600})
	require.NoError(t, err)

	_, err = mgr.JoinRound(ctx, r.ID, JoinRequest{Wallet: "0x1111111111111111111111111111111111111111", Strategy: "a"})
	require.NoError(t, err)

	require.NoError(t, mgr.StartRound(ctx, r.ID))
	started, err := mgr.GetRound(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, started.Status)

	err = mgr.StartRound(ctx, r.ID)
	require.Error(t, err, "starting an already-active round must fail")

	require.NoError(t, mgr.EndRound(ctx, r.ID))
	ended, err := mgr.GetRound(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, ended.Status)

	err = mgr.EndRound(ctx, r.ID)
	require.Error(t, err, "ending an already-ended round must fail")
}

func TestRunTickAppliesBuySignalAndRebuildsLeaderboard(t *testing.T) {
	mgr, signaler := newTestManager(t, llm.ParsedStrategy{Symbols: []string{"ETH"}}, llm.Signal{Action: "BUY", Confidence: 8})
	ctx := context.Background()

	r, err := mgr.CreateRound(ctx, CreateRoundConfig{Title: "R1", MinParticipants: 1, MaxParticipants: 5})
	require.NoError(t, err)

	wallet := "0x1111111111111111111111111111111111111111"
	_, err = mgr.JoinRound(ctx, r.ID, JoinRequest{Wallet: wallet, Strategy: "a"})
	require.NoError(t, err)

	r.Status = StatusActive
	require.NoError(t, mgr.save(ctx, r))

	mgr.runTick(ctx, r.ID)

	assert.EqualValues(t, 1, signaler.calls)

	p, err := mgr.getParticipant(ctx, r.ID, wallet)
	require.NoError(t, err)
	assert.Contains(t, p.Portfolio.Positions, "ETH")
	assert.Less(t, p.Portfolio.Cash, r.StartingBalance)

	logs, err := mgr.ParticipantLogs(ctx, r.ID, wallet)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "BUY", logs[0].Action)
	assert.True(t, logs[0].Executed)

	board, err := mgr.Leaderboard(ctx, r.ID, 10)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, wallet, board[0].Wallet)
}

func TestRunTickSuppressesPublishOnceRoundNoLongerActive(t *testing.T) {
	mgr, signaler := newTestManager(t, llm.ParsedStrategy{Symbols: []string{"ETH"}}, llm.Signal{Action: "BUY", Confidence: 8})
	ctx := context.Background()

	r, err := mgr.CreateRound(ctx, CreateRoundConfig{Title: "R1", MinParticipants: 1, MaxParticipants: 5})
	require.NoError(t, err)

	wallet := "0x1111111111111111111111111111111111111111"
	_, err = mgr.JoinRound(ctx, r.ID, JoinRequest{Wallet: wallet, Strategy: "a"})
	require.NoError(t, err)

	r.Status = StatusActive
	require.NoError(t, mgr.save(ctx, r))

	published := false
	unsubscribe := mgr.bus.Subscribe(eventbus.TopicLeaderboardUpdate, func(interface{}) { published = true })
	defer unsubscribe()

	// EndRound lands while this tick's single participant is mid-flight, exactly
	// the race the spec's suppression rule (§4.6) guards against.
	signaler.onCall = func() {
		require.NoError(t, mgr.EndRound(ctx, r.ID))
	}

	mgr.runTick(ctx, r.ID)

	assert.False(t, published, "a tick racing EndRound must not publish a leaderboard update for a finished round")

	ended, err := mgr.GetRound(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, ended.Status)
}

func TestCanJoinReportsAlreadyJoined(t *testing.T) {
	mgr, _ := newTestManager(t, llm.ParsedStrategy{}, llm.Signal{Action: "HOLD"})
	ctx := context.Background()
	r, err := mgr.CreateRound(ctx, CreateRoundConfig{Title: "R1", MaxParticipants: 5})
	require.NoError(t, err)

	wallet := "0x1111111111111111111111111111111111111111"
	_, err = mgr.JoinRound(ctx, r.ID, JoinRequest{Wallet: wallet, Strategy: "a"})
	require.NoError(t, err)

	ok, reason, err := mgr.CanJoin(ctx, r.ID, wallet)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "already joined", reason)
}

func TestRunTickIsolatesPerParticipantSignalFailures(t *testing.T) {
	mgr, signaler := newTestManager(t, llm.ParsedStrategy{Symbols: []string{"ETH"}}, llm.Signal{Action: "BUY", Confidence: 8})
	signaler.failSymbol = "ETH"
	signaler.failErr = assert.AnError
	ctx := context.Background()

	r, err := mgr.CreateRound(ctx, CreateRoundConfig{Title: "R1", MinParticipants: 1, MaxParticipants: 5})
	require.NoError(t, err)

	wallet := "0x1111111111111111111111111111111111111111"
	_, err = mgr.JoinRound(ctx, r.ID, JoinRequest{Wallet: wallet, Strategy: "a"})
	require.NoError(t, err)

	r.Status = StatusActive
	require.NoError(t, mgr.save(ctx, r))

	assert.NotPanics(t, func() { mgr.runTick(ctx, r.ID) })

	p, err := mgr.getParticipant(ctx, r.ID, wallet)
	require.NoError(t, err)
	assert.Empty(t, p.Portfolio.Positions, "a failed signal must never be treated as a trade")

	logs, err := mgr.ParticipantLogs(ctx, r.ID, wallet)
	require.NoError(t, err)
	assert.Empty(t, logs, "a failed signal is not logged, unlike a HOLD")
}

type fakeSnapshotRepository struct {
	rounds       []*Round
	participants [][]*Participant
	failWith     error
}

func (f *fakeSnapshotRepository) SaveSnapshot(_ context.Context, r *Round, participants []*Participant) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.rounds = append(f.rounds, r)
	f.participants = append(f.participants, participants)
	return nil
}

func TestSetSnapshotRepositoryMirrorsRoundAndParticipants(t *testing.T) {
	mgr, _ := newTestManager(t, llm.ParsedStrategy{}, llm.Signal{Action: "HOLD"})
	repo := &fakeSnapshotRepository{}
	mgr.SetSnapshotRepository(repo)
	ctx := context.Background()

	r, err := mgr.CreateRound(ctx, CreateRoundConfig{Title: "R1", MinParticipants: 1, MaxParticipants: 5})
	require.NoError(t, err)
	require.NotEmpty(t, repo.rounds, "creating a round must mirror a snapshot")

	wallet := "0x2222222222222222222222222222222222222222"
	_, err = mgr.JoinRound(ctx, r.ID, JoinRequest{Wallet: wallet, Strategy: "a"})
	require.NoError(t, err)

	last := repo.participants[len(repo.participants)-1]
	require.Len(t, last, 1)
	assert.Equal(t, wallet, last[0].Wallet)
}

func TestSetSnapshotRepositoryFailureNeverBlocksSave(t *testing.T) {
	mgr, _ := newTestManager(t, llm.ParsedStrategy{}, llm.Signal{Action: "HOLD"})
	mgr.SetSnapshotRepository(&fakeSnapshotRepository{failWith: assert.AnError})
	ctx := context.Background()

	_, err := mgr.CreateRound(ctx, CreateRoundConfig{Title: "R1", MinParticipants: 1, MaxParticipants: 5})
	assert.NoError(t, err, "a snapshot-mirror failure must never surface from CreateRound")
}

// TestJoinRoundSerializesConcurrentJoinsAtCapacity is the seed scenario S2: 5
// concurrent joins into a round with MaxParticipants=3 must leave exactly 3
// participants, never more (spec §8 property 1, |participants(R)| <= M).
func TestJoinRoundSerializesConcurrentJoinsAtCapacity(t *testing.T) {
	mgr, _ := newTestManager(t, llm.ParsedStrategy{}, llm.Signal{Action: "HOLD"})
	ctx := context.Background()

	r, err := mgr.CreateRound(ctx, CreateRoundConfig{Title: "R1", MinParticipants: 1, MaxParticipants: 3})
	require.NoError(t, err)

	const attempts = 5
	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			wallet := fmt.Sprintf("0x%040d", i+1)
			_, results[i] = mgr.JoinRound(ctx, r.ID, JoinRequest{Wallet: wallet, Strategy: "a"})
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
		}
	}
	assert.Equal(t, 3, successes, "exactly MaxParticipants joins should succeed")

	got, err := mgr.GetRound(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stats.TotalParticipants)
}

func TestEnhancedLeaderboardProfitScoreIsActualOverExpected(t *testing.T) {
	mgr, _ := newTestManager(t, llm.ParsedStrategy{}, llm.Signal{Action: "HOLD"})
	ctx := context.Background()

	r, err := mgr.CreateRound(ctx, CreateRoundConfig{Title: "R1", MinParticipants: 1, MaxParticipants: 5, ExpectedProfitPct: 10})
	require.NoError(t, err)

	wallet := "0x3333333333333333333333333333333333333333"
	_, err = mgr.JoinRound(ctx, r.ID, JoinRequest{Wallet: wallet, Strategy: "a"})
	require.NoError(t, err)

	p, err := mgr.getParticipant(ctx, r.ID, wallet)
	require.NoError(t, err)
	p.Portfolio.RealizedPnl = 500
	p.Portfolio.PercentPnl = 5
	require.NoError(t, mgr.saveParticipant(ctx, p))
	require.NoError(t, mgr.store.ZAdd(ctx, leaderboardKey(r.ID), p.Portfolio.PercentPnl, wallet))

	entries, err := mgr.EnhancedLeaderboard(ctx, r.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.InDelta(t, 0.5, entries[0].ProfitScore, 0.0001)
}

func TestProfitScoreZeroExpectedIsZero(t *testing.T) {
	assert.Equal(t, 0.0, profitScore(12, 0))
}
