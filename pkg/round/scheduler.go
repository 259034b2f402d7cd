package round

import (
	"context"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"golang.org/x/sync/semaphore"

	"roundforge-api/pkg/eventbus"
	"roundforge-api/pkg/journal"
	"roundforge-api/pkg/llm"
	"roundforge-api/pkg/market"
	"roundforge-api/pkg/portfolio"
)

// runScheduler drives round id's periodic execution loop: on a fixed-delay timer
// (not fixed-rate — the next tick is scheduled only after the current one finishes),
// fan out across participants bounded at min(participantCount, MaxFanOutConcurrency),
// then rebuild the leaderboard once every participant in the tick has been revalued
// (spec §4.6 execution scheduler, §5 concurrency model).
func (m *Manager) runScheduler(ctx context.Context, roundID string) {
	for {
		interval := m.defaults.ExecutionInterval
		if r, err := m.GetRound(ctx, roundID); err == nil && r.Settings.ExecutionInterval > 0 {
			interval = r.Settings.ExecutionInterval
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if ctx.Err() != nil {
			return
		}
		m.runTick(ctx, roundID)
	}
}

// runTick executes one pass over every active participant in roundID.
func (m *Manager) runTick(ctx context.Context, roundID string) {
	r, err := m.GetRound(ctx, roundID)
	if err != nil {
		logx.WithContext(ctx).Errorf("round: tick aborted, failed to load round=%s: %v", roundID, err)
		return
	}
	if r.Status != StatusActive {
		return
	}

	wallets, err := m.store.SMembers(ctx, participantsSetKey(roundID))
	if err != nil {
		logx.WithContext(ctx).Errorf("round: tick aborted, failed to list participants for round=%s: %v", roundID, err)
		return
	}
	if len(wallets) == 0 {
		return
	}

	concurrency := len(wallets)
	if concurrency > m.defaults.MaxFanOutConcurrency {
		concurrency = m.defaults.MaxFanOutConcurrency
	}
	sem := semaphore.NewWeighted(int64(concurrency))

	done := make(chan struct{}, len(wallets))
	for _, wallet := range wallets {
		wallet := wallet
		if err := sem.Acquire(ctx, 1); err != nil {
			done <- struct{}{}
			continue
		}
		go func() {
			defer sem.Release(1)
			defer func() { done <- struct{}{} }()
			m.runParticipantTick(ctx, r, wallet)
		}()
	}
	for i := 0; i < len(wallets); i++ {
		<-done
	}

	// A tick already in flight runs to completion, but its post-tick publish is
	// suppressed once the round is no longer active (spec §4.6) — EndRound may have
	// landed while the fan-out above was running.
	if r, err := m.GetRound(ctx, roundID); err != nil || r.Status != StatusActive {
		return
	}

	if _, err := m.rebuildLeaderboard(ctx, roundID); err != nil {
		logx.WithContext(ctx).Errorf("round: leaderboard rebuild failed for round=%s: %v", roundID, err)
		return
	}
	top, err := m.Leaderboard(ctx, roundID, leaderboardUpdateTopN)
	if err != nil {
		logx.WithContext(ctx).Errorf("round: leaderboard reload failed for round=%s: %v", roundID, err)
		return
	}
	m.bus.Publish(eventbus.TopicLeaderboardUpdate, LeaderboardUpdate{RoundID: roundID, Top: top})
}

// runParticipantTick performs one participant's causally-ordered cycle: price ->
// signal -> trade -> log. A failure at any stage is isolated to this wallet and this
// symbol; it never aborts the tick for other participants (spec §4.6/§7).
func (m *Manager) runParticipantTick(ctx context.Context, r *Round, wallet string) {
	p, err := m.getParticipant(ctx, r.ID, wallet)
	if err != nil || !p.Active {
		return
	}

	symbols := m.candidateSymbols(p.Binding.Parsed, r)

	mutated := false
	for _, symbol := range symbols {
		snap, err := m.feed.GetPrice(ctx, symbol)
		if err != nil {
			logx.WithContext(ctx).Infof("round: price lookup failed for round=%s wallet=%s symbol=%s: %v", r.ID, wallet, symbol, err)
			continue
		}

		signal, err := m.signaler.GenerateSignal(ctx, snap, p.Binding.Parsed)
		if err != nil {
			logx.WithContext(ctx).Errorf("round: signal generation failed for round=%s wallet=%s symbol=%s: %v", r.ID, wallet, symbol, err)
			m.record(ctx, r.ID, wallet, symbol, snap, p.Binding.Parsed, llm.Signal{}, false, err)
			continue
		}

		executed := m.applySignal(p, symbol, snap, signal, r.Settings)
		mutated = mutated || executed
		m.record(ctx, r.ID, wallet, symbol, snap, p.Binding.Parsed, signal, executed, nil)

		m.appendLog(ctx, r.ID, wallet, TradeLogEntry{
			Timestamp:  m.now(),
			Symbol:     symbol,
			Action:     signal.Action,
			Price:      snap.Price,
			Confidence: signal.Confidence,
			Reason:     signal.Reason,
			Executed:   executed,
		})
	}

	priceLookup := func(symbol string) (float64, bool) {
		snap, err := m.feed.GetPrice(ctx, symbol)
		if err != nil {
			return 0, false
		}
		return snap.Price, true
	}
	portfolio.Revalue(p.Portfolio, priceLookup)

	if mutated {
		r.Stats.TotalTrades++
	}
	if err := m.saveParticipant(ctx, p); err != nil {
		logx.WithContext(ctx).Errorf("round: failed to persist participant round=%s wallet=%s: %v", r.ID, wallet, err)
	}
}

// candidateSymbols selects at most three symbols to price and trade this tick:
// the strategy's suggested_symbols if present, else its symbols, capped at the
// first three entries and filtered by the Price Feed whitelist (spec §4.2
// candidate-symbol selection). A strategy naming no symbols at all, or naming
// only symbols the feed rejects, falls back to the round's own allow-list and
// finally to every whitelisted symbol.
func (m *Manager) candidateSymbols(parsed llm.ParsedStrategy, r *Round) []string {
	candidates := parsed.SuggestedSymbols
	if len(candidates) == 0 {
		candidates = parsed.Symbols
	}
	if len(candidates) > 3 {
		candidates = candidates[:3]
	}

	symbols := make([]string, 0, len(candidates))
	for _, s := range candidates {
		if m.feed.IsAllowed(s) {
			symbols = append(symbols, s)
		}
	}
	if len(symbols) > 0 {
		return symbols
	}

	for _, s := range r.Settings.AllowedSymbols {
		if m.feed.IsAllowed(s) {
			symbols = append(symbols, s)
		}
	}
	if len(symbols) > 0 {
		return symbols
	}
	return m.feed.ListAllowed()
}

// applySignal routes a BUY/SELL/HOLD signal to the Portfolio Engine. HOLD and any
// signal below the policy's minimum sizing rule are a no-op that still gets logged.
func (m *Manager) applySignal(p *Participant, symbol string, snap market.Snapshot, signal llm.Signal, settings Settings) bool {
	policy := portfolio.Policy{
		MaxPositionFraction: settings.MaxPositionFraction,
		TradingFeeRate:      settings.TradingFeeRate,
	}
	switch signal.Action {
	case "BUY":
		return portfolio.ApplyBuy(p.Portfolio, symbol, snap.Price, signal.Confidence, policy)
	case "SELL":
		return portfolio.ApplySell(p.Portfolio, symbol, snap.Price)
	default:
		return false
	}
}

// record journals one signal cycle. A recorder failure is logged, never
// propagated — journaling is diagnostic, not load-bearing for the round.
func (m *Manager) record(ctx context.Context, roundID, wallet, symbol string, snap market.Snapshot, parsed llm.ParsedStrategy, signal llm.Signal, executed bool, genErr error) {
	rec := journal.CycleRecord{
		RoundID:   roundID,
		Wallet:    wallet,
		Symbol:    symbol,
		Timestamp: m.now(),
		Snapshot:  snap,
		Strategy:  parsed,
		Signal:    signal,
		Executed:  executed,
		Success:   genErr == nil,
	}
	if genErr != nil {
		rec.Error = genErr.Error()
	}
	if err := m.recorder.Record(ctx, rec); err != nil {
		logx.WithContext(ctx).Infof("round: journal record failed for round=%s wallet=%s symbol=%s: %v", roundID, wallet, symbol, err)
	}
}

// rebuildLeaderboard recomputes every participant's score and writes it to the
// round's sorted set (spec §4.6 step 5). Ranking is by PercentPnl, matching the
// teacher's convention of ranking traders by return rather than absolute PnL.
func (m *Manager) rebuildLeaderboard(ctx context.Context, roundID string) (int, error) {
	wallets, err := m.store.SMembers(ctx, participantsSetKey(roundID))
	if err != nil {
		return 0, err
	}
	count := 0
	for _, wallet := range wallets {
		p, err := m.getParticipant(ctx, roundID, wallet)
		if err != nil {
			continue
		}
		if err := m.store.ZAdd(ctx, leaderboardKey(roundID), p.Portfolio.PercentPnl, wallet); err != nil {
			logx.WithContext(ctx).Errorf("round: ZAdd failed for round=%s wallet=%s: %v", roundID, wallet, err)
			continue
		}
		count++
	}
	return count, nil
}
