package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/zeromicro/go-zero/core/logx"

	"roundforge-api/internal/engineerr"
	"roundforge-api/internal/kvstore"
	"roundforge-api/pkg/llm"
)

// Registry is the Strategy Registry (spec §4.4), persisted through store using the
// key layout from spec §6: strategy:{id}, user:strategies:{wallet} (set),
// strategy:{id}:licenses (set), license:{wallet}:{roundId}, strategy:counter.
type Registry struct {
	store  kvstore.Store
	parser llm.StrategyParser
}

// New constructs a Registry backed by store, using parser for ParseStrategy calls on
// Register and ParseFor.
func New(store kvstore.Store, parser llm.StrategyParser) *Registry {
	return &Registry{store: store, parser: parser}
}

func strategyKey(id int64) string   { return fmt.Sprintf("strategy:%d", id) }
func ownerSetKey(owner string) string { return fmt.Sprintf("user:strategies:%s", owner) }
func licensesSetKey(id int64) string  { return fmt.Sprintf("strategy:%d:licenses", id) }
func licenseKey(licensee, roundID string) string {
	return fmt.Sprintf("license:%s:%s", licensee, roundID)
}

// normalizeWallet canonicalizes a wallet address the way go-ethereum's common package
// does for any other on-chain identity in this codebase; an address that isn't valid
// hex is left as-is (the engine treats it as an opaque identifier, per spec §9).
func normalizeWallet(addr string) string {
	if common.IsHexAddress(addr) {
		return common.HexToAddress(addr).Hex()
	}
	return addr
}

// Register assigns the next strategy id, parses text via the LLM client, persists
// the record, and indexes it under the owner's set (spec §4.4).
func (r *Registry) Register(ctx context.Context, owner, text string, royaltyPct float64, name, desc string) (*Strategy, error) {
	owner = normalizeWallet(owner)
	if royaltyPct < minRoyaltyPct || royaltyPct > maxRoyaltyPct {
		return nil, engineerr.Newf(engineerr.KindValidation, "royalty percent must be between %d and %d", minRoyaltyPct, maxRoyaltyPct)
	}
	if strings.TrimSpace(text) == "" {
		return nil, engineerr.New(engineerr.KindValidation, "strategy text cannot be empty")
	}

	id, err := r.store.Incr(ctx, "strategy:counter")
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindStoreUnavailable, "failed to allocate strategy id", err)
	}

	parsed, err := r.parser.ParseStrategy(ctx, text)
	if err != nil {
		logx.WithContext(ctx).Errorf("strategy: ParseStrategy failed for owner=%s: %v", owner, err)
	}

	now := nowFunc()
	s := &Strategy{
		ID:          id,
		Owner:       owner,
		Name:        name,
		Description: desc,
		Text:        text,
		Parsed:      parsed,
		RoyaltyPct:  royaltyPct,
		Active:      true,
		Tags:        []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := r.save(ctx, s); err != nil {
		return nil, err
	}
	if err := r.store.SAdd(ctx, ownerSetKey(owner), strconv.FormatInt(id, 10)); err != nil {
		return nil, engineerr.Wrap(engineerr.KindStoreUnavailable, "failed to index strategy under owner", err)
	}
	return s, nil
}

func (r *Registry) save(ctx context.Context, s *Strategy) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return engineerr.Wrap(engineerr.KindInternal, "failed to encode strategy", err)
	}
	if err := r.store.Set(ctx, strategyKey(s.ID), string(raw), strategyTTL); err != nil {
		return engineerr.Wrap(engineerr.KindStoreUnavailable, "failed to persist strategy", err)
	}
	return nil
}

// Get loads the strategy with id.
func (r *Registry) Get(ctx context.Context, id int64) (*Strategy, error) {
	raw, ok, err := r.store.Get(ctx, strategyKey(id))
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindStoreUnavailable, "failed to load strategy", err)
	}
	if !ok {
		return nil, engineerr.Newf(engineerr.KindNotFound, "strategy %d not found", id)
	}
	var s Strategy
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, engineerr.Wrap(engineerr.KindInternal, "failed to decode strategy", err)
	}
	return &s, nil
}

// ParseFor re-parses an already-registered strategy's text, without mutating the
// stored record.
func (r *Registry) ParseFor(ctx context.Context, id int64) (llm.ParsedStrategy, error) {
	s, err := r.Get(ctx, id)
	if err != nil {
		return llm.ParsedStrategy{}, err
	}
	return r.parser.ParseStrategy(ctx, s.Text)
}

// ListByOwner returns every strategy registered by owner.
func (r *Registry) ListByOwner(ctx context.Context, owner string) ([]*Strategy, error) {
	owner = normalizeWallet(owner)
	ids, err := r.store.SMembers(ctx, ownerSetKey(owner))
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindStoreUnavailable, "failed to list owner strategies", err)
	}
	out := make([]*Strategy, 0, len(ids))
	for _, idStr := range ids {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			continue
		}
		s, err := r.Get(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListTop scans the strategy keyspace in cursor pages, loads each record, filters by
// active ∧ verified, and ranks by winRate × totalUses descending (spec §4.4).
func (r *Registry) ListTop(ctx context.Context, limit int) ([]*Strategy, error) {
	keys, err := r.store.Keys(ctx, "strategy:*")
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindStoreUnavailable, "failed to scan strategy keyspace", err)
	}

	var candidates []*Strategy
	for page := 0; page*listTopPageSize < len(keys); page++ {
		start := page * listTopPageSize
		end := start + listTopPageSize
		if end > len(keys) {
			end = len(keys)
		}
		for _, key := range keys[start:end] {
			if strings.Contains(key, ":licenses") || key == "strategy:counter" {
				continue
			}
			raw, ok, err := r.store.Get(ctx, key)
			if err != nil || !ok {
				continue
			}
			var s Strategy
			if err := json.Unmarshal([]byte(raw), &s); err != nil {
				continue
			}
			if s.Active && s.Verified {
				candidates = append(candidates, &s)
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return rankScore(candidates[i]) > rankScore(candidates[j])
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func rankScore(s *Strategy) float64 {
	return s.Stats.WinRate * float64(s.Stats.TotalUses)
}

// Search does a case-insensitive substring match over name, description, and text,
// capped at limit results ordered by id ascending.
func (r *Registry) Search(ctx context.Context, query string, limit int) ([]*Strategy, error) {
	keys, err := r.store.Keys(ctx, "strategy:*")
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindStoreUnavailable, "failed to scan strategy keyspace", err)
	}
	q := strings.ToLower(strings.TrimSpace(query))

	var matches []*Strategy
	for _, key := range keys {
		if strings.Contains(key, ":licenses") || key == "strategy:counter" {
			continue
		}
		raw, ok, err := r.store.Get(ctx, key)
		if err != nil || !ok {
			continue
		}
		var s Strategy
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			continue
		}
		haystack := strings.ToLower(s.Name + " " + s.Description + " " + s.Text)
		if q == "" || strings.Contains(haystack, q) {
			matches = append(matches, &s)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// UpdateStats folds a trade outcome into a strategy's aggregate stats (spec §4.4).
func (r *Registry) UpdateStats(ctx context.Context, id int64, outcome Outcome) error {
	s, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	s.Stats.TotalUses++
	s.Stats.TotalTrades++
	s.Stats.TotalEarnings += outcome.EarningsUSD
	if outcome.Won {
		s.Stats.SuccessfulTrades++
	}
	if s.Stats.TotalTrades > 0 {
		s.Stats.WinRate = float64(s.Stats.SuccessfulTrades) / float64(s.Stats.TotalTrades) * 100
	}
	if outcome.ReturnPct > s.Stats.BestPerformance {
		s.Stats.BestPerformance = outcome.ReturnPct
	}
	s.Stats.AverageReturn = ((s.Stats.AverageReturn * float64(s.Stats.TotalTrades-1)) + outcome.ReturnPct) / float64(s.Stats.TotalTrades)
	s.UpdatedAt = nowFunc()

	return r.save(ctx, s)
}

// License grants licensee a license on strategy id for round roundID (spec §4.4).
func (r *Registry) License(ctx context.Context, licensee string, id int64, roundID string) (*License, error) {
	licensee = normalizeWallet(licensee)
	s, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.Active {
		return nil, engineerr.New(engineerr.KindValidation, "strategy is not active")
	}
	if licensee == s.Owner {
		return nil, engineerr.New(engineerr.KindValidation, "cannot license your own strategy")
	}

	key := licenseKey(licensee, roundID)
	if _, ok, err := r.store.Get(ctx, key); err != nil {
		return nil, engineerr.Wrap(engineerr.KindStoreUnavailable, "failed to check existing license", err)
	} else if ok {
		return nil, engineerr.New(engineerr.KindConflict, "already licensed a strategy for this round")
	}

	lic := &License{
		Licensee:      licensee,
		StrategyID:    id,
		RoundID:       roundID,
		StrategyOwner: s.Owner,
		RoyaltyPct:    s.RoyaltyPct,
		Active:        true,
		CreatedAt:     nowFunc(),
	}
	raw, err := json.Marshal(lic)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindInternal, "failed to encode license", err)
	}
	if err := r.store.Set(ctx, key, string(raw), licenseTTL); err != nil {
		return nil, engineerr.Wrap(engineerr.KindStoreUnavailable, "failed to persist license", err)
	}
	if err := r.store.SAdd(ctx, licensesSetKey(id), licensee); err != nil {
		return nil, engineerr.Wrap(engineerr.KindStoreUnavailable, "failed to index license", err)
	}
	return lic, nil
}

// GetLicense loads the license, if any, that licensee holds for roundID.
func (r *Registry) GetLicense(ctx context.Context, licensee, roundID string) (*License, error) {
	licensee = normalizeWallet(licensee)
	raw, ok, err := r.store.Get(ctx, licenseKey(licensee, roundID))
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindStoreUnavailable, "failed to load license", err)
	}
	if !ok {
		return nil, engineerr.New(engineerr.KindNotFound, "no license found")
	}
	var lic License
	if err := json.Unmarshal([]byte(raw), &lic); err != nil {
		return nil, engineerr.Wrap(engineerr.KindInternal, "failed to decode license", err)
	}
	return &lic, nil
}

// SetStatus toggles a strategy's active flag; only the owner may call this.
func (r *Registry) SetStatus(ctx context.Context, id int64, owner string, active bool) error {
	owner = normalizeWallet(owner)
	s, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if s.Owner != owner {
		return engineerr.New(engineerr.KindValidation, "only the owner may change strategy status")
	}
	s.Active = active
	s.UpdatedAt = nowFunc()
	return r.save(ctx, s)
}

// SetVerified toggles a strategy's verified flag. Administrator-only by convention;
// the registry itself does not enforce caller identity.
func (r *Registry) SetVerified(ctx context.Context, id int64, verified bool) error {
	s, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	s.Verified = verified
	s.UpdatedAt = nowFunc()
	return r.save(ctx, s)
}

// nowFunc is indirected so tests can freeze time, mirroring the teacher's
// pkg/llm.BudgetGuard.now pattern.
var nowFunc = time.Now
