package market

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"golang.org/x/sync/singleflight"

	"roundforge-api/internal/engineerr"
)

// Feed is the round engine's Price Feed (spec §4.2): a whitelist of tradable
// symbols, a fixed-duration snapshot cache, and a DEX-aggregator → generic spot
// endpoint → mock fallback chain. It never errors on a whitelisted symbol; an
// unknown symbol returns engineerr.KindValidation ("symbol not supported").
type Feed struct {
	cfg        *Config
	httpClient *http.Client

	mu    sync.Mutex
	cache map[string]cachedSnapshot

	misses singleflight.Group

	now  func() time.Time
	rand *rand.Rand
}

type cachedSnapshot struct {
	snap      Snapshot
	expiresAt time.Time
}

// NewFeed constructs a Feed from cfg. A nil httpClient defaults to one bounded by
// cfg.HTTPTimeout.
func NewFeed(cfg *Config, httpClient *http.Client) *Feed {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	return &Feed{
		cfg:        cfg,
		httpClient: httpClient,
		cache:      make(map[string]cachedSnapshot),
		now:        time.Now,
		rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// IsAllowed reports whether symbol is on the whitelist.
func (f *Feed) IsAllowed(symbol string) bool {
	_, ok := f.cfg.Whitelist[strings.ToUpper(symbol)]
	return ok
}

// ListAllowed returns the whitelisted symbols, sorted for determinism.
func (f *Feed) ListAllowed() []string {
	out := make([]string, 0, len(f.cfg.Whitelist))
	for symbol := range f.cfg.Whitelist {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// GetPrice returns the current Snapshot for symbol. Unknown symbols never reach the
// network — they fail fast with engineerr.KindValidation per spec §4.2.
func (f *Feed) GetPrice(ctx context.Context, symbol string) (Snapshot, error) {
	symbol = strings.ToUpper(symbol)
	entry, ok := f.cfg.Whitelist[symbol]
	if !ok {
		return Snapshot{}, engineerr.New(engineerr.KindValidation, fmt.Sprintf("symbol not supported: %s", symbol))
	}

	if snap, ok := f.cachedSnapshot(symbol); ok {
		return snap, nil
	}

	// The cache check above is the suspension point (spec §5): concurrent misses for
	// the same symbol, as routinely happens when several participants in the same
	// tick trade the same candidate symbol, collapse onto a single upstream fetch
	// instead of each firing their own.
	result, err, _ := f.misses.Do(symbol, func() (interface{}, error) {
		snap, err := f.fetchFromDex(ctx, entry)
		if err != nil {
			logx.WithContext(ctx).Infof("market: dex aggregator miss for %s: %v", symbol, err)
			snap, err = f.fetchFromSpot(ctx, entry)
		}
		if err != nil {
			logx.WithContext(ctx).Errorf("market: all upstreams failed for %s, falling back to mock: %v", symbol, err)
			snap = f.mockSnapshot(entry)
		}
		f.storeSnapshot(symbol, snap)
		return snap, nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return result.(Snapshot), nil
}

// GetTrending returns up to limit whitelisted symbols' snapshots ordered by
// |Change24h| descending, fetching (or serving from cache) each one. Per-symbol
// upstream failures degrade to mock, never abort the whole call.
func (f *Feed) GetTrending(ctx context.Context, limit int) ([]Snapshot, error) {
	symbols := f.ListAllowed()
	snaps := make([]Snapshot, 0, len(symbols))
	for _, symbol := range symbols {
		snap, err := f.GetPrice(ctx, symbol)
		if err != nil {
			continue
		}
		snaps = append(snaps, snap)
	}
	sort.Slice(snaps, func(i, j int) bool {
		return abs(snaps[i].Change24h) > abs(snaps[j].Change24h)
	})
	if limit > 0 && len(snaps) > limit {
		snaps = snaps[:limit]
	}
	return snaps, nil
}

func (f *Feed) cachedSnapshot(symbol string) (Snapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.cache[symbol]
	if !ok || f.now().After(entry.expiresAt) {
		return Snapshot{}, false
	}
	return entry.snap, true
}

func (f *Feed) storeSnapshot(symbol string, snap Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache[symbol] = cachedSnapshot{snap: snap, expiresAt: f.now().Add(f.cfg.CacheTTL)}
}

// fetchFromDex queries the DEX aggregator restricted to cfg.Chain, filters by the
// minimum liquidity threshold, and picks the highest-liquidity pool.
func (f *Feed) fetchFromDex(ctx context.Context, entry WhitelistEntry) (Snapshot, error) {
	url := fmt.Sprintf("%s/tokens/%s", f.cfg.DexAggregatorURL, entry.Address)
	var resp dexPoolResponse
	if err := httpGetJSON(ctx, f.httpClient, "dex-aggregator", url, &resp); err != nil {
		return Snapshot{}, err
	}

	var best *dexPool
	for i := range resp.Pairs {
		p := &resp.Pairs[i]
		if p.ChainID != f.cfg.Chain {
			continue
		}
		if p.Liquidity.USD < f.cfg.MinLiquidityUSD {
			continue
		}
		if best == nil || p.Liquidity.USD > best.Liquidity.USD {
			best = p
		}
	}
	if best == nil {
		return Snapshot{}, fmt.Errorf("market: no pool for %s met liquidity threshold on chain %s", entry.Symbol, f.cfg.Chain)
	}

	price, err := strconv.ParseFloat(best.PriceUSD, 64)
	if err != nil {
		return Snapshot{}, fmt.Errorf("market: parse dex price for %s: %w", entry.Symbol, err)
	}

	return Snapshot{
		Symbol:       entry.Symbol,
		Price:        price,
		Change24h:    best.PriceChange.H24 / 100,
		Volume24h:    best.Volume.H24,
		Liquidity:    best.Liquidity.USD,
		MarketCapUSD: best.FDV,
		Source:       SourceDEX,
		Timestamp:    f.now(),
	}, nil
}

// fetchFromSpot queries the generic spot-price endpoint, which carries no liquidity
// or 24h-change data — those fields are left zero.
func (f *Feed) fetchFromSpot(ctx context.Context, entry WhitelistEntry) (Snapshot, error) {
	url := fmt.Sprintf("%s/%s-USD/spot", f.cfg.SpotFallbackURL, entry.Symbol)
	var resp spotPriceResponse
	if err := httpGetJSON(ctx, f.httpClient, "spot-fallback", url, &resp); err != nil {
		return Snapshot{}, err
	}

	price, err := strconv.ParseFloat(resp.Data.Amount, 64)
	if err != nil {
		return Snapshot{}, fmt.Errorf("market: parse spot price for %s: %w", entry.Symbol, err)
	}

	return Snapshot{
		Symbol:    entry.Symbol,
		Price:     price,
		Source:    SourceSpot,
		Timestamp: f.now(),
	}, nil
}

// mockSnapshot perturbs entry's reference price by up to ±5% and tags the result
// source=mock so tests and clients can detect it, per spec §4.2.
func (f *Feed) mockSnapshot(entry WhitelistEntry) Snapshot {
	f.mu.Lock()
	pct := (f.rand.Float64()*2 - 1) * 0.05
	f.mu.Unlock()
	return Snapshot{
		Symbol:    entry.Symbol,
		Price:     entry.ReferencePrice * (1 + pct),
		Change24h: pct,
		Source:    SourceMock,
		Timestamp: f.now(),
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
