package market

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(dexURL, spotURL string) *Config {
	return &Config{
		Chain:            "base",
		CacheTTL:         30 * time.Second,
		MinLiquidityUSD:  5000,
		DexAggregatorURL: dexURL,
		SpotFallbackURL:  spotURL,
		HTTPTimeout:      2 * time.Second,
		Whitelist: map[string]WhitelistEntry{
			"ETH": {Symbol: "ETH", Address: "0xeth", Chain: "base", ReferencePrice: 3000},
		},
	}
}

func TestFeedGetPriceUnknownSymbol(t *testing.T) {
	f := NewFeed(testConfig("http://unused", "http://unused"), nil)
	_, err := f.GetPrice(context.Background(), "DOGE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symbol not supported")
}

func TestFeedGetPriceFromDex(t *testing.T) {
	dex := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := dexPoolResponse{Pairs: []dexPool{
			{
				ChainID:   "base",
				PriceUSD:  "3000.50",
				Liquidity: struct{ USD float64 `json:"usd"` }{USD: 10000},
				FDV:       1000000,
			},
			{
				ChainID:   "base",
				PriceUSD:  "1.00",
				Liquidity: struct{ USD float64 `json:"usd"` }{USD: 500}, // below threshold
			},
		}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer dex.Close()

	f := NewFeed(testConfig(dex.URL, "http://unused"), nil)
	snap, err := f.GetPrice(context.Background(), "eth")
	require.NoError(t, err)
	assert.Equal(t, SourceDEX, snap.Source)
	assert.Equal(t, 3000.50, snap.Price)
	assert.Equal(t, "ETH", snap.Symbol)
}

func TestFeedGetPriceFallsBackToSpot(t *testing.T) {
	dex := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer dex.Close()

	spot := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var resp spotPriceResponse
		resp.Data.Amount = "2950.10"
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer spot.Close()

	f := NewFeed(testConfig(dex.URL, spot.URL), nil)
	snap, err := f.GetPrice(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, SourceSpot, snap.Source)
	assert.Equal(t, 2950.10, snap.Price)
}

func TestFeedGetPriceFallsBackToMock(t *testing.T) {
	dex := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer dex.Close()
	spot := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer spot.Close()

	f := NewFeed(testConfig(dex.URL, spot.URL), nil)
	snap, err := f.GetPrice(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, SourceMock, snap.Source)
	assert.InDelta(t, 3000, snap.Price, 3000*0.05+0.01)
}

func TestFeedCachesWithinTTL(t *testing.T) {
	calls := 0
	dex := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		resp := dexPoolResponse{Pairs: []dexPool{{
			ChainID:   "base",
			PriceUSD:  "3000.00",
			Liquidity: struct{ USD float64 `json:"usd"` }{USD: 10000},
		}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer dex.Close()

	f := NewFeed(testConfig(dex.URL, "http://unused"), nil)
	_, err := f.GetPrice(context.Background(), "ETH")
	require.NoError(t, err)
	_, err = f.GetPrice(context.Background(), "ETH")
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "second call within the TTL window should be served from cache")
}

func TestFeedDeduplicatesConcurrentMissesForSameSymbol(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	dex := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
		resp := dexPoolResponse{Pairs: []dexPool{{
			ChainID:   "base",
			PriceUSD:  "3000.00",
			Liquidity: struct{ USD float64 `json:"usd"` }{USD: 10000},
		}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer dex.Close()

	f := NewFeed(testConfig(dex.URL, "http://unused"), nil)

	const fanout = 10
	var wg sync.WaitGroup
	for i := 0; i < fanout; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.GetPrice(context.Background(), "ETH")
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond) // let every goroutine reach the in-flight dedup before the upstream responds
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "concurrent misses for the same symbol should collapse onto one upstream fetch")
}

func TestFeedListAndIsAllowed(t *testing.T) {
	f := NewFeed(testConfig("http://unused", "http://unused"), nil)
	assert.True(t, f.IsAllowed("eth"))
	assert.False(t, f.IsAllowed("doge"))
	assert.Equal(t, []string{"ETH"}, f.ListAllowed())
}
