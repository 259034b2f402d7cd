package market

import (
	"context"
	"net/http"
	"testing"

	"github.com/dnaeon/go-vcr/recorder"
	"github.com/stretchr/testify/require"
)

// TestFeedGetPriceFromDexCassette replays a recorded DEX-aggregator response
// instead of hitting a live httptest server, the way gopher-lab-kalshi-go
// records exchange fixtures for its REST client tests. Unlike
// TestFeedGetPriceFromDex's httptest server, this exercises the feed against
// a fixed byte-for-byte upstream payload that never drifts between runs.
func TestFeedGetPriceFromDexCassette(t *testing.T) {
	r, err := recorder.New("testdata/fixtures/dex_eth")
	require.NoError(t, err)
	defer func() { require.NoError(t, r.Stop()) }()

	cfg := testConfig("http://dex-aggregator.test", "http://unused")
	feed := NewFeed(cfg, &http.Client{Transport: r})

	snap, err := feed.GetPrice(context.Background(), "ETH")
	require.NoError(t, err)
	require.Equal(t, SourceDEX, snap.Source)
	require.InDelta(t, 3050.25, snap.Price, 0.001)
	require.InDelta(t, 0.042, snap.Change24h, 0.0001)
	require.InDelta(t, 25000, snap.Liquidity, 0.001)
}
