package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// APIError is returned for any non-2xx response from an upstream price endpoint,
// mirroring gopher-lab-kalshi-go's pkg/rest.APIError shape (status code plus upstream
// message, no retry policy baked in — callers decide how to degrade).
type APIError struct {
	Upstream   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("market: %s returned %d: %s", e.Upstream, e.StatusCode, e.Body)
}

// httpGetJSON performs a GET against url and unmarshals the JSON body into out.
func httpGetJSON(ctx context.Context, client *http.Client, upstream, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("market: build request for %s: %w", upstream, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("market: request to %s: %w", upstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("market: read response from %s: %w", upstream, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Upstream: upstream, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("market: decode response from %s: %w", upstream, err)
	}
	return nil
}

// dexPoolResponse is the subset of a DEX aggregator's pool-search payload the feed
// needs: symbol, price, 24h change/volume, and pool liquidity/fdv, across any number
// of pools for the queried pair — the feed picks the pool with highest liquidity.
type dexPoolResponse struct {
	Pairs []dexPool `json:"pairs"`
}

type dexPool struct {
	ChainID      string  `json:"chainId"`
	BaseToken    struct {
		Symbol string `json:"symbol"`
	} `json:"baseToken"`
	PriceUSD     string  `json:"priceUsd"`
	Liquidity    struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	FDV          float64 `json:"fdv"`
	PriceChange  struct {
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
}

// spotPriceResponse is the subset of a generic spot-price endpoint's payload the feed
// needs when the DEX aggregator is unavailable.
type spotPriceResponse struct {
	Data struct {
		Amount string `json:"amount"`
	} `json:"data"`
}
