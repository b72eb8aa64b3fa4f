// Package dexscreener implements the resilient DEX pair/liquidity client
// (component C2): an HTTP client fronted by a circuit breaker, exponential
// backoff retry, and an in-memory, process-wide result cache used both to
// avoid redundant calls and as a fallback when the breaker is OPEN.
//
// The cache-first / stale-on-failure shape is grounded on
// internal/clients/openfigi/client.go's LookupISIN. That client persists its
// cache to SQLite via clientdata.Repository; this one keeps its cache
// in-process (a plain mutex-guarded map) because the spec requires the DEX
// client cache to be process-wide in-memory state, not a durable table.
package dexscreener

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrCircuitOpen is returned when the breaker is OPEN and short-circuits the call.
var ErrCircuitOpen = fmt.Errorf("dexscreener: circuit open")

// PoolSnapshot is the per-pool feature set recognized from the provider's
// JSON response, per SPEC_FULL.md §6. Unknown fields are ignored; missing
// fields default to zero.
type PoolSnapshot struct {
	DexID         string
	PairAddress   string
	QuoteSymbol   string
	LiquidityUSD  float64
	TxBuys5m      int
	TxSells5m     int
	TxBuys1h      int
	TxSells1h     int
	Volume5mUSD   float64
	Volume1hUSD   float64
	PriceChange5m  float64
	PriceChange15m float64
	PriceChange1h  float64
}

type dexscreenerPair struct {
	DexID       string `json:"dexId"`
	PairAddress string `json:"pairAddress"`
	QuoteToken  struct {
		Symbol string `json:"symbol"`
	} `json:"quoteToken"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	Txns struct {
		M5 struct {
			Buys  int `json:"buys"`
			Sells int `json:"sells"`
		} `json:"m5"`
		H1 struct {
			Buys  int `json:"buys"`
			Sells int `json:"sells"`
		} `json:"h1"`
	} `json:"txns"`
	Volume struct {
		M5 float64 `json:"m5"`
		H1 float64 `json:"h1"`
	} `json:"volume"`
	PriceChange struct {
		M5  float64 `json:"m5"`
		M15 float64 `json:"m15"`
		H1  float64 `json:"h1"`
	} `json:"priceChange"`
}

type pairsResponse struct {
	Pairs []dexscreenerPair `json:"pairs"`
}

// Config tunes the client's timeout, breaker, and cache behavior; all fields
// mirror settings keys (SPEC_FULL.md §4.1) so callers typically populate this
// from the settings service.
type Config struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	FailureThreshold  int
	RecoveryTimeout   time.Duration
	HalfOpenMaxCalls  int
	CacheTTL          time.Duration
	MaxRetries        int
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.dexscreener.com/latest/dex"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = 60 * time.Second
	}
	if c.HalfOpenMaxCalls <= 0 {
		c.HalfOpenMaxCalls = 3
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	return c
}

// Client is the resilient DEX pair/liquidity client (C2).
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        zerolog.Logger

	breaker *circuitBreaker
	cache   *resultCache
}

// NewClient builds a Client. cfg is normalized with withDefaults().
func NewClient(cfg Config, log zerolog.Logger) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log.With().Str("component", "dexscreener_client").Logger(),
		breaker:    newCircuitBreaker(cfg.FailureThreshold, cfg.RecoveryTimeout, cfg.HalfOpenMaxCalls),
		cache:      newResultCache(cfg.CacheTTL),
	}
}

// GetPairs returns the pool snapshots for mint, serving stale cache when the
// circuit is open or a fetch fails. With no cached fallback it returns
// (nil, nil) after a failed fetch (retries exhausted or non-transient
// failure) and (nil, ErrCircuitOpen) when the circuit is open. The caller
// (C9's per-token operation) skips the cycle without writing a snapshot in
// either case.
func (c *Client) GetPairs(ctx context.Context, mint string) ([]PoolSnapshot, error) {
	if !c.breaker.allow() {
		if cached, ok := c.cache.getStale(mint); ok {
			c.log.Warn().Str("mint", mint).Msg("circuit open, serving stale cache")
			return cached, nil
		}
		c.log.Warn().Str("mint", mint).Msg("circuit open, no cached fallback")
		return nil, ErrCircuitOpen
	}

	if fresh, ok := c.cache.getFresh(mint); ok {
		return fresh, nil
	}

	pairs, err := c.fetchWithRetry(ctx, mint)
	if err != nil {
		c.breaker.recordFailure()
		if cached, ok := c.cache.getStale(mint); ok {
			c.log.Warn().Err(err).Str("mint", mint).Msg("fetch failed, serving stale cache")
			return cached, nil
		}
		return nil, nil
	}

	c.breaker.recordSuccess()
	c.cache.set(mint, pairs)
	return pairs, nil
}

// fetchWithRetry performs up to cfg.MaxRetries retries on transient failures
// (timeout, 5xx, 429) with exponential backoff capped at 30s, plus jitter.
// Non-transient failures (other 4xx, malformed JSON) fail fast.
func (c *Client) fetchWithRetry(ctx context.Context, mint string) ([]PoolSnapshot, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
			jitter := time.Duration(rand.Int63n(int64(backoff / 4)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff + jitter):
			}
		}

		pairs, transient, err := c.doRequest(ctx, mint)
		if err == nil {
			return pairs, nil
		}
		lastErr = err
		if !transient {
			return nil, err
		}
		c.log.Debug().Err(err).Str("mint", mint).Int("attempt", attempt).Msg("transient failure, retrying")
	}
	return nil, lastErr
}

// doRequest performs a single HTTP GET. It returns (pairs, transient, err)
// where transient indicates whether a retry is warranted.
func (c *Client) doRequest(ctx context.Context, mint string) ([]PoolSnapshot, bool, error) {
	url := fmt.Sprintf("%s/tokens/%s", c.cfg.BaseURL, mint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, fmt.Errorf("rate limited: status %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error: status %d", resp.StatusCode)
	default:
		body, _ := io.ReadAll(resp.Body)
		return nil, false, fmt.Errorf("non-transient error: status %d, body %s", resp.StatusCode, string(body))
	}

	var parsed pairsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, false, fmt.Errorf("malformed response: %w", err)
	}

	snapshots := make([]PoolSnapshot, 0, len(parsed.Pairs))
	for _, p := range parsed.Pairs {
		snapshots = append(snapshots, PoolSnapshot{
			DexID:          p.DexID,
			PairAddress:    p.PairAddress,
			QuoteSymbol:    p.QuoteToken.Symbol,
			LiquidityUSD:   p.Liquidity.USD,
			TxBuys5m:       p.Txns.M5.Buys,
			TxSells5m:      p.Txns.M5.Sells,
			TxBuys1h:       p.Txns.H1.Buys,
			TxSells1h:      p.Txns.H1.Sells,
			Volume5mUSD:    p.Volume.M5,
			Volume1hUSD:    p.Volume.H1,
			PriceChange5m:  p.PriceChange.M5,
			PriceChange15m: p.PriceChange.M15,
			PriceChange1h:  p.PriceChange.H1,
		})
	}
	return snapshots, false, nil
}

// resultCache is the in-memory, process-wide pair-result cache with
// TTL-bounded freshness and an unbounded stale fallback (overwritten on every
// successful fetch), guarded by a single mutex per SPEC_FULL.md §5's
// "micro-critical-section" shared-resource policy.
type resultCache struct {
	ttl time.Duration
	mu  sync.Mutex
	m   map[string]cachedResult
}

type cachedResult struct {
	pairs   []PoolSnapshot
	stored  time.Time
}

func newResultCache(ttl time.Duration) *resultCache {
	return &resultCache{ttl: ttl, m: make(map[string]cachedResult)}
}

func (c *resultCache) set(mint string, pairs []PoolSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[mint] = cachedResult{pairs: pairs, stored: time.Now()}
}

func (c *resultCache) getFresh(mint string) ([]PoolSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.m[mint]
	if !ok || time.Since(entry.stored) > c.ttl {
		return nil, false
	}
	return entry.pairs, true
}

func (c *resultCache) getStale(mint string) ([]PoolSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.m[mint]
	if !ok {
		return nil, false
	}
	return entry.pairs, true
}
