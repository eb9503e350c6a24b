package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultEndpoint = "https://api.coingecko.com/api/v3/simple/price?ids=ethereum&vs_currencies=usd"
	DefaultTTL      = 5 * time.Minute
	DefaultFallback = "3000"

	fetchTimeout = 10 * time.Second
)

type OracleConfig struct {
	Endpoint string `json:"endpoint"`
	TTL      string `json:"ttl"`
	Fallback string `json:"fallback"`
}

// Quote is an ETH price in USD.
type Quote struct {
	USDPerETH decimal.Decimal `json:"usd"`
	UpdatedAt time.Time       `json:"updatedAt"`
	// Stale is set when the price is the cached or configured fallback.
	Stale bool `json:"stale"`
}

// Oracle fetches the ETH/USD price and keeps it for TTL.
type Oracle struct {
	endpoint string
	ttl      time.Duration
	fallback decimal.Decimal
	client   *http.Client
	now      func() time.Time

	Sugar *zap.SugaredLogger

	group  singleflight.Group
	mu     sync.Mutex
	cached *Quote
}

func NewOracle(cfg OracleConfig, sugar *zap.SugaredLogger) (*Oracle, error) {
	o := &Oracle{
		endpoint: cfg.Endpoint,
		ttl:      DefaultTTL,
		client:   &http.Client{Timeout: fetchTimeout},
		now:      time.Now,
		Sugar:    sugar,
	}
	if o.endpoint == "" {
		o.endpoint = DefaultEndpoint
	}
	if cfg.TTL != "" {
		ttl, err := time.ParseDuration(cfg.TTL)
		if err != nil {
			return nil, fmt.Errorf("price ttl %s format error: %w", cfg.TTL, err)
		}
		o.ttl = ttl
	}
	fallback := cfg.Fallback
	if fallback == "" {
		fallback = DefaultFallback
	}
	f, err := decimal.NewFromString(fallback)
	if err != nil || !f.IsPositive() {
		return nil, fmt.Errorf("bad fallback price %q", fallback)
	}
	o.fallback = f
	return o, nil
}

type coingeckoResponse struct {
	Ethereum struct {
		USD decimal.Decimal `json:"usd"`
	} `json:"ethereum"`
}

// ETHPrice returns a fresh price when it can, the last known one otherwise,
// and the configured fallback when nothing was ever fetched. Concurrent
// callers share one refresh, which runs on its own deadline so a caller
// that gives up does not cancel it for the rest.
func (o *Oracle) ETHPrice(ctx context.Context) Quote {
	o.mu.Lock()
	if o.cached != nil && o.now().Sub(o.cached.UpdatedAt) < o.ttl {
		q := *o.cached
		o.mu.Unlock()
		return q
	}
	o.mu.Unlock()

	ch := o.group.DoChan("eth", o.refresh)
	select {
	case <-ctx.Done():
		return o.stale()
	case r := <-ch:
		if r.Err != nil {
			return o.stale()
		}
		return r.Val.(Quote)
	}
}

func (o *Oracle) refresh() (interface{}, error) {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()
	price, err := o.fetch(ctx)
	if err != nil {
		o.Sugar.Errorf("fetch eth price error: %s", err)
		return nil, err
	}
	q := Quote{USDPerETH: price, UpdatedAt: o.now()}
	o.mu.Lock()
	o.cached = &q
	o.mu.Unlock()
	return q, nil
}

// stale is the last known price, or the fallback.
func (o *Oracle) stale() Quote {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cached != nil {
		q := *o.cached
		q.Stale = true
		return q
	}
	return Quote{USDPerETH: o.fallback, UpdatedAt: o.now(), Stale: true}
}

func (o *Oracle) fetch(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.endpoint, nil)
	if err != nil {
		return decimal.Zero, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("price api status %d", resp.StatusCode)
	}
	var r coingeckoResponse
	if err = json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return decimal.Zero, err
	}
	if !r.Ethereum.USD.IsPositive() {
		return decimal.Zero, fmt.Errorf("invalid response from price api")
	}
	return r.Ethereum.USD, nil
}
