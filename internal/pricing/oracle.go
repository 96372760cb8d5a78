// Package pricing resolves current market prices through an ordered chain of
// providers with caching.
package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantcoin/quantz/internal/clientdata"
)

// ErrNoPrice is returned when every provider in the chain failed to produce a
// positive price for a symbol.
var ErrNoPrice = errors.New("no price available from any source")

// Provider is a single price source in the resolution chain.
type Provider struct {
	// Name identifies the source in logs and in PriceResult.Source
	Name string
	// Timeout bounds a single fetch attempt against this provider
	Timeout time.Duration
	// Fetch returns a positive price or an error
	Fetch func(ctx context.Context, symbol string) (float64, error)
}

// PriceResult is a resolved price together with its provenance.
type PriceResult struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Source    string    `json:"source"`
	Cached    bool      `json:"cached"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Oracle walks an ordered provider chain and returns the first positive price.
// Resolved prices are written through to the client data cache so repeated
// lookups within the TTL window do not hit external APIs.
type Oracle struct {
	providers []Provider
	cache     *clientdata.Repository
	log       zerolog.Logger

	// maxConcurrent bounds ResolveMany fan-out
	maxConcurrent int
}

// NewOracle creates a price oracle over the given provider chain.
// Providers are tried strictly in order; chain order encodes source priority.
func NewOracle(providers []Provider, cache *clientdata.Repository, log zerolog.Logger) *Oracle {
	return &Oracle{
		providers:     providers,
		cache:         cache,
		log:           log.With().Str("service", "pricing").Logger(),
		maxConcurrent: 5,
	}
}

// cachedPrice is the shape stored in the current_prices cache table
type cachedPrice struct {
	Price     float64   `json:"price"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Resolve returns the current price for a symbol. The cache is consulted
// first; on a miss each provider is tried in order with its own timeout, and
// the first positive price wins.
func (o *Oracle) Resolve(ctx context.Context, symbol string) (*PriceResult, error) {
	if cached := o.fromCache(symbol); cached != nil {
		return cached, nil
	}
	return o.ResolveFresh(ctx, symbol)
}

// ResolveFresh bypasses the cache and walks the provider chain directly. The
// result is still written through to the cache on success.
func (o *Oracle) ResolveFresh(ctx context.Context, symbol string) (*PriceResult, error) {
	for _, p := range o.providers {
		price, err := o.tryProvider(ctx, p, symbol)
		if err != nil {
			// Context cancellation aborts the whole chain, a provider
			// failure just moves on to the next source
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			o.log.Debug().
				Err(err).
				Str("symbol", symbol).
				Str("source", p.Name).
				Msg("Price source failed, trying next")
			continue
		}

		result := &PriceResult{
			Symbol:    symbol,
			Price:     price,
			Source:    p.Name,
			FetchedAt: time.Now().UTC(),
		}
		o.storeCache(result)

		o.log.Info().
			Str("symbol", symbol).
			Str("source", p.Name).
			Float64("price", price).
			Msg("Resolved price")

		return result, nil
	}

	return nil, fmt.Errorf("%w for symbol %s", ErrNoPrice, symbol)
}

// tryProvider runs a single fetch under the provider's own timeout and
// rejects non-positive prices.
func (o *Oracle) tryProvider(ctx context.Context, p Provider, symbol string) (float64, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	price, err := p.Fetch(fetchCtx, symbol)
	if err != nil {
		return 0, err
	}
	if price <= 0 {
		return 0, fmt.Errorf("source %s returned non-positive price %.4f", p.Name, price)
	}
	return price, nil
}

// ResolveMany resolves prices for multiple symbols concurrently with bounded
// fan-out. Symbols that could not be resolved are simply absent from the
// returned map.
func (o *Oracle) ResolveMany(ctx context.Context, symbols []string) map[string]*PriceResult {
	results := make(map[string]*PriceResult, len(symbols))

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, o.maxConcurrent)

	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			result, err := o.Resolve(ctx, symbol)
			if err != nil {
				o.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to resolve price")
				return
			}

			mu.Lock()
			results[symbol] = result
			mu.Unlock()
		}(symbol)
	}

	wg.Wait()
	return results
}

// ResolveManyFresh is ResolveMany bypassing the cache. Used by the periodic
// refresh job so stored quotes actually move.
func (o *Oracle) ResolveManyFresh(ctx context.Context, symbols []string) map[string]*PriceResult {
	results := make(map[string]*PriceResult, len(symbols))

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, o.maxConcurrent)

	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			result, err := o.ResolveFresh(ctx, symbol)
			if err != nil {
				o.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to refresh price")
				return
			}

			mu.Lock()
			results[symbol] = result
			mu.Unlock()
		}(symbol)
	}

	wg.Wait()
	return results
}

func (o *Oracle) fromCache(symbol string) *PriceResult {
	if o.cache == nil {
		return nil
	}

	raw, err := o.cache.GetIfFresh(clientdata.TableCurrentPrices, symbol)
	if err != nil {
		o.log.Warn().Err(err).Str("symbol", symbol).Msg("Price cache read failed")
		return nil
	}
	if raw == nil {
		return nil
	}

	var cached cachedPrice
	if err := json.Unmarshal(raw, &cached); err != nil {
		o.log.Warn().Err(err).Str("symbol", symbol).Msg("Price cache entry malformed")
		return nil
	}
	if cached.Price <= 0 {
		return nil
	}

	return &PriceResult{
		Symbol:    symbol,
		Price:     cached.Price,
		Source:    cached.Source,
		Cached:    true,
		FetchedAt: cached.FetchedAt,
	}
}

func (o *Oracle) storeCache(result *PriceResult) {
	if o.cache == nil {
		return
	}

	entry := cachedPrice{
		Price:     result.Price,
		Source:    result.Source,
		FetchedAt: result.FetchedAt,
	}
	if err := o.cache.Store(clientdata.TableCurrentPrices, result.Symbol, entry, clientdata.TTLCurrentPrice); err != nil {
		o.log.Warn().Err(err).Str("symbol", result.Symbol).Msg("Price cache write failed")
	}
}
