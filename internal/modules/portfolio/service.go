// Package portfolio computes portfolio valuations from the ledger and live
// or estimated prices.
package portfolio

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/quantcoin/quantz/internal/clientdata"
	"github.com/quantcoin/quantz/internal/clients/yahoo"
	"github.com/quantcoin/quantz/internal/modules/trading"
	"github.com/quantcoin/quantz/internal/pricing"
)

// PriceSource resolves current market prices. Satisfied by *pricing.Oracle.
type PriceSource interface {
	Resolve(ctx context.Context, symbol string) (*pricing.PriceResult, error)
}

// InfoSource fetches company metadata. Satisfied by *yahoo.Client.
type InfoSource interface {
	GetCompanyInfo(ctx context.Context, symbol string) (*yahoo.CompanyInfo, error)
}

// Service is the portfolio valuation engine. Reads never mutate cost basis:
// the only writes it performs are best-effort refreshes of the advisory
// current_price cache on holdings.
type Service struct {
	trading   *trading.Service
	holdings  *trading.HoldingRepository
	prices    PriceSource
	info      InfoSource
	cache     *clientdata.Repository
	snapshots *SnapshotRepository
	log       zerolog.Logger

	maxConcurrent int
}

// NewService creates a new portfolio service
func NewService(
	tradingService *trading.Service,
	holdings *trading.HoldingRepository,
	prices PriceSource,
	info InfoSource,
	cache *clientdata.Repository,
	snapshots *SnapshotRepository,
	log zerolog.Logger,
) *Service {
	return &Service{
		trading:       tradingService,
		holdings:      holdings,
		prices:        prices,
		info:          info,
		cache:         cache,
		snapshots:     snapshots,
		log:           log.With().Str("service", "portfolio").Logger(),
		maxConcurrent: 5,
	}
}

// GetSummary values the user's portfolio. Holdings are priced concurrently;
// each one falls back from a live quote to the stored price to a synthetic
// estimate, and the source is flagged on the result.
func (s *Service) GetSummary(ctx context.Context, userID string) (*Summary, error) {
	wallet, err := s.trading.GetWallet(userID)
	if err != nil {
		return nil, err
	}

	holdings, err := s.holdings.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		UserID:       userID,
		Holdings:     []ValuedHolding{},
		CashBalance:  wallet.CashBalance,
		TotalReturns: wallet.TotalReturns,
		AsOf:         time.Now().UTC(),
	}
	if len(holdings) == 0 {
		return summary, nil
	}

	valued := make([]ValuedHolding, len(holdings))
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.maxConcurrent)

	for i := range holdings {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			valued[i] = s.valueHolding(ctx, &holdings[i])
		}(i)
	}
	wg.Wait()

	sort.Slice(valued, func(i, j int) bool {
		return valued[i].CurrentValue > valued[j].CurrentValue
	})
	summary.Holdings = valued

	for i := range valued {
		summary.TotalValue += valued[i].CurrentValue
		summary.TotalCost += valued[i].TotalCost
	}
	summary.TotalGainLoss = summary.TotalValue - summary.TotalCost
	if summary.TotalCost > 0 {
		summary.TotalGainLossPercent = summary.TotalGainLoss / summary.TotalCost * 100
	}

	summary.DiversificationScore = diversificationScore(valued)
	summary.BestPerformer, summary.WorstPerformer = performers(valued)

	return summary, nil
}

// valueHolding prices one holding and computes its derived fields
func (s *Service) valueHolding(ctx context.Context, h *trading.Holding) ValuedHolding {
	price, source := s.currentPrice(ctx, h)

	v := ValuedHolding{
		Symbol:       h.Symbol,
		CompanyName:  h.CompanyName,
		Sector:       s.sectorFor(ctx, h.Symbol),
		Quantity:     h.Quantity,
		AveragePrice: h.AveragePrice,
		TotalCost:    h.TotalCost,
		CurrentPrice: price,
		PriceSource:  source,
	}

	qty := float64(h.Quantity)
	v.CurrentValue = price * qty
	v.UnrealizedGainLoss = (price - h.AveragePrice) * qty
	if h.AveragePrice > 0 {
		v.UnrealizedGainLossPercent = (price - h.AveragePrice) / h.AveragePrice * 100
	}
	if h.TotalCost > 0 {
		v.HoldingPeriodReturn = (v.CurrentValue - h.TotalCost) / h.TotalCost * 100
	}

	v.DaysHeld = daysHeld(h.CreatedAt)
	v.CAGRPercent = cagrPercent(v.CurrentValue, h.TotalCost, v.DaysHeld)

	return v
}

// currentPrice resolves a price for valuation with graceful degradation:
// live quote, then the stored current_price when it carries real
// information, then a synthetic estimate around the cost basis. Only real
// quotes are written back.
func (s *Service) currentPrice(ctx context.Context, h *trading.Holding) (float64, string) {
	quote, err := s.prices.Resolve(ctx, h.Symbol)
	if err == nil && quote.Price > 0 {
		if _, err := s.holdings.UpdateCurrentPrice(h.Symbol, quote.Price); err != nil {
			s.log.Warn().Err(err).Str("symbol", h.Symbol).Msg("Price write-back failed")
		}
		return quote.Price, SourceRealtime
	}
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", h.Symbol).Msg("Live quote unavailable, degrading")
	}

	// A stored price exactly equal to the average is just the purchase
	// echo and carries no market information
	if h.CurrentPrice > 0 && math.Abs(h.CurrentPrice-h.AveragePrice) > 0.01 {
		return h.CurrentPrice, SourceStored
	}

	// Synthetic walk within ±5% of the cost basis. Flagged as estimated
	// and never persisted.
	estimate := h.AveragePrice * (1 + (rand.Float64()*0.10 - 0.05))
	return estimate, SourceEstimated
}

// sectorFor returns the symbol's sector, cache-first. Falls back to a
// 2-character symbol prefix so the diversification score still has a
// grouping when no metadata is available.
func (s *Service) sectorFor(ctx context.Context, symbol string) string {
	fallback := symbol
	if len(fallback) > 2 {
		fallback = fallback[:2]
	}

	if s.cache != nil {
		if raw, err := s.cache.Get(clientdata.TableYahooInfo, symbol); err == nil && raw != nil {
			var info yahoo.CompanyInfo
			if json.Unmarshal(raw, &info) == nil && info.Sector != "" {
				return info.Sector
			}
		}
	}

	if s.info != nil {
		info, err := s.info.GetCompanyInfo(ctx, symbol)
		if err != nil {
			s.log.Debug().Err(err).Str("symbol", symbol).Msg("Company info lookup failed")
			return fallback
		}
		if s.cache != nil {
			if err := s.cache.Store(clientdata.TableYahooInfo, symbol, info, clientdata.TTLYahooInfo); err != nil {
				s.log.Warn().Err(err).Str("symbol", symbol).Msg("Company info cache write failed")
			}
		}
		if info.Sector != "" {
			return info.Sector
		}
	}

	return fallback
}

// GetHistory returns the user's daily snapshot series, oldest first
func (s *Service) GetHistory(userID string, limit int) ([]Snapshot, error) {
	return s.snapshots.ListByUser(userID, limit)
}

// TakeSnapshot values the portfolio and persists today's snapshot.
// Running it twice on one day overwrites the earlier point.
func (s *Service) TakeSnapshot(ctx context.Context, userID string) (*Snapshot, error) {
	summary, err := s.GetSummary(ctx, userID)
	if err != nil {
		return nil, err
	}

	snapshot := &Snapshot{
		UserID:      userID,
		Date:        summary.AsOf.Format("2006-01-02"),
		TotalValue:  summary.TotalValue,
		TotalCost:   summary.TotalCost,
		CashBalance: summary.CashBalance,
	}
	for _, v := range summary.Holdings {
		snapshot.Breakdown = append(snapshot.Breakdown, SnapshotHolding{
			Symbol:       v.Symbol,
			Quantity:     v.Quantity,
			CurrentPrice: v.CurrentPrice,
			CurrentValue: v.CurrentValue,
			TotalCost:    v.TotalCost,
		})
	}

	if err := s.snapshots.Upsert(snapshot); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("user_id", userID).
		Str("date", snapshot.Date).
		Float64("total_value", snapshot.TotalValue).
		Msg("Portfolio snapshot stored")

	return snapshot, nil
}

// daysHeld counts days since purchase, never less than one
func daysHeld(createdAt time.Time) int {
	days := int(time.Since(createdAt).Hours() / 24)
	if days < 1 {
		return 1
	}
	return days
}

// cagrPercent annualizes the holding return: ((value/cost)^(365.25/days)-1)*100
func cagrPercent(currentValue, totalCost float64, days int) float64 {
	if totalCost <= 0 || currentValue <= 0 || days < 1 {
		return 0
	}
	return (math.Pow(currentValue/totalCost, 365.25/float64(days)) - 1) * 100
}

// diversificationScore maps the sector-weight distribution onto 0..100 using
// normalized Shannon entropy. Single-sector portfolios score 0; an equal
// split across sectors scores 100.
func diversificationScore(holdings []ValuedHolding) float64 {
	sectorValue := make(map[string]float64)
	total := 0.0
	for _, h := range holdings {
		if h.CurrentValue <= 0 {
			continue
		}
		sectorValue[h.Sector] += h.CurrentValue
		total += h.CurrentValue
	}
	if total <= 0 || len(sectorValue) < 2 {
		return 0
	}

	weights := make([]float64, 0, len(sectorValue))
	for _, v := range sectorValue {
		weights = append(weights, v/total)
	}

	entropy := stat.Entropy(weights)
	return entropy / math.Log(float64(len(weights))) * 100
}

// performers picks the best and worst holdings by unrealized return
func performers(holdings []ValuedHolding) (*PerformerRef, *PerformerRef) {
	if len(holdings) == 0 {
		return nil, nil
	}

	best, worst := &holdings[0], &holdings[0]
	for i := range holdings {
		if holdings[i].UnrealizedGainLossPercent > best.UnrealizedGainLossPercent {
			best = &holdings[i]
		}
		if holdings[i].UnrealizedGainLossPercent < worst.UnrealizedGainLossPercent {
			worst = &holdings[i]
		}
	}

	return &PerformerRef{Symbol: best.Symbol, GainPercent: best.UnrealizedGainLossPercent},
		&PerformerRef{Symbol: worst.Symbol, GainPercent: worst.UnrealizedGainLossPercent}
}
