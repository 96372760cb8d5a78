// Package alerts implements user price alerts and their background sweep.
package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"

	"github.com/quantcoin/quantz/internal/clientdata"
	"github.com/quantcoin/quantz/internal/clients/yahoo"
	"github.com/quantcoin/quantz/internal/modules/notifications"
	"github.com/quantcoin/quantz/internal/pricing"
)

const (
	rsiPeriod = 14
	// closesRange is the history window requested for RSI evaluation;
	// 3 months comfortably covers 14 trading days plus warm-up
	closesRange = "3mo"
)

// PriceSource resolves current market prices. Satisfied by *pricing.Oracle.
type PriceSource interface {
	Resolve(ctx context.Context, symbol string) (*pricing.PriceResult, error)
}

// ClosesSource fetches daily close history. Satisfied by *yahoo.Client.
type ClosesSource interface {
	DailyCloses(ctx context.Context, symbol, period string) ([]yahoo.DailyClose, error)
}

// Notifier receives fired alerts. Satisfied by the notifications service.
type Notifier interface {
	Notify(userID, category, title, message string)
}

// Service manages alerts and evaluates them against market data
type Service struct {
	repo     *Repository
	prices   PriceSource
	closes   ClosesSource
	cache    *clientdata.Repository
	notifier Notifier
	log      zerolog.Logger
}

// NewService creates a new alert service
func NewService(
	repo *Repository,
	prices PriceSource,
	closes ClosesSource,
	cache *clientdata.Repository,
	notifier Notifier,
	log zerolog.Logger,
) *Service {
	return &Service{
		repo:     repo,
		prices:   prices,
		closes:   closes,
		cache:    cache,
		notifier: notifier,
		log:      log.With().Str("service", "alerts").Logger(),
	}
}

// Create validates and stores a new alert. PERCENTAGE_CHANGE alerts are
// anchored to the price at creation time.
func (s *Service) Create(ctx context.Context, userID string, req *CreateRequest) (*Alert, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	alert := &Alert{
		UserID:      userID,
		Symbol:      strings.ToUpper(strings.TrimSpace(req.Symbol)),
		AlertType:   req.AlertType,
		Condition:   req.Condition,
		TargetValue: req.TargetValue,
		Indicator:   req.Indicator,
	}

	if req.AlertType == TypePercentageChange {
		quote, err := s.prices.Resolve(ctx, alert.Symbol)
		if err != nil {
			return nil, fmt.Errorf("cannot anchor percentage alert, price unavailable: %w", err)
		}
		alert.BaselinePrice = quote.Price
	}

	if err := s.repo.Create(alert); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("user_id", userID).
		Str("symbol", alert.Symbol).
		Str("type", alert.AlertType).
		Int("id", alert.ID).
		Msg("Created alert")

	return alert, nil
}

// List returns the user's active alerts
func (s *Service) List(userID string) ([]Alert, error) {
	alerts, err := s.repo.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	if alerts == nil {
		alerts = []Alert{}
	}
	return alerts, nil
}

// Delete soft-deletes an alert
func (s *Service) Delete(userID string, id int) (bool, error) {
	return s.repo.Deactivate(userID, id)
}

// Sweep evaluates every pending alert and fires the ones whose condition
// holds. Alerts fire once; evaluation failures leave the alert pending for
// the next sweep. Returns the number of alerts fired.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	pending, err := s.repo.ListPending()
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	// One price resolution per distinct symbol per sweep
	prices := make(map[string]float64)
	rsis := make(map[string]float64)

	fired := 0
	for i := range pending {
		alert := &pending[i]

		value, err := s.observe(ctx, alert, prices, rsis)
		if err != nil {
			s.log.Warn().Err(err).
				Str("symbol", alert.Symbol).
				Int("alert_id", alert.ID).
				Msg("Alert evaluation skipped")
			continue
		}

		if !conditionMet(alert.Condition, value, alert.TargetValue) {
			continue
		}

		now := time.Now().UTC()
		if err := s.repo.MarkTriggered(alert.ID, now); err != nil {
			s.log.Error().Err(err).Int("alert_id", alert.ID).Msg("Failed to mark alert triggered")
			continue
		}
		fired++

		if s.notifier != nil {
			s.notifier.Notify(alert.UserID, notifications.CategoryAlert, "Price alert triggered",
				s.describeTrigger(alert, value))
		}

		s.log.Info().
			Str("user_id", alert.UserID).
			Str("symbol", alert.Symbol).
			Int("alert_id", alert.ID).
			Float64("value", value).
			Msg("Alert fired")
	}

	return fired, nil
}

// observe produces the value an alert compares against its target,
// memoizing per-symbol lookups across one sweep.
func (s *Service) observe(ctx context.Context, alert *Alert, prices, rsis map[string]float64) (float64, error) {
	switch alert.AlertType {
	case TypePriceTarget, TypePercentageChange:
		price, ok := prices[alert.Symbol]
		if !ok {
			quote, err := s.prices.Resolve(ctx, alert.Symbol)
			if err != nil {
				return 0, err
			}
			price = quote.Price
			prices[alert.Symbol] = price
		}
		if alert.AlertType == TypePriceTarget {
			return price, nil
		}
		if alert.BaselinePrice <= 0 {
			return 0, fmt.Errorf("percentage alert %d has no baseline price", alert.ID)
		}
		return (price - alert.BaselinePrice) / alert.BaselinePrice * 100, nil

	case TypeTechnicalIndicator:
		rsi, ok := rsis[alert.Symbol]
		if !ok {
			var err error
			rsi, err = s.currentRSI(ctx, alert.Symbol)
			if err != nil {
				return 0, err
			}
			rsis[alert.Symbol] = rsi
		}
		return rsi, nil

	default:
		return 0, fmt.Errorf("unknown alert type %q", alert.AlertType)
	}
}

// currentRSI computes the 14-period RSI from daily closes, cache-first
func (s *Service) currentRSI(ctx context.Context, symbol string) (float64, error) {
	closes, err := s.dailyCloses(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if len(closes) < rsiPeriod+1 {
		return 0, fmt.Errorf("not enough history for RSI: have %d closes, need %d", len(closes), rsiPeriod+1)
	}

	series := talib.Rsi(closes, rsiPeriod)
	return series[len(series)-1], nil
}

func (s *Service) dailyCloses(ctx context.Context, symbol string) ([]float64, error) {
	if s.cache != nil {
		if raw, err := s.cache.GetIfFresh(clientdata.TableDailyCloses, symbol); err == nil && raw != nil {
			var closes []float64
			if json.Unmarshal(raw, &closes) == nil && len(closes) > 0 {
				return closes, nil
			}
		}
	}

	history, err := s.closes.DailyCloses(ctx, symbol, closesRange)
	if err != nil {
		return nil, err
	}

	closes := make([]float64, 0, len(history))
	for _, point := range history {
		closes = append(closes, point.Close)
	}

	if s.cache != nil && len(closes) > 0 {
		if err := s.cache.Store(clientdata.TableDailyCloses, symbol, closes, clientdata.TTLDailyCloses); err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Daily closes cache write failed")
		}
	}

	return closes, nil
}

func (s *Service) describeTrigger(alert *Alert, value float64) string {
	switch alert.AlertType {
	case TypePriceTarget:
		return fmt.Sprintf("%s is at $%.2f (%s $%.2f)",
			alert.Symbol, value, strings.ToLower(alert.Condition), alert.TargetValue)
	case TypePercentageChange:
		return fmt.Sprintf("%s moved %.2f%% since the alert was set (%s %.2f%%)",
			alert.Symbol, value, strings.ToLower(alert.Condition), alert.TargetValue)
	case TypeTechnicalIndicator:
		return fmt.Sprintf("%s RSI(%d) is %.1f (%s %.1f)",
			alert.Symbol, rsiPeriod, value, strings.ToLower(alert.Condition), alert.TargetValue)
	default:
		return fmt.Sprintf("%s alert triggered at %.2f", alert.Symbol, value)
	}
}
