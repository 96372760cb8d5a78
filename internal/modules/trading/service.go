package trading

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/quantcoin/quantz/internal/database"
	"github.com/quantcoin/quantz/internal/modules/notifications"
	"github.com/quantcoin/quantz/internal/pricing"
)

// PriceSource resolves current market prices. Satisfied by *pricing.Oracle.
type PriceSource interface {
	Resolve(ctx context.Context, symbol string) (*pricing.PriceResult, error)
}

// Notifier receives trade events and feeds recent notifications back into
// the activity stream. Satisfied by an adapter over the notifications service.
type Notifier interface {
	Notify(userID, category, title, message string)
	Recent(userID string, limit int) ([]NotificationEvent, error)
}

// Service executes trades against the ledger. All mutations for one user are
// serialized through a per-user lock and run inside a single SQLite
// transaction, so a trade either fully applies or leaves no trace.
type Service struct {
	ledgerDB        *sql.DB
	wallets         *WalletRepository
	holdings        *HoldingRepository
	transactions    *TransactionRepository
	prices          PriceSource
	notifier        Notifier
	startingBalance float64
	log             zerolog.Logger

	userLocks sync.Map // userID -> *sync.Mutex
}

// NewService creates a new trading service
func NewService(
	ledgerDB *sql.DB,
	wallets *WalletRepository,
	holdings *HoldingRepository,
	transactions *TransactionRepository,
	prices PriceSource,
	notifier Notifier,
	startingBalance float64,
	log zerolog.Logger,
) *Service {
	return &Service{
		ledgerDB:        ledgerDB,
		wallets:         wallets,
		holdings:        holdings,
		transactions:    transactions,
		prices:          prices,
		notifier:        notifier,
		startingBalance: startingBalance,
		log:             log.With().Str("service", "trading").Logger(),
	}
}

// lockFor returns the mutex serializing one user's mutations
func (s *Service) lockFor(userID string) *sync.Mutex {
	mu, _ := s.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// GetWallet returns the user's wallet, creating it on first access
func (s *Service) GetWallet(userID string) (*Wallet, error) {
	return s.wallets.GetOrCreate(userID, s.startingBalance)
}

// StartingBalance is the balance a new wallet opens with
func (s *Service) StartingBalance() float64 {
	return s.startingBalance
}

// resolvePrice uses the client-pinned price when supplied, the oracle
// otherwise. Network resolution happens before the ledger transaction opens.
func (s *Service) resolvePrice(ctx context.Context, symbol string, pinned *float64) (*pricing.PriceResult, error) {
	if pinned != nil && *pinned > 0 {
		return &pricing.PriceResult{Symbol: symbol, Price: *pinned, Source: "client"}, nil
	}
	price, err := s.prices.Resolve(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}
	return price, nil
}

// Buy executes a market buy at the resolved price.
// Cost basis is maintained as a weighted average across purchases.
func (s *Service) Buy(ctx context.Context, userID string, req *TradeRequest) (*TradeResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	symbol := normalizeSymbol(req.Symbol)

	price, err := s.resolvePrice(ctx, symbol, req.CurrentPrice)
	if err != nil {
		return nil, err
	}

	mu := s.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	qty := float64(req.Quantity)
	cost := round2(price.Price * qty)

	var result TradeResult
	err = database.WithTransaction(s.ledgerDB, func(tx *sql.Tx) error {
		wallet, err := s.wallets.GetOrCreateTx(tx, userID, s.startingBalance)
		if err != nil {
			return err
		}

		if wallet.CashBalance < cost {
			return fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientBalance, cost, wallet.CashBalance)
		}

		holding, err := s.holdings.GetTx(tx, userID, symbol)
		if err != nil {
			return err
		}

		if holding == nil {
			holding = &Holding{
				UserID:       userID,
				Symbol:       symbol,
				CompanyName:  req.CompanyName,
				Quantity:     req.Quantity,
				AveragePrice: price.Price,
			}
		} else {
			newQuantity := holding.Quantity + req.Quantity
			holding.AveragePrice = (holding.TotalCost + cost) / float64(newQuantity)
			holding.Quantity = newQuantity
			if holding.CompanyName == "" {
				holding.CompanyName = req.CompanyName
			}
		}
		// total_cost is always derived from the average so the cost-basis
		// invariant holds after every mutation
		holding.TotalCost = round2(holding.AveragePrice * float64(holding.Quantity))
		holding.CurrentPrice = price.Price
		holding.CurrentValue = round2(price.Price * float64(holding.Quantity))

		if err := s.holdings.UpsertTx(tx, holding); err != nil {
			return err
		}

		wallet.CashBalance -= cost
		wallet.TotalInvested += cost
		if err := s.wallets.UpdateTx(tx, wallet); err != nil {
			return err
		}

		txn := &Transaction{
			UserID:        userID,
			Symbol:        symbol,
			CompanyName:   holding.CompanyName,
			Type:          TypeBuy,
			Quantity:      req.Quantity,
			PricePerShare: price.Price,
			TotalAmount:   cost,
			NetAmount:     cost,
			Notes:         fmt.Sprintf("Bought %d %s @ $%.2f", req.Quantity, symbol, price.Price),
		}
		if err := s.transactions.CreateTx(tx, txn); err != nil {
			return err
		}

		result = TradeResult{
			Transaction: txn,
			Wallet:      wallet,
			Holding:     holding,
			PriceSource: price.Source,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("user_id", userID).
		Str("symbol", symbol).
		Int("quantity", req.Quantity).
		Float64("price", price.Price).
		Float64("cost", cost).
		Msg("Executed buy")

	if s.notifier != nil {
		s.notifier.Notify(userID, notifications.CategoryTrade, "Order executed",
			fmt.Sprintf("Bought %d %s at $%.2f", req.Quantity, symbol, price.Price))
	}

	return &result, nil
}

// Sell executes a market sell at the resolved price.
// Realized P&L is booked against the weighted-average cost, and the cost
// basis is reduced at the average price so the remaining position's average
// is unchanged. A full exit removes the holding row.
func (s *Service) Sell(ctx context.Context, userID string, req *TradeRequest) (*TradeResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	symbol := normalizeSymbol(req.Symbol)

	price, err := s.resolvePrice(ctx, symbol, req.CurrentPrice)
	if err != nil {
		return nil, err
	}

	mu := s.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	var result TradeResult
	err = database.WithTransaction(s.ledgerDB, func(tx *sql.Tx) error {
		wallet, err := s.wallets.GetOrCreateTx(tx, userID, s.startingBalance)
		if err != nil {
			return err
		}

		holding, err := s.holdings.GetTx(tx, userID, symbol)
		if err != nil {
			return err
		}
		if holding == nil {
			return fmt.Errorf("%w: %s", ErrNoPosition, symbol)
		}
		if req.Quantity > holding.Quantity {
			return fmt.Errorf("%w: have %d, tried to sell %d",
				ErrInsufficientShares, holding.Quantity, req.Quantity)
		}

		qty := float64(req.Quantity)
		proceeds := round2(price.Price * qty)
		realized := round2((price.Price - holding.AveragePrice) * qty)

		remaining := holding.Quantity - req.Quantity
		fullExit := remaining == 0

		if fullExit {
			if err := s.holdings.DeleteTx(tx, userID, symbol); err != nil {
				return err
			}
		} else {
			holding.Quantity = remaining
			holding.TotalCost = round2(holding.AveragePrice * float64(remaining))
			holding.CurrentPrice = price.Price
			holding.CurrentValue = round2(price.Price * float64(remaining))
			if err := s.holdings.UpsertTx(tx, holding); err != nil {
				return err
			}
		}

		wallet.CashBalance += proceeds
		wallet.TotalReturns += realized
		if err := s.wallets.UpdateTx(tx, wallet); err != nil {
			return err
		}

		txn := &Transaction{
			UserID:        userID,
			Symbol:        symbol,
			CompanyName:   holding.CompanyName,
			Type:          TypeSell,
			Quantity:      req.Quantity,
			PricePerShare: price.Price,
			TotalAmount:   proceeds,
			NetAmount:     proceeds,
			Notes:         fmt.Sprintf("Realized P&L: $%.2f", realized),
		}
		if err := s.transactions.CreateTx(tx, txn); err != nil {
			return err
		}

		result = TradeResult{
			Transaction: txn,
			Wallet:      wallet,
			RealizedPnL: realized,
			PriceSource: price.Source,
		}
		if !fullExit {
			result.Holding = holding
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("user_id", userID).
		Str("symbol", symbol).
		Int("quantity", req.Quantity).
		Float64("price", price.Price).
		Float64("realized_pnl", result.RealizedPnL).
		Msg("Executed sell")

	if s.notifier != nil {
		s.notifier.Notify(userID, notifications.CategoryTrade, "Order executed",
			fmt.Sprintf("Sold %d %s at $%.2f (P&L $%.2f)",
				req.Quantity, symbol, price.Price, result.RealizedPnL))
	}

	return &result, nil
}

// Deposit adds virtual cash to the wallet
func (s *Service) Deposit(userID string, amount float64) (*TradeResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	mu := s.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	var result TradeResult
	err := database.WithTransaction(s.ledgerDB, func(tx *sql.Tx) error {
		wallet, err := s.wallets.GetOrCreateTx(tx, userID, s.startingBalance)
		if err != nil {
			return err
		}

		wallet.CashBalance += amount
		if err := s.wallets.UpdateTx(tx, wallet); err != nil {
			return err
		}

		txn := &Transaction{
			UserID:      userID,
			Type:        TypeDeposit,
			TotalAmount: amount,
			NetAmount:   amount,
			Notes:       fmt.Sprintf("Deposited $%.2f", amount),
		}
		if err := s.transactions.CreateTx(tx, txn); err != nil {
			return err
		}

		result = TradeResult{Transaction: txn, Wallet: wallet}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", userID).Float64("amount", amount).Msg("Deposit")
	return &result, nil
}

// Withdraw removes virtual cash from the wallet
func (s *Service) Withdraw(userID string, amount float64) (*TradeResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	mu := s.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	var result TradeResult
	err := database.WithTransaction(s.ledgerDB, func(tx *sql.Tx) error {
		wallet, err := s.wallets.GetOrCreateTx(tx, userID, s.startingBalance)
		if err != nil {
			return err
		}

		if wallet.CashBalance < amount {
			return fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientBalance, amount, wallet.CashBalance)
		}

		wallet.CashBalance -= amount
		if err := s.wallets.UpdateTx(tx, wallet); err != nil {
			return err
		}

		txn := &Transaction{
			UserID:      userID,
			Type:        TypeWithdrawal,
			TotalAmount: amount,
			NetAmount:   amount,
			Notes:       fmt.Sprintf("Withdrew $%.2f", amount),
		}
		if err := s.transactions.CreateTx(tx, txn); err != nil {
			return err
		}

		result = TradeResult{Transaction: txn, Wallet: wallet}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", userID).Float64("amount", amount).Msg("Withdrawal")
	return &result, nil
}

// ListHoldings returns all positions for a user
func (s *Service) ListHoldings(userID string) ([]Holding, error) {
	return s.holdings.ListByUser(userID)
}

// GetHolding returns one position, or nil when the user holds no shares
func (s *Service) GetHolding(userID, symbol string) (*Holding, error) {
	return s.holdings.Get(userID, normalizeSymbol(symbol))
}

// ListTransactions returns a user's ledger entries, newest first
func (s *Service) ListTransactions(userID, txType string, limit, offset int) ([]Transaction, error) {
	return s.transactions.ListByUser(userID, txType, limit, offset)
}

// ListSymbolTransactions returns a user's full trade history for one symbol
func (s *Service) ListSymbolTransactions(userID, symbol string) ([]Transaction, error) {
	return s.transactions.ListByUserAndSymbol(userID, normalizeSymbol(symbol))
}

// GetTransaction looks up one ledger entry by its uuid reference. Returns
// nil when the reference is unknown or belongs to another user.
func (s *Service) GetTransaction(userID, reference string) (*Transaction, error) {
	t, err := s.transactions.GetByReference(reference)
	if err != nil {
		return nil, err
	}
	if t == nil || t.UserID != userID {
		return nil, nil
	}
	return t, nil
}

// ListActivities merges the transaction log and the user's notifications
// into one chronological feed, newest first.
func (s *Service) ListActivities(userID string, limit int) ([]Activity, error) {
	transactions, err := s.transactions.ListByUser(userID, "", limit, 0)
	if err != nil {
		return nil, err
	}

	activities := make([]Activity, 0, len(transactions))
	for _, t := range transactions {
		description := t.Notes
		if description == "" {
			description = describeTransaction(&t)
		}
		activities = append(activities, Activity{
			Reference:   t.Reference,
			Type:        t.Type,
			Symbol:      t.Symbol,
			Description: description,
			Amount:      t.TotalAmount,
			CreatedAt:   t.TransactionDate,
		})
	}

	if s.notifier != nil {
		events, err := s.notifier.Recent(userID, limit)
		if err != nil {
			// The feed still renders from the ledger alone
			s.log.Warn().Err(err).Str("user_id", userID).Msg("Failed to merge notifications into feed")
		}
		for _, e := range events {
			description := e.Message
			if e.Title != "" {
				description = e.Title + ": " + e.Message
			}
			activities = append(activities, Activity{
				Reference:   e.ID,
				Type:        strings.ToUpper(e.Category),
				Description: description,
				CreatedAt:   e.CreatedAt,
			})
		}
	}

	sort.Slice(activities, func(i, j int) bool {
		return activities[i].CreatedAt.After(activities[j].CreatedAt)
	})
	if limit > 0 && len(activities) > limit {
		activities = activities[:limit]
	}
	return activities, nil
}

func describeTransaction(t *Transaction) string {
	switch t.Type {
	case TypeBuy:
		return fmt.Sprintf("Bought %d %s @ $%.2f", t.Quantity, t.Symbol, t.PricePerShare)
	case TypeSell:
		return fmt.Sprintf("Sold %d %s @ $%.2f", t.Quantity, t.Symbol, t.PricePerShare)
	case TypeDeposit:
		return fmt.Sprintf("Deposited $%.2f", t.TotalAmount)
	case TypeWithdrawal:
		return fmt.Sprintf("Withdrew $%.2f", t.TotalAmount)
	default:
		return t.Type
	}
}

// round2 rounds to cents
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// normalizeSymbol upper-cases and trims a ticker symbol
func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
