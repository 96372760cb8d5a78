package trading

import (
	"errors"
	"time"
)

// Transaction types recorded in the ledger
const (
	TypeBuy        = "BUY"
	TypeSell       = "SELL"
	TypeDeposit    = "DEPOSIT"
	TypeWithdrawal = "WITHDRAWAL"
)

// StatusCompleted is the only transaction status currently produced.
// The column exists so a pending/settling flow can be added without a
// schema change.
const StatusCompleted = "COMPLETED"

// Sentinel errors surfaced to handlers as 4xx responses
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientShares  = errors.New("insufficient shares")
	ErrNoPosition          = errors.New("no position in symbol")
	ErrPriceUnavailable    = errors.New("price unavailable")
	ErrInvalidQuantity     = errors.New("quantity must be a positive integer")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidSymbol       = errors.New("symbol is required")
	ErrInvalidPrice        = errors.New("current_price must be positive when supplied")
)

// Wallet represents a user's virtual cash account.
// TotalInvested is the cumulative cost basis ever deployed (moves only on
// buys), TotalReturns the cumulative realized P&L (can go negative).
type Wallet struct {
	UserID        string    `json:"user_id"`
	CashBalance   float64   `json:"cash_balance"`
	TotalInvested float64   `json:"total_invested"`
	TotalReturns  float64   `json:"total_returns"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Holding represents a user's position in a single symbol. A row exists only
// while quantity > 0; a full exit deletes it.
//
// AveragePrice is the cost basis per share, weighted across all buys and
// never moved by a sell. TotalCost is kept as its own column but must always
// equal round(average_price * quantity, 2). CurrentPrice/CurrentValue are a
// display cache, not authoritative.
type Holding struct {
	ID           int       `json:"id,omitempty"`
	UserID       string    `json:"user_id"`
	Symbol       string    `json:"symbol"`
	CompanyName  string    `json:"company_name,omitempty"`
	Quantity     int       `json:"quantity"`
	AveragePrice float64   `json:"average_price"`
	TotalCost    float64   `json:"total_cost"`
	CurrentPrice float64   `json:"current_price"`
	CurrentValue float64   `json:"current_value"`
	CreatedAt    time.Time `json:"created_at"`
	LastUpdated  time.Time `json:"last_updated"`
}

// Transaction is one immutable ledger entry. Fees are always zero today but
// are carried so a fee schedule can be wired in later without changing the
// shape; NetAmount accounts for them per side.
type Transaction struct {
	ID              int       `json:"id,omitempty"`
	Reference       string    `json:"reference"` // uuid, stable across API responses
	UserID          string    `json:"user_id"`
	Symbol          string    `json:"symbol,omitempty"` // empty for cash movements
	CompanyName     string    `json:"company_name,omitempty"`
	Type            string    `json:"type"`
	Quantity        int       `json:"quantity,omitempty"`
	PricePerShare   float64   `json:"price_per_share,omitempty"`
	TotalAmount     float64   `json:"total_amount"`
	Fees            float64   `json:"fees"`
	NetAmount       float64   `json:"net_amount"`
	Status          string    `json:"status"`
	Notes           string    `json:"notes,omitempty"`
	TransactionDate time.Time `json:"transaction_date"`
}

// TradeRequest is the request body for buy/sell operations.
// CurrentPrice lets the client pin the quoted price it displayed; when
// absent the price oracle resolves one.
type TradeRequest struct {
	Symbol       string   `json:"symbol"`
	Quantity     int      `json:"quantity"`
	CompanyName  string   `json:"company_name,omitempty"`
	CurrentPrice *float64 `json:"current_price,omitempty"`
}

// Validate checks the trade request fields
func (tr *TradeRequest) Validate() error {
	if tr.Symbol == "" {
		return ErrInvalidSymbol
	}
	if tr.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if tr.CurrentPrice != nil && *tr.CurrentPrice <= 0 {
		return ErrInvalidPrice
	}
	return nil
}

// CashRequest is the request body for deposit/withdraw operations
type CashRequest struct {
	Amount float64 `json:"amount"`
}

// TradeResult is returned after a successful buy or sell
type TradeResult struct {
	Transaction *Transaction `json:"transaction"`
	Wallet      *Wallet      `json:"wallet"`
	Holding     *Holding     `json:"holding,omitempty"` // nil after a full exit
	RealizedPnL float64      `json:"realized_gain_loss,omitempty"`
	PriceSource string       `json:"price_source,omitempty"`
}

// NotificationEvent is a notification row as seen by the activity feed
type NotificationEvent struct {
	ID        string
	Category  string
	Title     string
	Message   string
	CreatedAt time.Time
}

// Activity is a human-readable feed entry, merged from the transaction log
// and the user's notifications
type Activity struct {
	Reference   string    `json:"reference"`
	Type        string    `json:"type"`
	Symbol      string    `json:"symbol,omitempty"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	CreatedAt   time.Time `json:"created_at"`
}
