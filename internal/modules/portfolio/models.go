package portfolio

import "time"

// Price sources recorded on a valued holding
const (
	SourceRealtime  = "realtime"  // fresh quote from the price oracle
	SourceStored    = "stored"    // last persisted current_price
	SourceEstimated = "estimated" // synthetic walk around the cost basis
)

// ValuedHolding is a holding enriched with valuation figures
type ValuedHolding struct {
	Symbol       string  `json:"symbol"`
	CompanyName  string  `json:"company_name,omitempty"`
	Sector       string  `json:"sector,omitempty"`
	Quantity     int     `json:"quantity"`
	AveragePrice float64 `json:"average_price"`
	TotalCost    float64 `json:"total_cost"`

	CurrentPrice float64 `json:"current_price"`
	PriceSource  string  `json:"price_source"`
	CurrentValue float64 `json:"current_value"`

	UnrealizedGainLoss        float64 `json:"unrealized_gain_loss"`
	UnrealizedGainLossPercent float64 `json:"unrealized_gain_loss_percent"`
	HoldingPeriodReturn       float64 `json:"holding_period_return_percent"`
	CAGRPercent               float64 `json:"cagr_percent"`
	DaysHeld                  int     `json:"days_held"`
}

// PerformerRef points at the best or worst holding by unrealized return
type PerformerRef struct {
	Symbol      string  `json:"symbol"`
	GainPercent float64 `json:"gain_percent"`
}

// Summary is the full portfolio valuation
type Summary struct {
	UserID               string          `json:"user_id"`
	Holdings             []ValuedHolding `json:"holdings"`
	TotalValue           float64         `json:"total_value"`
	TotalCost            float64         `json:"total_cost"`
	TotalGainLoss        float64         `json:"total_gain_loss"`
	TotalGainLossPercent float64         `json:"total_gain_loss_percent"`
	CashBalance          float64         `json:"cash_balance"`
	TotalReturns         float64         `json:"total_returns"`
	DiversificationScore float64         `json:"diversification_score"`
	BestPerformer        *PerformerRef   `json:"best_performer,omitempty"`
	WorstPerformer       *PerformerRef   `json:"worst_performer,omitempty"`
	AsOf                 time.Time       `json:"as_of"`
}

// Snapshot is one point in the daily portfolio history
type Snapshot struct {
	ID          int               `json:"id,omitempty"`
	UserID      string            `json:"user_id"`
	Date        string            `json:"date"` // YYYY-MM-DD
	TotalValue  float64           `json:"total_value"`
	TotalCost   float64           `json:"total_cost"`
	CashBalance float64           `json:"cash_balance"`
	Breakdown   []SnapshotHolding `json:"breakdown,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// SnapshotHolding is the per-symbol breakdown stored inside a snapshot blob
type SnapshotHolding struct {
	Symbol       string  `msgpack:"symbol" json:"symbol"`
	Quantity     int     `msgpack:"quantity" json:"quantity"`
	CurrentPrice float64 `msgpack:"current_price" json:"current_price"`
	CurrentValue float64 `msgpack:"current_value" json:"current_value"`
	TotalCost    float64 `msgpack:"total_cost" json:"total_cost"`
}
