package trading

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// holdingColumns is the column list for the holdings table.
// Order must match scanHolding.
const holdingColumns = `id, user_id, symbol, company_name, quantity, average_price, total_cost, current_price, current_value, created_at, last_updated`

// HoldingRepository handles holding persistence in ledger.db
type HoldingRepository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewHoldingRepository creates a new holding repository
func NewHoldingRepository(ledgerDB *sql.DB, log zerolog.Logger) *HoldingRepository {
	return &HoldingRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "holding").Logger(),
	}
}

// Get retrieves a single holding, or nil if the user has no position
func (r *HoldingRepository) Get(userID, symbol string) (*Holding, error) {
	return r.GetTx(r.ledgerDB, userID, symbol)
}

// GetTx retrieves a holding within an existing transaction
func (r *HoldingRepository) GetTx(q Querier, userID, symbol string) (*Holding, error) {
	query := fmt.Sprintf("SELECT %s FROM holdings WHERE user_id = ? AND symbol = ?", holdingColumns)

	h, err := scanHolding(q.QueryRow(query, userID, symbol))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get holding: %w", err)
	}
	return h, nil
}

// ListByUser retrieves all holdings for a user, largest cost basis first
func (r *HoldingRepository) ListByUser(userID string) ([]Holding, error) {
	query := fmt.Sprintf("SELECT %s FROM holdings WHERE user_id = ? ORDER BY total_cost DESC", holdingColumns)

	rows, err := r.ledgerDB.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	return scanHoldings(rows)
}

// ListSymbols returns the distinct set of symbols held by anyone.
// Used by the price refresh job.
func (r *HoldingRepository) ListSymbols() ([]string, error) {
	rows, err := r.ledgerDB.Query("SELECT DISTINCT symbol FROM holdings ORDER BY symbol")
	if err != nil {
		return nil, fmt.Errorf("failed to query held symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbols: %w", err)
	}
	return symbols, nil
}

// UpsertTx inserts or replaces a holding within a transaction.
// The (user_id, symbol) pair is the logical key.
func (r *HoldingRepository) UpsertTx(q Querier, h *Holding) error {
	now := time.Now().UTC()
	if h.CreatedAt.IsZero() {
		h.CreatedAt = now
	}
	h.LastUpdated = now

	_, err := q.Exec(`
		INSERT INTO holdings (user_id, symbol, company_name, quantity, average_price, total_cost, current_price, current_value, created_at, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, symbol) DO UPDATE SET
			company_name = excluded.company_name,
			quantity = excluded.quantity,
			average_price = excluded.average_price,
			total_cost = excluded.total_cost,
			current_price = excluded.current_price,
			current_value = excluded.current_value,
			last_updated = excluded.last_updated
	`,
		h.UserID, h.Symbol, h.CompanyName, h.Quantity, h.AveragePrice, h.TotalCost,
		h.CurrentPrice, h.CurrentValue,
		h.CreatedAt.Format(timeFormat), h.LastUpdated.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert holding: %w", err)
	}
	return nil
}

// DeleteTx removes a holding after a full exit
func (r *HoldingRepository) DeleteTx(q Querier, userID, symbol string) error {
	_, err := q.Exec("DELETE FROM holdings WHERE user_id = ? AND symbol = ?", userID, symbol)
	if err != nil {
		return fmt.Errorf("failed to delete holding: %w", err)
	}
	return nil
}

// UpdateCurrentPrice stores the latest observed price for all positions in a
// symbol and refreshes the cached current_value. Called by the background
// refresh job; the price cache is advisory so this is not transactional.
func (r *HoldingRepository) UpdateCurrentPrice(symbol string, price float64) (int64, error) {
	result, err := r.ledgerDB.Exec(
		"UPDATE holdings SET current_price = ?, current_value = ? * quantity, last_updated = ? WHERE symbol = ?",
		price, price, time.Now().UTC().Format(timeFormat), symbol,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update current price: %w", err)
	}
	return result.RowsAffected()
}

func scanHolding(row rowScanner) (*Holding, error) {
	var h Holding
	var companyName sql.NullString
	var createdAt, lastUpdated string

	err := row.Scan(
		&h.ID, &h.UserID, &h.Symbol, &companyName, &h.Quantity, &h.AveragePrice,
		&h.TotalCost, &h.CurrentPrice, &h.CurrentValue, &createdAt, &lastUpdated,
	)
	if err != nil {
		return nil, err
	}

	h.CompanyName = companyName.String
	h.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	h.LastUpdated, _ = time.Parse(timeFormat, lastUpdated)
	return &h, nil
}

func scanHoldings(rows *sql.Rows) ([]Holding, error) {
	var holdings []Holding
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}
	return holdings, nil
}
