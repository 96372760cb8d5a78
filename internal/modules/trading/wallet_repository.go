package trading

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Querier is satisfied by both *sql.DB and *sql.Tx so repository methods can
// run standalone or inside a transaction.
type Querier interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

const timeFormat = "2006-01-02 15:04:05"

// walletColumns is the column list for the wallets table.
// Order must match scanWallet.
const walletColumns = `user_id, cash_balance, total_invested, total_returns, created_at, updated_at`

// WalletRepository handles wallet persistence in ledger.db
type WalletRepository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(ledgerDB *sql.DB, log zerolog.Logger) *WalletRepository {
	return &WalletRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "wallet").Logger(),
	}
}

// Get retrieves a wallet, or nil if the user has none yet
func (r *WalletRepository) Get(userID string) (*Wallet, error) {
	return r.GetTx(r.ledgerDB, userID)
}

// GetTx retrieves a wallet within an existing transaction
func (r *WalletRepository) GetTx(q Querier, userID string) (*Wallet, error) {
	query := fmt.Sprintf("SELECT %s FROM wallets WHERE user_id = ?", walletColumns)

	w, err := scanWallet(q.QueryRow(query, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}

// GetOrCreate retrieves a wallet, lazily creating it with the starting
// balance on first access.
func (r *WalletRepository) GetOrCreate(userID string, startingBalance float64) (*Wallet, error) {
	return r.GetOrCreateTx(r.ledgerDB, userID, startingBalance)
}

// GetOrCreateTx is GetOrCreate within an existing transaction
func (r *WalletRepository) GetOrCreateTx(q Querier, userID string, startingBalance float64) (*Wallet, error) {
	w, err := r.GetTx(q, userID)
	if err != nil {
		return nil, err
	}
	if w != nil {
		return w, nil
	}

	now := time.Now().UTC()
	nowStr := now.Format(timeFormat)

	_, err = q.Exec(
		"INSERT INTO wallets (user_id, cash_balance, total_invested, total_returns, created_at, updated_at) VALUES (?, ?, 0, 0, ?, ?)",
		userID, startingBalance, nowStr, nowStr,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	r.log.Info().
		Str("user_id", userID).
		Float64("starting_balance", startingBalance).
		Msg("Created wallet")

	return &Wallet{
		UserID:      userID,
		CashBalance: startingBalance,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ListUserIDs returns every user with a wallet.
// Used by the nightly snapshot job.
func (r *WalletRepository) ListUserIDs() ([]string, error) {
	rows, err := r.ledgerDB.Query("SELECT user_id FROM wallets ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query wallet users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wallet users: %w", err)
	}
	return ids, nil
}

// UpdateTx persists balance, invested and returns within a transaction
func (r *WalletRepository) UpdateTx(q Querier, w *Wallet) error {
	w.UpdatedAt = time.Now().UTC()

	result, err := q.Exec(
		"UPDATE wallets SET cash_balance = ?, total_invested = ?, total_returns = ?, updated_at = ? WHERE user_id = ?",
		w.CashBalance, w.TotalInvested, w.TotalReturns, w.UpdatedAt.Format(timeFormat), w.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update wallet: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("wallet not found for user %s", w.UserID)
	}

	return nil
}

// rowScanner abstracts *sql.Row for scanning helpers
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWallet(row rowScanner) (*Wallet, error) {
	var w Wallet
	var createdAt, updatedAt string

	err := row.Scan(&w.UserID, &w.CashBalance, &w.TotalInvested, &w.TotalReturns, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	w.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	w.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)
	return &w, nil
}
