package trading

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// transactionColumns is the column list for the transactions table.
// Order must match scanTransaction.
const transactionColumns = `id, reference, user_id, symbol, company_name, type, quantity, price_per_share, total_amount, fees, net_amount, status, notes, transaction_date`

// TransactionRepository handles the append-only transaction ledger
type TransactionRepository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(ledgerDB *sql.DB, log zerolog.Logger) *TransactionRepository {
	return &TransactionRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "transaction").Logger(),
	}
}

// CreateTx appends a ledger entry within a transaction.
// A uuid reference is assigned when the entry has none.
func (r *TransactionRepository) CreateTx(q Querier, t *Transaction) error {
	if t.Reference == "" {
		t.Reference = uuid.NewString()
	}
	if t.TransactionDate.IsZero() {
		t.TransactionDate = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = StatusCompleted
	}

	result, err := q.Exec(`
		INSERT INTO transactions (reference, user_id, symbol, company_name, type, quantity, price_per_share, total_amount, fees, net_amount, status, notes, transaction_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.Reference, t.UserID, nullString(t.Symbol), nullString(t.CompanyName), t.Type,
		t.Quantity, t.PricePerShare, t.TotalAmount, t.Fees, t.NetAmount,
		t.Status, nullString(t.Notes), t.TransactionDate.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	t.ID = int(id)

	return nil
}

// ListByUser retrieves a user's transactions, newest first, with an optional
// type filter and pagination.
func (r *TransactionRepository) ListByUser(userID, txType string, limit, offset int) ([]Transaction, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM transactions WHERE user_id = ?",
		transactionColumns,
	)
	args := []interface{}{userID}

	if txType != "" {
		query += " AND type = ?"
		args = append(args, txType)
	}

	query += " ORDER BY transaction_date DESC, id DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
		if offset > 0 {
			query += " OFFSET ?"
			args = append(args, offset)
		}
	}

	rows, err := r.ledgerDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// ListByUserAndSymbol retrieves a user's transactions for one symbol, newest first
func (r *TransactionRepository) ListByUserAndSymbol(userID, symbol string) ([]Transaction, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM transactions WHERE user_id = ? AND symbol = ? ORDER BY transaction_date DESC, id DESC",
		transactionColumns,
	)

	rows, err := r.ledgerDB.Query(query, userID, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// GetByReference retrieves a single transaction by its uuid reference
func (r *TransactionRepository) GetByReference(reference string) (*Transaction, error) {
	query := fmt.Sprintf("SELECT %s FROM transactions WHERE reference = ?", transactionColumns)

	t, err := scanTransaction(r.ledgerDB.QueryRow(query, reference))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

// nullString maps empty strings to NULL
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func scanTransaction(row rowScanner) (*Transaction, error) {
	var t Transaction
	var symbol, companyName, notes sql.NullString
	var transactionDate string

	err := row.Scan(
		&t.ID, &t.Reference, &t.UserID, &symbol, &companyName, &t.Type,
		&t.Quantity, &t.PricePerShare, &t.TotalAmount, &t.Fees, &t.NetAmount,
		&t.Status, &notes, &transactionDate,
	)
	if err != nil {
		return nil, err
	}

	t.Symbol = symbol.String
	t.CompanyName = companyName.String
	t.Notes = notes.String
	t.TransactionDate, _ = time.Parse(timeFormat, transactionDate)
	return &t, nil
}

func scanTransactions(rows *sql.Rows) ([]Transaction, error) {
	var transactions []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}
