package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

const timeFormat = "2006-01-02 15:04:05"

// SnapshotSchema holds the daily portfolio history table in ledger.db.
// The per-symbol breakdown is a msgpack blob: it is written and read as a
// unit and never queried by column.
const SnapshotSchema = `
CREATE TABLE IF NOT EXISTS portfolio_snapshots (
    id INTEGER PRIMARY KEY,
    user_id TEXT NOT NULL,
    date TEXT NOT NULL,
    total_value REAL NOT NULL,
    total_cost REAL NOT NULL,
    cash_balance REAL NOT NULL,
    breakdown BLOB,
    created_at TEXT NOT NULL,
    UNIQUE(user_id, date)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_user ON portfolio_snapshots(user_id, date);
`

// SnapshotRepository stores daily portfolio valuations
type SnapshotRepository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(ledgerDB *sql.DB, log zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "snapshots").Logger(),
	}
}

// InitSchema ensures the snapshots table exists
func (r *SnapshotRepository) InitSchema() error {
	_, err := r.ledgerDB.Exec(SnapshotSchema)
	return err
}

// Upsert writes a snapshot, replacing any earlier one for the same day
func (r *SnapshotRepository) Upsert(s *Snapshot) error {
	var blob []byte
	if len(s.Breakdown) > 0 {
		var err error
		blob, err = msgpack.Marshal(s.Breakdown)
		if err != nil {
			return fmt.Errorf("failed to encode breakdown: %w", err)
		}
	}

	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	_, err := r.ledgerDB.Exec(`
		INSERT INTO portfolio_snapshots (user_id, date, total_value, total_cost, cash_balance, breakdown, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, date) DO UPDATE SET
			total_value = excluded.total_value,
			total_cost = excluded.total_cost,
			cash_balance = excluded.cash_balance,
			breakdown = excluded.breakdown,
			created_at = excluded.created_at
	`,
		s.UserID, s.Date, s.TotalValue, s.TotalCost, s.CashBalance, blob,
		s.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return nil
}

// ListByUser returns a user's snapshots in date order, oldest first.
// A limit of 0 returns the full series.
func (r *SnapshotRepository) ListByUser(userID string, limit int) ([]Snapshot, error) {
	query := `
		SELECT id, user_id, date, total_value, total_cost, cash_balance, breakdown, created_at
		FROM portfolio_snapshots
		WHERE user_id = ?
		ORDER BY date ASC
	`
	args := []interface{}{userID}
	if limit > 0 {
		// Keep the most recent N points while preserving ascending order
		query = `
			SELECT id, user_id, date, total_value, total_cost, cash_balance, breakdown, created_at FROM (
				SELECT id, user_id, date, total_value, total_cost, cash_balance, breakdown, created_at
				FROM portfolio_snapshots
				WHERE user_id = ?
				ORDER BY date DESC
				LIMIT ?
			) ORDER BY date ASC
		`
		args = append(args, limit)
	}

	rows, err := r.ledgerDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var s Snapshot
		var blob []byte
		var createdAt string

		err := rows.Scan(&s.ID, &s.UserID, &s.Date, &s.TotalValue, &s.TotalCost,
			&s.CashBalance, &blob, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}

		if len(blob) > 0 {
			if err := msgpack.Unmarshal(blob, &s.Breakdown); err != nil {
				r.log.Warn().Err(err).Str("user_id", userID).Str("date", s.Date).
					Msg("Skipping malformed snapshot breakdown")
			}
		}

		s.CreatedAt, _ = time.Parse(timeFormat, createdAt)
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snapshots, nil
}
