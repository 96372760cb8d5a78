package alerts

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const timeFormat = "2006-01-02 15:04:05"

// AlertsSchema holds the price_alerts table in ledger.db
const AlertsSchema = `
CREATE TABLE IF NOT EXISTS price_alerts (
    id INTEGER PRIMARY KEY,
    user_id TEXT NOT NULL,
    symbol TEXT NOT NULL,
    alert_type TEXT NOT NULL,
    condition TEXT NOT NULL,
    target_value REAL NOT NULL,
    baseline_price REAL NOT NULL DEFAULT 0,
    indicator TEXT,
    is_active INTEGER NOT NULL DEFAULT 1,
    is_triggered INTEGER NOT NULL DEFAULT 0,
    triggered_at TEXT,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerts_user ON price_alerts(user_id, is_active);
CREATE INDEX IF NOT EXISTS idx_alerts_pending ON price_alerts(is_active, is_triggered);
`

// alertColumns order must match scanAlert
const alertColumns = `id, user_id, symbol, alert_type, condition, target_value, baseline_price, indicator, is_active, is_triggered, triggered_at, created_at`

// Repository handles alert persistence
type Repository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewRepository creates a new alert repository
func NewRepository(ledgerDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "alerts").Logger(),
	}
}

// InitSchema ensures the alerts table exists
func (r *Repository) InitSchema() error {
	_, err := r.ledgerDB.Exec(AlertsSchema)
	return err
}

// Create inserts an alert and assigns its id
func (r *Repository) Create(a *Alert) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	var indicator interface{}
	if a.Indicator != "" {
		indicator = a.Indicator
	}

	result, err := r.ledgerDB.Exec(`
		INSERT INTO price_alerts (user_id, symbol, alert_type, condition, target_value, baseline_price, indicator, is_active, is_triggered, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, 0, ?)
	`,
		a.UserID, a.Symbol, a.AlertType, a.Condition, a.TargetValue,
		a.BaselinePrice, indicator, a.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	a.ID = int(id)
	a.IsActive = true

	return nil
}

// ListByUser retrieves a user's active alerts, newest first
func (r *Repository) ListByUser(userID string) ([]Alert, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM price_alerts WHERE user_id = ? AND is_active = 1 ORDER BY created_at DESC, id DESC",
		alertColumns,
	)

	rows, err := r.ledgerDB.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// ListPending retrieves all active, untriggered alerts across users.
// Used by the sweep job.
func (r *Repository) ListPending() ([]Alert, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM price_alerts WHERE is_active = 1 AND is_triggered = 0 ORDER BY symbol",
		alertColumns,
	)

	rows, err := r.ledgerDB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// MarkTriggered records that an alert has fired
func (r *Repository) MarkTriggered(id int, at time.Time) error {
	_, err := r.ledgerDB.Exec(
		"UPDATE price_alerts SET is_triggered = 1, triggered_at = ? WHERE id = ?",
		at.UTC().Format(timeFormat), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark alert triggered: %w", err)
	}
	return nil
}

// Deactivate soft-deletes an alert. Returns false when it does not exist or
// belongs to another user.
func (r *Repository) Deactivate(userID string, id int) (bool, error) {
	result, err := r.ledgerDB.Exec(
		"UPDATE price_alerts SET is_active = 0 WHERE id = ? AND user_id = ?", id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate alert: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

func scanAlerts(rows *sql.Rows) ([]Alert, error) {
	var alerts []Alert
	for rows.Next() {
		var a Alert
		var indicator sql.NullString
		var isActive, isTriggered int
		var triggeredAt sql.NullString
		var createdAt string

		err := rows.Scan(
			&a.ID, &a.UserID, &a.Symbol, &a.AlertType, &a.Condition,
			&a.TargetValue, &a.BaselinePrice, &indicator,
			&isActive, &isTriggered, &triggeredAt, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}

		a.Indicator = indicator.String
		a.IsActive = isActive != 0
		a.IsTriggered = isTriggered != 0
		if triggeredAt.Valid {
			ts, err := time.Parse(timeFormat, triggeredAt.String)
			if err == nil {
				a.TriggeredAt = &ts
			}
		}
		a.CreatedAt, _ = time.Parse(timeFormat, createdAt)
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}
	return alerts, nil
}
