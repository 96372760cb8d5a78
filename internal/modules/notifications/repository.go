package notifications

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const timeFormat = "2006-01-02 15:04:05"

// NotificationsSchema holds the notifications table in ledger.db
const NotificationsSchema = `
CREATE TABLE IF NOT EXISTS notifications (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    category TEXT NOT NULL,
    title TEXT NOT NULL,
    message TEXT NOT NULL,
    is_read INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at);
`

// notificationColumns order must match scanNotification
const notificationColumns = `id, user_id, category, title, message, is_read, created_at`

// Repository handles notification persistence
type Repository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewRepository creates a new notification repository
func NewRepository(ledgerDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "notifications").Logger(),
	}
}

// InitSchema ensures the notifications table exists
func (r *Repository) InitSchema() error {
	_, err := r.ledgerDB.Exec(NotificationsSchema)
	return err
}

// Create inserts a notification
func (r *Repository) Create(n *Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	_, err := r.ledgerDB.Exec(
		"INSERT INTO notifications (id, user_id, category, title, message, is_read, created_at) VALUES (?, ?, ?, ?, ?, 0, ?)",
		n.ID, n.UserID, n.Category, n.Title, n.Message, n.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// ListByUser retrieves a user's notifications, newest first
func (r *Repository) ListByUser(userID string, limit, offset int) ([]Notification, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM notifications WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		notificationColumns,
	)

	rows, err := r.ledgerDB.Query(query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []Notification
	for rows.Next() {
		var n Notification
		var isRead int
		var createdAt string

		err := rows.Scan(&n.ID, &n.UserID, &n.Category, &n.Title, &n.Message, &isRead, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}

		n.IsRead = isRead != 0
		n.CreatedAt, _ = time.Parse(timeFormat, createdAt)
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}

	return notifications, nil
}

// CountUnread returns the user's unread notification count
func (r *Repository) CountUnread(userID string) (int, error) {
	var count int
	err := r.ledgerDB.QueryRow(
		"SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0", userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread: %w", err)
	}
	return count, nil
}

// MarkRead marks one notification as read. Returns false when the
// notification does not exist or belongs to another user.
func (r *Repository) MarkRead(userID, id string) (bool, error) {
	result, err := r.ledgerDB.Exec(
		"UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?", id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// MarkAllRead marks every notification for a user as read
func (r *Repository) MarkAllRead(userID string) (int64, error) {
	result, err := r.ledgerDB.Exec(
		"UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0", userID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark all read: %w", err)
	}
	return result.RowsAffected()
}
