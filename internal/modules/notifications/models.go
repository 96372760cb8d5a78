package notifications

import "time"

// Notification categories produced by the system
const (
	CategoryTrade  = "trade"
	CategoryAlert  = "alert"
	CategorySystem = "system"
)

// Notification is one message delivered to a user
type Notification struct {
	ID        string    `json:"id"` // uuid
	UserID    string    `json:"user_id"`
	Category  string    `json:"category"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// ListResult bundles a notification page with its unread count
type ListResult struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
	Limit         int            `json:"limit"`
	Offset        int            `json:"offset"`
}
