// Package notifications is the write-only sink for user-facing events and
// its read/stream API.
package notifications

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service creates and lists notifications. Creation is best-effort for
// callers: trading and alerts fire-and-forget through Notify and must never
// fail because a notification could not be stored or delivered.
type Service struct {
	repo *Repository
	hub  *Hub
	log  zerolog.Logger
}

// NewService creates a new notification service. hub may be nil when live
// streaming is disabled.
func NewService(repo *Repository, hub *Hub, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		hub:  hub,
		log:  log.With().Str("service", "notifications").Logger(),
	}
}

// Notify stores a notification and pushes it to live subscribers.
// Implements the trading service's Notifier; errors are logged, not returned.
func (s *Service) Notify(userID, category, title, message string) {
	n := Notification{
		ID:       uuid.NewString(),
		UserID:   userID,
		Category: category,
		Title:    title,
		Message:  message,
	}

	if err := s.repo.Create(&n); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to store notification")
		return
	}

	if s.hub != nil {
		s.hub.Publish(n)
	}
}

// List returns a page of the user's notifications with the unread count
func (s *Service) List(userID string, limit, offset int) (*ListResult, error) {
	notifications, err := s.repo.ListByUser(userID, limit, offset)
	if err != nil {
		return nil, err
	}
	if notifications == nil {
		notifications = []Notification{}
	}

	unread, err := s.repo.CountUnread(userID)
	if err != nil {
		return nil, err
	}

	return &ListResult{
		Notifications: notifications,
		UnreadCount:   unread,
		Limit:         limit,
		Offset:        offset,
	}, nil
}

// MarkRead marks one notification as read
func (s *Service) MarkRead(userID, id string) (bool, error) {
	return s.repo.MarkRead(userID, id)
}

// MarkAllRead marks all of the user's notifications as read
func (s *Service) MarkAllRead(userID string) (int64, error) {
	return s.repo.MarkAllRead(userID)
}
