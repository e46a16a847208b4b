package notify

import (
	"context"

	"github.com/roundtable/service/internal/logging"
)

// Store is the persistence the Service needs.
type Store interface {
	Create(ctx context.Context, n *Notification) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Notification, int, error)
	MarkRead(ctx context.Context, id, userID string) error
	UnreadCount(ctx context.Context, userID string) (int, error)
}

// Service records notifications and publishes them for live delivery.
type Service struct {
	store  Store
	broker Broker
	log    logging.Logger
}

// NewService creates a new notification Service.
func NewService(store Store, broker Broker, log logging.Logger) *Service {
	return &Service{store: store, broker: broker, log: log}
}

// Notify persists n and publishes it. Failures are logged and never
// propagate to the action that triggered the notification. Self-notifications
// are skipped.
func (s *Service) Notify(ctx context.Context, n Notification) {
	if n.ActorID != nil && *n.ActorID == n.UserID {
		return
	}
	ctx = context.WithoutCancel(ctx)

	if err := s.store.Create(ctx, &n); err != nil {
		s.log.Error(ctx, "persist notification", "user_id", n.UserID, "type", n.Type, "error", err)
		return
	}
	if err := s.broker.Publish(ctx, Message{UserID: n.UserID, Notification: n}); err != nil {
		s.log.Warn(ctx, "publish notification", "user_id", n.UserID, "id", n.ID, "error", err)
	}
}

// List returns a page of the user's notifications and the total count.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Notification, int, error) {
	return s.store.ListByUser(ctx, userID, limit, offset)
}

// MarkRead marks one of the user's notifications as read.
func (s *Service) MarkRead(ctx context.Context, id, userID string) error {
	return s.store.MarkRead(ctx, id, userID)
}

// UnreadCount returns the number of unread notifications.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.store.UnreadCount(ctx, userID)
}
