package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-grouporder/internal/apperr"
	"ms-grouporder/internal/kafka"
	"ms-grouporder/internal/logger"
	"ms-grouporder/internal/models"
	"ms-grouporder/internal/notification/db"
	"ms-grouporder/internal/sse"
)

// Service is the per-user notification log. Stored rows are the source of
// truth; the SSE push and the Kafka fan-out are best-effort copies.
type Service struct {
	DB     *db.DB
	Broker *sse.Broker[models.Notification]
	Events kafka.Publisher
	Topic  string
	Limit  int
	// Origin names this process on the topic so Relay can skip notices
	// that were already pushed locally.
	Origin string
	Logger *logger.Logger
	Now    func() time.Time
}

type Options struct {
	Broker *sse.Broker[models.Notification]
	Events kafka.Publisher
	Topic  string
	Limit  int
	Origin string
}

// Event is the notifications topic payload: the stored notice plus the
// process that wrote it.
type Event struct {
	models.Notification
	Origin string `json:"origin,omitempty"`
}

func NewService(store *db.DB, opts Options, log *logger.Logger) *Service {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	return &Service{
		DB:     store,
		Broker: opts.Broker,
		Events: opts.Events,
		Topic:  opts.Topic,
		Limit:  limit,
		Origin: opts.Origin,
		Logger: log,
		Now:    time.Now,
	}
}

// Append stores a notification for userID and pushes it to live streams.
func (s *Service) Append(ctx context.Context, userID, orderID, typ, title, message string) (*models.Notification, error) {
	n := &models.Notification{
		UserID:    userID,
		OrderID:   orderID,
		Type:      typ,
		Title:     title,
		Message:   message,
		CreatedAt: s.Now().UTC(),
	}
	if err := s.DB.Insert(ctx, n); err != nil {
		return nil, err
	}
	s.Logger.LogNotification(typ, userID, fmt.Sprintf("order=%s id=%d", orderID, n.ID))

	s.Broker.Publish(userID, *n)
	if s.Events != nil && s.Topic != "" {
		if err := s.Events.PublishJSON(ctx, s.Topic, userID, Event{Notification: *n, Origin: s.Origin}); err != nil {
			s.Logger.Warn("NOTIFY", fmt.Sprintf("Failed to publish notification %d: %v", n.ID, err))
		}
	}
	return n, nil
}

// Relay pushes a notice written by another process, such as the tracking
// worker, to this process's live streams. It is a kafka.Handler for the
// notifications topic.
func (s *Service) Relay(ctx context.Context, key, value []byte) error {
	var ev Event
	if err := json.Unmarshal(value, &ev); err != nil {
		return fmt.Errorf("decode notification: %w", err)
	}
	if ev.UserID == "" {
		return fmt.Errorf("notification %d has no user", ev.ID)
	}
	if s.Origin != "" && ev.Origin == s.Origin {
		return nil
	}
	s.Broker.Publish(ev.UserID, ev.Notification)
	s.Logger.Debug("NOTIFY", fmt.Sprintf("Relayed %s notification %d for %s from %s", ev.Type, ev.ID, ev.UserID, ev.Origin))
	return nil
}

// ListRecent returns the caller's newest notifications first.
func (s *Service) ListRecent(ctx context.Context, userID string) ([]models.Notification, error) {
	return s.DB.ListRecent(ctx, userID, s.Limit)
}

// MarkRead flips the read flag. Notifications of other users are reported
// as not found.
func (s *Service) MarkRead(ctx context.Context, userID string, id int64) error {
	n, err := s.DB.Get(ctx, id)
	if err != nil {
		return err
	}
	if n == nil || n.UserID != userID {
		return apperr.New(apperr.KindNotFound, "notification %d not found", id)
	}
	if n.IsRead {
		return nil
	}
	return s.DB.MarkRead(ctx, id)
}

// HasRecent reports whether userID got a notification of typ for orderID
// after since.
func (s *Service) HasRecent(ctx context.Context, userID, orderID, typ string, since time.Time) (bool, error) {
	latest, err := s.DB.LatestOfType(ctx, userID, orderID, typ)
	if err != nil || latest == nil {
		return false, err
	}
	return latest.After(since), nil
}

// PurgeOrder drops every notification of the order except keepType.
func (s *Service) PurgeOrder(ctx context.Context, orderID, keepType string) error {
	n, err := s.DB.PurgeOrder(ctx, orderID, keepType)
	if err != nil {
		return err
	}
	s.Logger.Debug("NOTIFY", fmt.Sprintf("Purged %d notifications for order %s", n, orderID))
	return nil
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.DB.UnreadCount(ctx, userID)
}
