package grouporder

import (
	"context"
	"fmt"
	"time"

	"ms-grouporder/internal/config"
	"ms-grouporder/internal/grouporder/db"
	"ms-grouporder/internal/kafka"
	"ms-grouporder/internal/logger"
	"ms-grouporder/internal/models"
)

type Locker interface {
	LockOrder(ctx context.Context, orderID string) (func(), error)
	LockCart(ctx context.Context, userID string) (func(), error)
}

type CartStore interface {
	ListItems(ctx context.Context, userID string) ([]models.CartItem, error)
	Clear(ctx context.Context, userID string) error
	RestoreOrAdd(ctx context.Context, userID, productID string, quantity int) error
}

type Catalog interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
}

type Profiles interface {
	GetMany(ctx context.Context, userIDs []string) (map[string]*models.Profile, error)
}

type Notifier interface {
	Append(ctx context.Context, userID, orderID, typ, title, message string) (*models.Notification, error)
	PurgeOrder(ctx context.Context, orderID, keepType string) error
}

// Deps are the collaborators of the group-order service. Events may be nil.
type Deps struct {
	DB       *db.DB
	Locker   Locker
	Cart     CartStore
	Catalog  Catalog
	Profiles Profiles
	Notifier Notifier
	Events   kafka.Publisher
	Topic    string
	Logger   *logger.Logger
}

// Service owns shared orders: their participants, items and status up to
// confirmation. Every mutation of one order runs under that order's lock.
type Service struct {
	DB       *db.DB
	Locker   Locker
	Cart     CartStore
	Catalog  Catalog
	Profiles Profiles
	Notifier Notifier
	Events   kafka.Publisher
	Topic    string
	Config   config.OrderConfig
	Logger   *logger.Logger
	Now      func() time.Time
}

func NewService(deps Deps, cfg config.OrderConfig) *Service {
	if cfg.DefaultPreparationMinutes <= 0 {
		cfg.DefaultPreparationMinutes = 30
	}
	if cfg.DeadlineLead <= 0 {
		cfg.DeadlineLead = time.Hour
	}
	if cfg.ListConcurrency <= 0 {
		cfg.ListConcurrency = 8
	}
	return &Service{
		DB:       deps.DB,
		Locker:   deps.Locker,
		Cart:     deps.Cart,
		Catalog:  deps.Catalog,
		Profiles: deps.Profiles,
		Notifier: deps.Notifier,
		Events:   deps.Events,
		Topic:    deps.Topic,
		Config:   cfg,
		Logger:   deps.Logger,
		Now:      time.Now,
	}
}

func (s *Service) now() time.Time {
	return s.Now().UTC()
}

// notify delivers one notification. A failed notification never fails the
// operation that caused it.
func (s *Service) notify(ctx context.Context, userID, orderID, typ, title, message string) {
	if _, err := s.Notifier.Append(ctx, userID, orderID, typ, title, message); err != nil {
		s.Logger.Error("NOTIFY", fmt.Sprintf("Failed to notify %s about order %s: %v", userID, orderID, err))
	}
}

// publishEvent sends a lifecycle event to Kafka, best-effort.
func (s *Service) publishEvent(ctx context.Context, typ string, order *models.SharedOrder, userID string) {
	if s.Events == nil || s.Topic == "" {
		return
	}
	ev := models.OrderEvent{
		Type:         typ,
		OrderID:      order.ID,
		UserID:       userID,
		Status:       order.Status,
		Amount:       order.CurrentAmount,
		Participants: order.CurrentParticipants,
		OccurredAt:   s.now(),
	}
	if err := s.Events.PublishJSON(ctx, s.Topic, order.ID, ev); err != nil {
		s.Logger.LogKafka("PUBLISH_FAILED", s.Topic, fmt.Sprintf("%s for order %s: %v", typ, order.ID, err))
	}
}

// lockOrder takes the order lock, reporting acquisition failures as infrastructure errors.
func (s *Service) lockOrder(ctx context.Context, orderID string) (func(), error) {
	unlock, err := s.Locker.LockOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("lock order %s: %w", orderID, err)
	}
	return unlock, nil
}

func (s *Service) lockCart(ctx context.Context, userID string) (func(), error) {
	unlock, err := s.Locker.LockCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lock cart of %s: %w", userID, err)
	}
	return unlock, nil
}
