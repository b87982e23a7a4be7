package delivery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-grouporder/internal/apperr"
	"ms-grouporder/internal/config"
	"ms-grouporder/internal/geo"
	"ms-grouporder/internal/grouporder/db"
	"ms-grouporder/internal/kafka"
	"ms-grouporder/internal/logger"
	"ms-grouporder/internal/models"
)

const (
	EventDispatched    = "order.out_for_delivery"
	EventStopCompleted = "order.stop_completed"
	EventDelivered     = "order.delivered"
)

type OrderLocker interface {
	LockOrder(ctx context.Context, orderID string) (func(), error)
}

type Notifier interface {
	Append(ctx context.Context, userID, orderID, typ, title, message string) (*models.Notification, error)
	HasRecent(ctx context.Context, userID, orderID, typ string, since time.Time) (bool, error)
}

type DispatchRequest struct {
	RiderID    string `json:"rider_id"`
	RiderName  string `json:"rider_name"`
	RiderPhone string `json:"rider_phone"`
}

// Router hands confirmed orders to a rider and records stop completion.
type Router struct {
	DB       *db.DB
	Locker   OrderLocker
	Notifier Notifier
	Events   kafka.Publisher
	Topic    string
	Config   config.TrackingConfig
	Logger   *logger.Logger
	Now      func() time.Time
}

func NewRouter(store *db.DB, locker OrderLocker, notifier Notifier, cfg config.TrackingConfig, log *logger.Logger) *Router {
	return &Router{
		DB:       store,
		Locker:   locker,
		Notifier: notifier,
		Config:   cfg,
		Logger:   log,
		Now:      time.Now,
	}
}

func (r *Router) reference() geo.Point {
	return geo.Point{Lat: r.Config.ReferenceLat, Lng: r.Config.ReferenceLng}
}

func (r *Router) publish(ctx context.Context, typ string, order *models.SharedOrder, userID string) {
	if r.Events == nil || r.Topic == "" {
		return
	}
	ev := models.OrderEvent{
		Type:         typ,
		OrderID:      order.ID,
		UserID:       userID,
		Status:       order.Status,
		Amount:       order.CurrentAmount,
		Participants: order.CurrentParticipants,
		OccurredAt:   r.Now().UTC(),
	}
	if err := r.Events.PublishJSON(ctx, r.Topic, order.ID, ev); err != nil {
		r.Logger.LogKafka("PUBLISH_FAILED", r.Topic, fmt.Sprintf("%s for order %s: %v", typ, order.ID, err))
	}
}

func (r *Router) notify(ctx context.Context, userID, orderID, typ, title, message string) {
	if _, err := r.Notifier.Append(ctx, userID, orderID, typ, title, message); err != nil {
		r.Logger.Error("NOTIFY", fmt.Sprintf("Failed to notify %s about order %s: %v", userID, orderID, err))
	}
}

// Dispatch sends a confirmed order out with a rider. Stops follow join
// order and are spaced one stop interval apart.
func (r *Router) Dispatch(ctx context.Context, orderID string, req DispatchRequest) (*models.DeliveryTracking, error) {
	req.RiderID = strings.TrimSpace(req.RiderID)
	req.RiderName = strings.TrimSpace(req.RiderName)
	if req.RiderID == "" || req.RiderName == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "rider id and name are required")
	}

	unlock, err := r.Locker.LockOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("lock order %s: %w", orderID, err)
	}
	defer unlock()

	order, err := r.DB.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperr.New(apperr.KindNotFound, "shared order %s not found", orderID)
	}
	if order.Status != models.StatusConfirmed {
		return nil, apperr.New(apperr.KindInvalidState, "only confirmed orders can be dispatched, order is %s", order.Status)
	}
	participants, err := r.DB.ListParticipants(ctx, orderID)
	if err != nil {
		return nil, err
	}

	now := r.Now().UTC()
	ref := r.reference()
	tracking := &models.DeliveryTracking{
		ID:          uuid.NewString(),
		OrderID:     orderID,
		RiderID:     req.RiderID,
		CurrentLat:  ref.Lat,
		CurrentLng:  ref.Lng,
		LocationAt:  now,
		LastUpdated: now,
		Route:       make([]models.RouteStop, 0, len(participants)),
	}
	path := []geo.Point{ref}
	for i := range participants {
		p := &participants[i]
		eta := now.Add(time.Duration(i+1) * r.Config.StopInterval)
		pos := Placeholder(ref, r.Config.PlaceholderSpread, p.DeliveryAddress)
		p.DeliveryOrder = i + 1
		p.EstimatedArrival = &eta
		tracking.Route = append(tracking.Route, models.RouteStop{
			ID:               uuid.NewString(),
			OrderID:          orderID,
			Seq:              i + 1,
			ParticipantID:    p.ID,
			Address:          p.DeliveryAddress,
			Lat:              pos.Lat,
			Lng:              pos.Lng,
			EstimatedArrival: eta,
		})
		path = append(path, pos)
	}
	tracking.TotalDistanceKm = geo.PathKm(path...)
	tracking.EstimatedDurationMin = int((time.Duration(len(participants)) * r.Config.StopInterval).Minutes())

	order.Status = models.StatusOutForDelivery
	order.RiderID = req.RiderID
	order.RiderName = req.RiderName
	order.RiderPhone = strings.TrimSpace(req.RiderPhone)
	order.DeliveryStartTime = &now
	order.UpdatedAt = now
	if err := r.DB.StartDelivery(ctx, order, participants, tracking); err != nil {
		return nil, err
	}
	r.Logger.LogDelivery("DISPATCHED", orderID, fmt.Sprintf("rider=%s stops=%d distance=%.1fkm", req.RiderID, len(participants), tracking.TotalDistanceKm))

	for _, p := range participants {
		r.notify(ctx, p.UserID, orderID, models.NotifyOutForDelivery,
			"🚚 Your order is out for delivery!",
			fmt.Sprintf("%s is on the way with your group order. Track live location in the app.", req.RiderName))
	}
	r.publish(ctx, EventDispatched, order, "")
	return tracking, nil
}

// CompleteStop records delivery to one participant. When it was the last
// undelivered participant the order becomes delivered.
func (r *Router) CompleteStop(ctx context.Context, orderID, participantID string) error {
	unlock, err := r.Locker.LockOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("lock order %s: %w", orderID, err)
	}
	defer unlock()

	order, err := r.DB.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return apperr.New(apperr.KindNotFound, "shared order %s not found", orderID)
	}
	if order.Status != models.StatusOutForDelivery {
		return apperr.New(apperr.KindInvalidState, "order is %s, not out for delivery", order.Status)
	}
	p, err := r.DB.GetParticipantByID(ctx, orderID, participantID)
	if err != nil {
		return err
	}
	if p == nil {
		return apperr.New(apperr.KindNotFound, "participant %s not found in order %s", participantID, orderID)
	}
	if p.IsDelivered {
		return nil
	}

	allDelivered, err := r.DB.CompleteStop(ctx, orderID, participantID, r.Now().UTC())
	if err != nil {
		return err
	}
	r.Logger.LogDelivery("STOP_COMPLETED", orderID, fmt.Sprintf("participant=%s seq=%d", participantID, p.DeliveryOrder))
	r.notify(ctx, p.UserID, orderID, models.NotifyDelivered,
		"✅ Order Delivered!",
		"Your items have been delivered successfully. Enjoy your groceries!")
	r.publish(ctx, EventStopCompleted, order, p.UserID)

	if allDelivered {
		order.Status = models.StatusDelivered
		r.Logger.LogDelivery("DELIVERED", orderID, "all participants delivered")
		r.publish(ctx, EventDelivered, order, "")
	}
	return nil
}
