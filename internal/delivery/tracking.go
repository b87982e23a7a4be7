package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ms-grouporder/internal/apperr"
	"ms-grouporder/internal/config"
	"ms-grouporder/internal/geo"
	"ms-grouporder/internal/grouporder/db"
	"ms-grouporder/internal/logger"
	"ms-grouporder/internal/models"
	"ms-grouporder/internal/sse"
)

// Claimer grants a key to one caller for ttl. Proximity notices use it so
// that concurrent workers do not both send the same notice.
type Claimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unclaim(ctx context.Context, key string) error
}

// Tracker ingests rider positions and turns them into proximity notices.
type Tracker struct {
	DB         *db.DB
	Notifier   Notifier
	Claimer    Claimer
	Dispatcher ProximityDispatcher
	Broker     *sse.Broker[models.LocationPing]
	Config     config.TrackingConfig
	Logger     *logger.Logger
	Now        func() time.Time
}

type TrackerOptions struct {
	Claimer    Claimer
	Dispatcher ProximityDispatcher
	Broker     *sse.Broker[models.LocationPing]
}

// NewTracker builds a tracker. Without a dispatcher, proximity checks run
// in-process on detached goroutines.
func NewTracker(store *db.DB, notifier Notifier, opts TrackerOptions, cfg config.TrackingConfig, log *logger.Logger) *Tracker {
	t := &Tracker{
		DB:         store,
		Notifier:   notifier,
		Claimer:    opts.Claimer,
		Dispatcher: opts.Dispatcher,
		Broker:     opts.Broker,
		Config:     cfg,
		Logger:     log,
		Now:        time.Now,
	}
	if t.Dispatcher == nil {
		t.Dispatcher = NewAsyncDispatcher(t.ProximityCheck, cfg.CheckTimeout, log)
	}
	return t
}

// UpdateRiderLocation stores the rider's position and hands it to the
// proximity check. A failing check never fails the update.
func (t *Tracker) UpdateRiderLocation(ctx context.Context, orderID, riderID string, lat, lng float64) error {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return apperr.New(apperr.KindInvalidInput, "coordinates out of range: %f,%f", lat, lng)
	}
	tracking, err := t.DB.GetTracking(ctx, orderID)
	if err != nil {
		return err
	}
	if tracking == nil {
		return apperr.New(apperr.KindNotFound, "no delivery tracking for order %s", orderID)
	}
	if tracking.RiderID != riderID {
		return apperr.New(apperr.KindForbidden, "rider %s is not assigned to order %s", riderID, orderID)
	}

	now := t.Now().UTC()
	if err := t.DB.UpdateLocation(ctx, orderID, lat, lng, now); err != nil {
		return err
	}
	ping := models.LocationPing{OrderID: orderID, RiderID: riderID, Lat: lat, Lng: lng, At: now}
	t.Broker.Publish(orderID, ping)

	if err := t.Dispatcher.Dispatch(ctx, ping); err != nil {
		t.Logger.Warn("TRACKING", fmt.Sprintf("Proximity check for %s not scheduled: %v", orderID, err))
	}
	return nil
}

// ProximityCheck notifies the participant of the next open stop when the
// rider is close, and the participant after them when the rider is at
// least within the next-stop radius. Orders without tracking are ignored.
func (t *Tracker) ProximityCheck(ctx context.Context, orderID string, lat, lng float64) error {
	tracking, err := t.DB.GetTracking(ctx, orderID)
	if err != nil {
		return err
	}
	if tracking == nil {
		return nil
	}
	idx := tracking.NextStop()
	if idx < 0 {
		return nil
	}
	stop := tracking.Route[idx]
	distance := geo.PlanarKm(geo.Point{Lat: lat, Lng: lng}, geo.Point{Lat: stop.Lat, Lng: stop.Lng})

	var errs []error
	if distance < t.Config.NearbyKm {
		err := t.notifyOnce(ctx, orderID, stop.ParticipantID, models.NotifyRiderNearby, t.Config.NearbyWindow,
			"🚚 Rider is nearby!",
			"Your delivery rider is approaching your location. Please be ready to receive your order.")
		errs = append(errs, err)
	}
	if idx+1 < len(tracking.Route) && distance < t.Config.NextStopKm {
		next := tracking.Route[idx+1]
		err := t.notifyOnce(ctx, orderID, next.ParticipantID, models.NotifyNextStop, t.Config.NextStopWindow,
			"📍 You're next!",
			"Your stop is coming up next! The rider will be at your location in approximately 10-15 minutes.")
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// notifyOnce sends a notice unless the participant already got one of the
// same type for this order inside window.
func (t *Tracker) notifyOnce(ctx context.Context, orderID, participantID, typ string, window time.Duration, title, message string) error {
	p, err := t.DB.GetParticipantByID(ctx, orderID, participantID)
	if err != nil {
		return err
	}
	if p == nil {
		return nil
	}

	recent, err := t.Notifier.HasRecent(ctx, p.UserID, orderID, typ, t.Now().UTC().Add(-window))
	if err != nil {
		return err
	}
	if recent {
		return nil
	}
	claimKey := fmt.Sprintf("proximity:%s:%s:%s", typ, orderID, p.UserID)
	if t.Claimer != nil {
		ok, err := t.Claimer.Claim(ctx, claimKey, window)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	if _, err := t.Notifier.Append(ctx, p.UserID, orderID, typ, title, message); err != nil {
		// Nothing was sent, so the next ping must be free to try again.
		if t.Claimer != nil {
			if uerr := t.Claimer.Unclaim(context.Background(), claimKey); uerr != nil {
				t.Logger.Error("PROXIMITY", fmt.Sprintf("Failed to release %s: %v", claimKey, uerr))
			}
		}
		return err
	}
	t.Logger.LogDelivery("PROXIMITY", orderID, fmt.Sprintf("%s sent to %s", typ, p.UserID))
	return nil
}

// GetTracking returns the delivery state as seen by one participant or the
// assigned rider.
func (t *Tracker) GetTracking(ctx context.Context, orderID, userID string) (*models.TrackingView, error) {
	order, err := t.DB.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperr.New(apperr.KindNotFound, "shared order %s not found", orderID)
	}
	p, err := t.DB.GetParticipant(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	if p == nil && order.RiderID != userID {
		return nil, apperr.New(apperr.KindForbidden, "not a participant in this order")
	}
	tracking, err := t.DB.GetTracking(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if tracking == nil {
		return nil, apperr.New(apperr.KindNotFound, "delivery has not started for order %s", orderID)
	}

	view := &models.TrackingView{DeliveryTracking: tracking, Order: order}
	if p != nil {
		view.UserDeliveryOrder = p.DeliveryOrder
		view.UserEstimatedArrival = p.EstimatedArrival
		view.IsUserDelivered = p.IsDelivered
	}
	return view, nil
}

// HandlePing is the Kafka handler for rider location pings.
func (t *Tracker) HandlePing(ctx context.Context, _, value []byte) error {
	var ping models.LocationPing
	if err := json.Unmarshal(value, &ping); err != nil {
		return fmt.Errorf("decode location ping: %w", err)
	}
	if ping.OrderID == "" {
		return errors.New("location ping without order id")
	}
	return t.ProximityCheck(ctx, ping.OrderID, ping.Lat, ping.Lng)
}
