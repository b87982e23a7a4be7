package grouporder

import (
	"context"
	"fmt"
	"time"

	"ms-grouporder/internal/apperr"
	"ms-grouporder/internal/models"
)

// Confirm closes an open order for preparation. Only the creator may
// confirm, and only once the amount summed from participants reaches the
// order minimum.
func (s *Service) Confirm(ctx context.Context, orderID, userID string) error {
	unlock, err := s.lockOrder(ctx, orderID)
	if err != nil {
		return err
	}
	defer unlock()

	order, err := s.DB.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return apperr.New(apperr.KindNotFound, "shared order %s not found", orderID)
	}
	if order.CreatorID != userID {
		return apperr.New(apperr.KindForbidden, "only the creator can confirm this order")
	}
	if order.Status != models.StatusOpen {
		return apperr.New(apperr.KindInvalidState, "cannot confirm a %s order", order.Status)
	}

	totals, err := s.DB.Totals(ctx, orderID)
	if err != nil {
		return err
	}
	t := totals[orderID]
	if t.Amount < order.MinOrderAmount {
		return &apperr.BelowMinimumError{Current: t.Amount, Required: order.MinOrderAmount}
	}

	now := s.now()
	prep := order.PreparationMinutes
	if prep <= 0 {
		prep = s.Config.DefaultPreparationMinutes
	}
	eta := now.Add(time.Duration(prep) * time.Minute)
	order.Status = models.StatusConfirmed
	order.EstimatedDeliveryTime = &eta
	order.CurrentAmount = t.Amount
	order.CurrentParticipants = t.Participants
	order.UpdatedAt = now
	err = s.DB.UpdateOrder(ctx, order, "status", "estimated_delivery_time", "current_amount", "current_participants", "updated_at")
	if err != nil {
		return err
	}
	s.Logger.LogOrder("CONFIRMED", orderID, fmt.Sprintf("amount=%.2f participants=%d eta=%s", t.Amount, t.Participants, eta.Format(time.RFC3339)))

	participants, err := s.DB.ListParticipants(ctx, orderID)
	if err != nil {
		s.Logger.Error("ORDER", fmt.Sprintf("Confirmed %s but could not list participants to notify: %v", orderID, err))
	}
	for _, p := range participants {
		s.notify(ctx, p.UserID, orderID, models.NotifyOrderConfirmed,
			"✅ Order Confirmed!",
			"Your group order has been confirmed and is being prepared. You'll receive updates as it progresses.")
	}
	s.publishEvent(ctx, EventConfirmed, order, userID)
	return nil
}
