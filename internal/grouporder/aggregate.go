package grouporder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ms-grouporder/internal/apperr"
	"ms-grouporder/internal/cart"
	"ms-grouporder/internal/models"
	"ms-grouporder/internal/utils"
)

const (
	EventCreated   = "order.created"
	EventJoined    = "order.joined"
	EventItemAdded = "order.item_added"
	EventLeft      = "order.left"
	EventDeleted   = "order.deleted"
	EventConfirmed = "order.confirmed"
)

type CreateRequest struct {
	Title                string   `json:"title"`
	Description          string   `json:"description"`
	DeliveryAddress      string   `json:"delivery_address"`
	DeliveryTime         string   `json:"delivery_time"`
	MaxParticipants      int      `json:"max_participants"`
	MinOrderAmount       float64  `json:"min_order_amount"`
	ExpiresInHours       float64  `json:"expires_in_hours"`
	OrderDeadlineInHours *float64 `json:"order_deadline_in_hours,omitempty"`
	PreparationMinutes   *int     `json:"preparation_time_minutes,omitempty"`
}

func (r CreateRequest) validate() error {
	switch {
	case strings.TrimSpace(r.Title) == "":
		return apperr.New(apperr.KindInvalidInput, "title is required")
	case strings.TrimSpace(r.DeliveryAddress) == "":
		return apperr.New(apperr.KindInvalidInput, "delivery address is required")
	case r.MaxParticipants < 2:
		return apperr.New(apperr.KindInvalidInput, "max participants must be at least 2")
	case r.MinOrderAmount < 0:
		return apperr.New(apperr.KindInvalidInput, "minimum order amount cannot be negative")
	case r.ExpiresInHours <= 0:
		return apperr.New(apperr.KindInvalidInput, "expiry must be in the future")
	case r.OrderDeadlineInHours != nil && *r.OrderDeadlineInHours <= 0:
		return apperr.New(apperr.KindInvalidInput, "order deadline must be in the future")
	case r.PreparationMinutes != nil && *r.PreparationMinutes <= 0:
		return apperr.New(apperr.KindInvalidInput, "preparation time must be positive")
	}
	return nil
}

// drain turns the priced lines of a cart into order items and returns
// their total. Lines whose product no longer exists are skipped.
func drain(orderID, userID string, items []models.CartItem, at time.Time) ([]models.OrderItem, float64) {
	var (
		out   []models.OrderItem
		total float64
	)
	for _, it := range items {
		if !cart.Priced(it) {
			continue
		}
		price := it.Product.Price * float64(it.Quantity)
		out = append(out, models.OrderItem{
			ID:        uuid.NewString(),
			OrderID:   orderID,
			UserID:    userID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     price,
			AddedAt:   at,
		})
		total += price
	}
	return out, total
}

// ---------------- CREATE ----------------

// Create opens a new shared order funded by the creator's cart and returns
// its ID. The cart is cleared only once the order is stored; if clearing
// fails the ID is still returned together with the error.
func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}

	now := s.now()
	expiresAt := now.Add(utils.HoursToDuration(req.ExpiresInHours))
	deadline := expiresAt.Add(-s.Config.DeadlineLead)
	if req.OrderDeadlineInHours != nil {
		deadline = now.Add(utils.HoursToDuration(*req.OrderDeadlineInHours))
		if deadline.After(expiresAt) {
			return "", apperr.New(apperr.KindInvalidInput, "order deadline cannot be later than expiry")
		}
	}
	prep := s.Config.DefaultPreparationMinutes
	if req.PreparationMinutes != nil {
		prep = *req.PreparationMinutes
	}

	unlock, err := s.lockCart(ctx, userID)
	if err != nil {
		return "", err
	}
	defer unlock()

	cartItems, err := s.Cart.ListItems(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("read cart: %w", err)
	}
	orderID := uuid.NewString()
	items, total := drain(orderID, userID, cartItems, now)
	if len(items) == 0 {
		return "", apperr.ErrEmptyCart
	}

	order := &models.SharedOrder{
		ID:                  orderID,
		CreatorID:           userID,
		Title:               strings.TrimSpace(req.Title),
		Description:         req.Description,
		DeliveryAddress:     req.DeliveryAddress,
		DeliveryTime:        req.DeliveryTime,
		MaxParticipants:     req.MaxParticipants,
		CurrentParticipants: 1,
		MinOrderAmount:      req.MinOrderAmount,
		CurrentAmount:       total,
		Status:              models.StatusOpen,
		ExpiresAt:           expiresAt,
		OrderDeadline:       &deadline,
		PreparationMinutes:  prep,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	creator := &models.Participant{
		ID:              uuid.NewString(),
		OrderID:         orderID,
		UserID:          userID,
		TotalAmount:     total,
		JoinedAt:        now,
		DeliveryAddress: req.DeliveryAddress,
	}
	if err := s.DB.CreateOrder(ctx, order, creator, items); err != nil {
		return "", err
	}
	s.Logger.LogOrder("CREATED", orderID, fmt.Sprintf("creator=%s items=%d total=%.2f", userID, len(items), total))
	s.publishEvent(ctx, EventCreated, order, userID)

	if err := s.Cart.Clear(ctx, userID); err != nil {
		return orderID, fmt.Errorf("order %s created but clearing cart failed: %w", orderID, err)
	}
	return orderID, nil
}

// ---------------- JOIN ----------------

// Join moves the caller's cart into the order. Preconditions are checked in
// a fixed order so each failure has one meaning.
func (s *Service) Join(ctx context.Context, orderID, userID, address string) (models.JoinResult, error) {
	var res models.JoinResult

	unlockOrder, err := s.lockOrder(ctx, orderID)
	if err != nil {
		return res, err
	}
	defer unlockOrder()
	unlockCart, err := s.lockCart(ctx, userID)
	if err != nil {
		return res, err
	}
	defer unlockCart()

	cartItems, err := s.Cart.ListItems(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("read cart: %w", err)
	}
	if len(cartItems) == 0 {
		return res, apperr.ErrEmptyCart
	}

	order, err := s.DB.GetOrder(ctx, orderID)
	if err != nil {
		return res, err
	}
	if order == nil {
		return res, apperr.New(apperr.KindNotFound, "shared order %s not found", orderID)
	}
	if order.Status != models.StatusOpen {
		return res, apperr.New(apperr.KindInvalidState, "shared order is %s, not open", order.Status)
	}
	now := s.now()
	if order.DeadlinePassed(now) {
		return res, apperr.ErrDeadlinePassed
	}
	count, err := s.DB.CountParticipants(ctx, orderID)
	if err != nil {
		return res, err
	}
	if count >= order.MaxParticipants {
		return res, apperr.ErrFull
	}
	existing, err := s.DB.GetParticipant(ctx, orderID, userID)
	if err != nil {
		return res, err
	}
	if existing != nil {
		return res, apperr.ErrAlreadyJoined
	}

	items, total := drain(orderID, userID, cartItems, now)
	if len(items) == 0 {
		return res, apperr.ErrEmptyCart
	}
	if strings.TrimSpace(address) == "" {
		address = order.DeliveryAddress
	}
	p := &models.Participant{
		ID:              uuid.NewString(),
		OrderID:         orderID,
		UserID:          userID,
		TotalAmount:     total,
		JoinedAt:        now,
		DeliveryAddress: address,
	}
	if err := s.DB.AddParticipation(ctx, p, items); err != nil {
		return res, err
	}
	res = models.JoinResult{AddedAmount: total, ItemsAdded: len(items)}

	order.CurrentParticipants = count + 1
	order.CurrentAmount += total
	s.Logger.LogOrder("JOINED", orderID, fmt.Sprintf("user=%s items=%d amount=%.2f", userID, len(items), total))
	s.publishEvent(ctx, EventJoined, order, userID)

	if err := s.Cart.Clear(ctx, userID); err != nil {
		return res, fmt.Errorf("joined order %s but clearing cart failed: %w", orderID, err)
	}
	return res, nil
}

// ---------------- ITEMS ----------------

// AddItem contributes quantity more of a product to the caller's share.
// Repeated additions of one product merge into a single line.
func (s *Service) AddItem(ctx context.Context, orderID, userID, productID string, quantity int) error {
	if quantity <= 0 {
		return apperr.New(apperr.KindInvalidInput, "quantity must be positive")
	}

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
	if order.Status != models.StatusOpen {
		return apperr.New(apperr.KindInvalidState, "shared order is %s, not open", order.Status)
	}
	now := s.now()
	if order.DeadlinePassed(now) {
		return apperr.ErrDeadlinePassed
	}
	p, err := s.DB.GetParticipant(ctx, orderID, userID)
	if err != nil {
		return err
	}
	if p == nil {
		return apperr.ErrNotParticipant
	}
	product, err := s.Catalog.GetProduct(ctx, productID)
	if err != nil {
		return fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return apperr.New(apperr.KindNotFound, "product %s not found", productID)
	}

	item, err := s.DB.GetItem(ctx, orderID, userID, productID)
	if err != nil {
		return err
	}
	isNew := item == nil
	var delta float64
	if isNew {
		item = &models.OrderItem{
			ID:        uuid.NewString(),
			OrderID:   orderID,
			UserID:    userID,
			ProductID: productID,
			Quantity:  quantity,
			Price:     product.Price * float64(quantity),
			AddedAt:   now,
		}
		delta = item.Price
	} else {
		old := item.Price
		item.Quantity += quantity
		item.Price = product.Price * float64(item.Quantity)
		delta = item.Price - old
	}

	amount, err := s.DB.SaveItem(ctx, item, isNew, p.ID, delta, now)
	if err != nil {
		return err
	}
	order.CurrentAmount = amount
	s.Logger.LogOrder("ITEM_ADDED", orderID, fmt.Sprintf("user=%s product=%s qty=%d total=%.2f", userID, productID, item.Quantity, amount))
	s.publishEvent(ctx, EventItemAdded, order, userID)
	return nil
}

// restore gives order items back to their owner's cart.
func (s *Service) restore(ctx context.Context, userID string, items []models.OrderItem) error {
	unlock, err := s.lockCart(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()
	for _, it := range items {
		if err := s.Cart.RestoreOrAdd(ctx, userID, it.ProductID, it.Quantity); err != nil {
			return fmt.Errorf("restore %s to cart of %s: %w", it.ProductID, userID, err)
		}
	}
	return nil
}

// ---------------- LEAVE ----------------

// Leave withdraws a non-creator participant from an open order and returns
// their items to their cart.
func (s *Service) Leave(ctx context.Context, orderID, userID string) (models.LeaveResult, error) {
	var res models.LeaveResult

	unlock, err := s.lockOrder(ctx, orderID)
	if err != nil {
		return res, err
	}
	defer unlock()

	order, err := s.DB.GetOrder(ctx, orderID)
	if err != nil {
		return res, err
	}
	if order == nil {
		return res, apperr.New(apperr.KindNotFound, "shared order %s not found", orderID)
	}
	if order.Status != models.StatusOpen {
		return res, apperr.New(apperr.KindInvalidState, "cannot leave a %s order", order.Status)
	}
	p, err := s.DB.GetParticipant(ctx, orderID, userID)
	if err != nil {
		return res, err
	}
	if p == nil {
		return res, apperr.ErrNotParticipant
	}
	if order.CreatorID == userID {
		return res, apperr.ErrCreatorCannotLeave
	}

	items, err := s.DB.ListItems(ctx, orderID, userID)
	if err != nil {
		return res, err
	}
	if err := s.restore(ctx, userID, items); err != nil {
		return res, err
	}
	if err := s.DB.RemoveParticipation(ctx, p, s.now()); err != nil {
		return res, err
	}
	res = models.LeaveResult{RestoredAmount: p.TotalAmount, RestoredItems: len(items)}
	s.Logger.LogOrder("LEFT", orderID, fmt.Sprintf("user=%s restored=%d", userID, len(items)))

	name := "A participant"
	if profiles, err := s.Profiles.GetMany(ctx, []string{userID}); err == nil {
		if pr := profiles[userID]; pr != nil && (pr.Name != "" || pr.Email != "") {
			name = pr.DisplayName()
		}
	}
	s.notify(ctx, order.CreatorID, orderID, models.NotifyParticipantLeft,
		"👋 Participant Left Order",
		fmt.Sprintf("%s has left your group order. Their items have been removed from the order.", name))

	order.CurrentParticipants--
	order.CurrentAmount -= p.TotalAmount
	s.publishEvent(ctx, EventLeft, order, userID)
	return res, nil
}

// ---------------- DELETE ----------------

// Delete cancels an open order. Every participant gets their items back in
// their cart and a cancellation notice; that notice is the only
// notification of the order that survives.
func (s *Service) Delete(ctx context.Context, orderID, userID string) error {
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
		return apperr.New(apperr.KindForbidden, "only the creator can delete this order")
	}
	if order.Status != models.StatusOpen {
		return apperr.New(apperr.KindInvalidState, "cannot delete a %s order", order.Status)
	}

	participants, err := s.DB.ListParticipants(ctx, orderID)
	if err != nil {
		return err
	}
	items, err := s.DB.ListItems(ctx, orderID, "")
	if err != nil {
		return err
	}
	byUser := make(map[string][]models.OrderItem)
	for _, it := range items {
		byUser[it.UserID] = append(byUser[it.UserID], it)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Config.ListConcurrency)
	for user, owned := range byUser {
		g.Go(func() error {
			return s.restore(gctx, user, owned)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, p := range participants {
		s.notify(ctx, p.UserID, orderID, models.NotifyOrderCancelled,
			"❌ Group Order Cancelled",
			"The group order has been cancelled by the creator. Your items have been restored to your cart.")
	}
	if err := s.Notifier.PurgeOrder(ctx, orderID, models.NotifyOrderCancelled); err != nil {
		s.Logger.Warn("NOTIFY", fmt.Sprintf("Failed to purge notifications of order %s: %v", orderID, err))
	}

	if err := s.DB.DeleteOrderCascade(ctx, orderID); err != nil {
		return err
	}
	s.Logger.LogOrder("DELETED", orderID, fmt.Sprintf("participants=%d restored_items=%d", len(participants), len(items)))

	order.CurrentParticipants = 0
	order.CurrentAmount = 0
	s.publishEvent(ctx, EventDeleted, order, userID)
	return nil
}
