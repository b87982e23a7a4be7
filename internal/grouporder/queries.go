package grouporder

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"ms-grouporder/internal/apperr"
	"ms-grouporder/internal/grouporder/db"
	"ms-grouporder/internal/models"
	"ms-grouporder/internal/utils"
)

// project builds the read view of order. Amount and participant count come
// from totals, never from the cached columns.
func project(order models.SharedOrder, t db.Totals, creator *models.Profile, now time.Time) models.OrderView {
	order.CurrentAmount = t.Amount
	order.CurrentParticipants = t.Participants
	v := models.OrderView{
		SharedOrder:      order,
		Creator:          creator.DisplayName(),
		ParticipantCount: t.Participants,
		IsOrderingClosed: order.DeadlinePassed(now),
	}
	if creator != nil {
		v.CreatorEmail = creator.Email
		v.CreatorPhone = creator.Phone
	}
	if order.OrderDeadline != nil {
		ms := utils.MillisUntil(now, *order.OrderDeadline)
		v.TimeUntilDeadline = &ms
	}
	return v
}

// views loads totals and creator profiles for orders side by side.
func (s *Service) views(ctx context.Context, orders []models.SharedOrder) ([]models.OrderView, error) {
	ids := make([]string, 0, len(orders))
	creators := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
		creators = append(creators, o.CreatorID)
	}

	var (
		totals   map[string]db.Totals
		profiles map[string]*models.Profile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		totals, err = s.DB.Totals(gctx, ids...)
		return err
	})
	g.Go(func() error {
		var err error
		profiles, err = s.Profiles.GetMany(gctx, creators)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]models.OrderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, project(o, totals[o.ID], profiles[o.CreatorID], now))
	}
	return out, nil
}

// GetDetails returns the order with every participant, their contact
// details and their items.
func (s *Service) GetDetails(ctx context.Context, orderID string) (*models.OrderDetails, error) {
	order, err := s.DB.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperr.New(apperr.KindNotFound, "shared order %s not found", orderID)
	}

	var (
		participants []models.Participant
		items        []models.OrderItem
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		participants, err = s.DB.ListParticipants(gctx, orderID)
		return err
	})
	g.Go(func() error {
		var err error
		items, err = s.DB.ListItems(gctx, orderID, "")
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	users := []string{order.CreatorID}
	for _, p := range participants {
		users = append(users, p.UserID)
	}
	profiles, err := s.Profiles.GetMany(ctx, users)
	if err != nil {
		return nil, err
	}

	byUser := make(map[string][]models.OrderItem)
	for _, it := range items {
		byUser[it.UserID] = append(byUser[it.UserID], it)
	}

	t := db.Totals{OrderID: orderID, Participants: len(participants)}
	details := make([]models.ParticipantDetails, 0, len(participants))
	for _, p := range participants {
		t.Amount += p.TotalAmount
		pr := profiles[p.UserID]
		d := models.ParticipantDetails{
			Participant: p,
			User:        pr.DisplayName(),
			Items:       byUser[p.UserID],
		}
		if d.Items == nil {
			d.Items = []models.OrderItem{}
		}
		if pr != nil {
			d.UserEmail = pr.Email
			d.UserPhone = pr.Phone
		}
		details = append(details, d)
	}

	return &models.OrderDetails{
		OrderView:    project(*order, t, profiles[order.CreatorID], s.now()),
		Participants: details,
	}, nil
}

// GetActiveList returns open orders that have not expired, newest first.
func (s *Service) GetActiveList(ctx context.Context) ([]models.OrderView, error) {
	open, err := s.DB.ListByStatus(ctx, models.StatusOpen)
	if err != nil {
		return nil, err
	}
	now := s.now()
	active := open[:0]
	for _, o := range open {
		if now.Before(o.ExpiresAt) {
			active = append(active, o)
		}
	}
	return s.views(ctx, active)
}

// GetMine returns every participation of userID with its order.
func (s *Service) GetMine(ctx context.Context, userID string) ([]models.MyOrder, error) {
	parts, err := s.DB.ListParticipationsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		ids = append(ids, p.OrderID)
	}
	byID, err := s.DB.GetOrders(ctx, ids)
	if err != nil {
		return nil, err
	}

	orders := make([]models.SharedOrder, 0, len(byID))
	for _, p := range parts {
		if o, ok := byID[p.OrderID]; ok {
			orders = append(orders, *o)
		}
	}
	views, err := s.views(ctx, orders)
	if err != nil {
		return nil, err
	}
	viewByID := make(map[string]*models.OrderView, len(views))
	for i := range views {
		viewByID[views[i].ID] = &views[i]
	}

	out := make([]models.MyOrder, 0, len(parts))
	for _, p := range parts {
		v, ok := viewByID[p.OrderID]
		if !ok {
			continue
		}
		out = append(out, models.MyOrder{Participant: p, Order: v, Creator: v.Creator})
	}
	return out, nil
}

// GetMyOpen returns the orders userID belongs to that still accept items.
func (s *Service) GetMyOpen(ctx context.Context, userID string) ([]models.OrderView, error) {
	mine, err := s.GetMine(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]models.OrderView, 0, len(mine))
	for _, m := range mine {
		o := m.Order
		if o.Status != models.StatusOpen || !now.Before(o.ExpiresAt) || o.DeadlinePassed(now) {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}
