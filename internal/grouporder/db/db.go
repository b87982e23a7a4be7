package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-grouporder/internal/models"
)

// DB is the storage of shared orders and everything scoped to one order:
// participants, items, tracking and route stops. Lookups return nil, nil
// when the row does not exist.
type DB struct {
	Bun bun.IDB
}

// Totals are the authoritative aggregates summed from participant rows.
type Totals struct {
	OrderID      string  `bun:"order_id"`
	Participants int     `bun:"participants"`
	Amount       float64 `bun:"amount"`
}

// ---------------- ORDERS ----------------

// GetOrder → fetch one shared order by its ID
func (d *DB) GetOrder(ctx context.Context, id string) (*models.SharedOrder, error) {
	var order models.SharedOrder
	err := d.Bun.NewSelect().Model(&order).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return &order, nil
}

// GetOrders → fetch several orders keyed by ID
func (d *DB) GetOrders(ctx context.Context, ids []string) (map[string]*models.SharedOrder, error) {
	out := make(map[string]*models.SharedOrder, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var orders []models.SharedOrder
	if err := d.Bun.NewSelect().Model(&orders).Where("id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, fmt.Errorf("get orders: %w", err)
	}
	for i := range orders {
		out[orders[i].ID] = &orders[i]
	}
	return out, nil
}

// ListByStatus → orders in the given status, newest first
func (d *DB) ListByStatus(ctx context.Context, status string) ([]models.SharedOrder, error) {
	var orders []models.SharedOrder
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("status = ?", status).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list %s orders: %w", status, err)
	}
	return orders, nil
}

// UpdateOrder → write the named columns of order
func (d *DB) UpdateOrder(ctx context.Context, order *models.SharedOrder, columns ...string) error {
	_, err := d.Bun.NewUpdate().
		Model(order).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update order %s: %w", order.ID, err)
	}
	return nil
}

// CreateOrder → insert the order, its creator participation and the
// creator's items in one transaction
func (d *DB) CreateOrder(ctx context.Context, order *models.SharedOrder, creator *models.Participant, items []models.OrderItem) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		creator.JoinSeq = 1
		if _, err := tx.NewInsert().Model(creator).Exec(ctx); err != nil {
			return fmt.Errorf("insert creator participation: %w", err)
		}
		if len(items) > 0 {
			if _, err := tx.NewInsert().Model(&items).Exec(ctx); err != nil {
				return fmt.Errorf("insert order items: %w", err)
			}
		}
		return nil
	})
}

// DeleteOrderCascade → remove the order with its items, participants,
// route and tracking
func (d *DB) DeleteOrderCascade(ctx context.Context, orderID string) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, model := range []interface{}{
			(*models.OrderItem)(nil),
			(*models.Participant)(nil),
			(*models.RouteStop)(nil),
			(*models.DeliveryTracking)(nil),
		} {
			if _, err := tx.NewDelete().Model(model).Where("order_id = ?", orderID).Exec(ctx); err != nil {
				return fmt.Errorf("delete %T rows: %w", model, err)
			}
		}
		if _, err := tx.NewDelete().Model((*models.SharedOrder)(nil)).Where("id = ?", orderID).Exec(ctx); err != nil {
			return fmt.Errorf("delete order: %w", err)
		}
		return nil
	})
}

// ---------------- PARTICIPANTS ----------------

// GetParticipant → a user's participation in an order
func (d *DB) GetParticipant(ctx context.Context, orderID, userID string) (*models.Participant, error) {
	var p models.Participant
	err := d.Bun.NewSelect().
		Model(&p).
		Where("order_id = ?", orderID).
		Where("user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return &p, nil
}

// GetParticipantByID → a participation by its own ID, scoped to the order
func (d *DB) GetParticipantByID(ctx context.Context, orderID, participantID string) (*models.Participant, error) {
	var p models.Participant
	err := d.Bun.NewSelect().
		Model(&p).
		Where("id = ?", participantID).
		Where("order_id = ?", orderID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get participant %s: %w", participantID, err)
	}
	return &p, nil
}

// ListParticipants → join order; the creator is always first
func (d *DB) ListParticipants(ctx context.Context, orderID string) ([]models.Participant, error) {
	var ps []models.Participant
	err := d.Bun.NewSelect().
		Model(&ps).
		Where("order_id = ?", orderID).
		Order("join_seq ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list participants of %s: %w", orderID, err)
	}
	return ps, nil
}

// ListParticipationsByUser → every participation of a user, latest first
func (d *DB) ListParticipationsByUser(ctx context.Context, userID string) ([]models.Participant, error) {
	var ps []models.Participant
	err := d.Bun.NewSelect().
		Model(&ps).
		Where("user_id = ?", userID).
		Order("joined_at DESC", "id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list participations of %s: %w", userID, err)
	}
	return ps, nil
}

func (d *DB) CountParticipants(ctx context.Context, orderID string) (int, error) {
	n, err := d.Bun.NewSelect().
		Model((*models.Participant)(nil)).
		Where("order_id = ?", orderID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count participants of %s: %w", orderID, err)
	}
	return n, nil
}

// Totals → participant count and amount per order, summed from participant rows
func (d *DB) Totals(ctx context.Context, orderIDs ...string) (map[string]Totals, error) {
	out := make(map[string]Totals, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	var rows []Totals
	err := d.Bun.NewSelect().
		Model((*models.Participant)(nil)).
		ColumnExpr("order_id").
		ColumnExpr("COUNT(*) AS participants").
		ColumnExpr("COALESCE(SUM(total_amount), 0) AS amount").
		Where("order_id IN (?)", bun.In(orderIDs)).
		Group("order_id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("sum participants: %w", err)
	}
	for _, r := range rows {
		out[r.OrderID] = r
	}
	for _, id := range orderIDs {
		if _, ok := out[id]; !ok {
			out[id] = Totals{OrderID: id}
		}
	}
	return out, nil
}

// AddParticipation → insert a participant with its items and bump the
// cached counters by addition. The participant gets the next join sequence
// of the order; callers hold the order lock.
func (d *DB) AddParticipation(ctx context.Context, p *models.Participant, items []models.OrderItem) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var last int
		err := tx.NewSelect().
			Model((*models.Participant)(nil)).
			ColumnExpr("COALESCE(MAX(join_seq), 0)").
			Where("order_id = ?", p.OrderID).
			Scan(ctx, &last)
		if err != nil {
			return fmt.Errorf("next join sequence: %w", err)
		}
		p.JoinSeq = last + 1
		if _, err := tx.NewInsert().Model(p).Exec(ctx); err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
		if len(items) > 0 {
			if _, err := tx.NewInsert().Model(&items).Exec(ctx); err != nil {
				return fmt.Errorf("insert order items: %w", err)
			}
		}
		_, err = tx.NewUpdate().
			Model((*models.SharedOrder)(nil)).
			Set("current_participants = current_participants + 1").
			Set("current_amount = current_amount + ?", p.TotalAmount).
			Set("updated_at = ?", p.JoinedAt).
			Where("id = ?", p.OrderID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update order counters: %w", err)
		}
		return nil
	})
}

// RemoveParticipation → delete a participant's items and row and take its
// contribution off the cached counters
func (d *DB) RemoveParticipation(ctx context.Context, p *models.Participant, at time.Time) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().
			Model((*models.OrderItem)(nil)).
			Where("order_id = ?", p.OrderID).
			Where("user_id = ?", p.UserID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete participant items: %w", err)
		}
		if _, err := tx.NewDelete().Model((*models.Participant)(nil)).Where("id = ?", p.ID).Exec(ctx); err != nil {
			return fmt.Errorf("delete participant: %w", err)
		}
		_, err = tx.NewUpdate().
			Model((*models.SharedOrder)(nil)).
			Set("current_participants = current_participants - 1").
			Set("current_amount = current_amount - ?", p.TotalAmount).
			Set("updated_at = ?", at).
			Where("id = ?", p.OrderID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update order counters: %w", err)
		}
		return nil
	})
}

// ---------------- ITEMS ----------------

// ListItems → the order's items with their products; userID narrows to one participant
func (d *DB) ListItems(ctx context.Context, orderID, userID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	q := d.Bun.NewSelect().
		Model(&items).
		Relation("Product").
		Where("order_item.order_id = ?", orderID)
	if userID != "" {
		q = q.Where("order_item.user_id = ?", userID)
	}
	if err := q.Order("order_item.added_at ASC", "order_item.id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list items of %s: %w", orderID, err)
	}
	return items, nil
}

// GetItem → the (order, user, product) line if present
func (d *DB) GetItem(ctx context.Context, orderID, userID, productID string) (*models.OrderItem, error) {
	var item models.OrderItem
	err := d.Bun.NewSelect().
		Model(&item).
		Where("order_id = ?", orderID).
		Where("user_id = ?", userID).
		Where("product_id = ?", productID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &item, nil
}

// SaveItem → insert or update one line, move the participant's total by
// delta, then reset the order's cached amount to the live participant sum
func (d *DB) SaveItem(ctx context.Context, item *models.OrderItem, isNew bool, participantID string, delta float64, at time.Time) (float64, error) {
	var amount float64
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if isNew {
			_, err = tx.NewInsert().Model(item).Exec(ctx)
		} else {
			_, err = tx.NewUpdate().Model(item).Column("quantity", "price").WherePK().Exec(ctx)
		}
		if err != nil {
			return fmt.Errorf("save item: %w", err)
		}

		_, err = tx.NewUpdate().
			Model((*models.Participant)(nil)).
			Set("total_amount = total_amount + ?", delta).
			Where("id = ?", participantID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update participant total: %w", err)
		}

		err = tx.NewSelect().
			Model((*models.Participant)(nil)).
			ColumnExpr("COALESCE(SUM(total_amount), 0)").
			Where("order_id = ?", item.OrderID).
			Scan(ctx, &amount)
		if err != nil {
			return fmt.Errorf("sum participants: %w", err)
		}

		_, err = tx.NewUpdate().
			Model((*models.SharedOrder)(nil)).
			Set("current_amount = ?", amount).
			Set("updated_at = ?", at).
			Where("id = ?", item.OrderID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update order amount: %w", err)
		}
		return nil
	})
	return amount, err
}

// ---------------- DELIVERY ----------------

// StartDelivery → move the order out for delivery, stamp each participant's
// sequence and ETA, and create the tracking record with its route
func (d *DB) StartDelivery(ctx context.Context, order *models.SharedOrder, participants []models.Participant, tracking *models.DeliveryTracking) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewUpdate().
			Model(order).
			Column("status", "rider_id", "rider_name", "rider_phone", "delivery_start_time", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		for i := range participants {
			p := &participants[i]
			_, err := tx.NewUpdate().
				Model(p).
				Column("delivery_order", "estimated_arrival").
				WherePK().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("update participant %s: %w", p.ID, err)
			}
		}
		if _, err := tx.NewInsert().Model(tracking).Exec(ctx); err != nil {
			return fmt.Errorf("insert tracking: %w", err)
		}
		if len(tracking.Route) > 0 {
			if _, err := tx.NewInsert().Model(&tracking.Route).Exec(ctx); err != nil {
				return fmt.Errorf("insert route: %w", err)
			}
		}
		return nil
	})
}

// GetTracking → tracking with its route in stop order
func (d *DB) GetTracking(ctx context.Context, orderID string) (*models.DeliveryTracking, error) {
	var t models.DeliveryTracking
	err := d.Bun.NewSelect().
		Model(&t).
		Relation("Route", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("seq ASC")
		}).
		Where("delivery_tracking.order_id = ?", orderID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tracking for %s: %w", orderID, err)
	}
	return &t, nil
}

// UpdateLocation → overwrite the rider position
func (d *DB) UpdateLocation(ctx context.Context, orderID string, lat, lng float64, at time.Time) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.DeliveryTracking)(nil)).
		Set("current_lat = ?", lat).
		Set("current_lng = ?", lng).
		Set("location_at = ?", at).
		Set("last_updated = ?", at).
		Where("order_id = ?", orderID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update rider location for %s: %w", orderID, err)
	}
	return nil
}

// CompleteStop → mark the participant delivered and its stop completed;
// the order becomes delivered once no participant is left undelivered.
// Reports whether that happened.
func (d *DB) CompleteStop(ctx context.Context, orderID, participantID string, at time.Time) (bool, error) {
	allDelivered := false
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewUpdate().
			Model((*models.Participant)(nil)).
			Set("is_delivered = ?", true).
			Set("delivered_at = ?", at).
			Where("id = ?", participantID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("mark participant delivered: %w", err)
		}

		_, err = tx.NewUpdate().
			Model((*models.RouteStop)(nil)).
			Set("is_completed = ?", true).
			Set("completed_at = ?", at).
			Where("order_id = ?", orderID).
			Where("participant_id = ?", participantID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("complete route stop: %w", err)
		}

		_, err = tx.NewUpdate().
			Model((*models.DeliveryTracking)(nil)).
			Set("last_updated = ?", at).
			Where("order_id = ?", orderID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("touch tracking: %w", err)
		}

		pending, err := tx.NewSelect().
			Model((*models.Participant)(nil)).
			Where("order_id = ?", orderID).
			Where("is_delivered = ?", false).
			Count(ctx)
		if err != nil {
			return fmt.Errorf("count undelivered: %w", err)
		}
		if pending > 0 {
			return nil
		}

		_, err = tx.NewUpdate().
			Model((*models.SharedOrder)(nil)).
			Set("status = ?", models.StatusDelivered).
			Set("updated_at = ?", at).
			Where("id = ?", orderID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("mark order delivered: %w", err)
		}
		allDelivered = true
		return nil
	})
	return allDelivered, err
}
