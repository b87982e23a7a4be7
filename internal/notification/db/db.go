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

type DB struct {
	Bun bun.IDB
}

// Insert → append a notification; ID is assigned by the database
func (d *DB) Insert(ctx context.Context, n *models.Notification) error {
	if _, err := d.Bun.NewInsert().Model(n).Exec(ctx); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListRecent → newest first, at most limit rows
func (d *DB) ListRecent(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	var out []models.Notification
	err := d.Bun.NewSelect().
		Model(&out).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

// Get → nil when no such notification
func (d *DB) Get(ctx context.Context, id int64) (*models.Notification, error) {
	var n models.Notification
	err := d.Bun.NewSelect().Model(&n).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification %d: %w", id, err)
	}
	return &n, nil
}

func (d *DB) MarkRead(ctx context.Context, id int64) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Notification)(nil)).
		Set("is_read = ?", true).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark notification %d read: %w", id, err)
	}
	return nil
}

// LatestOfType → creation time of the newest matching notification, nil if none
func (d *DB) LatestOfType(ctx context.Context, userID, orderID, typ string) (*time.Time, error) {
	var n models.Notification
	err := d.Bun.NewSelect().
		Model(&n).
		Column("created_at").
		Where("user_id = ?", userID).
		Where("order_id = ?", orderID).
		Where("type = ?", typ).
		Order("id DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest %s notification: %w", typ, err)
	}
	return &n.CreatedAt, nil
}

// PurgeOrder → delete an order's notifications except those of keepType
func (d *DB) PurgeOrder(ctx context.Context, orderID, keepType string) (int64, error) {
	q := d.Bun.NewDelete().
		Model((*models.Notification)(nil)).
		Where("order_id = ?", orderID)
	if keepType != "" {
		q = q.Where("type <> ?", keepType)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("purge notifications for %s: %w", orderID, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (d *DB) UnreadCount(ctx context.Context, userID string) (int, error) {
	n, err := d.Bun.NewSelect().
		Model((*models.Notification)(nil)).
		Where("user_id = ?", userID).
		Where("is_read = ?", false).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}
