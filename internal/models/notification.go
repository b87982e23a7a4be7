package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	NotifyOrderConfirmed     = "order_confirmed"
	NotifyPreparationStarted = "preparation_started"
	NotifyOutForDelivery     = "out_for_delivery"
	NotifyRiderNearby        = "rider_nearby"
	NotifyNextStop           = "next_stop"
	NotifyDelivered          = "delivered"
	NotifyOrderCancelled     = "order_cancelled"
	NotifyParticipantLeft    = "participant_left"
)

// Notification rows are append-only apart from IsRead.
type Notification struct {
	bun.BaseModel `bun:"table:notifications"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID    string    `bun:"user_id,notnull" json:"user_id"`
	OrderID   string    `bun:"order_id,notnull" json:"shared_order_id"`
	Type      string    `bun:"type,notnull" json:"type"`
	Title     string    `bun:"title,notnull" json:"title"`
	Message   string    `bun:"message,notnull" json:"message"`
	IsRead    bool      `bun:"is_read,notnull" json:"is_read"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}
