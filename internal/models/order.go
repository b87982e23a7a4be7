package models

import (
	"time"

	"github.com/uptrace/bun"
)

// SharedOrder statuses. StatusClosed and StatusPreparing are reserved: no
// operation transitions into them.
const (
	StatusOpen           = "open"
	StatusClosed         = "closed"
	StatusConfirmed      = "confirmed"
	StatusPreparing      = "preparing"
	StatusOutForDelivery = "out_for_delivery"
	StatusDelivered      = "delivered"
)

type SharedOrder struct {
	bun.BaseModel `bun:"table:shared_orders"`

	ID                    string     `bun:"id,pk" json:"id"`
	CreatorID             string     `bun:"creator_id,notnull" json:"creator_id"`
	Title                 string     `bun:"title,notnull" json:"title"`
	Description           string     `bun:"description" json:"description"`
	DeliveryAddress       string     `bun:"delivery_address,notnull" json:"delivery_address"`
	DeliveryTime          string     `bun:"delivery_time" json:"delivery_time"`
	MaxParticipants       int        `bun:"max_participants,notnull" json:"max_participants"`
	CurrentParticipants   int        `bun:"current_participants,notnull" json:"current_participants"`
	MinOrderAmount        float64    `bun:"min_order_amount,notnull" json:"min_order_amount"`
	CurrentAmount         float64    `bun:"current_amount,notnull" json:"current_amount"`
	Status                string     `bun:"status,notnull" json:"status"`
	ExpiresAt             time.Time  `bun:"expires_at,notnull" json:"expires_at"`
	OrderDeadline         *time.Time `bun:"order_deadline" json:"order_deadline,omitempty"`
	PreparationMinutes    int        `bun:"preparation_minutes,notnull" json:"preparation_minutes"`
	DeliveryStartTime     *time.Time `bun:"delivery_start_time" json:"delivery_start_time,omitempty"`
	EstimatedDeliveryTime *time.Time `bun:"estimated_delivery_time" json:"estimated_delivery_time,omitempty"`
	RiderID               string     `bun:"rider_id,nullzero" json:"rider_id,omitempty"`
	RiderName             string     `bun:"rider_name,nullzero" json:"rider_name,omitempty"`
	RiderPhone            string     `bun:"rider_phone,nullzero" json:"rider_phone,omitempty"`
	CreatedAt             time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt             time.Time  `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// DeadlinePassed reports whether ordering is closed at now. The deadline
// itself is still inside the window.
func (o *SharedOrder) DeadlinePassed(now time.Time) bool {
	return o.OrderDeadline != nil && now.After(*o.OrderDeadline)
}

type Participant struct {
	bun.BaseModel `bun:"table:shared_order_participants"`

	ID               string     `bun:"id,pk" json:"id"`
	OrderID          string     `bun:"order_id,notnull,unique:participant_order_user" json:"shared_order_id"`
	UserID           string     `bun:"user_id,notnull,unique:participant_order_user" json:"user_id"`
	TotalAmount      float64    `bun:"total_amount,notnull" json:"total_amount"`
	JoinSeq          int        `bun:"join_seq,notnull" json:"join_seq"`
	JoinedAt         time.Time  `bun:"joined_at,notnull" json:"joined_at"`
	DeliveryAddress  string     `bun:"delivery_address,notnull" json:"delivery_address"`
	DeliveryOrder    int        `bun:"delivery_order,nullzero" json:"delivery_order,omitempty"`
	EstimatedArrival *time.Time `bun:"estimated_arrival" json:"estimated_arrival,omitempty"`
	IsDelivered      bool       `bun:"is_delivered,notnull" json:"is_delivered"`
	DeliveredAt      *time.Time `bun:"delivered_at" json:"delivered_at,omitempty"`
}

// OrderItem is one product line contributed by one participant. Price is
// the unit price times quantity frozen when the line was contributed.
type OrderItem struct {
	bun.BaseModel `bun:"table:shared_order_items,alias:order_item"`

	ID        string    `bun:"id,pk" json:"id"`
	OrderID   string    `bun:"order_id,notnull,unique:item_order_user_product" json:"shared_order_id"`
	UserID    string    `bun:"user_id,notnull,unique:item_order_user_product" json:"user_id"`
	ProductID string    `bun:"product_id,notnull,unique:item_order_user_product" json:"product_id"`
	Quantity  int       `bun:"quantity,notnull" json:"quantity"`
	Price     float64   `bun:"price,notnull" json:"price"`
	AddedAt   time.Time `bun:"added_at,notnull" json:"added_at"`

	Product *Product `bun:"rel:belongs-to,join:product_id=id" json:"product,omitempty"`
}

type JoinResult struct {
	AddedAmount float64 `json:"added_amount"`
	ItemsAdded  int     `json:"items_added"`
}

type LeaveResult struct {
	RestoredAmount float64 `json:"restored_amount"`
	RestoredItems  int     `json:"restored_items"`
}

// OrderEvent is the lifecycle record published to the order events topic.
type OrderEvent struct {
	Type         string    `json:"type"`
	OrderID      string    `json:"order_id"`
	UserID       string    `json:"user_id,omitempty"`
	Status       string    `json:"status"`
	Amount       float64   `json:"amount"`
	Participants int       `json:"participants"`
	OccurredAt   time.Time `json:"occurred_at"`
}
