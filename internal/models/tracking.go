package models

import (
	"time"

	"github.com/uptrace/bun"
)

type DeliveryTracking struct {
	bun.BaseModel `bun:"table:delivery_tracking,alias:delivery_tracking"`

	ID                   string    `bun:"id,pk" json:"id"`
	OrderID              string    `bun:"order_id,notnull,unique" json:"shared_order_id"`
	RiderID              string    `bun:"rider_id,notnull" json:"rider_id"`
	CurrentLat           float64   `bun:"current_lat,notnull" json:"current_lat"`
	CurrentLng           float64   `bun:"current_lng,notnull" json:"current_lng"`
	LocationAt           time.Time `bun:"location_at,notnull" json:"location_at"`
	TotalDistanceKm      float64   `bun:"total_distance_km" json:"total_distance_km"`
	EstimatedDurationMin int       `bun:"estimated_duration_min" json:"estimated_duration_min"`
	LastUpdated          time.Time `bun:"last_updated,notnull" json:"last_updated"`

	Route []RouteStop `bun:"rel:has-many,join:order_id=order_id" json:"route"`
}

// NextStop returns the index of the first stop not yet completed, or -1.
func (t *DeliveryTracking) NextStop() int {
	for i := range t.Route {
		if !t.Route[i].IsCompleted {
			return i
		}
	}
	return -1
}

// RouteStop order (Seq) is fixed when the route is built; only the
// completion fields change afterwards.
type RouteStop struct {
	bun.BaseModel `bun:"table:route_stops"`

	ID               string     `bun:"id,pk" json:"id"`
	OrderID          string     `bun:"order_id,notnull" json:"shared_order_id"`
	Seq              int        `bun:"seq,notnull" json:"seq"`
	ParticipantID    string     `bun:"participant_id,notnull" json:"participant_id"`
	Address          string     `bun:"address,notnull" json:"address"`
	Lat              float64    `bun:"lat,notnull" json:"lat"`
	Lng              float64    `bun:"lng,notnull" json:"lng"`
	EstimatedArrival time.Time  `bun:"estimated_arrival,notnull" json:"estimated_arrival"`
	IsCompleted      bool       `bun:"is_completed,notnull" json:"is_completed"`
	CompletedAt      *time.Time `bun:"completed_at" json:"completed_at,omitempty"`
}

// LocationPing is the hand-off from location ingestion to the proximity check.
type LocationPing struct {
	OrderID string    `json:"order_id"`
	RiderID string    `json:"rider_id"`
	Lat     float64   `json:"lat"`
	Lng     float64   `json:"lng"`
	At      time.Time `json:"at"`
}

type TrackingView struct {
	*DeliveryTracking
	Order                *SharedOrder `json:"shared_order"`
	UserDeliveryOrder    int          `json:"user_delivery_order,omitempty"`
	UserEstimatedArrival *time.Time   `json:"user_estimated_arrival,omitempty"`
	IsUserDelivered      bool         `json:"is_user_delivered"`
}
