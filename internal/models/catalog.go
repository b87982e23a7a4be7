package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Category struct {
	bun.BaseModel `bun:"table:categories"`

	ID          string `bun:"id,pk" json:"id"`
	Name        string `bun:"name,notnull,unique" json:"name"`
	Image       string `bun:"image" json:"image"`
	Description string `bun:"description,nullzero" json:"description,omitempty"`
}

type Product struct {
	bun.BaseModel `bun:"table:products"`

	ID            string  `bun:"id,pk" json:"id"`
	Name          string  `bun:"name,notnull" json:"name"`
	Description   string  `bun:"description" json:"description"`
	Price         float64 `bun:"price,notnull" json:"price"`
	OriginalPrice float64 `bun:"original_price,nullzero" json:"original_price,omitempty"`
	Image         string  `bun:"image" json:"image"`
	CategoryID    string  `bun:"category_id,notnull" json:"category_id"`
	InStock       bool    `bun:"in_stock,notnull" json:"in_stock"`
	Unit          string  `bun:"unit,notnull" json:"unit"`
	MinQuantity   int     `bun:"min_quantity,nullzero" json:"min_quantity,omitempty"`
}

// CartItem is one (user, product) line of a personal cart.
type CartItem struct {
	bun.BaseModel `bun:"table:cart_items,alias:cart_item"`

	ID        string    `bun:"id,pk" json:"id"`
	UserID    string    `bun:"user_id,notnull,unique:cart_user_product" json:"user_id"`
	ProductID string    `bun:"product_id,notnull,unique:cart_user_product" json:"product_id"`
	Quantity  int       `bun:"quantity,notnull" json:"quantity"`
	AddedAt   time.Time `bun:"added_at,notnull" json:"added_at"`

	Product *Product `bun:"rel:belongs-to,join:product_id=id" json:"product,omitempty"`
}

type CartSummary struct {
	TotalItems  int     `json:"total_items"`
	TotalAmount float64 `json:"total_amount"`
}

type Profile struct {
	bun.BaseModel `bun:"table:profiles"`

	UserID    string    `bun:"user_id,pk" json:"user_id"`
	Name      string    `bun:"name" json:"name"`
	Email     string    `bun:"email" json:"email"`
	Phone     string    `bun:"phone" json:"phone"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// DisplayName falls back from name to email to "Unknown".
func (p *Profile) DisplayName() string {
	switch {
	case p == nil:
		return "Unknown"
	case p.Name != "":
		return p.Name
	case p.Email != "":
		return p.Email
	default:
		return "Unknown"
	}
}
