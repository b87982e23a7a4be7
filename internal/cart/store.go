package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"ms-grouporder/internal/apperr"
	"ms-grouporder/internal/models"
)

// Store is the per-user shopping cart: one row per (user, product).
type Store struct {
	DB  bun.IDB
	Now func() time.Time
}

func NewStore(db bun.IDB) *Store {
	return &Store{DB: db, Now: time.Now}
}

// ListItems → the user's cart lines with their products, oldest first
func (s *Store) ListItems(ctx context.Context, userID string) ([]models.CartItem, error) {
	var items []models.CartItem
	err := s.DB.NewSelect().
		Model(&items).
		Relation("Product").
		Where("cart_item.user_id = ?", userID).
		Order("cart_item.added_at ASC", "cart_item.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cart for %s: %w", userID, err)
	}
	return items, nil
}

// Add increases the quantity of productID, creating the line if needed.
func (s *Store) Add(ctx context.Context, userID, productID string, quantity int) error {
	if quantity <= 0 {
		return apperr.New(apperr.KindInvalidInput, "quantity must be positive")
	}
	return s.RestoreOrAdd(ctx, userID, productID, quantity)
}

// RestoreOrAdd merges quantity into the user's cart. Leave and Delete use
// it to hand contributed items back.
func (s *Store) RestoreOrAdd(ctx context.Context, userID, productID string, quantity int) error {
	return s.DB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := findLine(ctx, tx, userID, productID)
		if err != nil {
			return err
		}
		if existing != nil {
			_, err = tx.NewUpdate().
				Model((*models.CartItem)(nil)).
				Set("quantity = quantity + ?", quantity).
				Where("id = ?", existing.ID).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("merge cart line: %w", err)
			}
			return nil
		}
		line := &models.CartItem{
			ID:        uuid.NewString(),
			UserID:    userID,
			ProductID: productID,
			Quantity:  quantity,
			AddedAt:   s.Now().UTC(),
		}
		if _, err := tx.NewInsert().Model(line).Exec(ctx); err != nil {
			return fmt.Errorf("insert cart line: %w", err)
		}
		return nil
	})
}

// UpdateQuantity sets the line's quantity; zero or less removes it.
func (s *Store) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) error {
	if quantity <= 0 {
		return s.Remove(ctx, userID, productID)
	}
	res, err := s.DB.NewUpdate().
		Model((*models.CartItem)(nil)).
		Set("quantity = ?", quantity).
		Where("user_id = ?", userID).
		Where("product_id = ?", productID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update cart line: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.New(apperr.KindNotFound, "product %s is not in the cart", productID)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, userID, productID string) error {
	_, err := s.DB.NewDelete().
		Model((*models.CartItem)(nil)).
		Where("user_id = ?", userID).
		Where("product_id = ?", productID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("remove cart line: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context, userID string) error {
	_, err := s.DB.NewDelete().
		Model((*models.CartItem)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("clear cart for %s: %w", userID, err)
	}
	return nil
}

// Summary totals the cart at current catalog prices. Lines whose product no
// longer exists are ignored.
func (s *Store) Summary(ctx context.Context, userID string) (models.CartSummary, error) {
	items, err := s.ListItems(ctx, userID)
	if err != nil {
		return models.CartSummary{}, err
	}
	return Summarize(items), nil
}

// Summarize totals cart lines that carry a product.
func Summarize(items []models.CartItem) models.CartSummary {
	var sum models.CartSummary
	for _, it := range items {
		if !Priced(it) {
			continue
		}
		sum.TotalItems += it.Quantity
		sum.TotalAmount += it.Product.Price * float64(it.Quantity)
	}
	return sum
}

// Priced reports whether the line's product was found. A LEFT JOIN with no
// match may still leave an empty Product behind.
func Priced(it models.CartItem) bool {
	return it.Product != nil && it.Product.ID != ""
}

func findLine(ctx context.Context, db bun.IDB, userID, productID string) (*models.CartItem, error) {
	var line models.CartItem
	err := db.NewSelect().
		Model(&line).
		Where("user_id = ?", userID).
		Where("product_id = ?", productID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find cart line: %w", err)
	}
	return &line, nil
}
