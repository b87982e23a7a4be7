package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-grouporder/internal/models"
)

type Store struct {
	DB bun.IDB
}

func NewStore(db bun.IDB) *Store {
	return &Store{DB: db}
}

// GetProduct returns nil when the product does not exist.
func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	err := s.DB.NewSelect().Model(&p).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return &p, nil
}

func (s *Store) List(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := s.DB.NewSelect().Model(&products).Order("name ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (s *Store) ListByCategory(ctx context.Context, categoryID string) ([]models.Product, error) {
	var products []models.Product
	err := s.DB.NewSelect().
		Model(&products).
		Where("category_id = ?", categoryID).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products in %s: %w", categoryID, err)
	}
	return products, nil
}

func (s *Store) Categories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := s.DB.NewSelect().Model(&categories).Order("name ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// Seed inserts the demo catalog. Rows that already exist are left alone.
func (s *Store) Seed(ctx context.Context) (int, error) {
	categories, products := seedData()
	inserted := 0
	err := s.DB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewInsert().Model(&categories).On("CONFLICT DO NOTHING").Exec(ctx)
		if err != nil {
			return fmt.Errorf("seed categories: %w", err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)

		res, err = tx.NewInsert().Model(&products).On("CONFLICT DO NOTHING").Exec(ctx)
		if err != nil {
			return fmt.Errorf("seed products: %w", err)
		}
		n, _ = res.RowsAffected()
		inserted += int(n)
		return nil
	})
	return inserted, err
}
