package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"ms-grouporder/internal/apperr"
	"ms-grouporder/internal/models"
)

type Store struct {
	DB  bun.IDB
	Now func() time.Time
}

func NewStore(db bun.IDB) *Store {
	return &Store{DB: db, Now: time.Now}
}

// Get returns nil when the user has not saved a profile yet.
func (s *Store) Get(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	err := s.DB.NewSelect().Model(&p).Where("user_id = ?", userID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", userID, err)
	}
	return &p, nil
}

// GetMany loads the profiles of several users keyed by user ID.
func (s *Store) GetMany(ctx context.Context, userIDs []string) (map[string]*models.Profile, error) {
	out := make(map[string]*models.Profile, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var profiles []models.Profile
	err := s.DB.NewSelect().Model(&profiles).Where("user_id IN (?)", bun.In(userIDs)).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("get profiles: %w", err)
	}
	for i := range profiles {
		out[profiles[i].UserID] = &profiles[i]
	}
	return out, nil
}

type UpdateRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (s *Store) Upsert(ctx context.Context, userID string, req UpdateRequest) (*models.Profile, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Email != "" && !strings.Contains(req.Email, "@") {
		return nil, apperr.New(apperr.KindInvalidInput, "email %q is not valid", req.Email)
	}

	p := &models.Profile{
		UserID:    userID,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		UpdatedAt: s.Now().UTC(),
	}
	_, err := s.DB.NewInsert().
		Model(p).
		On("CONFLICT (user_id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("email = EXCLUDED.email").
		Set("phone = EXCLUDED.phone").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("save profile %s: %w", userID, err)
	}
	return p, nil
}
