package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-grouporder/internal/apperr"
	"ms-grouporder/internal/database"
	"ms-grouporder/internal/models"
)

func setupStore(t *testing.T) *Store {
	db, err := database.OpenInMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func TestUpsert_InsertThenUpdate(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, "u1", UpdateRequest{Name: "Asha", Email: "asha@example.com"})
	require.NoError(t, err)

	_, err = s.Upsert(ctx, "u1", UpdateRequest{Name: "Asha K", Phone: "+91 98765"})
	require.NoError(t, err)

	p, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Asha K", p.Name)
	assert.Equal(t, "", p.Email)
	assert.Equal(t, "+91 98765", p.Phone)
}

func TestUpsert_RejectsBadEmail(t *testing.T) {
	s := setupStore(t)
	_, err := s.Upsert(context.Background(), "u1", UpdateRequest{Email: "not-an-email"})
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
}

func TestGet_Missing(t *testing.T) {
	s := setupStore(t)
	p, err := s.Get(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Equal(t, "Unknown", p.DisplayName())
}

func TestGetMany(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	_, err := s.Upsert(ctx, "u1", UpdateRequest{Name: "One"})
	require.NoError(t, err)
	_, err = s.Upsert(ctx, "u2", UpdateRequest{Email: "two@example.com"})
	require.NoError(t, err)

	got, err := s.GetMany(ctx, []string{"u1", "u2", "u3"})
	require.NoError(t, err)
	assert.Equal(t, "One", got["u1"].DisplayName())
	assert.Equal(t, "two@example.com", got["u2"].DisplayName())
	assert.Equal(t, "Unknown", got["u3"].DisplayName())
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Unknown", (&models.Profile{}).DisplayName())
}
