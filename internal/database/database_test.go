package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-grouporder/internal/config"
	"ms-grouporder/internal/logger"
	"ms-grouporder/internal/models"
)

func TestOpenInMemory_CreatesSchema(t *testing.T) {
	ctx := context.Background()
	db, err := OpenInMemory(ctx)
	require.NoError(t, err)
	defer db.Close()

	order := &models.SharedOrder{
		ID:              "o1",
		CreatorID:       "u1",
		Title:           "Lunch",
		DeliveryAddress: "Block A",
		MaxParticipants: 4,
		Status:          models.StatusOpen,
		ExpiresAt:       time.Now().Add(time.Hour),
		CreatedAt:       time.Now(),
	}
	_, err = db.NewInsert().Model(order).Exec(ctx)
	require.NoError(t, err)

	count, err := db.NewSelect().Model((*models.SharedOrder)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Running it again is harmless.
	require.NoError(t, CreateSchema(ctx, db))
}

func TestCreateSchema_EnforcesParticipantUniqueness(t *testing.T) {
	ctx := context.Background()
	db, err := OpenInMemory(ctx)
	require.NoError(t, err)
	defer db.Close()

	p := &models.Participant{ID: "p1", OrderID: "o1", UserID: "u1", JoinedAt: time.Now(), DeliveryAddress: "x"}
	_, err = db.NewInsert().Model(p).Exec(ctx)
	require.NoError(t, err)

	dup := &models.Participant{ID: "p2", OrderID: "o1", UserID: "u1", JoinedAt: time.Now(), DeliveryAddress: "x"}
	_, err = db.NewInsert().Model(dup).Exec(ctx)
	assert.Error(t, err)
}

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle"}, logger.Discard())
	assert.Error(t, err)
}
