package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-grouporder/internal/catalog"
	"ms-grouporder/internal/database"
	"ms-grouporder/internal/models"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setupDB(t *testing.T) *DB {
	ctx := context.Background()
	bunDB, err := database.OpenInMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { bunDB.Close() })

	_, err = catalog.NewStore(bunDB).Seed(ctx)
	require.NoError(t, err)
	return &DB{Bun: bunDB}
}

func newOrder(id, creator string) *models.SharedOrder {
	return &models.SharedOrder{
		ID:                  id,
		CreatorID:           creator,
		Title:               "Friday groceries",
		DeliveryAddress:     "12 Main St",
		MaxParticipants:     4,
		CurrentParticipants: 1,
		MinOrderAmount:      500,
		CurrentAmount:       120,
		Status:              models.StatusOpen,
		ExpiresAt:           base.Add(24 * time.Hour),
		PreparationMinutes:  30,
		CreatedAt:           base,
	}
}

func seedOrder(t *testing.T, d *DB) *models.SharedOrder {
	t.Helper()
	order := newOrder("o1", "alice")
	creator := &models.Participant{
		ID: "p-alice", OrderID: "o1", UserID: "alice",
		TotalAmount: 120, JoinedAt: base, DeliveryAddress: "12 Main St",
	}
	items := []models.OrderItem{
		{ID: "i1", OrderID: "o1", UserID: "alice", ProductID: "prod-milk", Quantity: 2, Price: 120, AddedAt: base},
	}
	require.NoError(t, d.CreateOrder(context.Background(), order, creator, items))
	return order
}

func join(t *testing.T, d *DB, user string, at time.Time, amount float64) *models.Participant {
	t.Helper()
	p := &models.Participant{
		ID: "p-" + user, OrderID: "o1", UserID: user,
		TotalAmount: amount, JoinedAt: at, DeliveryAddress: user + " street",
	}
	items := []models.OrderItem{
		{ID: "i-" + user, OrderID: "o1", UserID: user, ProductID: "prod-bread", Quantity: 1, Price: amount, AddedAt: at},
	}
	require.NoError(t, d.AddParticipation(context.Background(), p, items))
	return p
}

func TestCreateOrderAndLookups(t *testing.T) {
	d := setupDB(t)
	ctx := context.Background()
	seedOrder(t, d)

	got, err := d.GetOrder(ctx, "o1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.CreatorID)
	assert.True(t, got.ExpiresAt.Equal(base.Add(24*time.Hour)))

	missing, err := d.GetOrder(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	p, err := d.GetParticipant(ctx, "o1", "alice")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 120.0, p.TotalAmount)

	none, err := d.GetParticipant(ctx, "o1", "bob")
	require.NoError(t, err)
	assert.Nil(t, none)

	items, err := d.ListItems(ctx, "o1", "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Product)
	assert.Equal(t, "Milk", items[0].Product.Name)
}

func TestAddParticipationUpdatesCounters(t *testing.T) {
	d := setupDB(t)
	ctx := context.Background()
	seedOrder(t, d)
	join(t, d, "bob", base.Add(time.Minute), 90)

	order, err := d.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, 2, order.CurrentParticipants)
	assert.InDelta(t, 210, order.CurrentAmount, 1e-9)

	totals, err := d.Totals(ctx, "o1", "ghost")
	require.NoError(t, err)
	assert.Equal(t, 2, totals["o1"].Participants)
	assert.InDelta(t, 210, totals["o1"].Amount, 1e-9)
	assert.Equal(t, 0, totals["ghost"].Participants)

	n, err := d.CountParticipants(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAddParticipationRejectsDuplicate(t *testing.T) {
	d := setupDB(t)
	ctx := context.Background()
	seedOrder(t, d)

	dup := &models.Participant{ID: "p-dup", OrderID: "o1", UserID: "alice", JoinedAt: base, DeliveryAddress: "x"}
	assert.Error(t, d.AddParticipation(ctx, dup, nil))

	// The failed transaction must not have touched the counters.
	order, err := d.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, 1, order.CurrentParticipants)
}

func TestListParticipantsOrdering(t *testing.T) {
	d := setupDB(t)
	ctx := context.Background()
	seedOrder(t, d)
	// Same instant as the creator: only the join sequence tells them apart.
	join(t, d, "carol", base, 10)
	join(t, d, "bob", base, 10)

	for i := 0; i < 20; i++ {
		ps, err := d.ListParticipants(ctx, "o1")
		require.NoError(t, err)
		require.Len(t, ps, 3)
		assert.Equal(t, []string{"alice", "carol", "bob"}, []string{ps[0].UserID, ps[1].UserID, ps[2].UserID})
		assert.Equal(t, []int{1, 2, 3}, []int{ps[0].JoinSeq, ps[1].JoinSeq, ps[2].JoinSeq})
	}

	mine, err := d.ListParticipationsByUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "o1", mine[0].OrderID)
}

func TestJoinSequenceKeepsGrowingAfterLeave(t *testing.T) {
	d := setupDB(t)
	ctx := context.Background()
	seedOrder(t, d)
	bob := join(t, d, "bob", base, 10)
	carol := join(t, d, "carol", base, 10)
	require.NoError(t, d.RemoveParticipation(ctx, bob, base))
	dave := join(t, d, "dave", base, 10)

	assert.Equal(t, 3, carol.JoinSeq)
	assert.Equal(t, 4, dave.JoinSeq)
	ps, err := d.ListParticipants(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, ps, 3)
	assert.Equal(t, []string{"alice", "carol", "dave"}, []string{ps[0].UserID, ps[1].UserID, ps[2].UserID})
}

func TestSaveItemRecomputesAmount(t *testing.T) {
	d := setupDB(t)
	ctx := context.Background()
	seedOrder(t, d)
	join(t, d, "bob", base.Add(time.Minute), 45)

	// Merge into alice's milk line: 2 -> 3 units at 60.
	item, err := d.GetItem(ctx, "o1", "alice", "prod-milk")
	require.NoError(t, err)
	require.NotNil(t, item)
	item.Quantity = 3
	item.Price = 180
	amount, err := d.SaveItem(ctx, item, false, "p-alice", 60, base.Add(time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 180+45, amount, 1e-9)

	// A new line for bob.
	chips := &models.OrderItem{ID: "i-chips", OrderID: "o1", UserID: "bob", ProductID: "prod-chips", Quantity: 2, Price: 40, AddedAt: base.Add(time.Hour)}
	amount, err = d.SaveItem(ctx, chips, true, "p-bob", 40, base.Add(time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 180+45+40, amount, 1e-9)

	bob, err := d.GetParticipant(ctx, "o1", "bob")
	require.NoError(t, err)
	assert.InDelta(t, 85, bob.TotalAmount, 1e-9)

	order, err := d.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.InDelta(t, 265, order.CurrentAmount, 1e-9)

	bobItems, err := d.ListItems(ctx, "o1", "bob")
	require.NoError(t, err)
	assert.Len(t, bobItems, 2)
}

func TestRemoveParticipation(t *testing.T) {
	d := setupDB(t)
	ctx := context.Background()
	seedOrder(t, d)
	bob := join(t, d, "bob", base.Add(time.Minute), 90)

	require.NoError(t, d.RemoveParticipation(ctx, bob, base.Add(time.Hour)))

	p, err := d.GetParticipant(ctx, "o1", "bob")
	require.NoError(t, err)
	assert.Nil(t, p)

	items, err := d.ListItems(ctx, "o1", "bob")
	require.NoError(t, err)
	assert.Empty(t, items)

	order, err := d.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, 1, order.CurrentParticipants)
	assert.InDelta(t, 120, order.CurrentAmount, 1e-9)
}

func startDelivery(t *testing.T, d *DB) *models.SharedOrder {
	t.Helper()
	ctx := context.Background()
	order := seedOrder(t, d)
	join(t, d, "bob", base.Add(time.Minute), 400)

	ps, err := d.ListParticipants(ctx, "o1")
	require.NoError(t, err)

	start := base.Add(2 * time.Hour)
	order.Status = models.StatusOutForDelivery
	order.RiderID = "rider-1"
	order.RiderName = "Ravi"
	order.DeliveryStartTime = &start

	tracking := &models.DeliveryTracking{
		ID: "t1", OrderID: "o1", RiderID: "rider-1",
		CurrentLat: 28.6139, CurrentLng: 77.2090,
		LocationAt: start, LastUpdated: start,
	}
	for i := range ps {
		eta := start.Add(time.Duration(i+1) * 15 * time.Minute)
		ps[i].DeliveryOrder = i + 1
		ps[i].EstimatedArrival = &eta
		tracking.Route = append(tracking.Route, models.RouteStop{
			ID: "s" + ps[i].ID, OrderID: "o1", Seq: i + 1, ParticipantID: ps[i].ID,
			Address: ps[i].DeliveryAddress, Lat: 28.6, Lng: 77.2, EstimatedArrival: eta,
		})
	}
	require.NoError(t, d.StartDelivery(ctx, order, ps, tracking))
	return order
}

func TestStartDeliveryAndTracking(t *testing.T) {
	d := setupDB(t)
	ctx := context.Background()
	startDelivery(t, d)

	order, err := d.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOutForDelivery, order.Status)
	assert.Equal(t, "Ravi", order.RiderName)

	tr, err := d.GetTracking(ctx, "o1")
	require.NoError(t, err)
	require.NotNil(t, tr)
	require.Len(t, tr.Route, 2)
	assert.Equal(t, 1, tr.Route[0].Seq)
	assert.Equal(t, "p-alice", tr.Route[0].ParticipantID)
	assert.Equal(t, 0, tr.NextStop())

	bob, err := d.GetParticipant(ctx, "o1", "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, bob.DeliveryOrder)
	require.NotNil(t, bob.EstimatedArrival)
	assert.True(t, bob.EstimatedArrival.Equal(base.Add(2*time.Hour+30*time.Minute)))

	none, err := d.GetTracking(ctx, "other")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestUpdateLocation(t *testing.T) {
	d := setupDB(t)
	ctx := context.Background()
	startDelivery(t, d)

	at := base.Add(3 * time.Hour)
	require.NoError(t, d.UpdateLocation(ctx, "o1", 28.7, 77.3, at))

	tr, err := d.GetTracking(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, 28.7, tr.CurrentLat)
	assert.Equal(t, 77.3, tr.CurrentLng)
	assert.True(t, tr.LastUpdated.Equal(at))
}

func TestCompleteStopMarksOrderDelivered(t *testing.T) {
	d := setupDB(t)
	ctx := context.Background()
	startDelivery(t, d)

	done, err := d.CompleteStop(ctx, "o1", "p-alice", base.Add(3*time.Hour))
	require.NoError(t, err)
	assert.False(t, done)

	tr, err := d.GetTracking(ctx, "o1")
	require.NoError(t, err)
	assert.True(t, tr.Route[0].IsCompleted)
	assert.Equal(t, 1, tr.NextStop())

	done, err = d.CompleteStop(ctx, "o1", "p-bob", base.Add(4*time.Hour))
	require.NoError(t, err)
	assert.True(t, done)

	order, err := d.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, order.Status)
}

func TestDeleteOrderCascade(t *testing.T) {
	d := setupDB(t)
	ctx := context.Background()
	startDelivery(t, d)

	require.NoError(t, d.DeleteOrderCascade(ctx, "o1"))

	order, err := d.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Nil(t, order)
	ps, err := d.ListParticipants(ctx, "o1")
	require.NoError(t, err)
	assert.Empty(t, ps)
	tr, err := d.GetTracking(ctx, "o1")
	require.NoError(t, err)
	assert.Nil(t, tr)
}

func TestGetOrdersAndListByStatus(t *testing.T) {
	d := setupDB(t)
	ctx := context.Background()
	seedOrder(t, d)
	other := newOrder("o2", "bob")
	other.Status = models.StatusConfirmed
	require.NoError(t, d.CreateOrder(ctx, other, &models.Participant{
		ID: "p2", OrderID: "o2", UserID: "bob", JoinedAt: base, DeliveryAddress: "x",
	}, nil))

	got, err := d.GetOrders(ctx, []string{"o1", "o2", "o3"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	open, err := d.ListByStatus(ctx, models.StatusOpen)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "o1", open[0].ID)
}
