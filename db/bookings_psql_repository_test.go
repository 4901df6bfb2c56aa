package db

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketing/entity"
	"ticketing/pubsub/outbox"
)

func newBookingsRepo(t *testing.T) (*BookingsRepository, *InventoryRepository) {
	t.Helper()

	dbconn := GetDB(t)
	logger := watermill.NopLogger{}
	require.NoError(t, outbox.InitializeForwarderSchema(dbconn, logger))

	inventory := NewInventoryRepository(dbconn)
	return NewBookingsRepository(dbconn, inventory, logger), inventory
}

func newTestBooking(eventID string, quantity int) entity.Booking {
	return entity.Booking{
		BookingID:        uuid.NewString(),
		EventID:          eventID,
		UserID:           "user-" + uuid.NewString(),
		Quantity:         quantity,
		TotalPrice:       decimal.NewFromInt(int64(quantity * 50)),
		Status:           entity.BookingStatusConfirmed,
		ConfirmationCode: entity.NewConfirmationCode(time.Now()),
		BookingDate:      time.Now(),
	}
}

func TestBookingsRepository_Store_Postgres(t *testing.T) {
	ctx := context.Background()
	repo, inventory := newBookingsRepo(t)

	event := storeTestEvent(t, inventory, 2)

	booking := newTestBooking(event.EventID, 2)
	require.NoError(t, repo.Store(ctx, booking))

	stored, err := repo.Get(ctx, booking.BookingID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusConfirmed, stored.Status)
	assert.Equal(t, booking.ConfirmationCode, stored.ConfirmationCode)
	assert.True(t, stored.TotalPrice.Equal(booking.TotalPrice))

	current, err := inventory.GetEvent(ctx, event.EventID)
	require.NoError(t, err)
	assert.Equal(t, 0, current.Available)

	// the booking.created event is staged in the same transaction
	var staged int
	err = GetDB(t).GetContext(ctx, &staged, `
		SELECT COUNT(*) FROM watermill_events_to_forward
	`)
	require.NoError(t, err)
	assert.Greater(t, staged, 0)
}

func TestBookingsRepository_Store_InsufficientLeavesNothing(t *testing.T) {
	ctx := context.Background()
	repo, inventory := newBookingsRepo(t)

	event := storeTestEvent(t, inventory, 1)

	booking := newTestBooking(event.EventID, 3)
	err := repo.Store(ctx, booking)
	require.ErrorIs(t, err, entity.ErrInsufficientInventory)

	_, err = repo.Get(ctx, booking.BookingID)
	require.ErrorIs(t, err, entity.ErrNotFound)

	current, err := inventory.GetEvent(ctx, event.EventID)
	require.NoError(t, err)
	assert.Equal(t, 1, current.Available)
}

func TestBookingsRepository_UpdateStatus_Postgres(t *testing.T) {
	ctx := context.Background()
	repo, inventory := newBookingsRepo(t)

	event := storeTestEvent(t, inventory, 5)
	booking := newTestBooking(event.EventID, 1)
	require.NoError(t, repo.Store(ctx, booking))

	now := time.Now()
	updated, err := repo.UpdateStatus(ctx, booking.BookingID, func(b *entity.Booking) error {
		b.Status = entity.BookingStatusCancelled
		b.CancelledDate = &now
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusCancelled, updated.Status)

	stored, err := repo.Get(ctx, booking.BookingID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusCancelled, stored.Status)
	require.NotNil(t, stored.CancelledDate)

	// an apply error aborts the transaction, the row is untouched
	_, err = repo.UpdateStatus(ctx, booking.BookingID, func(b *entity.Booking) error {
		b.Status = entity.BookingStatusConfirmed
		return entity.ErrInvalidState
	})
	require.ErrorIs(t, err, entity.ErrInvalidState)

	stored, err = repo.Get(ctx, booking.BookingID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusCancelled, stored.Status)
}

func TestBookingsRepository_MarkCompleted_Once(t *testing.T) {
	ctx := context.Background()
	repo, inventory := newBookingsRepo(t)

	event := storeTestEvent(t, inventory, 5)
	booking := newTestBooking(event.EventID, 1)
	require.NoError(t, repo.Store(ctx, booking))

	completed, transitioned, err := repo.MarkCompleted(ctx, booking.BookingID)
	require.NoError(t, err)
	assert.True(t, transitioned)
	assert.Equal(t, entity.BookingStatusCompleted, completed.Status)

	// the retry sees the terminal state and does not transition again
	completed, transitioned, err = repo.MarkCompleted(ctx, booking.BookingID)
	require.NoError(t, err)
	assert.False(t, transitioned)
	assert.Equal(t, entity.BookingStatusCompleted, completed.Status)

	cancelled := newTestBooking(event.EventID, 1)
	require.NoError(t, repo.Store(ctx, cancelled))
	_, err = repo.UpdateStatus(ctx, cancelled.BookingID, func(b *entity.Booking) error {
		b.Status = entity.BookingStatusCancelled
		return nil
	})
	require.NoError(t, err)

	_, _, err = repo.MarkCompleted(ctx, cancelled.BookingID)
	require.ErrorIs(t, err, entity.ErrInvalidState)
}
