package db

import (
	"context"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketing/entity"
)

func issueTestBatch(t *testing.T, quantity int, expiresAt time.Time) (entity.Booking, []entity.Ticket, *TicketsRepository) {
	t.Helper()

	ctx := context.Background()
	bookings, inventory := newBookingsRepo(t)
	tickets := NewTicketsRepository(GetDB(t))

	event := storeTestEvent(t, inventory, quantity)
	booking := newTestBooking(event.EventID, quantity)
	require.NoError(t, bookings.Store(ctx, booking))

	batch, err := tickets.IssueBatch(ctx, booking, expiresAt)
	require.NoError(t, err)
	require.Len(t, batch, quantity)

	return booking, batch, tickets
}

func TestTicketsRepository_IssueBatch_Idempotent(t *testing.T) {
	ctx := context.Background()
	booking, batch, tickets := issueTestBatch(t, 3, time.Now().Add(time.Hour))

	indexes := lo.Map(batch, func(tk entity.Ticket, _ int) int { return tk.TicketIndex })
	assert.Equal(t, []int{1, 2, 3}, indexes)
	for _, tk := range batch {
		assert.True(t, entity.IsUniqueCode(tk.UniqueCode))
		assert.Equal(t, booking.ConfirmationCode, tk.ConfirmationCode)
	}

	// a retried confirmation returns the original batch, no extra tickets
	again, err := tickets.IssueBatch(ctx, booking, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, again, 3)

	originalCodes := lo.Map(batch, func(tk entity.Ticket, _ int) string { return tk.UniqueCode })
	retryCodes := lo.Map(again, func(tk entity.Ticket, _ int) string { return tk.UniqueCode })
	assert.Equal(t, originalCodes, retryCodes)
}

func TestTicketsRepository_MarkUsed_Once(t *testing.T) {
	ctx := context.Background()
	_, batch, tickets := issueTestBatch(t, 1, time.Now().Add(time.Hour))

	used, err := tickets.MarkUsed(ctx, batch[0].TicketID, time.Now())
	require.NoError(t, err)
	assert.True(t, used.IsUsed)
	assert.Equal(t, 1, used.ScanCount)
	require.NotNil(t, used.UsedAt)

	// the replay is rejected and reports the spent ticket
	replayed, err := tickets.MarkUsed(ctx, batch[0].TicketID, time.Now())
	require.ErrorIs(t, err, entity.ErrAlreadyUsed)
	assert.True(t, replayed.IsUsed)
	assert.Equal(t, 1, replayed.ScanCount)
}

func TestTicketsRepository_MarkUsed_Expired(t *testing.T) {
	ctx := context.Background()
	_, batch, tickets := issueTestBatch(t, 1, time.Now().Add(-time.Minute))

	_, err := tickets.MarkUsed(ctx, batch[0].TicketID, time.Now())
	require.ErrorIs(t, err, entity.ErrExpired)
}

func TestTicketsRepository_Invalidate(t *testing.T) {
	ctx := context.Background()
	booking, batch, tickets := issueTestBatch(t, 3, time.Now().Add(time.Hour))

	_, err := tickets.MarkUsed(ctx, batch[0].TicketID, time.Now())
	require.NoError(t, err)

	// only the two unused tickets are revoked
	revoked, err := tickets.Invalidate(ctx, booking.BookingID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, revoked)

	unused, err := tickets.CountUnused(ctx, booking.BookingID)
	require.NoError(t, err)
	assert.Equal(t, 0, unused)

	// a revoked ticket can never be admitted
	_, err = tickets.MarkUsed(ctx, batch[1].TicketID, time.Now())
	require.ErrorIs(t, err, entity.ErrExpired)

	// the admitted ticket keeps its audit trail
	used, err := tickets.Get(ctx, batch[0].TicketID)
	require.NoError(t, err)
	assert.True(t, used.IsUsed)
	assert.Nil(t, used.InvalidatedAt)
}
