package entity

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	all := []BookingStatus{
		BookingStatusPending,
		BookingStatusConfirmed,
		BookingStatusCancelled,
		BookingStatusRefundRequested,
		BookingStatusRefunded,
		BookingStatusRefundRejected,
		BookingStatusCompleted,
	}

	legal := map[BookingStatus][]BookingStatus{
		BookingStatusConfirmed:       {BookingStatusCancelled, BookingStatusRefundRequested, BookingStatusCompleted},
		BookingStatusRefundRequested: {BookingStatusCancelled, BookingStatusRefunded, BookingStatusRefundRejected},
		BookingStatusRefunded:        {BookingStatusCompleted},
	}

	for _, from := range all {
		for _, to := range all {
			booking := Booking{Status: from}
			want := false
			for _, allowed := range legal[from] {
				if allowed == to {
					want = true
				}
			}
			assert.Equal(t, want, booking.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestNewConfirmationCode(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	code := NewConfirmationCode(now)

	assert.True(t, IsConfirmationCode(code))
	assert.Equal(t, "BK1700000000000", code[:15])
	assert.Len(t, code, 19)
	assert.Equal(t, strings.ToUpper(code[15:]), code[15:])
	assert.NotEqual(t, code, NewConfirmationCode(now))
}

func TestBookingProjection(t *testing.T) {
	now := time.Now()
	booking := Booking{
		BookingID:        "b-1",
		EventID:          "e-1",
		UserID:           "u-1",
		Quantity:         2,
		Status:           BookingStatusConfirmed,
		ConfirmationCode: "BK123",
		BookingDate:      now,
	}

	projection := booking.Projection()
	assert.Equal(t, "b-1", projection.BookingID)
	assert.Equal(t, string(BookingStatusConfirmed), projection.Status)
	assert.Nil(t, projection.CancelledDate)
}
