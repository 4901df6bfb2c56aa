package event

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"ticketing/entity"
	"ticketing/pkg/log"
)

// InvalidateOnCancelHandler revokes unused tickets after a cancellation. The
// cancel flow already invalidates synchronously; the consumer covers the case
// where that compensation failed.
func (h Handler) InvalidateOnCancelHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"InvalidateOnCancelHandler",
		func(ctx context.Context, event *entity.BookingCancelled) error {
			log.FromContext(ctx).Infof("InvalidateOnCancelHandler: %s", event.Booking.BookingID)

			_, err := h.issuer.InvalidateForBooking(ctx, event.Booking.BookingID)
			return err
		},
	)
}

// InvalidateOnRefundHandler revokes unused tickets after an approved refund.
func (h Handler) InvalidateOnRefundHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"InvalidateOnRefundHandler",
		func(ctx context.Context, event *entity.RefundApproved) error {
			log.FromContext(ctx).Infof("InvalidateOnRefundHandler: %s", event.Booking.BookingID)

			_, err := h.issuer.InvalidateForBooking(ctx, event.Booking.BookingID)
			return err
		},
	)
}
