package event

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"ticketing/entity"
	"ticketing/pkg/log"
)

// IssueTicketsHandler re-issues the ticket batch of a created booking. The
// inline issue during purchase usually wins; this consumer is the retry path
// and issuing is idempotent, so running both is harmless.
func (h Handler) IssueTicketsHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"IssueTicketsHandler",
		func(ctx context.Context, event *entity.BookingCreated) error {
			log.FromContext(ctx).Infof("IssueTicketsHandler: %s", event.Booking.BookingID)

			booking, err := h.bookingsRepo.Get(ctx, event.Booking.BookingID)
			if err != nil {
				return fmt.Errorf("could not load booking %s: %w", event.Booking.BookingID, err)
			}

			if booking.Status != entity.BookingStatusConfirmed {
				// already cancelled or refunded, nothing to issue
				return nil
			}

			_, err = h.issuer.IssueForBooking(ctx, booking)
			return err
		},
	)
}
