package event

import (
	"context"

	"ticketing/entity"
)

type BookingsRepository interface {
	Get(ctx context.Context, bookingID string) (entity.Booking, error)
}

type TicketIssuer interface {
	IssueForBooking(ctx context.Context, booking entity.Booking) ([]entity.Ticket, error)
	InvalidateForBooking(ctx context.Context, bookingID string) (int, error)
}

type Handler struct {
	bookingsRepo BookingsRepository
	issuer       TicketIssuer
}

func NewHandler(
	bookingsRepo BookingsRepository,
	issuer TicketIssuer,
) Handler {
	if bookingsRepo == nil {
		panic("missing bookingsRepo")
	}
	if issuer == nil {
		panic("missing issuer")
	}

	return Handler{
		bookingsRepo: bookingsRepo,
		issuer:       issuer,
	}
}
