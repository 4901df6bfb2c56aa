package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"ticketing/entity"
	"ticketing/metrics"
	"ticketing/pkg/log"
)

// RefundDeadline is how long before the event start refund requests close.
const RefundDeadline = 24 * time.Hour

type BookingsRepository interface {
	Store(ctx context.Context, booking entity.Booking) error
	Get(ctx context.Context, bookingID string) (entity.Booking, error)
	GetByConfirmationCode(ctx context.Context, confirmationCode string) (entity.Booking, error)
	ListByUser(ctx context.Context, userID string) ([]entity.Booking, error)
	ListByStatus(ctx context.Context, status entity.BookingStatus) ([]entity.Booking, error)
	UpdateStatus(ctx context.Context, bookingID string, apply func(*entity.Booking) error) (entity.Booking, error)
}

type InventoryRepository interface {
	GetEvent(ctx context.Context, eventID string) (entity.Event, error)
	GetTicketType(ctx context.Context, ticketTypeID string) (entity.TicketType, error)
	ReleaseTicketType(ctx context.Context, ticketTypeID string, quantity int) (entity.InventorySnapshot, error)
	ReleaseEvent(ctx context.Context, eventID string, quantity int) (entity.InventorySnapshot, error)
}

type TicketIssuer interface {
	IssueForBooking(ctx context.Context, booking entity.Booking) ([]entity.Ticket, error)
	InvalidateForBooking(ctx context.Context, bookingID string) (int, error)
}

type Service struct {
	bookings   BookingsRepository
	inventory  InventoryRepository
	issuer     TicketIssuer
	eventBus   *cqrs.EventBus
	commandBus *cqrs.CommandBus
	now        func() time.Time
}

func NewService(
	bookings BookingsRepository,
	inventory InventoryRepository,
	issuer TicketIssuer,
	eventBus *cqrs.EventBus,
	commandBus *cqrs.CommandBus,
) *Service {
	if bookings == nil {
		panic("missing bookings repository")
	}
	if inventory == nil {
		panic("missing inventory repository")
	}
	if issuer == nil {
		panic("missing ticket issuer")
	}
	if eventBus == nil {
		panic("missing event bus")
	}
	if commandBus == nil {
		panic("missing command bus")
	}

	return &Service{
		bookings:   bookings,
		inventory:  inventory,
		issuer:     issuer,
		eventBus:   eventBus,
		commandBus: commandBus,
		now:        time.Now,
	}
}

type PurchaseRequest struct {
	EventID      string
	TicketTypeID *string
	UserID       string
	Quantity     int
	Notes        string
}

// Purchase reserves inventory, persists a confirmed booking and hands out its
// tickets. Reservation and persistence commit in one transaction, so a failed
// purchase never leaks seats.
func (s *Service) Purchase(ctx context.Context, req PurchaseRequest) (entity.Booking, []entity.Ticket, error) {
	if req.Quantity < 1 {
		metrics.BookingsRejected.WithLabelValues("invalid_quantity").Inc()
		return entity.Booking{}, nil, fmt.Errorf("quantity %d: %w", req.Quantity, entity.ErrInvalidQuantity)
	}

	unitPrice, eventID, err := s.unitPrice(ctx, req)
	if err != nil {
		metrics.BookingsRejected.WithLabelValues("pricing").Inc()
		return entity.Booking{}, nil, err
	}

	logger := log.FromContext(ctx)

	if unitPrice.IsZero() {
		logger.WithField("event_id", eventID).Warn("booking priced at zero")
	}

	now := s.now()

	booking := entity.Booking{
		BookingID:        uuid.NewString(),
		EventID:          eventID,
		TicketTypeID:     req.TicketTypeID,
		UserID:           req.UserID,
		Quantity:         req.Quantity,
		TotalPrice:       unitPrice.Mul(decimal.NewFromInt(int64(req.Quantity))),
		Status:           entity.BookingStatusConfirmed,
		ConfirmationCode: entity.NewConfirmationCode(now),
		BookingDate:      now,
		Notes:            req.Notes,
	}

	if err := s.bookings.Store(ctx, booking); err != nil {
		metrics.BookingsRejected.WithLabelValues("reservation").Inc()
		return entity.Booking{}, nil, err
	}

	metrics.BookingsConfirmed.Inc()

	tickets, err := s.issuer.IssueForBooking(ctx, booking)
	if err != nil {
		// the booking.created consumer re-issues the batch
		logger.WithField("booking_id", booking.BookingID).WithError(err).Error("could not issue tickets inline")
		tickets = nil
	}

	cmd := entity.SendTicketsConfirmation{
		Header:           entity.NewEventHeaderWithIdempotencyKey(booking.BookingID),
		BookingID:        booking.BookingID,
		ConfirmationCode: booking.ConfirmationCode,
		UserID:           booking.UserID,
		Quantity:         booking.Quantity,
		TotalPrice:       booking.TotalPrice,
		UniqueCodes:      lo.Map(tickets, func(t entity.Ticket, _ int) string { return t.UniqueCode }),
	}
	if err := s.commandBus.Send(ctx, cmd); err != nil {
		logger.WithField("booking_id", booking.BookingID).WithError(err).Error("could not send tickets confirmation command")
	}

	return booking, tickets, nil
}

// Cancel moves a booking to CANCELLED and compensates: seats go back to the
// pool and unused tickets are revoked. Compensation failures are logged, not
// rolled back, the cancellation itself stands.
func (s *Service) Cancel(ctx context.Context, bookingID string) (entity.Booking, error) {
	now := s.now()

	booking, err := s.bookings.UpdateStatus(ctx, bookingID, func(b *entity.Booking) error {
		if !b.CanTransition(entity.BookingStatusCancelled) {
			return fmt.Errorf("cannot cancel booking in status %s: %w", b.Status, entity.ErrInvalidState)
		}
		b.Status = entity.BookingStatusCancelled
		b.CancelledDate = &now
		return nil
	})
	if err != nil {
		return entity.Booking{}, err
	}

	s.releaseSeats(ctx, booking)
	s.invalidateTickets(ctx, booking)

	event := entity.BookingCancelled{
		Header:  entity.NewEventHeaderWithIdempotencyKey(booking.BookingID),
		Booking: booking.Projection(),
	}
	if err := s.eventBus.Publish(ctx, event); err != nil {
		log.FromContext(ctx).WithField("booking_id", booking.BookingID).WithError(err).Error("could not publish booking cancelled event")
	}

	return booking, nil
}

// RequestRefund moves a confirmed booking to REFUND_REQUESTED. Requests close
// 24 hours before the event starts.
func (s *Service) RequestRefund(ctx context.Context, bookingID, reason string, amount *decimal.Decimal) (entity.Booking, error) {
	current, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return entity.Booking{}, err
	}

	event, err := s.inventory.GetEvent(ctx, current.EventID)
	if err != nil {
		return entity.Booking{}, fmt.Errorf("could not load event %s to check the refund deadline: %w", current.EventID, err)
	}

	now := s.now()

	booking, err := s.bookings.UpdateStatus(ctx, bookingID, func(b *entity.Booking) error {
		if !b.CanTransition(entity.BookingStatusRefundRequested) {
			return fmt.Errorf("cannot request refund for booking in status %s: %w", b.Status, entity.ErrInvalidState)
		}
		if !now.Before(event.StartsAt.Add(-RefundDeadline)) {
			return fmt.Errorf("refund window for event %s closed at %s: %w",
				event.EventID, event.StartsAt.Add(-RefundDeadline).Format(time.RFC3339), entity.ErrDeadlinePassed)
		}

		refund := b.TotalPrice
		if amount != nil {
			refund = *amount
		}

		b.Status = entity.BookingStatusRefundRequested
		b.RefundRequestDate = &now
		b.RefundReason = &reason
		b.RefundAmount = decimal.NewNullDecimal(refund)
		return nil
	})
	if err != nil {
		return entity.Booking{}, err
	}

	refundEvent := entity.RefundRequested{
		Header:  entity.NewEventHeaderWithIdempotencyKey(booking.BookingID),
		Booking: booking.Projection(),
		Reason:  reason,
		Amount:  booking.RefundAmount.Decimal,
	}
	if err := s.eventBus.Publish(ctx, refundEvent); err != nil {
		log.FromContext(ctx).WithField("booking_id", booking.BookingID).WithError(err).Error("could not publish refund requested event")
	}

	return booking, nil
}

// ProcessRefund resolves a pending refund request. Approval releases seats,
// revokes tickets and asks the payment provider for the money transfer;
// rejection keeps the booking out of any further refund flow.
func (s *Service) ProcessRefund(ctx context.Context, bookingID string, approve bool, adminNotes string) (entity.Booking, error) {
	now := s.now()

	booking, err := s.bookings.UpdateStatus(ctx, bookingID, func(b *entity.Booking) error {
		if approve {
			if !b.CanTransition(entity.BookingStatusRefunded) {
				return fmt.Errorf("cannot approve refund for booking in status %s: %w", b.Status, entity.ErrInvalidState)
			}
			b.Status = entity.BookingStatusRefunded
			b.RefundProcessedDate = &now
		} else {
			if !b.CanTransition(entity.BookingStatusRefundRejected) {
				return fmt.Errorf("cannot reject refund for booking in status %s: %w", b.Status, entity.ErrInvalidState)
			}
			b.Status = entity.BookingStatusRefundRejected
			b.RefundProcessedDate = &now
			b.RefundRejectionReason = &adminNotes
		}
		if adminNotes != "" {
			b.Notes = appendNote(b.Notes, adminNotes)
		}
		return nil
	})
	if err != nil {
		return entity.Booking{}, err
	}

	logger := log.FromContext(ctx).WithField("booking_id", booking.BookingID)

	if !approve {
		event := entity.RefundRejected{
			Header:  entity.NewEventHeaderWithIdempotencyKey(booking.BookingID),
			Booking: booking.Projection(),
			Reason:  adminNotes,
		}
		if err := s.eventBus.Publish(ctx, event); err != nil {
			logger.WithError(err).Error("could not publish refund rejected event")
		}
		return booking, nil
	}

	s.releaseSeats(ctx, booking)
	s.invalidateTickets(ctx, booking)

	event := entity.RefundApproved{
		Header:  entity.NewEventHeaderWithIdempotencyKey(booking.BookingID),
		Booking: booking.Projection(),
		Amount:  booking.RefundAmount.Decimal,
	}
	if err := s.eventBus.Publish(ctx, event); err != nil {
		logger.WithError(err).Error("could not publish refund approved event")
	}

	cmd := entity.RefundPayment{
		Header:      entity.NewEventHeaderWithIdempotencyKey(booking.BookingID),
		BookingID:   booking.BookingID,
		UserID:      booking.UserID,
		Amount:      booking.RefundAmount.Decimal,
		RequestedAt: now,
	}
	if err := s.commandBus.Send(ctx, cmd); err != nil {
		logger.WithError(err).Error("could not send refund payment command")
	}

	return booking, nil
}

func (s *Service) Get(ctx context.Context, bookingID string) (entity.Booking, error) {
	return s.bookings.Get(ctx, bookingID)
}

func (s *Service) GetByConfirmationCode(ctx context.Context, confirmationCode string) (entity.Booking, error) {
	return s.bookings.GetByConfirmationCode(ctx, confirmationCode)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]entity.Booking, error) {
	return s.bookings.ListByUser(ctx, userID)
}

func (s *Service) ListByStatus(ctx context.Context, status entity.BookingStatus) ([]entity.Booking, error) {
	return s.bookings.ListByStatus(ctx, status)
}

func (s *Service) unitPrice(ctx context.Context, req PurchaseRequest) (decimal.Decimal, string, error) {
	if req.TicketTypeID != nil {
		tt, err := s.inventory.GetTicketType(ctx, *req.TicketTypeID)
		if err != nil {
			return decimal.Decimal{}, "", err
		}
		if req.EventID != "" && req.EventID != tt.EventID {
			return decimal.Decimal{}, "", fmt.Errorf("ticket type %s does not belong to event %s: %w",
				tt.TicketTypeID, req.EventID, entity.ErrNotFound)
		}
		return tt.Price, tt.EventID, nil
	}

	event, err := s.inventory.GetEvent(ctx, req.EventID)
	if err != nil {
		return decimal.Decimal{}, "", err
	}

	return event.Price, event.EventID, nil
}

func (s *Service) releaseSeats(ctx context.Context, booking entity.Booking) {
	var err error
	if booking.TicketTypeID != nil {
		_, err = s.inventory.ReleaseTicketType(ctx, *booking.TicketTypeID, booking.Quantity)
	} else {
		_, err = s.inventory.ReleaseEvent(ctx, booking.EventID, booking.Quantity)
	}
	if err != nil {
		// seats stay reserved until reconciled by hand
		log.FromContext(ctx).
			WithField("booking_id", booking.BookingID).
			WithError(err).
			Error("could not release reserved seats")
	}
}

func (s *Service) invalidateTickets(ctx context.Context, booking entity.Booking) {
	if _, err := s.issuer.InvalidateForBooking(ctx, booking.BookingID); err != nil {
		log.FromContext(ctx).
			WithField("booking_id", booking.BookingID).
			WithError(err).
			Error("could not invalidate tickets")
	}
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "; " + note
}
