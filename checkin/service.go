package checkin

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"ticketing/entity"
	"ticketing/metrics"
	"ticketing/pkg/log"
)

// DefaultTicketTTL is how long an issued ticket stays scannable.
const DefaultTicketTTL = 7 * 24 * time.Hour

type TicketsRepository interface {
	IssueBatch(ctx context.Context, booking entity.Booking, expiresAt time.Time) ([]entity.Ticket, error)
	FindByBookingID(ctx context.Context, bookingID string) ([]entity.Ticket, error)
	FindByConfirmationCode(ctx context.Context, confirmationCode string) ([]entity.Ticket, error)
	FindByUniqueCode(ctx context.Context, uniqueCode string) (entity.Ticket, error)
	MarkUsed(ctx context.Context, ticketID string, now time.Time) (entity.Ticket, error)
	CountUnused(ctx context.Context, bookingID string) (int, error)
	Invalidate(ctx context.Context, bookingID string, now time.Time) (int, error)
}

type BookingsRepository interface {
	Get(ctx context.Context, bookingID string) (entity.Booking, error)
	MarkCompleted(ctx context.Context, bookingID string) (entity.Booking, bool, error)
}

type CheckInsRepository interface {
	Append(ctx context.Context, record entity.CheckInRecord) error
	Recent(ctx context.Context, limit int) ([]entity.CheckInRecord, error)
	FindByConfirmationCode(ctx context.Context, confirmationCode string) ([]entity.CheckInRecord, error)
	StatsForDay(ctx context.Context, day time.Time) (entity.DailyCheckInStats, error)
}

type Service struct {
	tickets   TicketsRepository
	bookings  BookingsRepository
	checkIns  CheckInsRepository
	eventBus  *cqrs.EventBus
	ticketTTL time.Duration
	now       func() time.Time
}

func NewService(
	tickets TicketsRepository,
	bookings BookingsRepository,
	checkIns CheckInsRepository,
	eventBus *cqrs.EventBus,
) *Service {
	if tickets == nil {
		panic("missing tickets repository")
	}
	if bookings == nil {
		panic("missing bookings repository")
	}
	if checkIns == nil {
		panic("missing check-ins repository")
	}
	if eventBus == nil {
		panic("missing event bus")
	}

	return &Service{
		tickets:   tickets,
		bookings:  bookings,
		checkIns:  checkIns,
		eventBus:  eventBus,
		ticketTTL: DefaultTicketTTL,
		now:       time.Now,
	}
}

// IssueForBooking issues one ticket per purchased seat. Re-running it for the
// same booking returns the already issued batch.
func (s *Service) IssueForBooking(ctx context.Context, booking entity.Booking) ([]entity.Ticket, error) {
	if booking.Status != entity.BookingStatusConfirmed {
		return nil, fmt.Errorf("booking %s is %s: %w", booking.BookingID, booking.Status, entity.ErrInvalidState)
	}

	tickets, err := s.tickets.IssueBatch(ctx, booking, s.now().Add(s.ticketTTL))
	if err != nil {
		return nil, fmt.Errorf("could not issue tickets for booking %s: %w", booking.BookingID, err)
	}

	metrics.TicketsIssued.Add(float64(len(tickets)))

	return tickets, nil
}

// Scan admits a single ticket. The identifier may be a ticket unique code, a
// booking confirmation code or a raw booking id; for the latter two the first
// unused ticket of the booking is admitted.
func (s *Service) Scan(ctx context.Context, identifier, scannerID, scannerType, location string) (entity.ScanResult, error) {
	ticket, err := s.resolveTicket(ctx, identifier)
	if err != nil {
		metrics.TicketsScanned.WithLabelValues("rejected").Inc()
		return entity.ScanResult{}, err
	}

	now := s.now()

	used, err := s.tickets.MarkUsed(ctx, ticket.TicketID, now)
	if err != nil {
		metrics.TicketsScanned.WithLabelValues("rejected").Inc()
		return entity.ScanResult{}, err
	}

	metrics.TicketsScanned.WithLabelValues("admitted").Inc()

	s.recordCheckIn(ctx, used, scannerID, scannerType, location, now)

	remaining, err := s.tickets.CountUnused(ctx, used.BookingID)
	if err != nil {
		return entity.ScanResult{}, fmt.Errorf("could not count unused tickets for booking %s: %w", used.BookingID, err)
	}

	completed := false
	if remaining == 0 {
		completed, err = s.completeBooking(ctx, used.BookingID, scannerID, scannerType, location, now)
		if err != nil {
			return entity.ScanResult{}, err
		}
	}

	return entity.ScanResult{
		Ticket:           used,
		BookingID:        used.BookingID,
		ConfirmationCode: used.ConfirmationCode,
		RemainingUnused:  remaining,
		BookingCompleted: completed,
	}, nil
}

// ScanBatch admits up to count unused tickets of a booking in ticket index
// order. Admitting fewer tickets than requested is not an error.
func (s *Service) ScanBatch(ctx context.Context, confirmationCode, scannerID, scannerType, location string, count int) (entity.BatchScanResult, error) {
	if count < 1 {
		return entity.BatchScanResult{}, fmt.Errorf("batch scan count %d: %w", count, entity.ErrInvalidQuantity)
	}

	tickets, err := s.tickets.FindByConfirmationCode(ctx, confirmationCode)
	if err != nil {
		return entity.BatchScanResult{}, err
	}
	if len(tickets) == 0 {
		return entity.BatchScanResult{}, fmt.Errorf("no tickets for confirmation code %s: %w", confirmationCode, entity.ErrNotFound)
	}

	now := s.now()

	unused := lo.Filter(tickets, func(t entity.Ticket, _ int) bool {
		return t.Scannable(now)
	})
	if len(unused) > count {
		unused = unused[:count]
	}

	logger := log.FromContext(ctx)

	var scannedCodes []string
	for _, t := range unused {
		used, err := s.tickets.MarkUsed(ctx, t.TicketID, now)
		if err != nil {
			// lost the race to another scanner, skip the ticket
			logger.WithField("ticket_id", t.TicketID).WithError(err).Warn("batch scan skipped ticket")
			continue
		}

		metrics.TicketsScanned.WithLabelValues("admitted").Inc()
		s.recordCheckIn(ctx, used, scannerID, scannerType, location, now)
		scannedCodes = append(scannedCodes, used.UniqueCode)
	}

	bookingID := tickets[0].BookingID

	remaining, err := s.tickets.CountUnused(ctx, bookingID)
	if err != nil {
		return entity.BatchScanResult{}, fmt.Errorf("could not count unused tickets for booking %s: %w", bookingID, err)
	}

	completed := false
	if remaining == 0 && len(scannedCodes) > 0 {
		completed, err = s.completeBooking(ctx, bookingID, scannerID, scannerType, location, now)
		if err != nil {
			return entity.BatchScanResult{}, err
		}
	}

	return entity.BatchScanResult{
		ConfirmationCode: confirmationCode,
		TotalTickets:     len(tickets),
		Scanned:          len(scannedCodes),
		Remaining:        remaining,
		ScannedCodes:     scannedCodes,
		BookingCompleted: completed,
	}, nil
}

// InvalidateForBooking revokes all unused tickets of a booking.
func (s *Service) InvalidateForBooking(ctx context.Context, bookingID string) (int, error) {
	return s.tickets.Invalidate(ctx, bookingID, s.now())
}

// TicketStatus resolves an identifier to a single ticket without admitting it.
func (s *Service) TicketStatus(ctx context.Context, identifier string) (entity.Ticket, error) {
	return s.resolveTicket(ctx, identifier)
}

// Stats reports per-booking admission progress.
func (s *Service) Stats(ctx context.Context, confirmationCode string) (entity.BookingTicketStats, error) {
	tickets, err := s.tickets.FindByConfirmationCode(ctx, confirmationCode)
	if err != nil {
		return entity.BookingTicketStats{}, err
	}
	if len(tickets) == 0 {
		return entity.BookingTicketStats{}, fmt.Errorf("no tickets for confirmation code %s: %w", confirmationCode, entity.ErrNotFound)
	}

	used := lo.CountBy(tickets, func(t entity.Ticket) bool { return t.IsUsed })

	return entity.BookingTicketStats{
		ConfirmationCode: confirmationCode,
		BookingID:        tickets[0].BookingID,
		TotalTickets:     len(tickets),
		UsedTickets:      used,
		UnusedTickets:    len(tickets) - used,
	}, nil
}

// RecentCheckIns lists the latest admissions across all bookings.
func (s *Service) RecentCheckIns(ctx context.Context, limit int) ([]entity.CheckInRecord, error) {
	return s.checkIns.Recent(ctx, limit)
}

// CheckInHistory lists the admissions of one booking.
func (s *Service) CheckInHistory(ctx context.Context, confirmationCode string) ([]entity.CheckInRecord, error) {
	return s.checkIns.FindByConfirmationCode(ctx, confirmationCode)
}

// DailyStats aggregates a day's admissions per scanner.
func (s *Service) DailyStats(ctx context.Context, day time.Time) (entity.DailyCheckInStats, error) {
	return s.checkIns.StatsForDay(ctx, day)
}

func (s *Service) resolveTicket(ctx context.Context, identifier string) (entity.Ticket, error) {
	switch {
	case entity.IsUniqueCode(identifier):
		return s.tickets.FindByUniqueCode(ctx, identifier)
	case entity.IsConfirmationCode(identifier):
		tickets, err := s.tickets.FindByConfirmationCode(ctx, identifier)
		if err != nil {
			return entity.Ticket{}, err
		}
		return pickTicket(tickets, identifier, s.now())
	default:
		tickets, err := s.tickets.FindByBookingID(ctx, identifier)
		if err != nil {
			return entity.Ticket{}, err
		}
		return pickTicket(tickets, identifier, s.now())
	}
}

// pickTicket prefers the first scannable ticket. When the whole batch is spent
// the first ticket is returned so the admission attempt reports why it failed.
func pickTicket(tickets []entity.Ticket, identifier string, now time.Time) (entity.Ticket, error) {
	if len(tickets) == 0 {
		return entity.Ticket{}, fmt.Errorf("no tickets for %s: %w", identifier, entity.ErrNotFound)
	}

	for _, t := range tickets {
		if t.Scannable(now) {
			return t, nil
		}
	}

	return tickets[0], nil
}

func (s *Service) recordCheckIn(ctx context.Context, ticket entity.Ticket, scannerID, scannerType, location string, now time.Time) {
	record := entity.CheckInRecord{
		CheckInID:        uuid.NewString(),
		BookingID:        ticket.BookingID,
		ConfirmationCode: ticket.ConfirmationCode,
		ScannerID:        scannerID,
		ScannerType:      scannerType,
		Location:         location,
		Quantity:         1,
		CheckedInAt:      now,
	}

	if err := s.checkIns.Append(ctx, record); err != nil {
		// the ledger is best effort, admission already happened
		log.FromContext(ctx).
			WithField("ticket_id", ticket.TicketID).
			WithError(err).
			Error("could not append check-in record")
	}
}

func (s *Service) completeBooking(ctx context.Context, bookingID, scannerID, scannerType, location string, now time.Time) (bool, error) {
	booking, transitioned, err := s.bookings.MarkCompleted(ctx, bookingID)
	if err != nil {
		return false, fmt.Errorf("could not complete booking %s: %w", bookingID, err)
	}
	if !transitioned {
		return false, nil
	}

	event := entity.BookingCheckedIn{
		Header:     entity.NewEventHeaderWithIdempotencyKey(booking.BookingID),
		BookingID:  booking.BookingID,
		EventID:    booking.EventID,
		UserID:     booking.UserID,
		ScannerID:  scannerID,
		DeviceInfo: scannerType,
		Location:   location,
		Timestamp:  now,
	}

	if err := s.eventBus.Publish(ctx, event); err != nil {
		log.FromContext(ctx).
			WithField("booking_id", booking.BookingID).
			WithError(err).
			Error("could not publish booking checked-in event")
	}

	return true, nil
}
