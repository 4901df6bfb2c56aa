package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"ticketing/entity"
)

const ticketColumns = `ticket_id, booking_id, confirmation_code, unique_code, ticket_index,
	is_used, used_at, scan_count, expires_at, invalidated_at`

type TicketsRepository struct {
	db *sqlx.DB
}

func NewTicketsRepository(db *sqlx.DB) *TicketsRepository {
	if db == nil {
		panic("db is nil")
	}
	return &TicketsRepository{db: db}
}

// IssueBatch mints one ticket per purchased unit. Idempotent: a retried
// confirmation inserts nothing (the (booking_id, ticket_index) key conflicts)
// and the original batch is returned.
func (r *TicketsRepository) IssueBatch(ctx context.Context, booking entity.Booking, expiresAt time.Time) ([]entity.Ticket, error) {
	for i := 1; i <= booking.Quantity; i++ {
		ticket := entity.Ticket{
			TicketID:         uuid.NewString(),
			BookingID:        booking.BookingID,
			ConfirmationCode: booking.ConfirmationCode,
			UniqueCode:       entity.NewUniqueCode(),
			TicketIndex:      i,
			ExpiresAt:        expiresAt,
		}

		_, err := r.db.NamedExecContext(ctx, `
			INSERT INTO tickets (`+ticketColumns+`)
			VALUES (:ticket_id, :booking_id, :confirmation_code, :unique_code, :ticket_index,
				:is_used, :used_at, :scan_count, :expires_at, :invalidated_at)
			ON CONFLICT (booking_id, ticket_index) DO NOTHING
		`, ticket)
		if err != nil {
			return nil, fmt.Errorf("could not issue ticket %d/%d: %w", i, booking.Quantity, err)
		}
	}

	return r.FindByBookingID(ctx, booking.BookingID)
}

func (r *TicketsRepository) FindByBookingID(ctx context.Context, bookingID string) ([]entity.Ticket, error) {
	var tickets []entity.Ticket
	err := r.db.SelectContext(ctx, &tickets, `
		SELECT `+ticketColumns+` FROM tickets WHERE booking_id = $1 ORDER BY ticket_index
	`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("could not list tickets for booking: %w", err)
	}
	return tickets, nil
}

func (r *TicketsRepository) FindByConfirmationCode(ctx context.Context, code string) ([]entity.Ticket, error) {
	var tickets []entity.Ticket
	err := r.db.SelectContext(ctx, &tickets, `
		SELECT `+ticketColumns+` FROM tickets WHERE confirmation_code = $1 ORDER BY ticket_index
	`, code)
	if err != nil {
		return nil, fmt.Errorf("could not list tickets for code: %w", err)
	}
	return tickets, nil
}

func (r *TicketsRepository) FindByUniqueCode(ctx context.Context, uniqueCode string) (entity.Ticket, error) {
	var ticket entity.Ticket
	err := r.db.GetContext(ctx, &ticket, `
		SELECT `+ticketColumns+` FROM tickets WHERE unique_code = $1
	`, uniqueCode)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Ticket{}, fmt.Errorf("ticket %s: %w", uniqueCode, entity.ErrNotFound)
	}
	if err != nil {
		return entity.Ticket{}, fmt.Errorf("could not get ticket: %w", err)
	}
	return ticket, nil
}

func (r *TicketsRepository) Get(ctx context.Context, ticketID string) (entity.Ticket, error) {
	var ticket entity.Ticket
	err := r.db.GetContext(ctx, &ticket, `
		SELECT `+ticketColumns+` FROM tickets WHERE ticket_id = $1
	`, ticketID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Ticket{}, fmt.Errorf("ticket %s: %w", ticketID, entity.ErrNotFound)
	}
	if err != nil {
		return entity.Ticket{}, fmt.Errorf("could not get ticket: %w", err)
	}
	return ticket, nil
}

// MarkUsed admits a ticket with a single test-and-set statement. A ticket
// that is already used, invalidated or expired is never admitted again, no
// matter how many concurrent or retried scans target it.
func (r *TicketsRepository) MarkUsed(ctx context.Context, ticketID string, now time.Time) (entity.Ticket, error) {
	var ticket entity.Ticket
	err := r.db.GetContext(ctx, &ticket, `
		UPDATE tickets
		SET is_used = TRUE, used_at = $2, scan_count = scan_count + 1
		WHERE ticket_id = $1 AND NOT is_used AND invalidated_at IS NULL AND expires_at > $2
		RETURNING `+ticketColumns+`
	`, ticketID, now)
	if err == nil {
		return ticket, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return entity.Ticket{}, fmt.Errorf("could not mark ticket used: %w", err)
	}

	ticket, err = r.Get(ctx, ticketID)
	if err != nil {
		return entity.Ticket{}, err
	}
	if ticket.IsUsed {
		return ticket, entity.ErrAlreadyUsed
	}
	return ticket, entity.ErrExpired
}

func (r *TicketsRepository) CountUnused(ctx context.Context, bookingID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM tickets
		WHERE booking_id = $1 AND NOT is_used AND invalidated_at IS NULL
	`, bookingID)
	if err != nil {
		return 0, fmt.Errorf("could not count unused tickets: %w", err)
	}
	return count, nil
}

// Invalidate stamps every still-unused ticket of a booking so it can never
// be scanned, without fabricating an admission. Used tickets keep their
// audit trail untouched.
func (r *TicketsRepository) Invalidate(ctx context.Context, bookingID string, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tickets
		SET invalidated_at = $2
		WHERE booking_id = $1 AND NOT is_used AND invalidated_at IS NULL
	`, bookingID, now)
	if err != nil {
		return 0, fmt.Errorf("could not invalidate tickets: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}
