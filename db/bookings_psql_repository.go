package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/jmoiron/sqlx"

	"ticketing/entity"
	"ticketing/pubsub/bus"
	"ticketing/pubsub/outbox"
)

const bookingColumns = `booking_id, event_id, ticket_type_id, user_id, quantity, total_price,
	status, confirmation_code, booking_date, cancelled_date, refund_request_date,
	refund_processed_date, refund_amount, refund_reason, refund_rejection_reason, notes`

type BookingsRepository struct {
	db        *sqlx.DB
	inventory *InventoryRepository
	logger    watermill.LoggerAdapter
}

func NewBookingsRepository(db *sqlx.DB, inventory *InventoryRepository, logger watermill.LoggerAdapter) *BookingsRepository {
	if db == nil {
		panic("db is nil")
	}
	if inventory == nil {
		panic("inventory repository is nil")
	}
	return &BookingsRepository{db: db, inventory: inventory, logger: logger}
}

// Store reserves inventory, persists the confirmed booking and stages the
// booking.created event, all in one transaction. If the reservation fails
// nothing is persisted and no event leaves the outbox.
func (r *BookingsRepository) Store(ctx context.Context, booking entity.Booking) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			rollbackErr := tx.Rollback()
			if rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				err = errors.Join(err, rollbackErr)
			}
			return
		}
		err = tx.Commit()
	}()

	if booking.TicketTypeID != nil {
		_, err = r.inventory.reserveTicketType(ctx, tx, *booking.TicketTypeID, booking.Quantity)
	} else {
		_, err = r.inventory.reserveEvent(ctx, tx, booking.EventID, booking.Quantity)
	}
	if err != nil {
		return err
	}

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES (:booking_id, :event_id, :ticket_type_id, :user_id, :quantity, :total_price,
			:status, :confirmation_code, :booking_date, :cancelled_date, :refund_request_date,
			:refund_processed_date, :refund_amount, :refund_reason, :refund_rejection_reason, :notes)
	`, booking)
	if err != nil {
		return fmt.Errorf("could not add booking: %w", err)
	}

	outboxPublisher, err := outbox.NewPublisherForTx(tx, r.logger)
	if err != nil {
		return fmt.Errorf("could not create outbox publisher: %w", err)
	}

	eventBus, err := bus.NewEventBus(outboxPublisher)
	if err != nil {
		return err
	}

	err = eventBus.Publish(ctx, entity.BookingCreated{
		Header:  entity.NewEventHeaderWithIdempotencyKey(booking.BookingID),
		Booking: booking.Projection(),
	})
	if err != nil {
		return fmt.Errorf("could not publish event: %w", err)
	}

	return nil
}

func (r *BookingsRepository) Get(ctx context.Context, bookingID string) (entity.Booking, error) {
	var booking entity.Booking
	err := r.db.GetContext(ctx, &booking, `
		SELECT `+bookingColumns+` FROM bookings WHERE booking_id = $1
	`, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Booking{}, fmt.Errorf("booking %s: %w", bookingID, entity.ErrNotFound)
	}
	if err != nil {
		return entity.Booking{}, fmt.Errorf("could not get booking: %w", err)
	}
	return booking, nil
}

func (r *BookingsRepository) GetByConfirmationCode(ctx context.Context, code string) (entity.Booking, error) {
	var booking entity.Booking
	err := r.db.GetContext(ctx, &booking, `
		SELECT `+bookingColumns+` FROM bookings WHERE confirmation_code = $1
	`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Booking{}, fmt.Errorf("booking with code %s: %w", code, entity.ErrNotFound)
	}
	if err != nil {
		return entity.Booking{}, fmt.Errorf("could not get booking by code: %w", err)
	}
	return booking, nil
}

func (r *BookingsRepository) ListByUser(ctx context.Context, userID string) ([]entity.Booking, error) {
	var bookings []entity.Booking
	err := r.db.SelectContext(ctx, &bookings, `
		SELECT `+bookingColumns+` FROM bookings WHERE user_id = $1 ORDER BY booking_date DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("could not list bookings: %w", err)
	}
	return bookings, nil
}

func (r *BookingsRepository) ListByStatus(ctx context.Context, status entity.BookingStatus) ([]entity.Booking, error) {
	var bookings []entity.Booking
	err := r.db.SelectContext(ctx, &bookings, `
		SELECT `+bookingColumns+` FROM bookings WHERE status = $1 ORDER BY booking_date DESC
	`, status)
	if err != nil {
		return nil, fmt.Errorf("could not list bookings by status: %w", err)
	}
	return bookings, nil
}

// UpdateStatus loads the booking under a row lock, applies the transition
// and writes the result back. Concurrent conflicting transitions on the same
// booking serialize here; exactly one wins, the rest see the new status in
// their guard.
func (r *BookingsRepository) UpdateStatus(ctx context.Context, bookingID string, apply func(*entity.Booking) error) (booking entity.Booking, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return entity.Booking{}, fmt.Errorf("could not begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			rollbackErr := tx.Rollback()
			if rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				err = errors.Join(err, rollbackErr)
			}
			return
		}
		err = tx.Commit()
	}()

	err = tx.GetContext(ctx, &booking, `
		SELECT `+bookingColumns+` FROM bookings WHERE booking_id = $1 FOR UPDATE
	`, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Booking{}, fmt.Errorf("booking %s: %w", bookingID, entity.ErrNotFound)
	}
	if err != nil {
		return entity.Booking{}, fmt.Errorf("could not get booking: %w", err)
	}

	if err = apply(&booking); err != nil {
		return entity.Booking{}, err
	}

	_, err = tx.NamedExecContext(ctx, `
		UPDATE bookings
		SET status = :status,
			total_price = :total_price,
			cancelled_date = :cancelled_date,
			refund_request_date = :refund_request_date,
			refund_processed_date = :refund_processed_date,
			refund_amount = :refund_amount,
			refund_reason = :refund_reason,
			refund_rejection_reason = :refund_rejection_reason,
			notes = :notes
		WHERE booking_id = :booking_id
	`, booking)
	if err != nil {
		return entity.Booking{}, fmt.Errorf("could not update booking: %w", err)
	}

	return booking, nil
}

// MarkCompleted transitions CONFIRMED/REFUNDED to COMPLETED with a guarded
// update. The bool reports whether this call performed the transition, so
// the completion event is published exactly once under retries.
func (r *BookingsRepository) MarkCompleted(ctx context.Context, bookingID string) (entity.Booking, bool, error) {
	var booking entity.Booking
	err := r.db.GetContext(ctx, &booking, `
		UPDATE bookings
		SET status = $2
		WHERE booking_id = $1 AND status IN ($3, $4)
		RETURNING `+bookingColumns+`
	`, bookingID, entity.BookingStatusCompleted, entity.BookingStatusConfirmed, entity.BookingStatusRefunded)
	if err == nil {
		return booking, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return entity.Booking{}, false, fmt.Errorf("could not complete booking: %w", err)
	}

	booking, err = r.Get(ctx, bookingID)
	if err != nil {
		return entity.Booking{}, false, err
	}
	if booking.Status == entity.BookingStatusCompleted {
		return booking, false, nil
	}
	return entity.Booking{}, false, fmt.Errorf("booking %s is %s: %w", bookingID, booking.Status, entity.ErrInvalidState)
}
