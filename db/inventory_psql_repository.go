package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"ticketing/entity"
)

// InventoryRepository owns the capacity/available counters. Reserve and
// release are single compare-and-swap statements, so concurrent callers on
// the same unit serialize on the row without an explicit lock and the sum of
// successful reservations can never exceed capacity.
type InventoryRepository struct {
	db *sqlx.DB
}

func NewInventoryRepository(db *sqlx.DB) *InventoryRepository {
	if db == nil {
		panic("db is nil")
	}
	return &InventoryRepository{db: db}
}

type execer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// ReserveTicketType atomically decrements a ticket type's availability and
// returns the post-decrement snapshot.
func (r *InventoryRepository) ReserveTicketType(ctx context.Context, ticketTypeID string, qty int) (entity.InventorySnapshot, error) {
	return r.reserveTicketType(ctx, r.db, ticketTypeID, qty)
}

func (r *InventoryRepository) reserveTicketType(ctx context.Context, q execer, ticketTypeID string, qty int) (entity.InventorySnapshot, error) {
	if qty <= 0 {
		return entity.InventorySnapshot{}, entity.ErrInvalidQuantity
	}

	var snapshot entity.InventorySnapshot
	err := q.GetContext(ctx, &snapshot, `
		UPDATE ticket_types
		SET available = available - $2
		WHERE ticket_type_id = $1 AND is_active AND available >= $2
		RETURNING ticket_type_id AS unit_id, name AS unit_name, capacity, available
	`, ticketTypeID, qty)
	if err == nil {
		return snapshot, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return entity.InventorySnapshot{}, fmt.Errorf("could not reserve ticket type %s: %w", ticketTypeID, err)
	}

	return entity.InventorySnapshot{}, r.classifyTicketTypeFailure(ctx, q, ticketTypeID, qty)
}

func (r *InventoryRepository) classifyTicketTypeFailure(ctx context.Context, q execer, ticketTypeID string, qty int) error {
	var ticketType entity.TicketType
	err := q.GetContext(ctx, &ticketType, `
		SELECT ticket_type_id, event_id, name, description, price, capacity, available, is_active
		FROM ticket_types
		WHERE ticket_type_id = $1
	`, ticketTypeID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("ticket type %s: %w", ticketTypeID, entity.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("could not classify reservation failure: %w", err)
	}
	if !ticketType.IsActive {
		return fmt.Errorf("ticket type %q: %w", ticketType.Name, entity.ErrInactive)
	}
	return entity.InsufficientInventoryError{
		UnitName:  ticketType.Name,
		Available: ticketType.Available,
		Requested: qty,
	}
}

// ReserveEvent atomically decrements the event-level availability. It
// refuses when the event sells through active ticket types; event counters
// are a projection then, not a source of truth.
func (r *InventoryRepository) ReserveEvent(ctx context.Context, eventID string, qty int) (entity.InventorySnapshot, error) {
	return r.reserveEvent(ctx, r.db, eventID, qty)
}

func (r *InventoryRepository) reserveEvent(ctx context.Context, q execer, eventID string, qty int) (entity.InventorySnapshot, error) {
	if qty <= 0 {
		return entity.InventorySnapshot{}, entity.ErrInvalidQuantity
	}

	var snapshot entity.InventorySnapshot
	err := q.GetContext(ctx, &snapshot, `
		UPDATE events e
		SET available = available - $2
		WHERE e.event_id = $1 AND e.is_active AND e.available >= $2
			AND NOT EXISTS (
				SELECT 1 FROM ticket_types tt
				WHERE tt.event_id = e.event_id AND tt.is_active
			)
		RETURNING event_id AS unit_id, name AS unit_name, capacity, available
	`, eventID, qty)
	if err == nil {
		return snapshot, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return entity.InventorySnapshot{}, fmt.Errorf("could not reserve event %s: %w", eventID, err)
	}

	return entity.InventorySnapshot{}, r.classifyEventFailure(ctx, q, eventID, qty)
}

func (r *InventoryRepository) classifyEventFailure(ctx context.Context, q execer, eventID string, qty int) error {
	var event entity.Event
	err := q.GetContext(ctx, &event, `
		SELECT event_id, name, starts_at, capacity, available, price, is_active
		FROM events
		WHERE event_id = $1
	`, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("event %s: %w", eventID, entity.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("could not classify reservation failure: %w", err)
	}
	if !event.IsActive {
		return fmt.Errorf("event %q: %w", event.Name, entity.ErrInactive)
	}

	var activeTypes int
	if err := q.GetContext(ctx, &activeTypes, `
		SELECT COUNT(*) FROM ticket_types WHERE event_id = $1 AND is_active
	`, eventID); err != nil {
		return fmt.Errorf("could not classify reservation failure: %w", err)
	}
	if activeTypes > 0 {
		return fmt.Errorf("event %q sells through ticket types, reserve a ticket type: %w", event.Name, entity.ErrInvalidState)
	}

	return entity.InsufficientInventoryError{
		UnitName:  event.Name,
		Available: event.Available,
		Requested: qty,
	}
}

// ReleaseTicketType returns qty units, clamped so available never exceeds
// capacity even under a double release.
func (r *InventoryRepository) ReleaseTicketType(ctx context.Context, ticketTypeID string, qty int) (entity.InventorySnapshot, error) {
	if qty <= 0 {
		return entity.InventorySnapshot{}, entity.ErrInvalidQuantity
	}

	var snapshot entity.InventorySnapshot
	err := r.db.GetContext(ctx, &snapshot, `
		UPDATE ticket_types
		SET available = LEAST(capacity, available + $2)
		WHERE ticket_type_id = $1
		RETURNING ticket_type_id AS unit_id, name AS unit_name, capacity, available
	`, ticketTypeID, qty)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.InventorySnapshot{}, fmt.Errorf("ticket type %s: %w", ticketTypeID, entity.ErrNotFound)
	}
	if err != nil {
		return entity.InventorySnapshot{}, fmt.Errorf("could not release ticket type %s: %w", ticketTypeID, err)
	}
	return snapshot, nil
}

func (r *InventoryRepository) ReleaseEvent(ctx context.Context, eventID string, qty int) (entity.InventorySnapshot, error) {
	if qty <= 0 {
		return entity.InventorySnapshot{}, entity.ErrInvalidQuantity
	}

	var snapshot entity.InventorySnapshot
	err := r.db.GetContext(ctx, &snapshot, `
		UPDATE events
		SET available = LEAST(capacity, available + $2)
		WHERE event_id = $1
		RETURNING event_id AS unit_id, name AS unit_name, capacity, available
	`, eventID, qty)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.InventorySnapshot{}, fmt.Errorf("event %s: %w", eventID, entity.ErrNotFound)
	}
	if err != nil {
		return entity.InventorySnapshot{}, fmt.Errorf("could not release event %s: %w", eventID, err)
	}
	return snapshot, nil
}

func (r *InventoryRepository) GetEvent(ctx context.Context, eventID string) (entity.Event, error) {
	var event entity.Event
	err := r.db.GetContext(ctx, &event, `
		SELECT event_id, name, starts_at, capacity, available, price, is_active
		FROM events
		WHERE event_id = $1
	`, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Event{}, fmt.Errorf("event %s: %w", eventID, entity.ErrNotFound)
	}
	if err != nil {
		return entity.Event{}, fmt.Errorf("could not get event: %w", err)
	}
	return event, nil
}

func (r *InventoryRepository) GetTicketType(ctx context.Context, ticketTypeID string) (entity.TicketType, error) {
	var ticketType entity.TicketType
	err := r.db.GetContext(ctx, &ticketType, `
		SELECT ticket_type_id, event_id, name, description, price, capacity, available, is_active
		FROM ticket_types
		WHERE ticket_type_id = $1
	`, ticketTypeID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.TicketType{}, fmt.Errorf("ticket type %s: %w", ticketTypeID, entity.ErrNotFound)
	}
	if err != nil {
		return entity.TicketType{}, fmt.Errorf("could not get ticket type: %w", err)
	}
	return ticketType, nil
}

func (r *InventoryRepository) StoreEvent(ctx context.Context, event entity.Event) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO events (event_id, name, starts_at, capacity, available, price, is_active)
		VALUES (:event_id, :name, :starts_at, :capacity, :available, :price, :is_active)
		ON CONFLICT DO NOTHING
	`, event)
	if err != nil {
		return fmt.Errorf("could not store event: %w", err)
	}
	return nil
}

func (r *InventoryRepository) StoreTicketType(ctx context.Context, ticketType entity.TicketType) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO ticket_types (ticket_type_id, event_id, name, description, price, capacity, available, is_active)
		VALUES (:ticket_type_id, :event_id, :name, :description, :price, :capacity, :available, :is_active)
	`, ticketType)
	if err != nil {
		return fmt.Errorf("could not store ticket type: %w", err)
	}
	return nil
}

// ResizeTicketType changes a ticket type's capacity with exact accounting:
// growth adds the delta to available, shrink subtracts it, floored at zero.
// Outstanding reservations are never silently rescaled.
func (r *InventoryRepository) ResizeTicketType(ctx context.Context, ticketTypeID string, newCapacity int) (entity.TicketType, error) {
	if newCapacity <= 0 {
		return entity.TicketType{}, entity.ErrInvalidQuantity
	}

	var ticketType entity.TicketType
	err := r.db.GetContext(ctx, &ticketType, `
		UPDATE ticket_types
		SET capacity = $2,
			available = GREATEST(0, LEAST($2, available + ($2 - capacity)))
		WHERE ticket_type_id = $1
		RETURNING ticket_type_id, event_id, name, description, price, capacity, available, is_active
	`, ticketTypeID, newCapacity)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.TicketType{}, fmt.Errorf("ticket type %s: %w", ticketTypeID, entity.ErrNotFound)
	}
	if err != nil {
		return entity.TicketType{}, fmt.Errorf("could not resize ticket type: %w", err)
	}
	return ticketType, nil
}

func (r *InventoryRepository) DeactivateTicketType(ctx context.Context, ticketTypeID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE ticket_types SET is_active = FALSE WHERE ticket_type_id = $1
	`, ticketTypeID)
	if err != nil {
		return fmt.Errorf("could not deactivate ticket type: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("ticket type %s: %w", ticketTypeID, entity.ErrNotFound)
	}
	return nil
}

func (r *InventoryRepository) ActiveTicketTypes(ctx context.Context, eventID string) ([]entity.TicketType, error) {
	var ticketTypes []entity.TicketType
	err := r.db.SelectContext(ctx, &ticketTypes, `
		SELECT ticket_type_id, event_id, name, description, price, capacity, available, is_active
		FROM ticket_types
		WHERE event_id = $1 AND is_active
		ORDER BY name
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("could not list ticket types: %w", err)
	}
	return ticketTypes, nil
}

// EventTotals aggregates the event's active ticket types into display
// counters. A pure projection: nothing is written back.
func (r *InventoryRepository) EventTotals(ctx context.Context, eventID string) (entity.EventTotals, error) {
	event, err := r.GetEvent(ctx, eventID)
	if err != nil {
		return entity.EventTotals{}, err
	}

	ticketTypes, err := r.ActiveTicketTypes(ctx, eventID)
	if err != nil {
		return entity.EventTotals{}, err
	}

	if len(ticketTypes) == 0 {
		return entity.EventTotals{
			EventID:      event.EventID,
			Capacity:     event.Capacity,
			Available:    event.Available,
			DisplayPrice: event.Price,
		}, nil
	}

	return entity.EventTotals{
		EventID:      event.EventID,
		Capacity:     lo.SumBy(ticketTypes, func(tt entity.TicketType) int { return tt.Capacity }),
		Available:    lo.SumBy(ticketTypes, func(tt entity.TicketType) int { return tt.Available }),
		DisplayPrice: displayPrice(ticketTypes),
		FromTypes:    true,
	}, nil
}

// displayPrice prefers the canonical STANDARD type, else the lowest price.
func displayPrice(ticketTypes []entity.TicketType) decimal.Decimal {
	standard, ok := lo.Find(ticketTypes, func(tt entity.TicketType) bool {
		return tt.IsStandard()
	})
	if ok {
		return standard.Price
	}

	cheapest := lo.MinBy(ticketTypes, func(a, b entity.TicketType) bool {
		return a.Price.LessThan(b.Price)
	})
	return cheapest.Price
}
