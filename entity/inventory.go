package entity

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Event is a sellable unit. Its capacity/available counters are authoritative
// only while the event has no active ticket types; after the first ticket type
// is created they become a projection over the ticket types (EventTotals).
type Event struct {
	EventID   string          `db:"event_id" json:"event_id"`
	Name      string          `db:"name" json:"name"`
	StartsAt  time.Time       `db:"starts_at" json:"starts_at"`
	Capacity  int             `db:"capacity" json:"capacity"`
	Available int             `db:"available" json:"available"`
	Price     decimal.Decimal `db:"price" json:"price"`
	IsActive  bool            `db:"is_active" json:"is_active"`
}

// TicketType is a sellable unit scoped to one event.
type TicketType struct {
	TicketTypeID string          `db:"ticket_type_id" json:"ticket_type_id"`
	EventID      string          `db:"event_id" json:"event_id"`
	Name         string          `db:"name" json:"name"`
	Description  string          `db:"description" json:"description"`
	Price        decimal.Decimal `db:"price" json:"price"`
	Capacity     int             `db:"capacity" json:"capacity"`
	Available    int             `db:"available" json:"available"`
	IsActive     bool            `db:"is_active" json:"is_active"`
}

// IsStandard reports whether this is the canonical base type used to derive
// an event's display price.
func (tt TicketType) IsStandard() bool {
	return strings.EqualFold(tt.Name, "STANDARD")
}

// InventorySnapshot is the post-operation state returned by reserve/release.
type InventorySnapshot struct {
	UnitID    string `db:"unit_id" json:"unit_id"`
	UnitName  string `db:"unit_name" json:"unit_name"`
	Capacity  int    `db:"capacity" json:"capacity"`
	Available int    `db:"available" json:"available"`
}

// EventTotals is the read-through aggregate over an event's active ticket
// types. DisplayPrice is the STANDARD type's price when such a type exists,
// otherwise the lowest active price.
type EventTotals struct {
	EventID      string          `json:"event_id"`
	Capacity     int             `json:"capacity"`
	Available    int             `json:"available"`
	DisplayPrice decimal.Decimal `json:"display_price"`
	FromTypes    bool            `json:"from_ticket_types"`
}
