package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventHeader struct {
	ID             string    `json:"id"`
	PublishedAt    time.Time `json:"published_at"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
}

func NewEventHeader() EventHeader {
	return EventHeader{
		ID:          uuid.NewString(),
		PublishedAt: time.Now().UTC(),
	}
}

func NewEventHeaderWithIdempotencyKey(idempotencyKey string) EventHeader {
	header := NewEventHeader()
	header.IdempotencyKey = idempotencyKey
	return header
}

// DomainEvent is implemented by everything published on the lifecycle
// topics; the name doubles as the logical topic.
type DomainEvent interface {
	EventName() string
}

type BookingCreated struct {
	Header  EventHeader       `json:"header"`
	Booking BookingProjection `json:"booking"`
}

func (BookingCreated) EventName() string { return "booking.created" }

type BookingCancelled struct {
	Header  EventHeader       `json:"header"`
	Booking BookingProjection `json:"booking"`
}

func (BookingCancelled) EventName() string { return "booking.cancelled" }

type RefundRequested struct {
	Header  EventHeader       `json:"header"`
	Booking BookingProjection `json:"booking"`
	Reason  string            `json:"reason"`
	Amount  decimal.Decimal   `json:"amount"`
}

func (RefundRequested) EventName() string { return "refund.requested" }

type RefundApproved struct {
	Header  EventHeader       `json:"header"`
	Booking BookingProjection `json:"booking"`
	Amount  decimal.Decimal   `json:"amount"`
}

func (RefundApproved) EventName() string { return "refund.approved" }

type RefundRejected struct {
	Header  EventHeader       `json:"header"`
	Booking BookingProjection `json:"booking"`
	Reason  string            `json:"reason"`
}

func (RefundRejected) EventName() string { return "refund.rejected" }

type BookingCheckedIn struct {
	Header     EventHeader `json:"header"`
	BookingID  string      `json:"booking_id"`
	EventID    string      `json:"event_id"`
	UserID     string      `json:"user_id"`
	ScannerID  string      `json:"scanner_id"`
	DeviceInfo string      `json:"device_info"`
	Location   string      `json:"location"`
	Timestamp  time.Time   `json:"timestamp"`
}

func (BookingCheckedIn) EventName() string { return "booking.checked-in" }
