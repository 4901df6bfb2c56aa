package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v3"
	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingStatusPending         BookingStatus = "PENDING"
	BookingStatusConfirmed       BookingStatus = "CONFIRMED"
	BookingStatusCancelled       BookingStatus = "CANCELLED"
	BookingStatusRefundRequested BookingStatus = "REFUND_REQUESTED"
	BookingStatusRefunded        BookingStatus = "REFUNDED"
	BookingStatusRefundRejected  BookingStatus = "REFUND_REJECTED"
	BookingStatusCompleted       BookingStatus = "COMPLETED"
)

// Booking is a purchase of Quantity admission units against one sellable
// unit. Rows are never deleted; cancellation and refunds are additive state.
type Booking struct {
	BookingID             string              `db:"booking_id" json:"booking_id"`
	EventID               string              `db:"event_id" json:"event_id"`
	TicketTypeID          *string             `db:"ticket_type_id" json:"ticket_type_id,omitempty"`
	UserID                string              `db:"user_id" json:"user_id"`
	Quantity              int                 `db:"quantity" json:"quantity"`
	TotalPrice            decimal.Decimal     `db:"total_price" json:"total_price"`
	Status                BookingStatus       `db:"status" json:"status"`
	ConfirmationCode      string              `db:"confirmation_code" json:"confirmation_code"`
	BookingDate           time.Time           `db:"booking_date" json:"booking_date"`
	CancelledDate         *time.Time          `db:"cancelled_date" json:"cancelled_date,omitempty"`
	RefundRequestDate     *time.Time          `db:"refund_request_date" json:"refund_request_date,omitempty"`
	RefundProcessedDate   *time.Time          `db:"refund_processed_date" json:"refund_processed_date,omitempty"`
	RefundAmount          decimal.NullDecimal `db:"refund_amount" json:"refund_amount,omitempty"`
	RefundReason          *string             `db:"refund_reason" json:"refund_reason,omitempty"`
	RefundRejectionReason *string             `db:"refund_rejection_reason" json:"refund_rejection_reason,omitempty"`
	Notes                 string              `db:"notes" json:"notes"`
}

// NewConfirmationCode returns a "BK"-prefixed code; the prefix is relied on
// by the scan identifier resolution.
func NewConfirmationCode(now time.Time) string {
	suffix := strings.ToUpper(shortuuid.New())[:4]
	return fmt.Sprintf("BK%d%s", now.UnixMilli(), suffix)
}

// CanTransition reports whether moving to target is a legal step of the
// booking lifecycle.
func (b Booking) CanTransition(target BookingStatus) bool {
	switch target {
	case BookingStatusCancelled:
		return b.Status == BookingStatusConfirmed || b.Status == BookingStatusRefundRequested
	case BookingStatusRefundRequested:
		return b.Status == BookingStatusConfirmed
	case BookingStatusRefunded, BookingStatusRefundRejected:
		return b.Status == BookingStatusRefundRequested
	case BookingStatusCompleted:
		return b.Status == BookingStatusConfirmed || b.Status == BookingStatusRefunded
	default:
		return false
	}
}

// Projection is the flattened form published on lifecycle topics.
func (b Booking) Projection() BookingProjection {
	return BookingProjection{
		BookingID:           b.BookingID,
		EventID:             b.EventID,
		TicketTypeID:        b.TicketTypeID,
		UserID:              b.UserID,
		Quantity:            b.Quantity,
		TotalPrice:          b.TotalPrice,
		Status:              string(b.Status),
		ConfirmationCode:    b.ConfirmationCode,
		BookingDate:         b.BookingDate,
		CancelledDate:       b.CancelledDate,
		RefundRequestDate:   b.RefundRequestDate,
		RefundProcessedDate: b.RefundProcessedDate,
	}
}

type BookingProjection struct {
	BookingID           string          `json:"booking_id"`
	EventID             string          `json:"event_id"`
	TicketTypeID        *string         `json:"ticket_type_id,omitempty"`
	UserID              string          `json:"user_id"`
	Quantity            int             `json:"quantity"`
	TotalPrice          decimal.Decimal `json:"total_price"`
	Status              string          `json:"status"`
	ConfirmationCode    string          `json:"confirmation_code"`
	BookingDate         time.Time       `json:"booking_date"`
	CancelledDate       *time.Time      `json:"cancelled_date,omitempty"`
	RefundRequestDate   *time.Time      `json:"refund_request_date,omitempty"`
	RefundProcessedDate *time.Time      `json:"refund_processed_date,omitempty"`
}
