package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// SendTicketsConfirmation asks the notification collaborator to deliver the
// issued tickets. Fire and forget: delivery failure never reverts a booking.
type SendTicketsConfirmation struct {
	Header           EventHeader     `json:"header"`
	BookingID        string          `json:"booking_id"`
	ConfirmationCode string          `json:"confirmation_code"`
	UserID           string          `json:"user_id"`
	Quantity         int             `json:"quantity"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	UniqueCodes      []string        `json:"unique_codes"`
}

// RefundPayment asks the payment collaborator to execute an approved refund.
// The payment result is consumed, never computed here.
type RefundPayment struct {
	Header      EventHeader     `json:"header"`
	BookingID   string          `json:"booking_id"`
	UserID      string          `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	RequestedAt time.Time       `json:"requested_at"`
}
