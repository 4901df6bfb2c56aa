package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Ticket is one admission unit of a booking, independently scannable.
// Invariant: IsUsed=false implies ScanCount=0 and UsedAt=nil; a ticket is
// admitted at most once regardless of how many scan attempts target it.
type Ticket struct {
	TicketID         string     `db:"ticket_id" json:"ticket_id"`
	BookingID        string     `db:"booking_id" json:"booking_id"`
	ConfirmationCode string     `db:"confirmation_code" json:"confirmation_code"`
	UniqueCode       string     `db:"unique_code" json:"unique_code"`
	TicketIndex      int        `db:"ticket_index" json:"ticket_index"`
	IsUsed           bool       `db:"is_used" json:"is_used"`
	UsedAt           *time.Time `db:"used_at" json:"used_at,omitempty"`
	ScanCount        int        `db:"scan_count" json:"scan_count"`
	ExpiresAt        time.Time  `db:"expires_at" json:"expires_at"`
	InvalidatedAt    *time.Time `db:"invalidated_at" json:"invalidated_at,omitempty"`
}

const uniqueCodePrefix = "EVT-"

// NewUniqueCode returns a globally unique gate code in the EVT-XXXXX-XXXXX
// format printed on tickets.
func NewUniqueCode() string {
	segment := func() string {
		return strings.ToUpper(uuid.NewString()[:5])
	}
	return uniqueCodePrefix + segment() + "-" + segment()
}

func IsUniqueCode(identifier string) bool {
	return strings.HasPrefix(identifier, uniqueCodePrefix)
}

func IsConfirmationCode(identifier string) bool {
	return strings.HasPrefix(identifier, "BK")
}

// Scannable reports whether the ticket can still be admitted at the given
// instant. It mirrors the scan predicate used in the database.
func (t Ticket) Scannable(now time.Time) bool {
	return !t.IsUsed && t.InvalidatedAt == nil && now.Before(t.ExpiresAt)
}
