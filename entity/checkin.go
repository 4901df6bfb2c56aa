package entity

import "time"

// CheckInRecord is an append-only audit entry created for every successful
// admission. Never mutated.
type CheckInRecord struct {
	CheckInID        string    `db:"check_in_id" json:"check_in_id"`
	BookingID        string    `db:"booking_id" json:"booking_id"`
	ConfirmationCode string    `db:"confirmation_code" json:"confirmation_code"`
	ScannerID        string    `db:"scanner_id" json:"scanner_id"`
	ScannerType      string    `db:"scanner_type" json:"scanner_type"`
	Location         string    `db:"location" json:"location"`
	Quantity         int       `db:"quantity" json:"quantity"`
	CheckedInAt      time.Time `db:"checked_in_at" json:"checked_in_at"`
}

// ScanResult describes a successful single-ticket admission.
type ScanResult struct {
	Ticket           Ticket `json:"ticket"`
	BookingID        string `json:"booking_id"`
	ConfirmationCode string `json:"confirmation_code"`
	RemainingUnused  int    `json:"remaining_unused"`
	BookingCompleted bool   `json:"booking_completed"`
}

// BatchScanResult summarizes a scan of several tickets under one
// confirmation code.
type BatchScanResult struct {
	ConfirmationCode string   `json:"confirmation_code"`
	TotalTickets     int      `json:"total_tickets"`
	Scanned          int      `json:"scanned"`
	Remaining        int      `json:"remaining"`
	ScannedCodes     []string `json:"scanned_codes"`
	BookingCompleted bool     `json:"booking_completed"`
}

// DailyCheckInStats aggregates admissions for one calendar day, broken down
// by scanner.
type DailyCheckInStats struct {
	Day       time.Time      `json:"day"`
	Total     int            `json:"total"`
	ByScanner map[string]int `json:"by_scanner"`
}

// BookingTicketStats is the advisory used/unused breakdown for a booking.
type BookingTicketStats struct {
	ConfirmationCode string `json:"confirmation_code"`
	BookingID        string `json:"booking_id"`
	TotalTickets     int    `json:"total_tickets"`
	UsedTickets      int    `json:"used_tickets"`
	UnusedTickets    int    `json:"unused_tickets"`
}
