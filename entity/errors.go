package entity

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrInactive              = errors.New("sellable unit is inactive")
	ErrInvalidQuantity       = errors.New("quantity must be positive")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrInvalidState          = errors.New("invalid booking state for requested transition")
	ErrDeadlinePassed        = errors.New("refund deadline has passed")
	ErrAlreadyUsed           = errors.New("ticket already used")
	ErrExpired               = errors.New("ticket expired")
	ErrDownstreamUnavailable = errors.New("downstream service unavailable")
)

// InsufficientInventoryError carries enough detail to render a user-facing
// message like `only 3 left for "VIP"`. It matches ErrInsufficientInventory
// under errors.Is.
type InsufficientInventoryError struct {
	UnitName  string
	Available int
	Requested int
}

func (e InsufficientInventoryError) Error() string {
	return fmt.Sprintf("only %d ticket(s) left for %q, requested %d", e.Available, e.UnitName, e.Requested)
}

func (e InsufficientInventoryError) Is(target error) bool {
	return target == ErrInsufficientInventory
}
