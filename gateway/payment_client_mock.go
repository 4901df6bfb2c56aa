package gateway

import (
	"context"
	"sync"

	"ticketing/entity"
)

type PaymentMock struct {
	lock    sync.Mutex
	Refunds map[string]entity.RefundPayment
}

func (c *PaymentMock) RefundPayment(_ context.Context, cmd entity.RefundPayment) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.Refunds == nil {
		c.Refunds = make(map[string]entity.RefundPayment)
	}

	c.Refunds[cmd.BookingID] = cmd

	return nil
}

func (c *PaymentMock) RefundFor(bookingID string) (entity.RefundPayment, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	cmd, ok := c.Refunds[bookingID]
	return cmd, ok
}
