package gateway

import (
	"context"
	"sync"

	"ticketing/entity"
)

type NotificationMock struct {
	lock sync.Mutex

	Sent []entity.SendTicketsConfirmation
}

func (m *NotificationMock) SendTicketsConfirmation(_ context.Context, cmd entity.SendTicketsConfirmation) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.Sent = append(m.Sent, cmd)

	return nil
}

func (m *NotificationMock) SentConfirmations() []entity.SendTicketsConfirmation {
	m.lock.Lock()
	defer m.lock.Unlock()

	return append([]entity.SendTicketsConfirmation(nil), m.Sent...)
}
