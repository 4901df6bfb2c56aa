package command

import (
	"context"

	"ticketing/entity"
)

type NotificationService interface {
	SendTicketsConfirmation(ctx context.Context, cmd entity.SendTicketsConfirmation) error
}

type PaymentService interface {
	RefundPayment(ctx context.Context, cmd entity.RefundPayment) error
}

type Handler struct {
	notificationService NotificationService
	paymentService      PaymentService
}

func NewHandler(
	notificationService NotificationService,
	paymentService PaymentService,
) Handler {
	if notificationService == nil {
		panic("missing notificationService")
	}
	if paymentService == nil {
		panic("missing paymentService")
	}

	return Handler{
		notificationService: notificationService,
		paymentService:      paymentService,
	}
}
