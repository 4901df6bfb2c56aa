package command

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"ticketing/entity"
	"ticketing/pkg/log"
)

func (h Handler) RefundPaymentHandler() cqrs.CommandHandler {
	return cqrs.NewCommandHandler(
		"RefundPaymentHandler",
		func(ctx context.Context, cmd *entity.RefundPayment) error {
			log.FromContext(ctx).Infof("RefundPaymentHandler: %s", cmd.BookingID)

			return h.paymentService.RefundPayment(ctx, *cmd)
		},
	)
}
