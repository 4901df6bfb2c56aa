package command

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"ticketing/entity"
	"ticketing/pkg/log"
)

func (h Handler) SendTicketsConfirmationHandler() cqrs.CommandHandler {
	return cqrs.NewCommandHandler(
		"SendTicketsConfirmationHandler",
		func(ctx context.Context, cmd *entity.SendTicketsConfirmation) error {
			log.FromContext(ctx).Infof("SendTicketsConfirmationHandler: %s", cmd.BookingID)

			return h.notificationService.SendTicketsConfirmation(ctx, *cmd)
		},
	)
}
