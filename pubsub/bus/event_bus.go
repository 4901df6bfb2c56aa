package bus

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"

	"ticketing/entity"
)

// EventMarshaler names events by their logical topic (booking.created,
// refund.approved, ...) instead of the struct name, so the wire format
// matches the published contract.
var EventMarshaler = cqrs.JSONMarshaler{
	GenerateName: func(v interface{}) string {
		if event, ok := v.(entity.DomainEvent); ok {
			return event.EventName()
		}
		return cqrs.StructName(v)
	},
}

func NewEventBus(pub message.Publisher) (*cqrs.EventBus, error) {
	return cqrs.NewEventBusWithConfig(pub, cqrs.EventBusConfig{
		GeneratePublishTopic: func(params cqrs.GenerateEventPublishTopicParams) (string, error) {
			event, ok := params.Event.(entity.DomainEvent)
			if !ok {
				return "", fmt.Errorf("invalid event type: %T doesn't implement entity.DomainEvent", params.Event)
			}
			return event.EventName(), nil
		},
		Marshaler: EventMarshaler,
	})
}
