package log

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/sirupsen/logrus"
)

const correlationIDMetadataKey = "correlation_id"

// NewWatermill adapts a logrus entry to watermill's LoggerAdapter.
func NewWatermill(entry *logrus.Entry) *WatermillLogrusAdapter {
	return &WatermillLogrusAdapter{entry}
}

type WatermillLogrusAdapter struct {
	entry *logrus.Entry
}

func (w *WatermillLogrusAdapter) Error(msg string, err error, fields watermill.LogFields) {
	w.entry.WithError(err).WithFields(logrus.Fields(fields)).Error(msg)
}

func (w *WatermillLogrusAdapter) Info(msg string, fields watermill.LogFields) {
	w.entry.WithFields(logrus.Fields(fields)).Info(msg)
}

func (w *WatermillLogrusAdapter) Debug(msg string, fields watermill.LogFields) {
	w.entry.WithFields(logrus.Fields(fields)).Debug(msg)
}

func (w *WatermillLogrusAdapter) Trace(msg string, fields watermill.LogFields) {
	w.entry.WithFields(logrus.Fields(fields)).Trace(msg)
}

func (w *WatermillLogrusAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &WatermillLogrusAdapter{w.entry.WithFields(logrus.Fields(fields))}
}

// CorrelationPublisherDecorator stamps the caller's correlation ID into
// outgoing message metadata.
type CorrelationPublisherDecorator struct {
	message.Publisher
}

func (d CorrelationPublisherDecorator) Publish(topic string, messages ...*message.Message) error {
	for i := range messages {
		if messages[i].Metadata.Get(correlationIDMetadataKey) != "" {
			continue
		}
		messages[i].Metadata.Set(correlationIDMetadataKey, CorrelationIDFromContext(messages[i].Context()))
	}
	return d.Publisher.Publish(topic, messages...)
}

// ContextWithCorrelationFromMessage restores the correlation ID carried in
// message metadata on the consumer side.
func ContextWithCorrelationFromMessage(msg *message.Message) {
	correlationID := msg.Metadata.Get(correlationIDMetadataKey)
	if correlationID == "" {
		return
	}
	msg.SetContext(ContextWithCorrelationID(msg.Context(), correlationID))
}
