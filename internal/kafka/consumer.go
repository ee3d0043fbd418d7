package kafka

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// EventHandler reacts to one decoded appointment event.
type EventHandler func(ctx context.Context, event AppointmentEvent) error

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer reads appointment events for a consumer group. Offsets are
// committed on read, so delivery is at most once per group.
type Consumer struct {
	reader messageReader
	log    zerolog.Logger
}

func NewConsumer(brokers []string, groupID, topic string, log zerolog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		Topic:             topic,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	})
	return newConsumer(reader, log.With().Str("component", "kafka_consumer").Str("topic", topic).Logger())
}

func newConsumer(reader messageReader, log zerolog.Logger) *Consumer {
	return &Consumer{reader: reader, log: log}
}

func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// Consume blocks until ctx is done or the reader fails. Malformed messages and
// handler failures are logged and skipped; a retry would need the offset
// uncommitted, which ReadMessage has already done.
func (c *Consumer) Consume(ctx context.Context, handle EventHandler) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			return err
		}

		event, err := DecodeAppointmentEvent(msg.Value)
		if err != nil {
			c.log.Warn().Err(err).Int("partition", msg.Partition).Int64("offset", msg.Offset).Msg("skipping malformed event")
			continue
		}

		if err := handle(ctx, event); err != nil {
			c.log.Error().Err(err).
				Str("appointment_id", event.AppointmentID).
				Str("event", event.Type).
				Int64("offset", msg.Offset).
				Msg("event handler failed")
		}
	}
}
