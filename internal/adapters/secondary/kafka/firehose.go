package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/gatherly/event-chat/internal/core/domain"
	"github.com/gatherly/event-chat/internal/core/ports"
)

// Firehose publishes every accepted message to a Kafka topic for downstream
// consumers (moderation, analytics, archival). Messages are keyed by room ID
// so a single room stays ordered within its partition.
type Firehose struct {
	writer *kafka.Writer
}

// Ensure Firehose implements the ports.Firehose interface.
var _ ports.Firehose = (*Firehose)(nil)

// NewFirehose creates a firehose publisher for the given brokers and topic.
func NewFirehose(brokers []string, topic string) *Firehose {
	return &Firehose{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// Publish writes one message to the topic.
func (f *Firehose) Publish(ctx context.Context, msg domain.Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("firehose marshal: %w", err)
	}

	err = f.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.RoomID),
		Value: value,
		Time:  msg.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("firehose write: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (f *Firehose) Close() error {
	return f.writer.Close()
}

// NopFirehose discards everything. Used when no brokers are configured.
type NopFirehose struct{}

var _ ports.Firehose = NopFirehose{}

func (NopFirehose) Publish(context.Context, domain.Message) error { return nil }
func (NopFirehose) Close() error                                  { return nil }
