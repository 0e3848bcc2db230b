package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/efreitasn/nmsbook/internal/domain"
)

// Publisher writes engine events to a Kafka topic. Messages are keyed
// by symbol so a partitioned topic still preserves per-symbol order.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a publisher for the given brokers and topic.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Publish writes one event to the topic.
func (p *Publisher) Publish(ctx context.Context, ev domain.Event) error {
	value, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.Symbol),
		Value: value,
	})
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// EncodeEvent renders an event as the JSON payload published to Kafka
// and pushed over WebSocket.
func EncodeEvent(ev domain.Event) ([]byte, error) {
	value, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event %d: %w", ev.Sequence, err)
	}
	return value, nil
}
