package broker

import (
	"context"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"
)

// KafkaProducer publishes via a shared *kafka.Writer. Writers are safe for
// concurrent use and cheap to pass by pointer, so one producer can be shared
// across tasks.
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer dials brokers lazily; the first Publish call establishes
// the connection. An unreachable broker list is only discovered at that
// point, so connection failure is fatal to the calling process rather than
// to construction.
func NewKafkaProducer(brokers []string) *KafkaProducer {
	return &KafkaProducer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *KafkaProducer) Publish(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, PublishTimeout)
	defer cancel()

	headers := make([]kafka.Header, 0, len(msg.Headers))
	for k, v := range msg.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   msg.Topic,
		Key:     []byte(msg.Key),
		Value:   msg.Value,
		Headers: headers,
	})
	if err != nil {
		return fmt.Errorf("broker: publishing to %q: %w", msg.Topic, err)
	}
	return nil
}

func (p *KafkaProducer) Close() error { return p.writer.Close() }

// KafkaConsumer wraps a *kafka.Reader configured for auto-commit consumption
// of a single topic within a consumer group.
type KafkaConsumer struct {
	reader *kafka.Reader
}

// NewKafkaConsumer joins groupID on topic. CommitInterval > 0 enables
// background auto-commit, so a slow or crashed handler never blocks offset
// advancement indefinitely -- this is an at-least-once, no-replay consumer.
func NewKafkaConsumer(brokers []string, groupID, topic string) *KafkaConsumer {
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			GroupID:        groupID,
			Topic:          topic,
			CommitInterval: time.Second,
			MinBytes:       1,
			MaxBytes:       10e6,
		}),
	}
}

func (c *KafkaConsumer) Consume(ctx context.Context, handle func(ConsumedMessage) error) error {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("broker: reading from %q: %w", c.reader.Config().Topic, err)
		}

		headers := make(map[string]string, len(m.Headers))
		for _, h := range m.Headers {
			headers[h.Key] = string(h.Value)
		}

		if err := handle(ConsumedMessage{
			Topic:   m.Topic,
			Key:     string(m.Key),
			Headers: headers,
			Value:   m.Value,
		}); err != nil {
			// Auto-commit semantics: a handler error is ignored here and
			// the message is still considered consumed. We never block
			// offset advancement on handler success.
			continue
		}
	}
}

func (c *KafkaConsumer) Close() error { return c.reader.Close() }
