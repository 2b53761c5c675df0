package broker

import (
	"context"
	"sync"
)

// Memory is an in-process Producer+Consumer used by tests that want real
// publish/consume semantics without a live cluster. It fans every published
// message out to every registered consumer on the same topic, preserving
// per-producer publish order.
type Memory struct {
	mu     sync.Mutex
	topics map[string][]chan ConsumedMessage
	closed bool
}

// NewMemory returns an empty in-process broker.
func NewMemory() *Memory {
	return &Memory{topics: make(map[string][]chan ConsumedMessage)}
}

func (m *Memory) Publish(ctx context.Context, msg Message) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return context.Canceled
	}
	subs := append([]chan ConsumedMessage(nil), m.topics[msg.Topic]...)
	m.mu.Unlock()

	cm := ConsumedMessage{Topic: msg.Topic, Key: msg.Key, Headers: msg.Headers, Value: msg.Value}
	for _, ch := range subs {
		// Sending outside the lock keeps a full subscriber channel from
		// blocking Subscribe/Close; it only blocks this publisher.
		select {
		case ch <- cm:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Subscribe returns a Consumer bound to topic. Each Subscribe call creates an
// independent channel, so every subscriber sees every message.
func (m *Memory) Subscribe(topic string) *memoryConsumer {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan ConsumedMessage, 1000) // bounded, to exert backpressure on a slow subscriber
	m.topics[topic] = append(m.topics[topic], ch)
	return &memoryConsumer{ch: ch}
}

type memoryConsumer struct {
	ch chan ConsumedMessage
}

func (c *memoryConsumer) Consume(ctx context.Context, handle func(ConsumedMessage) error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-c.ch:
			if !ok {
				return nil
			}
			_ = handle(m) // auto-commit: handler errors never block delivery
		}
	}
}

func (c *memoryConsumer) Close() error {
	return nil
}
