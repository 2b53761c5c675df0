// Package broker narrows the pipeline's dependency on the pub/sub system to
// the two operations every service actually needs: publish-with-key and
// consume-with-auto-commit. This package is the thin, swappable seam between
// our code and a real cluster.
package broker

import (
	"context"
	"time"
)

// PublishTimeout bounds every broker publish.
const PublishTimeout = 5 * time.Second

// Message is one broker record: a partition key (always the experiment UUID,
// for intra-experiment partition affinity), a header set (record_name and
// friends), and an opaque binary payload.
type Message struct {
	Topic   string
	Key     string
	Headers map[string]string
	Value   []byte
}

// Producer publishes messages to the broker. Implementations must be cheaply
// cloneable/shareable across concurrently-running tasks.
type Producer interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// ConsumedMessage is a single delivery handed to a Consumer callback.
type ConsumedMessage struct {
	Topic   string
	Key     string
	Headers map[string]string
	Value   []byte
}

// Consumer repeatedly delivers messages from one or more topics with
// auto-commit semantics (at-least-once; no replay, no durable offsets owned
// by this project). Consume blocks until ctx is canceled or an unrecoverable
// broker error occurs.
type Consumer interface {
	Consume(ctx context.Context, handle func(ConsumedMessage) error) error
	Close() error
}

// Header returns the value of key in hdrs, or "" if absent.
func Header(hdrs map[string]string, key string) string {
	if hdrs == nil {
		return ""
	}
	return hdrs[key]
}
