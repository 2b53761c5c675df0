package loadgen

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/landaudiogo/cc-assignment-2023/internal/cache"
)

// broadcastCapacity is the bounded channel capacity between the generator
// and each dispatcher.
const broadcastCapacity = 1000

// Broadcaster fans batches out to every subscribed dispatcher, preserving
// intra-batch order at the generator side: each subscriber gets its own
// bounded channel, so one slow dispatcher only ever blocks its own slot.
type Broadcaster struct {
	mu   sync.Mutex
	subs []chan Batch
}

// NewBroadcaster returns an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// Subscribe registers a new dispatcher and returns its receive channel.
func (b *Broadcaster) Subscribe() <-chan Batch {
	ch := make(chan Batch, broadcastCapacity)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Broadcast delivers batch to every subscriber, blocking on a full channel
// (the intended back-pressure path) until ctx is canceled.
func (b *Broadcaster) Broadcast(ctx context.Context, batch Batch) error {
	b.mu.Lock()
	subs := append([]chan Batch(nil), b.subs...)
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- batch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Generator is the batch-generation stage: it blocks until the document set
// is non-empty, then emits one batch per second, paced by a rate.Limiter, to
// every subscribed dispatcher.
type Generator struct {
	Store       *cache.Store
	Config      GeneratorConfig
	Broadcaster *Broadcaster
	Rand        *rand.Rand

	// StableRateDuration, if > 0, bounds how long Run generates batches for
	// (the --stable-rate-duration CLI flag); zero means run until ctx is
	// canceled.
	StableRateDuration time.Duration

	// Limiter paces batch emission at one per second; nil constructs the
	// default rate.NewLimiter(rate.Every(time.Second), 1).
	Limiter *rate.Limiter
}

// Run blocks until at least one document has been ingested, then generates
// and broadcasts one batch per second until ctx is canceled or
// StableRateDuration elapses.
func (g *Generator) Run(ctx context.Context) error {
	select {
	case <-g.Store.Ready():
	case <-ctx.Done():
		return ctx.Err()
	}

	limiter := g.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(time.Second), 1)
	}

	var deadline <-chan time.Time
	if g.StableRateDuration > 0 {
		timer := time.NewTimer(g.StableRateDuration)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		select {
		case <-deadline:
			return nil
		default:
		}

		batch := NewBatch(g.Store, g.Config, g.Rand)
		if len(batch) == 0 {
			continue
		}
		if err := g.Broadcaster.Broadcast(ctx, batch); err != nil {
			return err
		}
	}
}
