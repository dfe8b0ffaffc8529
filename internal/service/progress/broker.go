package progress

import (
	"context"
	"sync"
	"sync/atomic"

	writerModel "github.com/zhouzirui/chaptered-writer/backend/internal/model/writer"
)

// DefaultBufferSize is the default channel buffer for subscribers.
const DefaultBufferSize = 32

// Broker fans chapter progress out to the subscribers of each session.
// Publish never blocks: a subscriber whose buffer is full misses the event.
type Broker struct {
	mu         sync.RWMutex
	subs       map[string]map[chan writerModel.Progress]struct{}
	bufferSize int

	dropCount atomic.Int64
}

// NewBroker creates a broker; bufferSize <= 0 selects DefaultBufferSize.
func NewBroker(bufferSize int) *Broker {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Broker{
		subs:       make(map[string]map[chan writerModel.Progress]struct{}),
		bufferSize: bufferSize,
	}
}

// Subscribe receives the progress of sessionID until ctx is done; the channel is then closed.
func (b *Broker) Subscribe(ctx context.Context, sessionID string) <-chan writerModel.Progress {
	sub := make(chan writerModel.Progress, b.bufferSize)

	b.mu.Lock()
	set, ok := b.subs[sessionID]
	if !ok {
		set = make(map[chan writerModel.Progress]struct{})
		b.subs[sessionID] = set
	}
	set[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()

		b.mu.Lock()
		defer b.mu.Unlock()

		delete(set, sub)
		if len(set) == 0 {
			delete(b.subs, sessionID)
		}
		close(sub)
	}()

	return sub
}

// Publish implements writer.Publisher.
func (b *Broker) Publish(p writerModel.Progress) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs[p.SessionID] {
		select {
		case sub <- p:
		default:
			b.dropCount.Add(1)
		}
	}
}

// Subscribers returns the number of live subscriptions for sessionID.
func (b *Broker) Subscribers(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[sessionID])
}

// Dropped returns how many events were dropped for slow subscribers.
func (b *Broker) Dropped() int64 {
	return b.dropCount.Load()
}
