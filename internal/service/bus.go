package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kestrel-run/orchestra/internal/domain/bus"
	"github.com/kestrel-run/orchestra/internal/domain/orcherr"
)

// Bus is the communication bus: a topic pub/sub with dotted-glob
// pattern matching, bounded per-subscriber queues, and a correlation-id
// request/reply round trip. Unlike a single shared queue with one
// worker, each subscription gets its own bounded channel and goroutine
// so one slow consumer cannot stall delivery to the others.
type Bus struct {
	mu           sync.RWMutex
	subs         map[string]*subscription
	history      []bus.Message
	historyCap   int
	queueSize    int
	replyWaiters map[string]chan bus.Message
	waitersMu    sync.Mutex

	dropped map[string]int
}

type subscription struct {
	id      string
	pattern string
	queue   chan bus.Message
	done    chan struct{}
	dropped int
}

// Handler processes one delivered message. It must not block
// indefinitely; the bus does not retry failed handlers.
type Handler func(ctx context.Context, msg bus.Message)

func NewBus(queueSize, historyCap int) *Bus {
	if queueSize <= 0 {
		queueSize = 256
	}
	if historyCap <= 0 {
		historyCap = 1000
	}
	return &Bus{
		subs:         make(map[string]*subscription),
		historyCap:   historyCap,
		queueSize:    queueSize,
		replyWaiters: make(map[string]chan bus.Message),
		dropped:      make(map[string]int),
	}
}

// Subscribe registers handler against a dotted-glob pattern ("*" for one
// segment, "#" for the rest) and starts its dedicated delivery worker.
// The returned subscription ID is passed to Unsubscribe.
func (b *Bus) Subscribe(pattern string, handler Handler) string {
	sub := &subscription{
		id:      uuid.NewString(),
		pattern: pattern,
		queue:   make(chan bus.Message, b.queueSize),
		done:    make(chan struct{}),
	}

	b.mu.Lock()
	b.subs[sub.id] = sub
	b.mu.Unlock()

	go func() {
		for {
			select {
			case msg, ok := <-sub.queue:
				if !ok {
					return
				}
				handler(context.Background(), msg)
			case <-sub.done:
				return
			}
		}
	}()

	return sub.id
}

func (b *Bus) Unsubscribe(subID string) {
	b.mu.Lock()
	sub, ok := b.subs[subID]
	if ok {
		delete(b.subs, subID)
	}
	b.mu.Unlock()
	if ok {
		close(sub.done)
	}
}

// Publish delivers msg to every subscription whose pattern matches the
// topic. Delivery to each subscriber's queue is non-blocking: a full
// queue evicts its oldest undelivered message to make room for msg,
// incrementing that subscriber's drop counter, rather than stalling the
// publisher or discarding the new message.
func (b *Bus) Publish(ctx context.Context, msg bus.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.PublishedAt.IsZero() {
		msg.PublishedAt = time.Now()
	}

	b.mu.Lock()
	b.history = append(b.history, msg)
	if len(b.history) > b.historyCap {
		b.history = b.history[len(b.history)-b.historyCap:]
	}
	var matched []*subscription
	for _, sub := range b.subs {
		if bus.TopicMatches(sub.pattern, msg.Topic) {
			matched = append(matched, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range matched {
		b.deliver(sub, msg)
	}

	b.deliverReply(msg)

	return nil
}

// deliver pushes msg onto sub's queue, evicting the oldest queued
// message first if the queue is full, so a slow subscriber loses its
// oldest backlog rather than the message currently being published.
func (b *Bus) deliver(sub *subscription, msg bus.Message) {
	for {
		select {
		case sub.queue <- msg:
			return
		default:
		}
		select {
		case <-sub.queue:
			b.mu.Lock()
			sub.dropped++
			b.mu.Unlock()
		default:
			// The delivery worker drained the queue between the two
			// selects; retry the send against the now-emptier queue.
		}
	}
}

func (b *Bus) deliverReply(msg bus.Message) {
	if msg.CorrelationID != "" {
		b.waitersMu.Lock()
		if ch, ok := b.replyWaiters[msg.CorrelationID]; ok {
			select {
			case ch <- msg:
			default:
			}
		}
		b.waitersMu.Unlock()
	}
}

// Request publishes msg and blocks until a reply carrying the same
// correlation ID arrives, ctx is cancelled, or timeout elapses. The
// request's own publication carries that correlation ID too and is not
// taken as its reply.
func (b *Bus) Request(ctx context.Context, msg bus.Message, timeout time.Duration) (bus.Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CorrelationID == "" {
		msg.CorrelationID = uuid.NewString()
	}

	// Room for both the request's own publication and the reply, which
	// can arrive in either order.
	ch := make(chan bus.Message, 2)
	b.waitersMu.Lock()
	b.replyWaiters[msg.CorrelationID] = ch
	b.waitersMu.Unlock()
	defer func() {
		b.waitersMu.Lock()
		delete(b.replyWaiters, msg.CorrelationID)
		b.waitersMu.Unlock()
	}()

	if err := b.Publish(ctx, msg); err != nil {
		return bus.Message{}, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case reply := <-ch:
			if reply.ID == msg.ID {
				continue
			}
			return reply, nil
		case <-ctx.Done():
			return bus.Message{}, orcherr.Wrap(orcherr.KindTimeout, "bus request cancelled", ctx.Err())
		case <-timer.C:
			return bus.Message{}, orcherr.New(orcherr.KindTimeout, "bus request timed out")
		}
	}
}

// History returns up to limit of the most recent messages, optionally
// filtered to an exact topic.
func (b *Bus) History(topic string, limit int) []bus.Message {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var filtered []bus.Message
	if topic == "" {
		filtered = b.history
	} else {
		for _, m := range b.history {
			if m.Topic == topic {
				filtered = append(filtered, m)
			}
		}
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered
}

// Stats summarizes bus activity for the admin surface.
type Stats struct {
	TotalMessages int
	Subscriptions int
	DroppedTotal  int
}

func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	dropped := 0
	for _, s := range b.subs {
		dropped += s.dropped
	}
	return Stats{
		TotalMessages: len(b.history),
		Subscriptions: len(b.subs),
		DroppedTotal:  dropped,
	}
}
