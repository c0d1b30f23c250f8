package notifier

import (
	"context"
	"log"
)

// QueueSize bounds the number of pending notifications buffered in memory;
// once full, the oldest queued event is dropped to make room for the
// newest, so a slow or unreachable webhook never backs up request handling.
const QueueSize = 256

// AsyncQueue decouples request handling from webhook delivery: Enqueue
// never blocks the caller beyond a channel send, and a single background
// worker drains the queue serially.
type AsyncQueue struct {
	inner Notifier
	queue chan Payload
	done  chan struct{}
}

// NewAsyncQueue starts the background worker and returns the queue. The
// worker stops when ctx is done.
func NewAsyncQueue(ctx context.Context, inner Notifier) *AsyncQueue {
	q := &AsyncQueue{
		inner: inner,
		queue: make(chan Payload, QueueSize),
		done:  make(chan struct{}),
	}
	go q.run(ctx)
	return q
}

// Notify implements Notifier by enqueuing p for asynchronous delivery; it
// never blocks on the webhook itself and never returns a delivery error to
// the caller, since the request that triggered the event has already
// succeeded by the time Notify is called.
func (q *AsyncQueue) Notify(ctx context.Context, p Payload) error {
	q.Enqueue(p)
	return nil
}

// Enqueue queues p for delivery, dropping the oldest pending item if the
// queue is full.
func (q *AsyncQueue) Enqueue(p Payload) {
	select {
	case q.queue <- p:
	default:
		select {
		case dropped := <-q.queue:
			log.Printf("notifier: queue full, dropping event=%s id=%s", dropped.Event, dropped.ID)
		default:
		}
		select {
		case q.queue <- p:
		default:
			log.Printf("notifier: queue full, dropping event=%s id=%s", p.Event, p.ID)
		}
	}
}

func (q *AsyncQueue) run(ctx context.Context) {
	defer close(q.done)
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-q.queue:
			if err := deliverWithRetry(ctx, q.inner, p); err != nil {
				log.Printf("notifier: delivery failed permanently: %v", err)
			}
		}
	}
}

// Wait blocks until the background worker has exited, for use in graceful
// shutdown paths.
func (q *AsyncQueue) Wait() {
	<-q.done
}
