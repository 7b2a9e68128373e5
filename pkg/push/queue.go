package push

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
)

// ErrQueueFull is returned by TryEnqueue when the queue is at capacity.
var ErrQueueFull = errors.New("push queue full")

// maxPooledBuffer controls the largest buffer returned to the pool. Larger
// payloads are dropped so the pool does not pin huge arrays.
const maxPooledBuffer = 256 * 1024

var itemPool = sync.Pool{New: func() any { return &Item{} }}

// Item wraps one raw event payload and owns a pooled buffer. Consumers MUST
// call Done() exactly once after processing; extra calls are no-ops.
type Item struct {
	payload []byte
	buf     *bytebufferpool.ByteBuffer
	done    uint32
}

// Payload returns the raw event bytes. Valid only until Done is called.
func (it *Item) Payload() []byte { return it.payload }

// Done releases pooled resources back to their pools.
func (it *Item) Done() {
	if !atomic.CompareAndSwapUint32(&it.done, 0, 1) {
		return
	}
	if it.buf != nil {
		if cap(it.buf.B) > maxPooledBuffer {
			it.buf = nil
		} else {
			bytebufferpool.Put(it.buf)
			it.buf = nil
		}
	}
	it.payload = nil
	itemPool.Put(it)
}

// Queue is the bounded, ordered, single-consumer event queue between the
// push transport and the live merge handler. Producers may be concurrent;
// exactly one consumer should drain it.
type Queue struct {
	ch       chan *Item
	capacity int
	dropped  uint64
}

// NewQueue creates a bounded queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 4096
	}
	return &Queue{ch: make(chan *Item, capacity), capacity: capacity}
}

// Out returns the read-only consumer channel. Do not close it from callers.
func (q *Queue) Out() <-chan *Item { return q.ch }

func newItem(payload []byte) *Item {
	it := itemPool.Get().(*Item)
	bb := bytebufferpool.Get()
	bb.B = append(bb.B[:0], payload...)
	it.payload = bb.B[:len(payload)]
	it.buf = bb
	atomic.StoreUint32(&it.done, 0)
	return it
}

// TryEnqueue copies payload into a pooled buffer and enqueues it without
// blocking. Returns ErrQueueFull when the queue is at capacity.
func (q *Queue) TryEnqueue(payload []byte) error {
	it := newItem(payload)
	select {
	case q.ch <- it:
		return nil
	default:
		it.Done()
		atomic.AddUint64(&q.dropped, 1)
		return ErrQueueFull
	}
}

// RunWorker drains the queue, invoking handler for each decoded event. It
// guarantees Item.Done() is called even when decoding or the handler fails,
// and exits when stop is closed or the queue is closed.
func (q *Queue) RunWorker(stop <-chan struct{}, handler func(Event) error) {
	for {
		select {
		case it, ok := <-q.ch:
			if !ok {
				return
			}
			func(it *Item) {
				defer it.Done()
				ev, err := DecodeEvent(it.Payload())
				if err != nil {
					atomic.AddUint64(&q.dropped, 1)
					return
				}
				_ = handler(ev)
			}(it)
		case <-stop:
			return
		}
	}
}

// CloseAndDrain closes the queue and releases remaining items.
func (q *Queue) CloseAndDrain() {
	close(q.ch)
	for it := range q.ch {
		it.Done()
	}
}

// Len returns the current queue depth.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the configured capacity.
func (q *Queue) Cap() int { return q.capacity }

// Dropped counts payloads rejected by a full queue or failed decodes.
func (q *Queue) Dropped() uint64 { return atomic.LoadUint64(&q.dropped) }
