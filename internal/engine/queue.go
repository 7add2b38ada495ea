package engine

import (
	"context"
	"sync"

	"github.com/ryohey/warp/internal/ir"
)

// RequestKind distinguishes between queued pass kinds.
type RequestKind int

const (
	// RequestReload reconciles structure and then applies changed attributes.
	RequestReload RequestKind = iota + 1
	// RequestUpdate re-applies every attribute without structural changes.
	RequestUpdate
)

func (k RequestKind) String() string {
	switch k {
	case RequestReload:
		return "reload"
	case RequestUpdate:
		return "update"
	}
	return "invalid"
}

// LoadFunc produces the declared tree for a request. It runs on the
// coordinating goroutine, so file reads and decoding happen there rather
// than on the trigger's goroutine.
type LoadFunc func(ctx context.Context) (*ir.NodeRecord, error)

// Request asks the coordinating goroutine to run one pass.
//
// Exactly one of Tree or Load should be set. Source names where the tree
// came from (a path or URL) and is the key reload requests coalesce on.
type Request struct {
	Kind   RequestKind
	Source string
	Tree   *ir.NodeRecord
	Load   LoadFunc
}

// requestQueue is a thread-safe FIFO of pending requests.
//
// A reload for a source that already has a pending reload replaces it in
// place: the newer document wins and keeps the older request's position.
// The signal channel (buffered, size 1) lets the Run loop wait with a
// context.
type requestQueue struct {
	mu        sync.Mutex
	requests  []Request
	closed    bool
	signal    chan struct{}
	coalesced int
}

func newRequestQueue() *requestQueue {
	return &requestQueue{
		requests: make([]Request, 0, 8),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue adds a request. Safe from any goroutine. Returns false if the
// queue is closed.
func (q *requestQueue) Enqueue(r Request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	if r.Kind == RequestReload && r.Source != "" {
		for i := range q.requests {
			if q.requests[i].Kind == RequestReload && q.requests[i].Source == r.Source {
				q.requests[i] = r
				q.coalesced++
				passesCoalesced.Inc()
				return true
			}
		}
	}

	q.requests = append(q.requests, r)

	// Non-blocking: the buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front request without blocking.
func (q *requestQueue) TryDequeue() (Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.requests) == 0 {
		return Request{}, false
	}

	r := q.requests[0]
	// Nil the slot so the array does not retain the tree.
	q.requests[0] = Request{}
	if len(q.requests) == 1 {
		q.requests = q.requests[:0]
	} else {
		q.requests = q.requests[1:]
	}
	return r, true
}

// Wait returns a channel that signals when requests may be available. It is
// closed when the queue is closed.
func (q *requestQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of pending requests.
func (q *requestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.requests)
}

// Coalesced returns how many requests were merged into a pending one.
func (q *requestQueue) Coalesced() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.coalesced
}

// Close stops accepting requests and wakes any waiter. Pending requests
// are dropped and their count returned.
func (q *requestQueue) Close() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0
	}
	q.closed = true
	dropped := len(q.requests)
	q.requests = nil
	close(q.signal)
	return dropped
}

// Closed reports whether Close has been called.
func (q *requestQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
