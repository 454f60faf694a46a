package negotiator

import (
	"container/list"
	"sync"
)

// toneBatch plays one batch of outbound tone signals and returns when
// playback has finished.
type toneBatch func()

// ToneQueue serializes outbound tone playback. At most one batch plays at
// a time; additional batches queue in submission order and drain strictly
// FIFO as each completes.
type ToneQueue struct {
	mu     sync.Mutex
	busyCh chan struct{}
	ops    *list.List

	isClosed bool
}

func newToneQueue() *ToneQueue {
	return &ToneQueue{
		ops: list.New(),
	}
}

// Enqueue adds a batch to be played. If nothing is playing, playback
// starts immediately in a new goroutine. If the queue has been closed,
// the batch is dropped.
func (q *ToneQueue) Enqueue(batch toneBatch) {
	q.mu.Lock()
	defer q.mu.Unlock()
	_ = q.tryEnqueue(batch)
}

// tryEnqueue attempts to enqueue the given batch. It returns false if the
// batch is invalid or the queue is closed. mu must be locked by
// tryEnqueue's caller.
func (q *ToneQueue) tryEnqueue(batch toneBatch) bool {
	if batch == nil {
		return false
	}

	if q.isClosed {
		return false
	}
	q.ops.PushBack(batch)

	if q.busyCh == nil {
		q.busyCh = make(chan struct{})
		go q.start()
	}

	return true
}

// IsEmpty checks if there are batches waiting to play.
func (q *ToneQueue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ops.Len() == 0
}

// Done blocks until every batch enqueued so far has finished playing.
func (q *ToneQueue) Done() {
	var wg sync.WaitGroup
	wg.Add(1)
	q.mu.Lock()
	enqueued := q.tryEnqueue(func() {
		wg.Done()
	})
	q.mu.Unlock()
	if !enqueued {
		return
	}
	wg.Wait()
}

// GracefulClose waits for the queue to drain and forbids new batches from
// being enqueued.
func (q *ToneQueue) GracefulClose() {
	q.mu.Lock()
	if q.isClosed {
		q.mu.Unlock()
		return
	}
	// No new batches from here on; isClosed also prevents a new busyCh
	// from being created.
	q.isClosed = true

	busyCh := q.busyCh
	q.mu.Unlock()
	if busyCh == nil {
		return
	}
	<-busyCh
}

func (q *ToneQueue) pop() toneBatch {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ops.Len() == 0 {
		return nil
	}

	e := q.ops.Front()
	q.ops.Remove(e)
	if batch, ok := e.Value.(toneBatch); ok {
		return batch
	}
	return nil
}

func (q *ToneQueue) start() {
	defer func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		close(q.busyCh)

		if q.ops.Len() == 0 || q.isClosed {
			q.busyCh = nil
			return
		}

		// Either a new batch arrived while we were draining, or a batch
		// panicked.
		q.busyCh = make(chan struct{})
		go q.start()
	}()

	batch := q.pop()
	for batch != nil {
		batch()
		batch = q.pop()
	}
}
