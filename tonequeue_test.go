package negotiator

import (
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pion/transport/v3/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToneQueueDrainsFIFO(t *testing.T) {
	report := test.CheckRoutines(t)
	defer report()

	lim := test.TimeOut(5 * time.Second)
	defer lim.Stop()

	q := newToneQueue()
	var played []int
	for i := 0; i < 100; i++ {
		batch := i
		q.Enqueue(func() {
			played = append(played, batch)
		})
	}
	q.Done()

	require.Len(t, played, 100)
	assert.True(t, sort.IntsAreSorted(played))
	q.GracefulClose()
}

func TestToneQueueSingleBatchInFlight(t *testing.T) {
	report := test.CheckRoutines(t)
	defer report()

	lim := test.TimeOut(5 * time.Second)
	defer lim.Stop()

	q := newToneQueue()
	var inFlight, maxInFlight int32
	for i := 0; i < 20; i++ {
		q.Enqueue(func() {
			cur := atomic.AddInt32(&inFlight, 1)
			for {
				peak := atomic.LoadInt32(&maxInFlight)
				if cur <= peak || atomic.CompareAndSwapInt32(&maxInFlight, peak, cur) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
		})
	}
	q.Done()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
	q.GracefulClose()
}

func TestToneQueueGracefulClose(t *testing.T) {
	report := test.CheckRoutines(t)
	defer report()

	lim := test.TimeOut(5 * time.Second)
	defer lim.Stop()

	q := newToneQueue()
	played := 0
	q.Enqueue(func() { played++ })
	q.GracefulClose()

	assert.Equal(t, 1, played)
	assert.True(t, q.IsEmpty())

	// Closed queue drops new batches.
	q.Enqueue(func() { played++ })
	q.Done()
	assert.Equal(t, 1, played)

	// Closing twice is fine.
	q.GracefulClose()
}

func TestToneQueueEnqueueNil(t *testing.T) {
	q := newToneQueue()
	q.Enqueue(nil)
	assert.True(t, q.IsEmpty())
	q.GracefulClose()
}
