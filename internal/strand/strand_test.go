package strand

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type inlinePool struct{}

func (inlinePool) Submit(task func()) { go task() }

func TestStrandRunsTasksInOrder(t *testing.T) {
	s := New(inlinePool{})
	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := range 20 {
		wg.Add(1)
		i := i
		s.Post(func() {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	wg.Wait()

	require.Len(t, order, 20)
	for i, v := range order {
		require.Equal(t, i, v, "strand must preserve post order")
	}
}

func TestStrandNeverRunsConcurrently(t *testing.T) {
	s := New(inlinePool{})
	var inside atomic.Int32
	var overlapped atomic.Bool
	var wg sync.WaitGroup

	for range 50 {
		wg.Add(1)
		s.Post(func() {
			defer wg.Done()
			if inside.Add(1) > 1 {
				overlapped.Store(true)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
		})
	}
	wg.Wait()

	require.False(t, overlapped.Load(), "strand allowed concurrent execution")
}

func TestStrandSurvivesPanickingTask(t *testing.T) {
	s := New(inlinePool{})
	var wg sync.WaitGroup

	wg.Add(1)
	s.Post(func() {
		defer wg.Done()
		panic("boom")
	})
	wg.Wait()

	// The scheduling latch must have been released despite the panic, or
	// this second task would sit queued forever with nobody draining it.
	var ran atomic.Bool
	var wg2 sync.WaitGroup
	wg2.Add(1)
	s.Post(func() {
		defer wg2.Done()
		ran.Store(true)
	})
	wg2.Wait()

	require.True(t, ran.Load(), "strand left stranded after a panicking task")
}
