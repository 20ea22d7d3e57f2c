package events

import (
	"sync"
	"testing"

	"github.com/bnema/popkeys/internal/logger"
	"github.com/bnema/popkeys/internal/mediakey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchOrder(t *testing.T) {
	m := NewManager(logger.Discard())

	const n = 5
	var order []int
	for i := 0; i < n; i++ {
		i := i
		m.Subscribe(func(k mediakey.Type) {
			assert.Equal(t, mediakey.Play, k)
			order = append(order, i)
		})
	}

	m.Dispatch(mediakey.Play)

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	assert.Equal(t, n, m.Len())
}

func TestSubscribeNilIsIgnored(t *testing.T) {
	m := NewManager(logger.Discard())

	id := m.Subscribe(nil)

	assert.Equal(t, Subscription(0), id)
	assert.Equal(t, 0, m.Len())
	assert.NotPanics(t, func() { m.Dispatch(mediakey.Stop) })
}

func TestPanickingCallbackDoesNotStopOthers(t *testing.T) {
	m := NewManager(logger.Discard())

	var calls []string
	m.Subscribe(func(mediakey.Type) { calls = append(calls, "first") })
	m.Subscribe(func(mediakey.Type) { panic("boom") })
	m.Subscribe(func(mediakey.Type) { calls = append(calls, "third") })

	assert.NotPanics(t, func() { m.Dispatch(mediakey.Next) })
	assert.Equal(t, []string{"first", "third"}, calls)
}

func TestUnsubscribe(t *testing.T) {
	m := NewManager(logger.Discard())

	var a, b int
	idA := m.Subscribe(func(mediakey.Type) { a++ })
	m.Subscribe(func(mediakey.Type) { b++ })

	m.Dispatch(mediakey.Pause)
	require.True(t, m.Unsubscribe(idA))
	m.Dispatch(mediakey.Pause)

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
	assert.False(t, m.Unsubscribe(idA), "second unsubscribe reports false")
	assert.False(t, m.Unsubscribe(0))
}

func TestSubscriptionIDsAreStable(t *testing.T) {
	m := NewManager(logger.Discard())

	first := m.Subscribe(func(mediakey.Type) {})
	second := m.Subscribe(func(mediakey.Type) {})
	m.Unsubscribe(first)
	third := m.Subscribe(func(mediakey.Type) {})

	assert.NotEqual(t, first, second)
	assert.NotEqual(t, second, third)
	assert.NotEqual(t, first, third)
}

func TestSubscribeDuringDispatch(t *testing.T) {
	m := NewManager(logger.Discard())

	var late int
	m.Subscribe(func(mediakey.Type) {
		// Registering from inside a callback must not deadlock and only
		// takes effect for the next dispatch
		m.Subscribe(func(mediakey.Type) { late++ })
	})

	m.Dispatch(mediakey.Play)
	assert.Equal(t, 0, late)

	m.Dispatch(mediakey.Play)
	assert.Equal(t, 1, late)
}

func TestConcurrentSubscribeAndDispatch(t *testing.T) {
	m := NewManager(logger.Discard())

	var mu sync.Mutex
	count := 0
	m.Subscribe(func(mediakey.Type) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			m.Dispatch(mediakey.VolumeHigher)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			m.Subscribe(func(mediakey.Type) {})
		}
	}()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 200, count)
	assert.Equal(t, 201, m.Len())
}
