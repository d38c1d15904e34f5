package assignment

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAssignIsAdditive(t *testing.T) {
	t.Parallel()

	store := NewStore(&manualClock{}, time.Second, nil)
	store.Assign([]string{"q-b", "q-a"})
	store.Assign([]string{"q-c", "q-a", ""})
	require.Equal(t, []string{"q-a", "q-b", "q-c"}, store.Assignments())

	store.Clear()
	require.Empty(t, store.Assignments())
}

func TestKeepAliveExpiryRevokesAssignments(t *testing.T) {
	t.Parallel()

	clock := &manualClock{}
	store := NewStore(clock, 10*time.Second, nil)
	store.Assign([]string{"q-a"})
	store.UpdateKeepAlive()

	clock.advance(10 * time.Second)
	require.False(t, store.MonitorKeepAlive(), "exactly the TTL is still alive")
	require.Equal(t, []string{"q-a"}, store.Assignments())

	clock.advance(time.Millisecond)
	require.True(t, store.MonitorKeepAlive())
	require.Empty(t, store.Assignments())
	require.False(t, store.MonitorKeepAlive(), "nothing left to revoke")
}

func TestKeepAliveRefreshPreservesAssignments(t *testing.T) {
	t.Parallel()

	clock := &manualClock{}
	store := NewStore(clock, 10*time.Second, nil)
	store.Assign([]string{"q-a"})

	for range 5 {
		clock.advance(8 * time.Second)
		store.UpdateKeepAlive()
		require.False(t, store.MonitorKeepAlive())
	}
	require.Equal(t, []string{"q-a"}, store.Assignments())
	require.Equal(t, time.Duration(0), store.KeepAliveAge())

	clock.advance(3 * time.Second)
	require.Equal(t, 3*time.Second, store.KeepAliveAge())
}

func TestDefaultTTL(t *testing.T) {
	t.Parallel()

	clock := &manualClock{}
	store := NewStore(clock, 0, nil)
	store.Assign([]string{"q"})
	clock.advance(DefaultKeepAliveTTL)
	require.False(t, store.MonitorKeepAlive())
	clock.advance(time.Nanosecond)
	require.True(t, store.MonitorKeepAlive())
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()

	clock := &manualClock{}
	store := NewStore(clock, time.Second, nil)
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(3)
		go func() {
			defer wg.Done()
			store.Assign([]string{"q", string(rune('a' + i))})
			store.UpdateKeepAlive()
		}()
		go func() {
			defer wg.Done()
			_ = store.Assignments()
		}()
		go func() {
			defer wg.Done()
			clock.advance(time.Millisecond)
			store.MonitorKeepAlive()
		}()
	}
	wg.Wait()
	require.Contains(t, store.Assignments(), "q")
}

type manualClock struct {
	mu      sync.Mutex
	elapsed time.Duration
}

func (c *manualClock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

func (c *manualClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.elapsed += d
}
