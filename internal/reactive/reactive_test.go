package reactive

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type calls[T any] struct {
	mu   sync.Mutex
	vals []T
}

func (c *calls[T]) add(v T) {
	c.mu.Lock()
	c.vals = append(c.vals, v)
	c.mu.Unlock()
}

func (c *calls[T]) get() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.vals...)
}

func TestNode_SetReportsChange(t *testing.T) {
	n := NewNode("a")

	assert.False(t, n.Set("a"))
	assert.True(t, n.Set("b"))
	assert.Equal(t, "b", n.Get())
}

func TestEffect_DebouncesToLastValue(t *testing.T) {
	n := NewNode("")
	got := &calls[string]{}
	e := n.Effect(40*time.Millisecond, func(_ context.Context, v string) { got.add(v) })
	defer n.Close()

	for _, v := range []string{"cat-1", "cat-2", "cat-3"} {
		n.Set(v)
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return len(got.get()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(80 * time.Millisecond)

	assert.Equal(t, []string{"cat-3"}, got.get())
	assert.Equal(t, 1, e.Runs())
	assert.False(t, e.Pending())
}

func TestEffect_UnchangedValueDoesNotFire(t *testing.T) {
	n := NewNode("cat-1")
	got := &calls[string]{}
	n.Effect(10*time.Millisecond, func(_ context.Context, v string) { got.add(v) })
	defer n.Close()

	n.Set("cat-1")
	time.Sleep(40 * time.Millisecond)

	assert.Empty(t, got.get())
}

func TestEffect_SeparateWindowsFireSeparately(t *testing.T) {
	n := NewNode(0)
	got := &calls[int]{}
	n.Effect(10*time.Millisecond, func(_ context.Context, v int) { got.add(v) })
	defer n.Close()

	n.Set(1)
	require.Eventually(t, func() bool { return len(got.get()) == 1 }, time.Second, 2*time.Millisecond)
	n.Set(2)
	require.Eventually(t, func() bool { return len(got.get()) == 2 }, time.Second, 2*time.Millisecond)

	assert.Equal(t, []int{1, 2}, got.get())
}

func TestEffect_SupersedingChangeCancelsRun(t *testing.T) {
	n := NewNode("")
	started := make(chan struct{}, 2)
	cancelled := make(chan string, 2)
	n.Effect(5*time.Millisecond, func(ctx context.Context, v string) {
		started <- struct{}{}
		select {
		case <-ctx.Done():
			cancelled <- v
		case <-time.After(time.Second):
		}
	})
	defer n.Close()

	n.Set("first")
	<-started
	n.Set("second")

	select {
	case v := <-cancelled:
		assert.Equal(t, "first", v)
	case <-time.After(time.Second):
		t.Fatal("in-flight run was not cancelled")
	}
}

func TestEffect_StopDropsPendingButStaysArmed(t *testing.T) {
	n := NewNode("")
	got := &calls[string]{}
	e := n.Effect(20*time.Millisecond, func(_ context.Context, v string) { got.add(v) })
	defer n.Close()

	n.Set("a")
	e.Stop()
	assert.False(t, e.Pending())
	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, got.get())

	n.Set("b")
	require.Eventually(t, func() bool { return len(got.get()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"b"}, got.get())
}

func TestNode_CloseStopsPending(t *testing.T) {
	n := NewNode("")
	got := &calls[string]{}
	e := n.Effect(20*time.Millisecond, func(_ context.Context, v string) { got.add(v) })

	n.Set("x")
	require.True(t, e.Pending())
	n.Close()
	time.Sleep(50 * time.Millisecond)

	assert.Empty(t, got.get())
	assert.False(t, n.Set("y"))
}

func TestNode_IndependentEffects(t *testing.T) {
	n := NewNode("")
	fast := &calls[string]{}
	slow := &calls[string]{}
	n.Effect(5*time.Millisecond, func(_ context.Context, v string) { fast.add(v) })
	n.Effect(60*time.Millisecond, func(_ context.Context, v string) { slow.add(v) })
	defer n.Close()

	n.Set("q")

	require.Eventually(t, func() bool { return len(fast.get()) == 1 }, time.Second, 2*time.Millisecond)
	assert.Empty(t, slow.get())
	require.Eventually(t, func() bool { return len(slow.get()) == 1 }, time.Second, 5*time.Millisecond)
}
