package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCell_GetSet(t *testing.T) {
	c := NewCell(1)
	assert.Equal(t, 1, c.Get())

	c.Set(2)
	assert.Equal(t, 2, c.Get())

	got := c.Update(func(v int) int { return v * 10 })
	assert.Equal(t, 20, got)
	assert.Equal(t, 20, c.Get())
}

func TestCell_SubscribeReceivesCurrentValue(t *testing.T) {
	c := NewCell("initial")
	ch, cancel := c.Subscribe()
	defer cancel()

	assert.Equal(t, "initial", <-ch)
}

func TestCell_SubscriberSeesLatestValue(t *testing.T) {
	c := NewCell(0)
	ch, cancel := c.Subscribe()
	defer cancel()

	<-ch
	for i := 1; i <= 100; i++ {
		c.Set(i)
	}

	// Intermediate values are coalesced.
	assert.Equal(t, 100, <-ch)
	select {
	case v := <-ch:
		t.Fatalf("unexpected extra value %d", v)
	default:
	}
}

func TestCell_CancelClosesChannel(t *testing.T) {
	c := NewCell(0)
	ch, cancel := c.Subscribe()
	<-ch

	cancel()
	cancel() // idempotent

	_, ok := <-ch
	assert.False(t, ok)

	// Updates after cancel must not panic.
	c.Set(5)
}

func TestCell_ConcurrentUpdates(t *testing.T) {
	c := NewCell(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Update(func(v int) int { return v + 1 })
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, c.Get())
}

func TestFeed_PublishFanOut(t *testing.T) {
	f := NewFeed[string]()
	a, cancelA := f.Subscribe(4)
	defer cancelA()
	b, cancelB := f.Subscribe(4)
	defer cancelB()

	dropped := f.Publish("event")
	require.Equal(t, 0, dropped)

	assert.Equal(t, "event", <-a)
	assert.Equal(t, "event", <-b)
}

func TestFeed_DropsWhenFull(t *testing.T) {
	f := NewFeed[int]()
	ch, cancel := f.Subscribe(1)
	defer cancel()

	assert.Equal(t, 0, f.Publish(1))
	assert.Equal(t, 1, f.Publish(2))
	assert.Equal(t, 1, <-ch)
}

func TestFeed_Close(t *testing.T) {
	f := NewFeed[int]()
	ch, cancel := f.Subscribe(1)

	f.Close()
	_, ok := <-ch
	assert.False(t, ok)

	// cancel after Close is a no-op
	cancel()
	assert.Equal(t, 0, f.Publish(1))
}
