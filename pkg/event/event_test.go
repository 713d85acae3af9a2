package event

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_PublishAsync(t *testing.T) {
	bus := New()
	var hits atomic.Int32
	bus.Subscribe("job.started", func(_ context.Context, data any) {
		assert.Equal(t, "payload", data)
		hits.Add(1)
	})

	bus.Publish(context.Background(), "job.started", "payload")
	bus.Publish(context.Background(), "job.other", "ignored")
	bus.Wait()

	assert.Equal(t, int32(1), hits.Load())
}

func TestBus_SynchronousPreservesOrder(t *testing.T) {
	bus := New(Synchronous())
	var mu sync.Mutex
	var got []string
	bus.Subscribe("*", func(_ context.Context, data any) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, data.(string))
	})

	for _, s := range []string{"a", "b", "c"} {
		bus.Publish(context.Background(), "relay.accept", s)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestBus_WildcardAndNamed(t *testing.T) {
	bus := New(Synchronous())
	var named, all int
	bus.Subscribe("x", func(context.Context, any) { named++ })
	bus.Subscribe("*", func(context.Context, any) { all++ })

	bus.Publish(context.Background(), "x", nil)
	bus.Publish(context.Background(), "y", nil)

	assert.Equal(t, 1, named)
	assert.Equal(t, 2, all)
}
