package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vulntor/xploit/pkg/event"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeOwner struct {
	name           string
	startErr       error
	disposeErr     error
	panicOnDispose bool

	starts   atomic.Int32
	disposes atomic.Int32
	disposed atomic.Bool
}

func (f *fakeOwner) Start(context.Context) error {
	f.starts.Add(1)
	return f.startErr
}

func (f *fakeOwner) Dispose() error {
	f.disposes.Add(1)
	f.disposed.Store(true)
	if f.panicOnDispose {
		panic("boom")
	}
	return f.disposeErr
}

func (f *fakeOwner) IsDisposed() bool { return f.disposed.Load() }

func (f *fakeOwner) JobName() string { return f.name }

func TestRegistry_CreateDoesNotStart(t *testing.T) {
	r := NewRegistry()
	owner := &fakeOwner{name: "relay"}

	j, err := r.Create(owner)
	require.NoError(t, err)

	assert.Equal(t, StatePending, j.State())
	assert.Equal(t, int32(0), owner.starts.Load())
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, "relay", j.Name())
	assert.Equal(t, 1, j.Num())
	assert.NotEmpty(t, j.ID())
	assert.True(t, j.StartedAt().IsZero())
}

func TestRegistry_CreateNilOwner(t *testing.T) {
	_, err := NewRegistry().Create(nil)
	assert.ErrorIs(t, err, ErrNilOwner)
}

func TestJob_StartTransitionsToRunning(t *testing.T) {
	r := NewRegistry()
	owner := &fakeOwner{}
	j, err := r.Create(owner)
	require.NoError(t, err)

	require.NoError(t, j.Start(context.Background()))
	assert.Equal(t, StateRunning, j.State())
	assert.False(t, j.StartedAt().IsZero())

	err = j.Start(context.Background())
	assert.ErrorIs(t, err, ErrNotPending)
	assert.Equal(t, int32(1), owner.starts.Load())

	j.Dispose()
}

func TestJob_StartFailureDisposesAndUntracks(t *testing.T) {
	r := NewRegistry()
	bindErr := errors.New("address already in use")
	owner := &fakeOwner{startErr: bindErr}

	j, err := r.Run(context.Background(), owner)
	require.ErrorIs(t, err, bindErr)

	assert.Equal(t, StateFailed, j.State())
	assert.ErrorIs(t, j.Err(), bindErr)
	assert.Equal(t, int32(1), owner.disposes.Load())
	assert.Zero(t, r.Len())
	<-j.Done()
}

func TestJob_DisposeExactlyOnceUnderConcurrency(t *testing.T) {
	r := NewRegistry()
	owner := &fakeOwner{}
	j, err := r.Run(context.Background(), owner)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.Dispose()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), owner.disposes.Load())
	assert.Equal(t, StateCancelled, j.State())
	assert.Zero(t, r.Len())
}

func TestJob_DisposeAfterOwnerFinishedIsCompleted(t *testing.T) {
	r := NewRegistry()
	owner := &fakeOwner{}
	j, err := r.Run(context.Background(), owner)
	require.NoError(t, err)

	owner.disposed.Store(true)
	j.Dispose()

	assert.Equal(t, StateCompleted, j.State())
}

func TestJob_Complete(t *testing.T) {
	r := NewRegistry()
	owner := &fakeOwner{}
	j, err := r.Run(context.Background(), owner)
	require.NoError(t, err)

	j.Complete()
	j.Dispose()

	assert.Equal(t, StateCompleted, j.State())
	assert.Equal(t, int32(1), owner.disposes.Load())
}

func TestJob_StartContextCancelledOnDispose(t *testing.T) {
	r := NewRegistry()
	var runCtx context.Context
	owner := &ctxOwner{fakeOwner: &fakeOwner{}, got: func(ctx context.Context) { runCtx = ctx }}

	j, err := r.Run(context.Background(), owner)
	require.NoError(t, err)
	require.NoError(t, runCtx.Err())

	j.Dispose()
	assert.ErrorIs(t, runCtx.Err(), context.Canceled)
}

type ctxOwner struct {
	*fakeOwner
	got func(context.Context)
}

func (c *ctxOwner) Start(ctx context.Context) error {
	c.got(ctx)
	return c.fakeOwner.Start(ctx)
}

func TestRegistry_KillAllSwallowsErrors(t *testing.T) {
	r := NewRegistry(WithKillConcurrency(2))

	owners := []*fakeOwner{
		{name: "a"},
		{name: "b", disposeErr: errors.New("socket already closed")},
		{name: "c", panicOnDispose: true},
		{name: "d"},
	}
	for _, o := range owners {
		_, err := r.Run(context.Background(), o)
		require.NoError(t, err)
	}
	require.Equal(t, 4, r.Len())

	killed := r.KillAll()

	assert.Equal(t, 4, killed)
	assert.Zero(t, r.Len())
	for _, o := range owners {
		assert.Equal(t, int32(1), o.disposes.Load(), o.name)
	}
	assert.Zero(t, r.KillAll())

	st := r.Status()
	assert.Equal(t, int64(4), st.Created)
	assert.Equal(t, int64(4), st.Ended)
}

func TestRegistry_KillAllIncludesPendingJobs(t *testing.T) {
	r := NewRegistry()
	owner := &fakeOwner{}
	j, err := r.Create(owner)
	require.NoError(t, err)

	r.KillAll()

	assert.Equal(t, StateCancelled, j.State())
	assert.Equal(t, int32(1), owner.disposes.Load())
}

func TestRegistry_GetAndKill(t *testing.T) {
	r := NewRegistry()
	first, err := r.Run(context.Background(), &fakeOwner{name: "first"})
	require.NoError(t, err)
	second, err := r.Run(context.Background(), &fakeOwner{name: "second"})
	require.NoError(t, err)

	got, ok := r.Get(first.ID())
	require.True(t, ok)
	assert.Same(t, first, got)

	got, ok = r.Get("2")
	require.True(t, ok)
	assert.Same(t, second, got)

	_, ok = r.Get("99")
	assert.False(t, ok)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Name())

	require.NoError(t, r.Kill("1"))
	assert.Equal(t, 1, r.Len())
	assert.ErrorIs(t, r.Kill("1"), ErrJobNotFound)

	r.KillAll()
}

func TestRegistry_KillAllContextTimeout(t *testing.T) {
	r := NewRegistry()
	release := make(chan struct{})
	slow := &blockingOwner{release: release}
	_, err := r.Run(context.Background(), slow)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.Equal(t, 1, r.KillAllContext(ctx))
	close(release)

	require.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)
}

type blockingOwner struct {
	release  chan struct{}
	disposed atomic.Bool
}

func (b *blockingOwner) Start(context.Context) error { return nil }
func (b *blockingOwner) Dispose() error {
	<-b.release
	b.disposed.Store(true)
	return nil
}
func (b *blockingOwner) IsDisposed() bool { return b.disposed.Load() }

func TestRegistry_PublishesLifecycleEvents(t *testing.T) {
	bus := event.New(event.Synchronous())
	var mu sync.Mutex
	var seen []string
	bus.Subscribe("*", func(_ context.Context, data any) {
		info := data.(Info)
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, info.State.String())
	})

	r := NewRegistry(WithEventBus(bus))
	j, err := r.Run(context.Background(), &fakeOwner{})
	require.NoError(t, err)
	j.Dispose()

	assert.Equal(t, []string{"pending", "running", "cancelled"}, seen)
}

// selfDisposingOwner disposes its own job from Start, as a concurrent
// kill would.
type selfDisposingOwner struct {
	*fakeOwner
	job *Job
}

func (o *selfDisposingOwner) Start(ctx context.Context) error {
	o.job.Dispose()
	return o.fakeOwner.Start(ctx)
}

func TestJob_DisposedDuringStartIsNotReportedStarted(t *testing.T) {
	bus := event.New(event.Synchronous())
	var mu sync.Mutex
	var seen []string
	bus.Subscribe("*", func(_ context.Context, data any) {
		info := data.(Info)
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, info.State.String())
	})

	r := NewRegistry(WithEventBus(bus))
	owner := &selfDisposingOwner{fakeOwner: &fakeOwner{}}
	j, err := r.Create(owner)
	require.NoError(t, err)
	owner.job = j

	require.NoError(t, j.Start(context.Background()))
	assert.Equal(t, StateCancelled, j.State())
	assert.True(t, j.StartedAt().IsZero())
	assert.Equal(t, []string{"pending", "cancelled"}, seen)
}

// orderOwner records whether its run context was already cancelled when
// Dispose ran.
type orderOwner struct {
	*fakeOwner
	ctx                context.Context
	cancelledAtDispose bool
}

func (o *orderOwner) Start(ctx context.Context) error {
	o.ctx = ctx
	return o.fakeOwner.Start(ctx)
}

func (o *orderOwner) Dispose() error {
	o.cancelledAtDispose = o.ctx.Err() != nil
	return o.fakeOwner.Dispose()
}

func TestJob_OwnerDisposedBeforeContextCancelled(t *testing.T) {
	r := NewRegistry()
	owner := &orderOwner{fakeOwner: &fakeOwner{}}
	j, err := r.Run(context.Background(), owner)
	require.NoError(t, err)

	j.Dispose()
	assert.False(t, owner.cancelledAtDispose)
	assert.ErrorIs(t, owner.ctx.Err(), context.Canceled)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "state(42)", State(42).String())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StatePending.Terminal())
}
