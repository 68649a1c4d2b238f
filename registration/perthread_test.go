package registration_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ngone6325/gofac/v2/registration"
)

func TestPerThread_InstancePerThread(t *testing.T) {
	t.Parallel()

	c := &counter{}
	reg, err := registration.NewPerThread(dispType, nil, registration.WithFactory(c.factory))
	require.NoError(t, err)
	assert.Equal(t, registration.LifetimePerThread, reg.Lifetime())

	const threads = 8
	got := make([][2]any, threads)
	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := registration.WithThread(context.Background())
			a, errA := reg.GetService(ctx)
			b, errB := reg.GetService(ctx)
			assert.NoError(t, errA)
			assert.NoError(t, errB)
			got[i] = [2]any{a, b}
		}()
	}
	wg.Wait()

	seen := map[any]struct{}{}
	for _, pair := range got {
		assert.Same(t, pair[0], pair[1])
		seen[pair[0]] = struct{}{}
	}
	assert.Len(t, seen, threads)
	assert.EqualValues(t, threads, c.calls.Load())
}

func TestPerThread_RequiresThread(t *testing.T) {
	t.Parallel()

	reg, err := registration.NewPerThread(dispType, nil, registration.WithFactory((&counter{}).factory))
	require.NoError(t, err)

	_, err = reg.GetService(context.Background())
	assert.ErrorIs(t, err, registration.ErrNoThread)
	_, err = reg.CreateNewService(context.Background())
	assert.ErrorIs(t, err, registration.ErrNoThread)
	assert.ErrorIs(t, reg.Reset(context.Background()), registration.ErrNoThread)

	_, ok := registration.ThreadFromContext(registration.WithThreadID(context.Background(), ""))
	assert.False(t, ok)
}

func TestPerThread_FailureIsStickyPerThread(t *testing.T) {
	t.Parallel()

	c := &counter{err: errBoom}
	reg, err := registration.NewPerThread(dispType, nil, registration.WithFactory(c.factory))
	require.NoError(t, err)

	t1 := registration.WithThreadID(context.Background(), "t1")
	t2 := registration.WithThreadID(context.Background(), "t2")

	_, err = reg.GetService(t1)
	require.ErrorIs(t, err, errBoom)
	assert.ErrorIs(t, reg.LastFailureFor(t1), errBoom)

	c.err = nil
	_, err = reg.GetService(t1)
	assert.ErrorIs(t, err, errBoom)

	v, err := reg.GetService(t2)
	require.NoError(t, err)
	assert.NotNil(t, v)
	assert.NoError(t, reg.LastFailureFor(t2))

	require.NoError(t, reg.Reset(t1))
	v, err = reg.GetService(t1)
	require.NoError(t, err)
	assert.NotNil(t, v)
	assert.EqualValues(t, 3, c.calls.Load())
}

func TestPerThread_ResetClearsThreadFailure(t *testing.T) {
	t.Parallel()

	errOther := errors.New("other")
	c := &counter{err: errBoom}
	reg, err := registration.NewPerThread(dispType, nil, registration.WithFactory(c.factory))
	require.NoError(t, err)

	t1 := registration.WithThreadID(context.Background(), "t1")
	t2 := registration.WithThreadID(context.Background(), "t2")

	_, err = reg.GetService(t1)
	require.ErrorIs(t, err, errBoom)
	assert.ErrorIs(t, reg.LastFailure(), errBoom)

	require.NoError(t, reg.Reset(t1))
	assert.NoError(t, reg.LastFailure())

	_, err = reg.GetService(t1)
	require.ErrorIs(t, err, errBoom)
	c.err = errOther
	_, err = reg.GetService(t2)
	require.ErrorIs(t, err, errOther)

	require.NoError(t, reg.Reset(t1))
	assert.ErrorIs(t, reg.LastFailure(), errOther, "another thread's failure stays reported")
	require.NoError(t, reg.Reset(t2))
	assert.NoError(t, reg.LastFailure())
}

func TestPerThread_ResetOnlyAffectsCallingThread(t *testing.T) {
	t.Parallel()

	c := &counter{}
	reg, err := registration.NewPerThread(dispType, nil,
		registration.WithFactory(c.factory), registration.WithDisposeOnInvalidate(true))
	require.NoError(t, err)

	t1 := registration.WithThreadID(context.Background(), "t1")
	t2 := registration.WithThreadID(context.Background(), "t2")

	a1, err := reg.GetService(t1)
	require.NoError(t, err)
	a2, err := reg.GetService(t2)
	require.NoError(t, err)

	require.NoError(t, reg.Reset(t1))
	assert.EqualValues(t, 1, a1.(*disposable).disposed.Load())

	b1, err := reg.GetService(t1)
	require.NoError(t, err)
	assert.NotSame(t, a1, b1)

	b2, err := reg.GetService(t2)
	require.NoError(t, err)
	assert.Same(t, a2, b2)
	assert.Zero(t, a2.(*disposable).disposed.Load())
}

func TestPerThread_ResetAll(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	c := &counter{}
	reg, err := registration.NewPerThread(dispType, nil,
		registration.WithFactory(c.factory),
		registration.WithDisposeOnInvalidate(true),
		registration.WithObserver(obs),
	)
	require.NoError(t, err)

	t1 := registration.WithThreadID(context.Background(), "t1")
	t2 := registration.WithThreadID(context.Background(), "t2")

	a1, err := reg.GetService(t1)
	require.NoError(t, err)
	a2, err := reg.GetService(t2)
	require.NoError(t, err)

	require.NoError(t, reg.ResetAll())

	// only the most recently accessed instance is disposed
	assert.Zero(t, a1.(*disposable).disposed.Load())
	assert.EqualValues(t, 1, a2.(*disposable).disposed.Load())

	b1, err := reg.GetService(t1)
	require.NoError(t, err)
	b2, err := reg.GetService(t2)
	require.NoError(t, err)
	assert.NotSame(t, a1, b1)
	assert.NotSame(t, a2, b2)

	_, _, reasons := obs.snapshot()
	assert.Equal(t, []registration.Reason{registration.ReasonResetAll}, reasons)
}

func TestPerThread_CreateNewService(t *testing.T) {
	t.Parallel()

	c := &counter{}
	reg, err := registration.NewPerThread(dispType, nil, registration.WithFactory(c.factory))
	require.NoError(t, err)

	ctx := registration.WithThread(context.Background())
	cached, err := reg.GetService(ctx)
	require.NoError(t, err)

	fresh, err := reg.CreateNewService(ctx)
	require.NoError(t, err)
	assert.NotSame(t, cached, fresh)

	again, err := reg.GetService(ctx)
	require.NoError(t, err)
	assert.Same(t, cached, again)
}

func TestPerThread_DisposeReleasesEveryThread(t *testing.T) {
	t.Parallel()

	c := &counter{}
	reg, err := registration.NewPerThread(dispType, nil,
		registration.WithFactory(c.factory), registration.WithDisposeOnInvalidate(true))
	require.NoError(t, err)

	var instances []*disposable
	for i := 0; i < 3; i++ {
		v, err := reg.GetService(registration.WithThread(context.Background()))
		require.NoError(t, err)
		instances = append(instances, v.(*disposable))
	}

	require.NoError(t, reg.Dispose())
	for _, d := range instances {
		assert.EqualValues(t, 1, d.disposed.Load(), "instance %d", d.id)
	}
}

func TestPerThread_DisposeAndClone(t *testing.T) {
	t.Parallel()

	c := &counter{}
	reg, err := registration.NewPerThread(dispType, nil,
		registration.WithFactory(c.factory), registration.WithDisposeOnInvalidate(true))
	require.NoError(t, err)

	ctx := registration.WithThread(context.Background())
	v, err := reg.GetService(ctx)
	require.NoError(t, err)

	clone := reg.CloneFor(newFakeResolver())

	require.NoError(t, reg.Dispose())
	require.NoError(t, reg.Dispose())
	assert.EqualValues(t, 1, v.(*disposable).disposed.Load())

	_, err = reg.GetService(ctx)
	assert.ErrorIs(t, err, registration.ErrDisposed)
	assert.ErrorIs(t, reg.ResetAll(), registration.ErrDisposed)

	cv, err := clone.GetService(ctx)
	require.NoError(t, err)
	assert.NotSame(t, v, cv)
}
