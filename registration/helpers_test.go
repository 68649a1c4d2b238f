package registration_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Ngone6325/gofac/v2/registration"
)

// Test types
type Alpha struct{ Name string }
type Beta struct{ Name string }
type Gamma struct{ Name string }

type Widget struct {
	Via   string
	Alpha *Alpha
	Beta  *Beta
}

type IWidget interface{ Kind() string }

func (w *Widget) Kind() string { return w.Via }

// disposable counts how often it has been released.
type disposable struct {
	id       int
	disposed atomic.Int32
}

func (d *disposable) Dispose() error {
	d.disposed.Add(1)
	return nil
}

// slowDisposable takes delay to release itself.
type slowDisposable struct {
	delay    time.Duration
	disposed atomic.Int32
}

func (d *slowDisposable) Dispose() error {
	time.Sleep(d.delay)
	d.disposed.Add(1)
	return nil
}

type closer struct{ closed atomic.Int32 }

func (c *closer) Close() error {
	c.closed.Add(1)
	return nil
}

var (
	alphaType  = reflect.TypeOf((*Alpha)(nil))
	betaType   = reflect.TypeOf((*Beta)(nil))
	gammaType  = reflect.TypeOf((*Gamma)(nil))
	widgetType = reflect.TypeOf((*Widget)(nil))
	iWidget    = reflect.TypeOf((*IWidget)(nil)).Elem()
	dispType   = reflect.TypeOf((*disposable)(nil))
	closerType = reflect.TypeOf((*closer)(nil))
	slowType   = reflect.TypeOf((*slowDisposable)(nil))
)

// fakeResolver answers from a fixed table of values.
type fakeResolver struct {
	mu       sync.Mutex
	values   map[reflect.Type]any
	failures map[reflect.Type]error
	resolved []reflect.Type
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{values: map[reflect.Type]any{}, failures: map[reflect.Type]error{}}
}

func (f *fakeResolver) with(t reflect.Type, v any) *fakeResolver {
	f.values[t] = v
	return f
}

func (f *fakeResolver) failing(t reflect.Type, err error) *fakeResolver {
	f.failures[t] = err
	return f
}

func (f *fakeResolver) CanResolve(t reflect.Type) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.values[t]
	_, failing := f.failures[t]
	return ok || failing
}

func (f *fakeResolver) Resolve(_ context.Context, t reflect.Type) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved = append(f.resolved, t)
	if err, ok := f.failures[t]; ok {
		return nil, err
	}
	v, ok := f.values[t]
	if !ok {
		return nil, fmt.Errorf("fake resolver: %s not registered", t)
	}
	return v, nil
}

// counter is an instrumented factory.
type counter struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (c *counter) factory() (any, error) {
	n := c.calls.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.err != nil {
		return nil, c.err
	}
	return &disposable{id: int(n)}, nil
}

var errBoom = errors.New("boom")

// recordingObserver collects lifecycle events.
type recordingObserver struct {
	mu          sync.Mutex
	constructed int
	failed      []error
	reasons     []registration.Reason
}

func (o *recordingObserver) Constructed(reflect.Type, registration.Lifetime, time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.constructed++
}

func (o *recordingObserver) ConstructionFailed(_ reflect.Type, _ registration.Lifetime, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed = append(o.failed, err)
}

func (o *recordingObserver) Invalidated(_ reflect.Type, _ registration.Lifetime, reason registration.Reason) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reasons = append(o.reasons, reason)
}

func (o *recordingObserver) snapshot() (int, int, []registration.Reason) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.constructed, len(o.failed), append([]registration.Reason(nil), o.reasons...)
}
