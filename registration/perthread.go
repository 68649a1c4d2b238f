package registration

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// threadSlot is one thread's cached instance or sticky failure.
type threadSlot struct {
	mu       sync.Mutex
	created  bool
	instance any
	failure  error
	shared   *failure // the registration-wide copy of failure
}

// threadSlots is one generation of per-thread state. ResetAll replaces the
// whole generation in a single atomic swap.
type threadSlots struct {
	slots sync.Map // ThreadID -> *threadSlot
	last  atomic.Pointer[threadSlot]
}

func (g *threadSlots) slot(id ThreadID) *threadSlot {
	if s, ok := g.slots.Load(id); ok {
		return s.(*threadSlot)
	}
	s, _ := g.slots.LoadOrStore(id, &threadSlot{})
	return s.(*threadSlot)
}

// PerThread keeps one instance per ThreadID. Slots are independent: a
// failure on one thread is cached for that thread only.
type PerThread struct {
	*Reflective
	generation          atomic.Pointer[threadSlots]
	disposeOnInvalidate bool
}

var _ Registration = (*PerThread)(nil)

// NewPerThread creates a per-thread registration. Callers identify their
// thread with WithThread or WithThreadID.
func NewPerThread(serviceType reflect.Type, resolver Resolver, opts ...Option) (*PerThread, error) {
	s := newSettings(opts)
	r, err := newReflective(serviceType, LifetimePerThread, resolver, s)
	if err != nil {
		return nil, err
	}
	return newPerThread(r, s), nil
}

func newPerThread(r *Reflective, s *settings) *PerThread {
	p := &PerThread{Reflective: r, disposeOnInvalidate: s.disposeOnInvalidate}
	p.generation.Store(&threadSlots{})
	return p
}

// GetService returns the calling thread's instance, building it on the
// thread's first call.
func (p *PerThread) GetService(ctx context.Context) (any, error) {
	if p.IsDisposed() {
		return nil, ErrDisposed
	}
	id, ok := ThreadFromContext(ctx)
	if !ok {
		return nil, ErrNoThread
	}

	gen := p.generation.Load()
	slot := gen.slot(id)
	slot.mu.Lock()
	defer slot.mu.Unlock()
	gen.last.Store(slot)

	if slot.failure != nil {
		return nil, slot.failure
	}
	if slot.created {
		return slot.instance, nil
	}
	return p.fill(ctx, slot)
}

// fill constructs into slot. slot.mu must be held.
func (p *PerThread) fill(ctx context.Context, slot *threadSlot) (any, error) {
	instance, err := p.CreateInstance(ctx)
	if err != nil {
		slot.failure = err
		slot.shared = p.setFailure(err)
		p.logger.Warn("per-thread construction failed, caching failure for this thread", zap.Error(err))
		return nil, err
	}
	slot.instance = instance
	slot.created = true
	return instance, nil
}

// CreateNewService forces one construction for the calling thread. The
// instance is not cached; a failure becomes that thread's sticky failure.
func (p *PerThread) CreateNewService(ctx context.Context) (any, error) {
	if p.IsDisposed() {
		return nil, ErrDisposed
	}
	id, ok := ThreadFromContext(ctx)
	if !ok {
		return nil, ErrNoThread
	}
	slot := p.generation.Load().slot(id)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	instance, err := p.CreateInstance(ctx)
	if err != nil {
		slot.failure = err
		slot.shared = p.setFailure(err)
		return nil, err
	}
	return instance, nil
}

// Reset clears the calling thread's slot. LastFailure is cleared too when it
// still reports this thread's failure.
func (p *PerThread) Reset(ctx context.Context) error {
	if p.IsDisposed() {
		return ErrDisposed
	}
	id, ok := ThreadFromContext(ctx)
	if !ok {
		return ErrNoThread
	}
	gen := p.generation.Load()
	v, loaded := gen.slots.LoadAndDelete(id)
	if !loaded {
		return nil
	}
	slot := v.(*threadSlot)
	slot.mu.Lock()
	instance, created, shared := slot.instance, slot.created, slot.shared
	slot.instance, slot.created, slot.failure, slot.shared = nil, false, nil, nil
	slot.mu.Unlock()
	gen.last.CompareAndSwap(slot, nil)
	p.clearFailureIf(shared)

	if !created {
		return nil
	}
	p.invalidated(ReasonReset)
	if p.disposeOnInvalidate {
		return disposeInstance(instance)
	}
	return nil
}

// ResetAll starts a new, empty generation of slots. Only the previous
// generation's most recently accessed instance is disposed; instances cached
// for other threads are released to the garbage collector without Dispose.
func (p *PerThread) ResetAll() error {
	if p.IsDisposed() {
		return ErrDisposed
	}
	prev := p.generation.Swap(&threadSlots{})
	p.clearFailure()
	p.invalidated(ReasonResetAll)
	return p.releaseLast(prev)
}

func (p *PerThread) releaseLast(gen *threadSlots) error {
	slot := gen.last.Load()
	if slot == nil {
		return nil
	}
	slot.mu.Lock()
	instance, created := slot.instance, slot.created
	slot.mu.Unlock()
	if created && p.disposeOnInvalidate {
		return disposeInstance(instance)
	}
	return nil
}

// Dispose makes the registration inert and releases the instance of every
// thread in the current generation. Errors are combined.
func (p *PerThread) Dispose() error {
	if !p.disposed.CompareAndSwap(false, true) {
		return nil
	}
	prev := p.generation.Swap(&threadSlots{})
	p.invalidated(ReasonDisposed)
	if !p.disposeOnInvalidate {
		return nil
	}

	var err error
	prev.slots.Range(func(_, v any) bool {
		slot := v.(*threadSlot)
		slot.mu.Lock()
		instance, created := slot.instance, slot.created
		slot.instance, slot.created = nil, false
		slot.mu.Unlock()
		if created {
			err = multierr.Append(err, disposeInstance(instance))
		}
		return true
	})
	return err
}

// LastFailureFor returns the sticky failure of the thread bound to ctx.
func (p *PerThread) LastFailureFor(ctx context.Context) error {
	id, ok := ThreadFromContext(ctx)
	if !ok {
		return nil
	}
	v, ok := p.generation.Load().slots.Load(id)
	if !ok {
		return nil
	}
	slot := v.(*threadSlot)
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.failure
}

func (p *PerThread) DisposeOnInvalidate() bool { return p.disposeOnInvalidate }

// CloneFor returns an equivalent registration with empty slots bound to scope.
func (p *PerThread) CloneFor(scope Resolver) Registration {
	cp := p.cloneSettings()
	return newPerThread(p.rebind(scope, cp), cp)
}
