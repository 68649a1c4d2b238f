package registration

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type instanceBox struct{ value any }

// Singleton keeps at most one instance. The instance is created lazily under
// a mutex with a lock-free fast path, and may be dropped again by Reset, by
// idle expiry or by Dispose.
type Singleton struct {
	*Reflective

	mu      sync.Mutex
	current atomic.Pointer[instanceBox]

	external            bool
	disposeOnInvalidate bool
	disposeExternal     bool

	ttl        atomic.Int64
	lastAccess atomic.Int64

	// watchMu serialises watcher replacement. It is never acquired while mu
	// is held, because stopping a watcher may wait for it to take mu.
	watchMu sync.Mutex
	watcher atomic.Pointer[expiryWatcher]
}

var _ Registration = (*Singleton)(nil)

// NewSingleton creates a lazily constructed singleton registration.
func NewSingleton(serviceType reflect.Type, resolver Resolver, opts ...Option) (*Singleton, error) {
	s := newSettings(opts)
	r, err := newReflective(serviceType, LifetimeSingleton, resolver, s)
	if err != nil {
		return nil, err
	}
	return newSingleton(r, s), nil
}

// NewSingletonInstance wraps an instance built by the caller. The
// registration starts created and never returns to the empty state; the
// instance is only disposed when WithDisposeExternal(true) is given.
func NewSingletonInstance(serviceType reflect.Type, instance any, opts ...Option) (*Singleton, error) {
	if serviceType == nil {
		return nil, ErrNilServiceType
	}
	if instance == nil {
		return nil, ErrNilInstance
	}
	if it := reflect.TypeOf(instance); !it.AssignableTo(serviceType) {
		return nil, fmt.Errorf("%w: %s to %s", ErrIncompatibleInstance, it, serviceType)
	}
	s := newSettings(opts)
	r := &Reflective{
		base:         newBase(serviceType, LifetimeSingleton, s),
		constructors: sortByArity(s.constructors),
		factory:      s.factory,
		tracer:       s.tracer,
		settings:     s,
	}
	single := newSingleton(r, s)
	single.external = true
	single.current.Store(&instanceBox{value: instance})
	single.touch()
	return single, nil
}

func newSingleton(r *Reflective, s *settings) *Singleton {
	single := &Singleton{
		Reflective:          r,
		disposeOnInvalidate: s.disposeOnInvalidate,
		disposeExternal:     s.disposeExternal,
	}
	single.ttl.Store(int64(s.timeToLive))
	return single
}

// GetService returns the cached instance, building it on first use. A
// cached failure is returned as-is until Reset.
//
// An instance that expired between the lock-free load and the access stamp
// is not returned; the call falls through to construction instead. An
// explicit Reset or Dispose racing with GetService may still release an
// instance a caller has just received.
func (s *Singleton) GetService(ctx context.Context) (any, error) {
	if s.IsDisposed() {
		return nil, ErrDisposed
	}
	if err := s.LastFailure(); err != nil {
		return nil, err
	}
	if box := s.current.Load(); box != nil {
		s.touch()
		// expire checks idle time and swaps under mu, so once the stamp is
		// visible an unchanged box cannot be expired before the next idle period
		if s.current.Load() == box {
			s.ensureWatcher()
			return box.value, nil
		}
	}
	return s.create(ctx)
}

func (s *Singleton) create(ctx context.Context) (any, error) {
	s.mu.Lock()
	if s.IsDisposed() {
		s.mu.Unlock()
		return nil, ErrDisposed
	}
	if err := s.LastFailure(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if box := s.current.Load(); box != nil {
		s.mu.Unlock()
		s.touch()
		return box.value, nil
	}

	instance, err := s.CreateInstance(ctx)
	if err != nil {
		s.setFailure(err)
		s.mu.Unlock()
		s.logger.Warn("singleton construction failed, caching failure until reset", zap.Error(err))
		return nil, err
	}
	s.current.Store(&instanceBox{value: instance})
	s.clearFailure()
	s.touch()
	s.mu.Unlock()

	s.ensureWatcher()
	return instance, nil
}

// CreateNewService runs one construction attempt regardless of the cached
// state. The result is returned to the caller and not cached; a failure
// still becomes the sticky LastFailure. A wrapped external instance has
// nothing to construct from and is returned as is.
func (s *Singleton) CreateNewService(ctx context.Context) (any, error) {
	if s.IsDisposed() {
		return nil, ErrDisposed
	}
	if s.external {
		if box := s.current.Load(); box != nil {
			s.touch()
			return box.value, nil
		}
		return nil, ErrDisposed
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	instance, err := s.CreateInstance(ctx)
	if err != nil {
		s.setFailure(err)
		return nil, err
	}
	return instance, nil
}

// Reset drops the cached instance and the sticky failure. An external
// instance stays in place.
func (s *Singleton) Reset(context.Context) error {
	if s.IsDisposed() {
		return ErrDisposed
	}
	s.mu.Lock()
	s.clearFailure()
	var box *instanceBox
	if !s.external {
		box = s.current.Swap(nil)
	}
	s.mu.Unlock()

	if box == nil {
		return nil
	}
	s.invalidated(ReasonReset)
	s.logger.Debug("singleton reset")
	if s.disposeOnInvalidate {
		return disposeInstance(box.value)
	}
	return nil
}

// ResetAll is Reset: a singleton has a single slot.
func (s *Singleton) ResetAll() error {
	return s.Reset(context.Background())
}

// Dispose cancels the expiry watcher and releases the instance it owns. Only
// the first call has an effect.
func (s *Singleton) Dispose() error {
	if !s.disposed.CompareAndSwap(false, true) {
		return nil
	}

	s.watchMu.Lock()
	w := s.watcher.Swap(nil)
	s.watchMu.Unlock()
	if w != nil {
		w.stop()
	}

	s.mu.Lock()
	box := s.current.Swap(nil)
	s.mu.Unlock()

	if box == nil {
		return nil
	}
	s.invalidated(ReasonDisposed)
	if (!s.external && s.disposeOnInvalidate) || (s.external && s.disposeExternal) {
		s.logger.Debug("disposing singleton instance")
		return disposeInstance(box.value)
	}
	return nil
}

// CloneFor returns a registration for another scope. A wrapped external
// instance is shared with the clone, which never disposes it; otherwise the
// clone starts empty and builds its own instance.
func (s *Singleton) CloneFor(scope Resolver) Registration {
	cp := s.cloneSettings()
	cp.timeToLive = s.TimeToLive()

	if s.external {
		if box := s.current.Load(); box != nil {
			cp.disposeExternal = false
			clone, err := NewSingletonInstance(s.serviceType, box.value, optionsFrom(cp)...)
			if err == nil {
				clone.Reflective.resolver = scope
				return clone
			}
		}
	}

	r := &Reflective{
		base:         newBase(s.serviceType, LifetimeSingleton, cp),
		constructors: sortByArity(cp.constructors),
		factory:      cp.factory,
		resolver:     scope,
		tracer:       cp.tracer,
		settings:     cp,
	}
	return newSingleton(r, cp)
}

// SetTimeToLive changes the idle expiry. The running watcher is cancelled
// and, if an instance is cached and ttl is positive, a new one is started.
func (s *Singleton) SetTimeToLive(ttl time.Duration) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	if w := s.watcher.Swap(nil); w != nil {
		w.stop()
	}
	s.ttl.Store(int64(ttl))
	if ttl > 0 && s.canWatch() {
		s.watcher.Store(s.startWatcher(ttl))
	}
}

func (s *Singleton) TimeToLive() time.Duration {
	return time.Duration(s.ttl.Load())
}

// LastAccessTime is the time of the most recent successful GetService.
func (s *Singleton) LastAccessTime() time.Time {
	return time.Unix(0, s.lastAccess.Load())
}

// IsCreated reports whether an instance is cached.
func (s *Singleton) IsCreated() bool {
	return s.current.Load() != nil
}

func (s *Singleton) WrapsExternalInstance() bool { return s.external }

func (s *Singleton) DisposeOnInvalidate() bool { return s.disposeOnInvalidate }

func (s *Singleton) touch() {
	s.lastAccess.Store(time.Now().UnixNano())
}

func (s *Singleton) canWatch() bool {
	return !s.external && !s.IsDisposed() && s.current.Load() != nil
}

// ensureWatcher starts the expiry watcher if a ttl is set and none is
// running. Must not be called with mu held.
func (s *Singleton) ensureWatcher() {
	ttl := s.TimeToLive()
	if ttl <= 0 || s.external {
		return
	}
	if w := s.watcher.Load(); w != nil && !w.finished() {
		return
	}

	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if w := s.watcher.Load(); w != nil && !w.finished() {
		return
	}
	if ttl = s.TimeToLive(); ttl <= 0 || !s.canWatch() {
		return
	}
	s.watcher.Store(s.startWatcher(ttl))
}

func (s *Singleton) startWatcher(ttl time.Duration) *expiryWatcher {
	return startExpiryWatcher(ttl, s.LastAccessTime, func(w *expiryWatcher) bool { return s.expire(w, ttl) })
}

// expire drops the cached instance if it has been idle for ttl. It returns
// false when a concurrent access kept the instance alive. On success w
// unregisters itself under mu, so an instance rebuilt while w is still
// disposing the old one gets a watcher of its own.
func (s *Singleton) expire(w *expiryWatcher, ttl time.Duration) bool {
	s.mu.Lock()
	if time.Since(s.LastAccessTime()) < ttl && s.current.Load() != nil {
		s.mu.Unlock()
		return false
	}
	box := s.current.Swap(nil)
	s.watcher.CompareAndSwap(w, nil)
	s.mu.Unlock()

	if box == nil {
		return true
	}
	s.invalidated(ReasonExpired)
	s.logger.Debug("singleton expired", zap.Duration("ttl", ttl))
	if s.disposeOnInvalidate {
		if err := disposeInstance(box.value); err != nil {
			s.logger.Warn("disposing expired singleton failed", zap.Error(err))
		}
	}
	return true
}

// optionsFrom turns a settings snapshot back into options.
func optionsFrom(s *settings) []Option {
	return []Option{
		WithAllowInheritance(s.allowInheritance),
		WithConstructors(s.constructors...),
		WithFactory(s.factory),
		WithTimeToLive(s.timeToLive),
		WithDisposeOnInvalidate(s.disposeOnInvalidate),
		WithDisposeExternal(s.disposeExternal),
		WithLogger(s.logger),
		WithObserver(s.observer),
		WithTracer(s.tracer),
	}
}
