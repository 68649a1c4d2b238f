// Package registration implements the lifetime policies of the container:
// per-call, singleton (with optional idle expiry) and per-thread
// registrations, all sharing one constructor-selection algorithm.
//
// A registration answers for one service type. It asks a Resolver whether
// the parameters of its constructors can be satisfied, picks the richest
// constructor that can be, and caches or discards the result according to
// its lifetime. Singleton and per-thread registrations cache construction
// failures too: once construction fails, the same error is returned until
// Reset is called.
package registration

import (
	"context"
	"reflect"
	"sync/atomic"

	"go.uber.org/zap"
)

// Resolver is the outer container as seen by a registration.
type Resolver interface {
	CanResolve(t reflect.Type) bool
	Resolve(ctx context.Context, t reflect.Type) (any, error)
}

// Registration is the contract every lifetime policy implements.
type Registration interface {
	ServiceType() reflect.Type
	Lifetime() Lifetime
	AllowsInheritance() bool
	// Answers reports whether a request for t may be served by this registration.
	Answers(t reflect.Type) bool
	LastFailure() error
	GetService(ctx context.Context) (any, error)
	// CreateNewService forces one construction attempt, bypassing the cache.
	CreateNewService(ctx context.Context) (any, error)
	Reset(ctx context.Context) error
	ResetAll() error
	Dispose() error
	CloneFor(scope Resolver) Registration
}

type failure struct{ err error }

// base holds the state shared by every lifetime policy.
type base struct {
	serviceType      reflect.Type
	lifetime         Lifetime
	allowInheritance bool
	lastFailure      atomic.Pointer[failure]
	disposed         atomic.Bool
	logger           *zap.Logger
	observer         Observer
}

func newBase(serviceType reflect.Type, lifetime Lifetime, s *settings) base {
	return base{
		serviceType:      serviceType,
		lifetime:         lifetime,
		allowInheritance: s.allowInheritance,
		logger:           s.logger.With(zap.Stringer("service", serviceType), zap.Stringer("lifetime", lifetime)),
		observer:         s.observer,
	}
}

func (b *base) ServiceType() reflect.Type { return b.serviceType }

func (b *base) Lifetime() Lifetime { return b.lifetime }

func (b *base) AllowsInheritance() bool { return b.allowInheritance }

func (b *base) Answers(t reflect.Type) bool {
	if t == b.serviceType {
		return true
	}
	return b.allowInheritance && t != nil && b.serviceType.AssignableTo(t)
}

// LastFailure returns the sticky construction error, or nil.
func (b *base) LastFailure() error {
	if f := b.lastFailure.Load(); f != nil {
		return f.err
	}
	return nil
}

func (b *base) setFailure(err error) *failure {
	f := &failure{err: err}
	b.lastFailure.Store(f)
	return f
}

func (b *base) clearFailure() {
	b.lastFailure.Store(nil)
}

// clearFailureIf clears the sticky failure only if it is still f.
func (b *base) clearFailureIf(f *failure) {
	if f != nil {
		b.lastFailure.CompareAndSwap(f, nil)
	}
}

// IsDisposed reports whether Dispose has been called.
func (b *base) IsDisposed() bool { return b.disposed.Load() }

func (b *base) invalidated(reason Reason) {
	b.observer.Invalidated(b.serviceType, b.lifetime, reason)
}
