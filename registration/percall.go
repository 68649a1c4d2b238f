package registration

import (
	"context"
	"reflect"
)

// PerCall builds a fresh instance on every resolution. It keeps no memory
// of earlier attempts: a failure is returned to its caller and forgotten.
type PerCall struct {
	*Reflective
}

var _ Registration = (*PerCall)(nil)

// NewPerCall creates a per-call registration for serviceType.
func NewPerCall(serviceType reflect.Type, resolver Resolver, opts ...Option) (*PerCall, error) {
	r, err := newReflective(serviceType, LifetimePerCall, resolver, newSettings(opts))
	if err != nil {
		return nil, err
	}
	return &PerCall{Reflective: r}, nil
}

func (p *PerCall) GetService(ctx context.Context) (any, error) {
	if p.IsDisposed() {
		return nil, ErrDisposed
	}
	return p.CreateInstance(ctx)
}

func (p *PerCall) CreateNewService(ctx context.Context) (any, error) {
	return p.GetService(ctx)
}

// Reset is a no-op: nothing is cached.
func (p *PerCall) Reset(context.Context) error { return nil }

// ResetAll is a no-op: nothing is cached.
func (p *PerCall) ResetAll() error { return nil }

// Dispose marks the registration inert. Instances already handed out belong
// to their callers.
func (p *PerCall) Dispose() error {
	p.disposed.Store(true)
	return nil
}

func (p *PerCall) CloneFor(scope Resolver) Registration {
	return &PerCall{Reflective: p.rebind(scope, p.cloneSettings())}
}
