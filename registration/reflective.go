package registration

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Reflective builds instances either from a factory or from the richest
// constructor whose parameters the Resolver can satisfy. Lifetime policies
// embed it and decide what to cache.
type Reflective struct {
	base
	constructors []*Constructor
	factory      func() (any, error)
	resolver     Resolver
	tracer       trace.Tracer
	settings     *settings
}

func newReflective(serviceType reflect.Type, lifetime Lifetime, resolver Resolver, s *settings) (*Reflective, error) {
	if serviceType == nil {
		return nil, ErrNilServiceType
	}
	if s.factory == nil && len(s.constructors) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNothingToConstruct, serviceType)
	}
	for i, c := range s.constructors {
		if c == nil {
			return nil, fmt.Errorf("constructor %d of %s is nil", i, serviceType)
		}
	}
	return &Reflective{
		base:         newBase(serviceType, lifetime, s),
		constructors: sortByArity(s.constructors),
		factory:      s.factory,
		resolver:     resolver,
		tracer:       s.tracer,
		settings:     s,
	}, nil
}

// Constructors returns the candidates in the order they are tried.
func (r *Reflective) Constructors() []*Constructor {
	out := make([]*Constructor, len(r.constructors))
	copy(out, r.constructors)
	return out
}

// HasFactory reports whether a factory overrides constructor selection.
func (r *Reflective) HasFactory() bool { return r.factory != nil }

// Resolver returns the scope this registration resolves dependencies from.
func (r *Reflective) Resolver() Resolver { return r.resolver }

// SelectConstructor returns the first constructor, in descending arity,
// whose every parameter type the resolver can satisfy.
func (r *Reflective) SelectConstructor() (*Constructor, error) {
	for _, c := range r.constructors {
		if r.canSatisfy(c) {
			return c, nil
		}
	}
	return nil, &ConstructorNotFoundError{ServiceType: r.serviceType}
}

func (r *Reflective) canSatisfy(c *Constructor) bool {
	for _, p := range c.params {
		if r.resolver == nil || !r.resolver.CanResolve(p) {
			return false
		}
	}
	return true
}

// CreateInstance performs one construction attempt. It never caches and
// never records failures; errors from the resolver or the constructor are
// returned unchanged.
func (r *Reflective) CreateInstance(ctx context.Context) (instance any, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := r.tracer.Start(ctx, "gofac.construct", trace.WithAttributes(
		attribute.String("gofac.service", r.serviceType.String()),
		attribute.String("gofac.lifetime", r.lifetime.String()),
	))
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			instance = nil
			err = &ConstructionFailedError{ServiceType: r.serviceType, Panic: rec}
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			r.observer.ConstructionFailed(r.serviceType, r.lifetime, err)
			r.logger.Debug("construction failed", zap.Error(err))
		} else {
			took := time.Since(start)
			r.observer.Constructed(r.serviceType, r.lifetime, took)
			r.logger.Debug("constructed", zap.Duration("took", took))
		}
		span.End()
	}()

	if r.factory != nil {
		span.SetAttributes(attribute.Bool("gofac.factory", true))
		return r.factory()
	}

	ctor, err := r.SelectConstructor()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("gofac.arity", ctor.Arity()))

	args := make([]any, len(ctor.params))
	for i, p := range ctor.params {
		v, err := r.resolver.Resolve(ctx, p)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return ctor.Invoke(args)
}

// rebind builds a Reflective with the same settings bound to scope. The
// settings were validated when r was built.
func (r *Reflective) rebind(scope Resolver, cp *settings) *Reflective {
	clone, err := newReflective(r.serviceType, r.lifetime, scope, cp)
	if err != nil {
		panic(fmt.Sprintf("registration: rebinding %s: %v", r.serviceType, err))
	}
	return clone
}

// cloneSettings copies the construction settings for a clone bound to
// another scope.
func (r *Reflective) cloneSettings() *settings {
	cp := *r.settings
	cp.constructors = append([]*Constructor(nil), r.settings.constructors...)
	return &cp
}
