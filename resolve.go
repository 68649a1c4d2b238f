package gofac

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ngone6325/gofac/v2/registration"
)

// resolvePath is the chain of types being resolved on the current call
// stack, carried in the context.
type resolvePath struct {
	t    reflect.Type
	prev *resolvePath
}

type pathKey struct{}

func pathFrom(ctx context.Context) *resolvePath {
	p, _ := ctx.Value(pathKey{}).(*resolvePath)
	return p
}

func (p *resolvePath) contains(t reflect.Type) bool {
	for ; p != nil; p = p.prev {
		if p.t == t {
			return true
		}
	}
	return false
}

func (p *resolvePath) String() string {
	var types []string
	for ; p != nil; p = p.prev {
		types = append(types, p.t.String())
	}
	for i, j := 0, len(types)-1; i < j; i, j = i+1, j-1 {
		types[i], types[j] = types[j], types[i]
	}
	return strings.Join(types, " -> ")
}

// CanResolve reports whether Resolve has a registration to serve t from.
// Unregistered []T and map[string]T are resolvable when at least one
// registration of T exists.
func (c *Container) CanResolve(t reflect.Type) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.lookup(t); ok {
		return true
	}
	if elem, ok := collectionElem(t); ok {
		return len(c.collectable(elem, t.Kind() == reflect.Map)) > 0
	}
	return false
}

// Resolve returns an instance of t. Construction errors are returned
// unchanged; re-entering a type already being resolved on the same call chain
// fails with ErrResolveCircularDependency.
func (c *Container) Resolve(ctx context.Context, t reflect.Type) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.disposed.Load() {
		return nil, ErrContainerDisposed
	}
	if t == nil {
		return nil, fmt.Errorf("%w: nil type", ErrServiceNotRegistered)
	}

	path := pathFrom(ctx)
	if path.contains(t) {
		return nil, fmt.Errorf("%w: %s", ErrResolveCircularDependency, &resolvePath{t: t, prev: path})
	}
	ctx = context.WithValue(ctx, pathKey{}, &resolvePath{t: t, prev: path})

	ctx, span := c.tracer.Start(ctx, "gofac.resolve", trace.WithAttributes(
		attribute.String("gofac.service", t.String()),
	))
	defer span.End()

	v, err := c.resolve(ctx, t)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return v, nil
}

func (c *Container) resolve(ctx context.Context, t reflect.Type) (any, error) {
	if reg, ok := c.Lookup(t); ok {
		v, err := reg.GetService(ctx)
		if err != nil {
			return nil, err
		}
		return coerce(v, t)
	}
	if elem, ok := collectionElem(t); ok {
		return c.collect(ctx, t, elem)
	}
	return nil, fmt.Errorf("%w: %s", ErrServiceNotRegistered, t)
}

// ResolveNamed returns the instance registered under name and t.
func (c *Container) ResolveNamed(ctx context.Context, name string, t reflect.Type) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.disposed.Load() {
		return nil, ErrContainerDisposed
	}
	c.mu.RLock()
	reg, ok := c.named[name][t]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: name %q, type %s", ErrServiceNotRegistered, name, t)
	}
	v, err := reg.GetService(ctx)
	if err != nil {
		return nil, err
	}
	return coerce(v, t)
}

// ResolveInto resolves the type out points to and stores the instance in it.
func (c *Container) ResolveInto(ctx context.Context, out any) error {
	outVal := reflect.ValueOf(out)
	if outVal.Kind() != reflect.Pointer || outVal.IsNil() {
		return ErrInvalidOutPtr
	}
	svcType := outVal.Elem().Type()
	instance, err := c.Resolve(ctx, svcType)
	if err != nil {
		return err
	}
	if instance == nil {
		outVal.Elem().Set(reflect.Zero(svcType))
		return nil
	}
	outVal.Elem().Set(reflect.ValueOf(instance))
	return nil
}

// Reset resets the registration serving t.
func (c *Container) Reset(ctx context.Context, t reflect.Type) error {
	reg, ok := c.Lookup(t)
	if !ok {
		return fmt.Errorf("%w: %s", ErrServiceNotRegistered, t)
	}
	return reg.Reset(ctx)
}

func collectionElem(t reflect.Type) (reflect.Type, bool) {
	if t == nil {
		return nil, false
	}
	switch {
	case t.Kind() == reflect.Slice:
		return t.Elem(), true
	case t.Kind() == reflect.Map && t.Key().Kind() == reflect.String:
		return t.Elem(), true
	}
	return nil, false
}

// collectable lists the registrations gathered into a collection of elem:
// the default registration (slices only) followed by named registrations of
// elem in registration order. c.mu must be held.
func (c *Container) collectable(elem reflect.Type, namedOnly bool) []entry {
	var out []entry
	if !namedOnly {
		if reg, ok := c.lookup(elem); ok {
			out = append(out, entry{reg: reg})
		}
	}
	for _, e := range c.order {
		if e.name != "" && e.reg.ServiceType() == elem {
			out = append(out, e)
		}
	}
	return out
}

// collect builds []T from every registration of T, or map[string]T from the
// named registrations of T.
func (c *Container) collect(ctx context.Context, t, elem reflect.Type) (any, error) {
	isMap := t.Kind() == reflect.Map

	c.mu.RLock()
	entries := c.collectable(elem, isMap)
	c.mu.RUnlock()
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotRegistered, t)
	}

	var result reflect.Value
	if isMap {
		result = reflect.MakeMapWithSize(t, len(entries))
	} else {
		result = reflect.MakeSlice(t, 0, len(entries))
	}
	for _, e := range entries {
		v, err := e.reg.GetService(ctx)
		if err != nil {
			return nil, fmt.Errorf("collect %s: %w", t, err)
		}
		v, err = coerce(v, elem)
		if err != nil {
			return nil, err
		}
		val := reflect.Zero(elem)
		if v != nil {
			val = reflect.ValueOf(v)
		}
		if isMap {
			result.SetMapIndex(reflect.ValueOf(e.name).Convert(t.Key()), val)
		} else {
			result = reflect.Append(result, val)
		}
	}
	return result.Interface(), nil
}

// Get resolves T from c.
func Get[T any](ctx context.Context, c *Container) (T, error) {
	var zero T
	svcType := reflect.TypeFor[T]()
	instance, err := c.Resolve(ctx, svcType)
	if err != nil {
		return zero, err
	}
	return typed[T](instance, svcType)
}

// GetNamed resolves the instance of T registered under name.
func GetNamed[T any](ctx context.Context, c *Container, name string) (T, error) {
	var zero T
	svcType := reflect.TypeFor[T]()
	instance, err := c.ResolveNamed(ctx, name, svcType)
	if err != nil {
		return zero, err
	}
	return typed[T](instance, svcType)
}

// typed converts a resolved instance to T.
func typed[T any](instance any, svcType reflect.Type) (T, error) {
	var zero T
	if instance == nil {
		return zero, nil
	}
	v, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %T to %s", ErrTypeConvertFailed, instance, svcType)
	}
	return v, nil
}

// MustGet is Get that panics on error.
func MustGet[T any](ctx context.Context, c *Container) T {
	inst, err := Get[T](ctx, c)
	if err != nil {
		panic(err)
	}
	return inst
}

// MustResolveInto is ResolveInto that panics on error.
func (c *Container) MustResolveInto(ctx context.Context, out any) {
	if err := c.ResolveInto(ctx, out); err != nil {
		panic(fmt.Sprintf("gofac: resolve failed: %v", err))
	}
}

// Thread identity for PerThread services.
var (
	WithThread        = registration.WithThread
	WithThreadID      = registration.WithThreadID
	ThreadFromContext = registration.ThreadFromContext
)

type ThreadID = registration.ThreadID
