// Package gofac is a reflection-driven dependency container. Services are
// registered by constructor, factory or ready-made instance under a Lifetime,
// and resolved by type with their constructor parameters resolved
// recursively from the same container or scope.
package gofac

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Ngone6325/gofac/v2/registration"
)

const tracerName = "github.com/Ngone6325/gofac/v2"

// entry is one registration in registration order. name is empty for the
// default (unnamed) registration of a type.
type entry struct {
	name string
	reg  registration.Registration
}

// Container owns registrations and resolves services from them. A Container
// returned by NewScope holds clones of its parent's registrations.
type Container struct {
	mu       sync.RWMutex
	services map[reflect.Type]registration.Registration            // default (unnamed) services
	named    map[string]map[reflect.Type]registration.Registration // name -> type -> registration
	order    []entry

	parent   *Container
	logger   *zap.Logger
	observer registration.Observer
	tracer   trace.Tracer
	defaults []registration.Option
	disposed atomic.Bool
}

var _ registration.Resolver = (*Container)(nil)

// NewContainer creates an empty container.
func NewContainer(opts ...Option) *Container {
	c := &Container{
		services: make(map[reflect.Type]registration.Registration),
		named:    make(map[string]map[reflect.Type]registration.Registration),
		logger:   zap.NewNop(),
		observer: registration.NopObserver(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Register registers ctor under its return type.
func (c *Container) Register(ctor any, lifetime Lifetime, opts ...registration.Option) error {
	return c.register("", ctor, nil, lifetime, opts)
}

// RegisterAs registers ctor under interfaceType, given as a nil pointer:
// (*IService)(nil) for an interface, (*Service)(nil) for a concrete type.
func (c *Container) RegisterAs(ctor any, interfaceType any, lifetime Lifetime, opts ...registration.Option) error {
	return c.register("", ctor, interfaceType, lifetime, opts)
}

// RegisterNamed registers ctor under its return type and name. Named services
// are resolved with ResolveNamed and collected into []T and map[string]T
// parameters.
func (c *Container) RegisterNamed(name string, ctor any, lifetime Lifetime, opts ...registration.Option) error {
	if name == "" {
		return ErrEmptyName
	}
	return c.register(name, ctor, nil, lifetime, opts)
}

func (c *Container) register(name string, ctor any, interfaceType any, lifetime Lifetime, opts []registration.Option) error {
	fn, err := registration.ConstructorOf(ctor)
	if err != nil {
		return err
	}
	implType := fn.ResultType()
	if implType.Kind() == reflect.Interface {
		return fmt.Errorf("%w: returns interface %s", ErrNotConcreteType, implType)
	}
	svcType, err := serviceTypeFor(implType, interfaceType)
	if err != nil {
		return err
	}
	reg, err := c.newRegistration(svcType, lifetime, append([]registration.Option{registration.WithConstructors(fn)}, opts...))
	if err != nil {
		return err
	}
	return c.add(name, reg)
}

// RegisterConstructors registers several constructors for one service type.
// The richest constructor whose parameters can all be resolved is used. The
// service type is taken from interfaceType, or from the first constructor
// when interfaceType is nil.
func (c *Container) RegisterConstructors(interfaceType any, lifetime Lifetime, ctors []any, opts ...registration.Option) error {
	fns, err := registration.ConstructorsOf(ctors...)
	if err != nil {
		return err
	}
	if len(fns) == 0 {
		return fmt.Errorf("%w: no constructors given", ErrNotFunc)
	}
	svcType, err := serviceTypeFor(fns[0].ResultType(), interfaceType)
	if err != nil {
		return err
	}
	for _, fn := range fns[1:] {
		if !isTypeCompatible(fn.ResultType(), svcType) {
			return fmt.Errorf("%w: %s to %s", ErrTypeConvertFailed, fn.ResultType(), svcType)
		}
	}
	reg, err := c.newRegistration(svcType, lifetime, append([]registration.Option{registration.WithConstructors(fns...)}, opts...))
	if err != nil {
		return err
	}
	return c.add("", reg)
}

// RegisterFactory registers a zero-argument factory for T. A factory takes
// priority over any constructor supplied through opts.
func RegisterFactory[T any](c *Container, fn func() (T, error), lifetime Lifetime, opts ...registration.Option) error {
	if fn == nil {
		return fmt.Errorf("%w: nil factory", ErrNotFunc)
	}
	factory := func() (any, error) {
		v, err := fn()
		if err != nil {
			return nil, err
		}
		return v, nil
	}
	opts = append(append([]registration.Option(nil), opts...), registration.WithFactory(factory))
	reg, err := c.newRegistration(reflect.TypeFor[T](), lifetime, opts)
	if err != nil {
		return err
	}
	return c.add("", reg)
}

// RegisterInstance registers an already constructed instance under its own
// type. The container never disposes it unless
// registration.WithDisposeExternal(true) is given.
func (c *Container) RegisterInstance(instance any, opts ...registration.Option) error {
	return c.registerInstance("", instance, nil, opts)
}

// RegisterInstanceAs registers instance under interfaceType.
func (c *Container) RegisterInstanceAs(instance any, interfaceType any, opts ...registration.Option) error {
	return c.registerInstance("", instance, interfaceType, opts)
}

// RegisterInstanceNamed registers instance under its type and name.
func (c *Container) RegisterInstanceNamed(name string, instance any, opts ...registration.Option) error {
	if name == "" {
		return ErrEmptyName
	}
	return c.registerInstance(name, instance, nil, opts)
}

func (c *Container) registerInstance(name string, instance any, interfaceType any, opts []registration.Option) error {
	if instance == nil {
		return ErrNilInstance
	}
	svcType, err := serviceTypeFor(reflect.TypeOf(instance), interfaceType)
	if err != nil {
		return err
	}
	value, err := coerce(instance, svcType)
	if err != nil {
		return err
	}
	reg, err := registration.NewSingletonInstance(svcType, value, c.registrationOptions(opts)...)
	if err != nil {
		return err
	}
	return c.add(name, reg)
}

func (c *Container) registrationOptions(extra []registration.Option) []registration.Option {
	opts := make([]registration.Option, 0, 3+len(c.defaults)+len(extra))
	opts = append(opts,
		registration.WithLogger(c.logger),
		registration.WithObserver(c.observer),
		registration.WithTracer(c.tracer),
	)
	opts = append(opts, c.defaults...)
	return append(opts, extra...)
}

func (c *Container) newRegistration(svcType reflect.Type, lifetime Lifetime, opts []registration.Option) (registration.Registration, error) {
	opts = c.registrationOptions(opts)
	switch lifetime {
	case Transient:
		reg, err := registration.NewPerCall(svcType, c, opts...)
		if err != nil {
			return nil, err
		}
		return reg, nil
	case Singleton:
		reg, err := registration.NewSingleton(svcType, c, opts...)
		if err != nil {
			return nil, err
		}
		return reg, nil
	case PerThread:
		reg, err := registration.NewPerThread(svcType, c, opts...)
		if err != nil {
			return nil, err
		}
		return reg, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownLifetime, int(lifetime))
	}
}

func (c *Container) add(name string, reg registration.Registration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed.Load() {
		return ErrContainerDisposed
	}
	if err := c.insert(name, reg); err != nil {
		return err
	}
	c.logger.Debug("service registered",
		zap.Stringer("service", reg.ServiceType()),
		zap.Stringer("lifetime", reg.Lifetime()),
		zap.String("name", name),
	)
	return nil
}

// insert adds reg to the lookup tables. c.mu must be held.
func (c *Container) insert(name string, reg registration.Registration) error {
	svcType := reg.ServiceType()
	if name == "" {
		if _, exists := c.services[svcType]; exists {
			return fmt.Errorf("%w: %s", ErrRegisterDuplicate, svcType)
		}
		c.services[svcType] = reg
	} else {
		if c.named[name] == nil {
			c.named[name] = make(map[reflect.Type]registration.Registration)
		}
		if _, exists := c.named[name][svcType]; exists {
			return fmt.Errorf("%w: name %q, type %s", ErrRegisterDuplicate, name, svcType)
		}
		c.named[name][svcType] = reg
	}
	c.order = append(c.order, entry{name: name, reg: reg})
	return nil
}

// serviceTypeFor resolves the type a registration answers for.
func serviceTypeFor(implType reflect.Type, interfaceType any) (reflect.Type, error) {
	if interfaceType == nil {
		return implType, nil
	}
	targetType := reflect.TypeOf(interfaceType)
	if targetType.Kind() != reflect.Pointer {
		return nil, ErrInvalidInterfaceType
	}
	if elemType := targetType.Elem(); elemType.Kind() == reflect.Interface {
		if !implType.Implements(elemType) {
			return nil, fmt.Errorf("%w: %s does not implement %s", ErrTypeConvertFailed, implType, elemType)
		}
		return elemType, nil
	}
	// (*Service)(nil) registers the pointer type itself
	if !isTypeCompatible(implType, targetType) {
		return nil, fmt.Errorf("%w: %s to %s", ErrTypeConvertFailed, implType, targetType)
	}
	return targetType, nil
}

// isTypeCompatible reports whether a value of implType can be handed out as
// targetType, including pointer/value adaptation.
func isTypeCompatible(implType, targetType reflect.Type) bool {
	if implType.AssignableTo(targetType) {
		return true
	}
	if implType.Kind() != reflect.Pointer && reflect.PointerTo(implType).AssignableTo(targetType) {
		return true
	}
	if implType.Kind() == reflect.Pointer && implType.Elem().AssignableTo(targetType) {
		return true
	}
	// only same-kind conversions; int -> string is not an adaptation
	return implType.Kind() == targetType.Kind() && implType.ConvertibleTo(targetType)
}

// coerce adapts v to targetType following isTypeCompatible.
func coerce(v any, targetType reflect.Type) (any, error) {
	if v == nil {
		return nil, nil
	}
	val := reflect.ValueOf(v)
	it := val.Type()
	switch {
	case it.AssignableTo(targetType):
		return v, nil
	case it.Kind() != reflect.Pointer && reflect.PointerTo(it).AssignableTo(targetType):
		ptr := reflect.New(it)
		ptr.Elem().Set(val)
		return ptr.Interface(), nil
	case it.Kind() == reflect.Pointer && !val.IsNil() && it.Elem().AssignableTo(targetType):
		return val.Elem().Interface(), nil
	case it.Kind() == targetType.Kind() && it.ConvertibleTo(targetType):
		return val.Convert(targetType).Interface(), nil
	}
	return nil, fmt.Errorf("%w: %s to %s", ErrTypeConvertFailed, it, targetType)
}

// Lookup returns the registration serving t: the exact registration first,
// otherwise the first registration, in registration order, that allows
// inheritance and answers t.
func (c *Container) Lookup(t reflect.Type) (registration.Registration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lookup(t)
}

// lookup is Lookup with c.mu held.
func (c *Container) lookup(t reflect.Type) (registration.Registration, bool) {
	if t == nil {
		return nil, false
	}
	if reg, ok := c.services[t]; ok {
		return reg, true
	}
	for _, e := range c.order {
		if e.name == "" && e.reg.AllowsInheritance() && e.reg.Answers(t) {
			return e.reg, true
		}
	}
	return nil, false
}

// Registrations returns every registration in registration order.
func (c *Container) Registrations() []registration.Registration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]registration.Registration, len(c.order))
	for i, e := range c.order {
		out[i] = e.reg
	}
	return out
}

// NewScope returns a child container holding a clone of every registration.
// Singletons start empty in the scope, so each scope builds its own instance;
// registered instances are shared with the parent. Services registered on the
// scope afterwards are not visible to the parent.
func (c *Container) NewScope() *Container {
	scope := &Container{
		services: make(map[reflect.Type]registration.Registration),
		named:    make(map[string]map[reflect.Type]registration.Registration),
		parent:   c,
		logger:   c.logger,
		observer: c.observer,
		tracer:   c.tracer,
		defaults: append([]registration.Option(nil), c.defaults...),
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.order {
		// clones of distinct entries cannot collide
		_ = scope.insert(e.name, e.reg.CloneFor(scope))
	}
	c.logger.Debug("scope created", zap.Int("registrations", len(scope.order)))
	return scope
}

// Parent returns the container this scope was created from, or nil.
func (c *Container) Parent() *Container { return c.parent }

// ResetAll resets every registration. Errors are combined.
func (c *Container) ResetAll() error {
	var err error
	for _, reg := range c.Registrations() {
		err = multierr.Append(err, reg.ResetAll())
	}
	return err
}

// Dispose disposes every registration in reverse registration order. Only the
// first call has an effect; afterwards every resolution fails with
// ErrContainerDisposed.
func (c *Container) Dispose() error {
	if !c.disposed.CompareAndSwap(false, true) {
		return nil
	}
	regs := c.Registrations()

	var err error
	for i := len(regs) - 1; i >= 0; i-- {
		if derr := regs[i].Dispose(); derr != nil {
			c.logger.Warn("dispose failed", zap.Stringer("service", regs[i].ServiceType()), zap.Error(derr))
			err = multierr.Append(err, derr)
		}
	}
	c.logger.Debug("container disposed", zap.Int("registrations", len(regs)))
	return err
}

// IsDisposed reports whether Dispose has been called.
func (c *Container) IsDisposed() bool { return c.disposed.Load() }

// ---------------------- Must helpers (panic on error) ----------------------

// MustRegister is Register that panics on error.
func (c *Container) MustRegister(ctor any, lifetime Lifetime, opts ...registration.Option) {
	if err := c.Register(ctor, lifetime, opts...); err != nil {
		panic(fmt.Sprintf("gofac: register failed: %v", err))
	}
}

// MustRegisterAs is RegisterAs that panics on error.
func (c *Container) MustRegisterAs(ctor any, interfaceType any, lifetime Lifetime, opts ...registration.Option) {
	if err := c.RegisterAs(ctor, interfaceType, lifetime, opts...); err != nil {
		panic(fmt.Sprintf("gofac: register as failed: %v", err))
	}
}

func (c *Container) MustRegisterNamed(name string, ctor any, lifetime Lifetime, opts ...registration.Option) {
	if err := c.RegisterNamed(name, ctor, lifetime, opts...); err != nil {
		panic(fmt.Sprintf("gofac: named register failed: %v", err))
	}
}

// MustRegisterInstance is RegisterInstance that panics on error.
func (c *Container) MustRegisterInstance(instance any, opts ...registration.Option) {
	if err := c.RegisterInstance(instance, opts...); err != nil {
		panic(fmt.Sprintf("gofac: instance register failed: %v", err))
	}
}

func (c *Container) MustRegisterInstanceAs(instance any, interfaceType any, opts ...registration.Option) {
	if err := c.RegisterInstanceAs(instance, interfaceType, opts...); err != nil {
		panic(fmt.Sprintf("gofac: instance register as failed: %v", err))
	}
}

func (c *Container) MustRegisterInstanceNamed(name string, instance any, opts ...registration.Option) {
	if err := c.RegisterInstanceNamed(name, instance, opts...); err != nil {
		panic(fmt.Sprintf("gofac: named instance register failed: %v", err))
	}
}
