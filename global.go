package gofac

import (
	"context"

	"github.com/Ngone6325/gofac/v2/registration"
)

// Global is a process-wide container for single-service programs that do not
// want to pass a container around.
var Global = NewContainer()

// ---------------------- Global container helpers ----------------------

func MustRegister(ctor any, lifetime Lifetime, opts ...registration.Option) {
	Global.MustRegister(ctor, lifetime, opts...)
}

func MustRegisterAs(ctor any, iface any, lifetime Lifetime, opts ...registration.Option) {
	Global.MustRegisterAs(ctor, iface, lifetime, opts...)
}

func MustRegisterInstance(instance any, opts ...registration.Option) {
	Global.MustRegisterInstance(instance, opts...)
}

func MustRegisterInstanceAs(instance any, iface any, opts ...registration.Option) {
	Global.MustRegisterInstanceAs(instance, iface, opts...)
}

func MustResolveInto(ctx context.Context, out any) { Global.MustResolveInto(ctx, out) }

// GlobalGet resolves T from Global.
func GlobalGet[T any](ctx context.Context) (T, error) { return Get[T](ctx, Global) }

// GlobalMustGet resolves T from Global and panics on error.
func GlobalMustGet[T any](ctx context.Context) T { return MustGet[T](ctx, Global) }

// GlobalNewScope creates a scope of Global.
func GlobalNewScope() *Container { return Global.NewScope() }

// GlobalReset disposes Global and replaces it with an empty container. It is
// meant for tests.
func GlobalReset() error {
	old := Global
	Global = NewContainer()
	return old.Dispose()
}
