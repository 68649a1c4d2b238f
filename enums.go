package gofac

import "github.com/Ngone6325/gofac/v2/registration"

// Lifetime decides how long a resolved instance lives.
type Lifetime = registration.Lifetime

const (
	Transient = registration.LifetimePerCall   // Transient: creates a new instance on each retrieval
	Singleton = registration.LifetimeSingleton // Singleton: one instance per container or scope
	PerThread = registration.LifetimePerThread // PerThread: one instance per ThreadID carried in the context
)
