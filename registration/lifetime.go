package registration

// Lifetime selects how a registration caches the instances it produces.
type Lifetime int

const (
	LifetimePerCall   Lifetime = iota // PerCall: new instance on every resolution, failures are not cached
	LifetimeSingleton                 // Singleton: one instance per container, optionally expired on idle TTL
	LifetimePerThread                 // PerThread: one instance per ThreadID carried in the context
)

func (l Lifetime) String() string {
	switch l {
	case LifetimePerCall:
		return "per-call"
	case LifetimeSingleton:
		return "singleton"
	case LifetimePerThread:
		return "per-thread"
	default:
		return "unknown"
	}
}
