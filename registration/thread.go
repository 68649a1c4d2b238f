package registration

import (
	"context"

	"github.com/google/uuid"
)

// ThreadID identifies a logical thread of execution. Go does not expose
// goroutine identity, so per-thread registrations key their slots on an ID
// carried explicitly in the context.
type ThreadID string

type threadKey struct{}

// WithThread returns a context bound to a freshly generated ThreadID.
func WithThread(ctx context.Context) context.Context {
	return WithThreadID(ctx, ThreadID(uuid.NewString()))
}

// WithThreadID binds ctx to an existing ThreadID.
func WithThreadID(ctx context.Context, id ThreadID) context.Context {
	return context.WithValue(ctx, threadKey{}, id)
}

// ThreadFromContext returns the ThreadID bound to ctx, if any.
func ThreadFromContext(ctx context.Context) (ThreadID, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(threadKey{}).(ThreadID)
	return id, ok && id != ""
}
