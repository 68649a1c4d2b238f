package registration

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/Ngone6325/gofac/v2/registration"

// Option configures a registration. Options that do not apply to a
// lifetime policy are ignored by it.
type Option func(*settings)

type settings struct {
	allowInheritance    bool
	constructors        []*Constructor
	factory             func() (any, error)
	timeToLive          time.Duration
	disposeOnInvalidate bool
	disposeExternal     bool
	logger              *zap.Logger
	observer            Observer
	tracer              trace.Tracer
}

func newSettings(opts []Option) *settings {
	s := &settings{}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.observer == nil {
		s.observer = NopObserver()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	return s
}

// WithAllowInheritance lets the registration answer requests for any type
// its service type is assignable to.
func WithAllowInheritance(allow bool) Option {
	return func(s *settings) { s.allowInheritance = allow }
}

// WithConstructors adds candidate constructors.
func WithConstructors(ctors ...*Constructor) Option {
	return func(s *settings) { s.constructors = append(s.constructors, ctors...) }
}

// WithFactory installs a zero-argument factory. When present it always wins
// over constructor selection.
func WithFactory(fn func() (any, error)) Option {
	return func(s *settings) { s.factory = fn }
}

// WithTimeToLive sets the idle time after which a cached singleton is dropped.
// Zero disables expiry.
func WithTimeToLive(ttl time.Duration) Option {
	return func(s *settings) { s.timeToLive = ttl }
}

// WithDisposeOnInvalidate disposes cached instances when they are reset,
// expired or released by Dispose.
func WithDisposeOnInvalidate(dispose bool) Option {
	return func(s *settings) { s.disposeOnInvalidate = dispose }
}

// WithDisposeExternal makes Dispose release an instance passed to
// NewSingletonInstance.
func WithDisposeExternal(dispose bool) Option {
	return func(s *settings) { s.disposeExternal = dispose }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

func WithObserver(observer Observer) Option {
	return func(s *settings) { s.observer = observer }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *settings) { s.tracer = tracer }
}
