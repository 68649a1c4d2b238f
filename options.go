package gofac

import (
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Ngone6325/gofac/v2/registration"
)

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the logger handed to the container and every registration.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver installs a lifecycle observer on every registration.
func WithObserver(observer registration.Observer) Option {
	return func(c *Container) {
		if observer != nil {
			c.observer = observer
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Container) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithDefaults prepends opts to the options of every registration. Options
// passed to an individual Register call override them.
func WithDefaults(opts ...registration.Option) Option {
	return func(c *Container) { c.defaults = append(c.defaults, opts...) }
}
