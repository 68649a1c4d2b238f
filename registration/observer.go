package registration

import (
	"reflect"
	"time"
)

// Reason tells an Observer why a cached instance was dropped.
type Reason string

const (
	ReasonReset    Reason = "reset"
	ReasonResetAll Reason = "reset_all"
	ReasonExpired  Reason = "expired"
	ReasonDisposed Reason = "disposed"
)

// Observer receives lifecycle events from registrations. Implementations
// must be safe for concurrent use and must not call back into the
// registration that emitted the event.
type Observer interface {
	Constructed(serviceType reflect.Type, lifetime Lifetime, took time.Duration)
	ConstructionFailed(serviceType reflect.Type, lifetime Lifetime, err error)
	Invalidated(serviceType reflect.Type, lifetime Lifetime, reason Reason)
}

type nopObserver struct{}

func (nopObserver) Constructed(reflect.Type, Lifetime, time.Duration) {}
func (nopObserver) ConstructionFailed(reflect.Type, Lifetime, error)  {}
func (nopObserver) Invalidated(reflect.Type, Lifetime, Reason)        {}

// NopObserver discards every event.
func NopObserver() Observer { return nopObserver{} }
