package registration

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	ErrNotFunc              = errors.New("constructor must be a function")
	ErrNoReturn             = errors.New("constructor must return the instance and optionally an error")
	ErrBadSecondReturn      = errors.New("second return value of a constructor must be error")
	ErrNilServiceType       = errors.New("service type cannot be nil")
	ErrNothingToConstruct   = errors.New("registration needs at least one constructor or a factory")
	ErrNilInstance          = errors.New("wrapped instance cannot be nil")
	ErrIncompatibleInstance = errors.New("instance is not assignable to the service type")
	ErrDisposed             = errors.New("registration has been disposed")
	ErrNoThread             = errors.New("context carries no thread identity, use WithThread")
)

// ConstructorNotFoundError is returned when no constructor has a fully
// resolvable parameter list.
type ConstructorNotFoundError struct {
	ServiceType reflect.Type
}

func (e *ConstructorNotFoundError) Error() string {
	return fmt.Sprintf("no constructor of %s has all of its parameters resolvable", e.ServiceType)
}

// ConstructionFailedError reports a constructor or factory that panicked.
// Errors returned by constructors are never wrapped in it.
type ConstructionFailedError struct {
	ServiceType reflect.Type
	Panic       any
}

func (e *ConstructionFailedError) Error() string {
	return fmt.Sprintf("construction of %s panicked: %v", e.ServiceType, e.Panic)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *ConstructionFailedError) Unwrap() error {
	if err, ok := e.Panic.(error); ok {
		return err
	}
	return nil
}
