package gofac

import (
	"errors"

	"github.com/Ngone6325/gofac/v2/registration"
)

// Container errors. Construction errors raised by registrations are returned
// unchanged and are not listed here.
var (
	ErrNotFunc                   = registration.ErrNotFunc
	ErrNoReturn                  = registration.ErrNoReturn
	ErrNilInstance               = registration.ErrNilInstance
	ErrRegisterDuplicate         = errors.New("service type already registered, duplicate registration prohibited")
	ErrServiceNotRegistered      = errors.New("service not registered, cannot resolve")
	ErrNotConcreteType           = errors.New("constructor return value must be concrete type (not interface)")
	ErrResolveCircularDependency = errors.New("circular dependency detected during resolution")
	ErrInvalidInterfaceType      = errors.New("interfaceType must be a nil pointer to interface, e.g. (*IInterface)(nil)")
	ErrInvalidOutPtr             = errors.New("out must be a non-nil pointer type")
	ErrTypeConvertFailed         = errors.New("instance cannot be converted to target type")
	ErrUnknownLifetime           = errors.New("unknown lifetime")
	ErrEmptyName                 = errors.New("named registration requires a non-empty name")
	ErrContainerDisposed         = errors.New("container has been disposed")
)

type (
	ConstructorNotFoundError = registration.ConstructorNotFoundError
	ConstructionFailedError  = registration.ConstructionFailedError
)
