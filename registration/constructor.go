package registration

import (
	"fmt"
	"reflect"
	"slices"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Constructor describes one way of building an instance: the ordered
// parameter types it needs and how to invoke it. Parameter types are fixed
// when the Constructor is created.
type Constructor struct {
	params []reflect.Type
	out    reflect.Type
	invoke func(args []any) (any, error)
}

// ConstructorOf wraps a Go function of the form func(A, B, ...) T or
// func(A, B, ...) (T, error).
func ConstructorOf(fn any) (*Constructor, error) {
	if fn == nil {
		return nil, ErrNotFunc
	}
	fnVal := reflect.ValueOf(fn)
	fnType := fnVal.Type()
	if fnType.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w, got %s", ErrNotFunc, fnType)
	}
	if fnType.IsVariadic() {
		return nil, fmt.Errorf("%w, variadic constructors are not supported: %s", ErrNotFunc, fnType)
	}

	numOut := fnType.NumOut()
	if numOut == 0 || numOut > 2 {
		return nil, fmt.Errorf("%w, %s returns %d values", ErrNoReturn, fnType, numOut)
	}
	returnsErr := numOut == 2
	if returnsErr && fnType.Out(1) != errorType {
		return nil, fmt.Errorf("%w, got %s", ErrBadSecondReturn, fnType.Out(1))
	}

	params := make([]reflect.Type, fnType.NumIn())
	for i := range params {
		params[i] = fnType.In(i)
	}

	c := &Constructor{params: params, out: fnType.Out(0)}
	c.invoke = func(args []any) (any, error) {
		in := make([]reflect.Value, len(params))
		for i, p := range params {
			if args[i] == nil {
				in[i] = reflect.Zero(p)
				continue
			}
			v := reflect.ValueOf(args[i])
			if !v.Type().AssignableTo(p) {
				if !v.Type().ConvertibleTo(p) {
					return nil, fmt.Errorf("argument %d of %s: %s is not assignable to %s", i, fnType, v.Type(), p)
				}
				v = v.Convert(p)
			}
			in[i] = v
		}
		out := fnVal.Call(in)
		if returnsErr && !out[1].IsNil() {
			return nil, out[1].Interface().(error)
		}
		return out[0].Interface(), nil
	}
	return c, nil
}

// MustConstructorOf is like ConstructorOf but panics on an invalid function.
func MustConstructorOf(fn any) *Constructor {
	c, err := ConstructorOf(fn)
	if err != nil {
		panic(err)
	}
	return c
}

// ConstructorsOf wraps every function in fns.
func ConstructorsOf(fns ...any) ([]*Constructor, error) {
	ctors := make([]*Constructor, 0, len(fns))
	for i, fn := range fns {
		c, err := ConstructorOf(fn)
		if err != nil {
			return nil, fmt.Errorf("constructor %d: %w", i, err)
		}
		ctors = append(ctors, c)
	}
	return ctors, nil
}

// NewConstructor builds a Constructor from an explicit parameter list and an
// invoke closure, for callers that do not want reflection on the call path.
// The closure receives exactly len(params) arguments in declared order.
func NewConstructor(params []reflect.Type, invoke func(args []any) (any, error)) *Constructor {
	return &Constructor{params: slices.Clone(params), invoke: invoke}
}

// ParameterTypes returns a copy of the declared parameter types.
func (c *Constructor) ParameterTypes() []reflect.Type {
	return slices.Clone(c.params)
}

// Arity is the number of parameters.
func (c *Constructor) Arity() int { return len(c.params) }

// ResultType is the declared return type, or nil for constructors built
// with NewConstructor.
func (c *Constructor) ResultType() reflect.Type { return c.out }

// Invoke calls the constructor positionally. Errors returned by the
// constructor body are passed through unchanged.
func (c *Constructor) Invoke(args []any) (any, error) {
	if len(args) != len(c.params) {
		return nil, fmt.Errorf("constructor expects %d arguments, got %d", len(c.params), len(args))
	}
	return c.invoke(args)
}

// sortByArity orders constructors by parameter count, richest first. Equal
// arities keep their declaration order.
func sortByArity(ctors []*Constructor) []*Constructor {
	sorted := slices.Clone(ctors)
	slices.SortStableFunc(sorted, func(a, b *Constructor) int {
		return b.Arity() - a.Arity()
	})
	return sorted
}
