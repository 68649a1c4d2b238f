package registration

import "io"

// Disposer is implemented by instances that release resources explicitly.
type Disposer interface {
	Dispose() error
}

// disposeInstance releases instance if it implements Disposer or io.Closer.
func disposeInstance(instance any) error {
	switch v := instance.(type) {
	case Disposer:
		return v.Dispose()
	case io.Closer:
		return v.Close()
	default:
		return nil
	}
}
