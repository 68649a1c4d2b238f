package registration

import (
	"context"
	"time"
)

// expiryWatcher drops a cached singleton once it has been idle for ttl. It
// owns a single timer that is re-armed for the remaining idle budget each
// time it fires early, so it neither spins nor outlives its cancellation.
type expiryWatcher struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// startExpiryWatcher runs the watch loop in its own goroutine. lastAccess
// reports the most recent access; expire is called once the idle time
// reaches ttl, receives the watcher itself, and returns false if a concurrent
// access revived the instance.
func startExpiryWatcher(ttl time.Duration, lastAccess func() time.Time, expire func(*expiryWatcher) bool) *expiryWatcher {
	ctx, cancel := context.WithCancel(context.Background())
	w := &expiryWatcher{cancel: cancel, done: make(chan struct{})}
	go w.run(ctx, ttl, lastAccess, func() bool { return expire(w) })
	return w
}

func (w *expiryWatcher) run(ctx context.Context, ttl time.Duration, lastAccess func() time.Time, expire func() bool) {
	defer close(w.done)

	timer := time.NewTimer(until(lastAccess(), ttl))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if idle := time.Since(lastAccess()); idle < ttl {
			timer.Reset(ttl - idle)
			continue
		}
		if expire() {
			return
		}
		timer.Reset(until(lastAccess(), ttl))
	}
}

// stop cancels the loop and waits for it to exit.
func (w *expiryWatcher) stop() {
	w.cancel()
	<-w.done
}

// finished reports whether the loop has exited on its own.
func (w *expiryWatcher) finished() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

func until(last time.Time, ttl time.Duration) time.Duration {
	d := ttl - time.Since(last)
	if d <= 0 {
		return time.Millisecond
	}
	return d
}
