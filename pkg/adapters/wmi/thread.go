package wmi

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

var errThreadClosed = errors.New("wmi: COM thread stopped")

// comThread runs every COM call on one OS thread. COM apartments are bound
// to threads, so interface pointers must never be touched from another one.
type comThread struct {
	calls chan func()
	done  chan struct{}
	once  sync.Once
}

// startThread locks a goroutine to its OS thread, runs init on it, and then
// serves calls until stop. If init fails the thread exits and the error is
// returned.
func startThread(init func() error, teardown func()) (*comThread, error) {
	t := &comThread{
		calls: make(chan func()),
		done:  make(chan struct{}),
	}
	ready := make(chan error, 1)

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		if err := init(); err != nil {
			ready <- err
			return
		}
		ready <- nil

		for {
			select {
			case fn := <-t.calls:
				fn()
			case <-t.done:
				if teardown != nil {
					teardown()
				}
				return
			}
		}
	}()

	if err := <-ready; err != nil {
		return nil, err
	}
	return t, nil
}

// do runs fn on the COM thread and waits for it. A cancelled context stops
// the wait for a free thread, but fn always runs to completion once started.
func (t *comThread) do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	call := func() { result <- fn() }

	select {
	case t.calls <- call:
	case <-t.done:
		return errThreadClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-result
}

// stop ends the thread after any call in progress. It is safe to call more
// than once.
func (t *comThread) stop() {
	t.once.Do(func() { close(t.done) })
}
