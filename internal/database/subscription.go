package database

import (
	"context"
	"sync"
)

// Snapshot is a full restatement of a subscribed result set, or the error
// that ended the subscription.
type Snapshot[T any] struct {
	Items []T
	Err   error
}

// Subscription delivers snapshots until Close is called or an error snapshot
// is delivered. The channel is closed when the subscription ends.
type Subscription[T any] interface {
	Snapshots() <-chan Snapshot[T]
	Close()
}

// feed is the shared Subscription implementation. It holds at most one
// pending snapshot: a newer snapshot replaces an unread older one, since each
// snapshot is the entire current result set.
type feed[T any] struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	ch      chan Snapshot[T]
	closed  bool
	onClose func()
}

func newFeed[T any](parent context.Context, onClose func()) *feed[T] {
	ctx, cancel := context.WithCancel(parent)
	f := &feed[T]{
		ctx:     ctx,
		cancel:  cancel,
		ch:      make(chan Snapshot[T], 1),
		onClose: onClose,
	}
	go func() {
		<-ctx.Done()
		f.Close()
	}()
	return f
}

func (f *feed[T]) Snapshots() <-chan Snapshot[T] {
	return f.ch
}

// publish hands a snapshot to the reader, dropping any unread older one.
// An error snapshot ends the subscription; the reader still receives it
// before the channel closes.
func (f *feed[T]) publish(snap Snapshot[T]) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	select {
	case <-f.ch:
	default:
	}
	f.ch <- snap
	if snap.Err == nil {
		f.mu.Unlock()
		return
	}
	onClose := f.closeLocked()
	f.mu.Unlock()
	f.finish(onClose)
}

func (f *feed[T]) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	onClose := f.closeLocked()
	f.mu.Unlock()
	f.finish(onClose)
}

func (f *feed[T]) closeLocked() func() {
	f.closed = true
	close(f.ch)
	return f.onClose
}

func (f *feed[T]) finish(onClose func()) {
	f.cancel()
	if onClose != nil {
		onClose()
	}
}
