// Package watch provides a value whose updates can be observed by any number
// of watchers.
package watch

import "sync"

// Value holds a value of type T that can be read, replaced, and watched for
// changes.
//
// The zero value of a Value is valid and holds the zero value of T.
type Value[T any] struct {
	mu       sync.RWMutex
	value    T
	watchers map[*Watch[T]]struct{}
}

// NewValue creates a Value holding x.
func NewValue[T any](x T) *Value[T] {
	return &Value[T]{value: x}
}

// Get returns the current value of v.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// Set replaces the value of v with x and notifies every active watch.
func (v *Value[T]) Set(x T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.value = x
	for w := range v.watchers {
		w.offer(x)
	}
}

// Update replaces the value of v with the result of fn applied to the current
// value, as a single atomic step.
func (v *Value[T]) Update(fn func(T) T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.value = fn(v.value)
	for w := range v.watchers {
		w.offer(v.value)
	}
}

// Watch starts calling handler with the value of v, first with the value at
// the time of the call and then after every change.
//
// Handler calls for a single watch never overlap, and run on a goroutine
// owned by the watch. When v changes several times while a call is in
// progress, only the latest value is delivered afterward; intermediate values
// are skipped.
func (v *Value[T]) Watch(handler func(T)) *Watch[T] {
	w := &Watch[T]{
		value:   v,
		handler: handler,
		pending: make(chan T, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	v.mu.Lock()
	if v.watchers == nil {
		v.watchers = make(map[*Watch[T]]struct{})
	}
	v.watchers[w] = struct{}{}
	w.offer(v.value)
	v.mu.Unlock()

	go w.run()
	return w
}

func (v *Value[T]) forget(w *Watch[T]) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.watchers, w)
}

// Watch is a single registration created by Value.Watch.
type Watch[T any] struct {
	value   *Value[T]
	handler func(T)

	pending    chan T // holds at most the latest undelivered value
	stop       chan struct{}
	done       chan struct{}
	cancelOnce sync.Once
}

func (w *Watch[T]) run() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		case x := <-w.pending:
			// Both cases may have been ready at once; stopping wins.
			select {
			case <-w.stop:
				return
			default:
			}
			w.handler(x)
		}
	}
}

// offer makes x the next value to deliver, replacing any value still waiting.
// The caller must hold the lock of the watched Value.
func (w *Watch[T]) offer(x T) {
	select {
	case <-w.pending:
	default:
	}
	w.pending <- x
}

// Cancel stops the watch. A handler call already in progress finishes, but no
// new call starts after it. Cancel may be called more than once.
func (w *Watch[T]) Cancel() {
	w.cancelOnce.Do(func() {
		w.value.forget(w)
		close(w.stop)
	})
}

// Wait blocks until the watch has been cancelled and any handler call in
// progress has returned.
func (w *Watch[T]) Wait() {
	<-w.done
}
