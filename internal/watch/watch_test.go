package watch

import (
	"sync"
	"testing"
	"time"
)

const timeout = 2 * time.Second

func TestZeroValue(t *testing.T) {
	var v Value[[]string]
	if x := v.Get(); x != nil {
		t.Errorf("zero Value holds %v; want nil", x)
	}

	notify := make(chan []string, 1)
	w := v.Watch(func(x []string) { notify <- x })
	if x := receive(t, notify); x != nil {
		t.Errorf("watch on zero Value got %v; want nil", x)
	}

	w.Cancel()
	assertTerminates(t, w)
}

func TestWatchSeesCurrentThenUpdates(t *testing.T) {
	v := NewValue(1)
	notify := make(chan int)
	w := v.Watch(func(x int) { notify <- x })
	defer func() {
		w.Cancel()
		assertTerminates(t, w)
	}()

	if got := receive(t, notify); got != 1 {
		t.Fatalf("initial notification %d; want 1", got)
	}

	v.Set(2)
	if got := receive(t, notify); got != 2 {
		t.Fatalf("notification after Set %d; want 2", got)
	}

	v.Update(func(x int) int { return x * 10 })
	if got := receive(t, notify); got != 20 {
		t.Fatalf("notification after Update %d; want 20", got)
	}
	if got := v.Get(); got != 20 {
		t.Errorf("Get() = %d; want 20", got)
	}
}

func TestSlowWatcherSkipsToLatest(t *testing.T) {
	// A watcher that is busy while several updates land sees only the last one
	// afterward, and does not hold up a second watcher in the meantime.
	v := NewValue("queued")

	release, slow := make(chan struct{}), make(chan string)
	slowWatch := v.Watch(func(x string) {
		<-release
		slow <- x
	})

	fast := make(chan string)
	fastWatch := v.Watch(func(x string) { fast <- x })

	release <- struct{}{}
	if got := receive(t, slow); got != "queued" {
		t.Fatalf("slow watcher got %q; want %q", got, "queued")
	}
	if got := receive(t, fast); got != "queued" {
		t.Fatalf("fast watcher got %q; want %q", got, "queued")
	}

	v.Set("streaming")
	release <- struct{}{} // the slow handler for "streaming" is now in flight
	if got := receive(t, fast); got != "streaming" {
		t.Fatalf("fast watcher got %q; want %q", got, "streaming")
	}
	for _, s := range []string{"completed", "removed"} {
		v.Set(s)
		if got := receive(t, fast); got != s {
			t.Fatalf("fast watcher got %q; want %q", got, s)
		}
	}

	if got := receive(t, slow); got != "streaming" {
		t.Fatalf("slow watcher got %q; want %q", got, "streaming")
	}
	close(release)
	if got := receive(t, slow); got != "removed" {
		t.Errorf("slow watcher got %q after unblocking; want %q", got, "removed")
	}

	fastWatch.Cancel()
	slowWatch.Cancel()
	assertTerminates(t, fastWatch)
	assertTerminates(t, slowWatch)
}

func TestCancelDuringHandler(t *testing.T) {
	v := NewValue(0)

	started, release := make(chan int, 10), make(chan struct{})
	w := v.Watch(func(x int) {
		started <- x
		<-release
	})

	if got := receive(t, started); got != 0 {
		t.Fatalf("first handler call got %d; want 0", got)
	}
	v.Set(1)
	w.Cancel()
	v.Set(2)
	close(release)

	assertTerminates(t, w)
	select {
	case x := <-started:
		t.Errorf("handler called with %d after Cancel", x)
	default:
	}
}

func TestCancelFromHandlerTwice(t *testing.T) {
	v := NewValue(0)

	watchCh := make(chan *Watch[int], 1)
	var calls int
	w := v.Watch(func(x int) {
		calls++
		self := <-watchCh
		v.Set(x + 1)
		self.Cancel()
		self.Cancel()
	})
	watchCh <- w

	assertTerminates(t, w)
	if calls != 1 {
		t.Errorf("handler called %d times; want 1", calls)
	}
	if got := v.Get(); got != 1 {
		t.Errorf("Get() = %d; want 1", got)
	}
}

func TestConcurrentSetters(t *testing.T) {
	// Meant for the race detector: concurrent writers, and watchers that must
	// all observe the final value.
	const (
		nWrites   = 500
		nWatchers = 20
	)

	v := NewValue(0)
	var sawFinal sync.WaitGroup
	sawFinal.Add(nWatchers)

	watches := make([]*Watch[int], nWatchers)
	for i := range watches {
		var once sync.Once
		watches[i] = v.Watch(func(x int) {
			if x == nWrites {
				once.Do(sawFinal.Done)
			}
		})
	}

	var setters sync.WaitGroup
	for i := 1; i < nWrites; i++ {
		setters.Add(1)
		go func(i int) {
			defer setters.Done()
			v.Set(i)
		}(i)
	}
	setters.Wait()
	v.Set(nWrites)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sawFinal.Wait()
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatalf("not every watcher saw the final value within %v", timeout)
	}

	for _, w := range watches {
		w.Cancel()
		assertTerminates(t, w)
	}
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case x := <-ch:
		return x
	case <-time.After(timeout):
		t.Fatalf("no notification within %v", timeout)
		panic("unreachable")
	}
}

func assertTerminates[T any](t *testing.T, w *Watch[T]) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Wait()
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatalf("watch not terminated within %v", timeout)
	}
}
