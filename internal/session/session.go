// Package session tracks the archive streams in flight on a server.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ahamlinman/zipstream/internal/watch"
)

// ErrCancelled is the cause given to sessions stopped through
// Registry.Cancel.
var ErrCancelled = errors.New("download cancelled by operator")

// State represents the progress of a single archive stream.
type State int

const (
	// StateResolving means the requested archive is being located.
	StateResolving State = iota
	// StateStreaming means archive bytes are being sent to the client.
	StateStreaming
	// StateCompleted means the whole archive was sent.
	StateCompleted
	// StateCancelled means the server stopped the stream before it finished.
	StateCancelled
	// StateDisconnected means the client went away before the stream finished.
	StateDisconnected
	// StateFailed means the archive could not be produced or sent.
	StateFailed
)

var stateStrings = map[State]string{
	StateResolving:    "Resolving",
	StateStreaming:    "Streaming",
	StateCompleted:    "Completed",
	StateCancelled:    "Cancelled",
	StateDisconnected: "Disconnected",
	StateFailed:       "Failed",
}

func (s State) String() string {
	if str, ok := stateStrings[s]; ok {
		return str
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether s ends a session.
func (s State) Terminal() bool {
	return s >= StateCompleted
}

// Status is a snapshot of one in-flight session.
type Status struct {
	ID         uint64
	Identifier string
	State      State
	Started    time.Time
	Bytes      int64
	Chunks     int
}

// Registry keeps the set of in-flight sessions, publishes their status to
// watchers, and records metrics about every session that ends.
type Registry struct {
	mu       sync.Mutex
	nextID   uint64
	sessions map[uint64]*Session
	status   *watch.Value[[]Status]
	metrics  *metrics
}

// NewRegistry creates a Registry whose metrics are registered with reg. A nil
// reg leaves the metrics unregistered.
func NewRegistry(reg prometheus.Registerer) (*Registry, error) {
	m := newMetrics()
	if reg != nil {
		if err := m.register(reg); err != nil {
			return nil, fmt.Errorf("registering session metrics: %w", err)
		}
	}
	return &Registry{
		sessions: make(map[uint64]*Session),
		status:   watch.NewValue[[]Status](nil),
		metrics:  m,
	}, nil
}

// Session is a single archive stream registered with a Registry.
type Session struct {
	registry *Registry
	cancel   context.CancelCauseFunc

	// Guarded by registry.mu.
	status Status
	ended  bool
}

// Begin registers a new session for identifier. The returned context is
// derived from ctx and is cancelled with ErrCancelled if the session is
// stopped through Cancel. The caller must call End exactly once.
func (r *Registry) Begin(ctx context.Context, identifier string) (context.Context, *Session) {
	ctx, cancel := context.WithCancelCause(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	s := &Session{
		registry: r,
		cancel:   cancel,
		status: Status{
			ID:         r.nextID,
			Identifier: identifier,
			State:      StateResolving,
			Started:    time.Now(),
		},
	}
	r.sessions[s.status.ID] = s
	r.metrics.active.Inc()
	r.publishLocked()
	return ctx, s
}

// SetState records a non-terminal state change.
func (s *Session) SetState(state State) {
	r := s.registry
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.ended {
		return
	}
	s.status.State = state
	r.publishLocked()
}

// Progress records that n more bytes were sent as one chunk.
func (s *Session) Progress(n int) {
	r := s.registry
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.ended {
		return
	}
	s.status.Bytes += int64(n)
	s.status.Chunks++
	r.metrics.bytes.Add(float64(n))
	r.publishLocked()
}

// End removes the session from its registry, records its outcome, and
// releases its context. Calls after the first have no effect.
func (s *Session) End(state State) {
	r := s.registry
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.ended {
		return
	}
	s.ended = true
	s.status.State = state
	delete(r.sessions, s.status.ID)
	s.cancel(context.Canceled)

	r.metrics.active.Dec()
	r.metrics.outcome(state).Inc()
	r.publishLocked()
}

// Status returns a snapshot of s.
func (s *Session) Status() Status {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()
	return s.status
}

// RecordNotFound counts a request for an archive that does not exist. Such
// requests never become sessions.
func (r *Registry) RecordNotFound() {
	r.metrics.requests.WithLabelValues(outcomeNotFound).Inc()
}

// Cancel stops every in-flight session for identifier, returning how many
// were stopped. Their contexts are cancelled with cause ErrCancelled.
func (r *Registry) Cancel(identifier string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	for _, s := range r.sessions {
		if s.status.Identifier == identifier {
			s.cancel(ErrCancelled)
			n++
		}
	}
	return n
}

// Snapshot returns the status of every in-flight session, oldest first.
func (r *Registry) Snapshot() []Status {
	return r.status.Get()
}

// Watch calls handler with the status of all in-flight sessions, first
// immediately and then whenever it changes. See the watch package for
// details.
func (r *Registry) Watch(handler func([]Status)) *watch.Watch[[]Status] {
	return r.status.Watch(handler)
}

func (r *Registry) publishLocked() {
	list := make([]Status, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s.status)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	r.status.Set(list)
}
