// Package toggle implements optimistic on/off controls (like, follow) with
// at most one request in flight per control.
package toggle

import (
	"context"
	"errors"
	"sync"

	"socialfeed/internal/observability"
)

// State of a control.
type State int

const (
	Idle State = iota
	Pending
)

func (s State) String() string {
	if s == Pending {
		return "pending"
	}
	return "idle"
}

// ErrPending is returned when a click arrives while a request is in flight.
var ErrPending = errors.New("toggle: request already in flight")

// Value is what the control displays.
type Value struct {
	Active bool `json:"active"`
	Count  int  `json:"count"`
}

// flipped is the optimistic value shown while a request is pending.
func (v Value) flipped() Value {
	if v.Active {
		count := v.Count - 1
		if count < 0 {
			count = 0
		}
		return Value{Active: false, Count: count}
	}
	return Value{Active: true, Count: v.Count + 1}
}

// SendFunc performs the request and returns the server's resulting value.
// The argument is the optimistic value the user asked for.
type SendFunc func(ctx context.Context, want Value) (Value, error)

// Toggle is one control instance.
type Toggle struct {
	mu      sync.Mutex
	control string
	state   State
	value   Value
}

func New(control string, initial Value) *Toggle {
	return &Toggle{control: control, value: initial}
}

func (t *Toggle) Value() Value {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value
}

func (t *Toggle) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Seed overwrites the displayed value with server state. Ignored while a
// request is pending so a refetch cannot clobber the optimistic flip.
func (t *Toggle) Seed(v Value) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Idle {
		t.value = v
	}
}

// Click flips the value optimistically and sends exactly one request. On
// success the server's value is displayed; on failure the pre-click value
// is restored and the error returned. A click while pending returns
// ErrPending without sending anything.
func (t *Toggle) Click(ctx context.Context, send SendFunc) (Value, error) {
	t.mu.Lock()
	if t.state == Pending {
		current := t.value
		t.mu.Unlock()
		observability.ToggleRejections.WithLabelValues(t.control).Inc()
		return current, ErrPending
	}
	snapshot := t.value
	optimistic := snapshot.flipped()
	t.value = optimistic
	t.state = Pending
	t.mu.Unlock()

	result, err := send(ctx, optimistic)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = Idle
	if err != nil {
		t.value = snapshot
		observability.ToggleReverts.WithLabelValues(t.control).Inc()
		return snapshot, err
	}
	t.value = result
	return result, nil
}

// Registry lazily creates one toggle per key (post id, username).
type Registry struct {
	mu      sync.Mutex
	control string
	toggles map[string]*Toggle
}

func NewRegistry(control string) *Registry {
	return &Registry{control: control, toggles: make(map[string]*Toggle)}
}

// Get returns the toggle for key, creating it from seed. An existing idle
// toggle is re-seeded so it tracks the latest server state.
func (r *Registry) Get(key string, seed Value) *Toggle {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.toggles[key]
	if !ok {
		t = New(r.control, seed)
		r.toggles[key] = t
		return t
	}
	t.Seed(seed)
	return t
}

// Lookup returns the toggle for key without creating one.
func (r *Registry) Lookup(key string) (*Toggle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.toggles[key]
	return t, ok
}

// Reset forgets every toggle. Used on logout.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toggles = make(map[string]*Toggle)
}
