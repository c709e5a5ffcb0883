// Package approval manages time-bounded human decisions with exactly-once
// resolution per request.
package approval

import (
	"sync"
	"time"

	"github.com/openclaw/paygate/internal/model"
)

// State is the lifecycle position of one approval request.
// Created is the only non-terminal state.
type State string

const (
	StateCreated            State = "created"
	StateApproved           State = "approved"
	StateDenied             State = "denied"
	StateTimedOut           State = "timed_out"
	StateExternallyResolved State = "externally_resolved"
)

// Outcome is the single resolution of a pending request.
type Outcome struct {
	State    State
	Approved bool
	Note     string
}

// Pending is one in-flight approval request: a single-resolution completion
// handle. Exactly one transition out of Created is honored; later attempts
// are no-ops, so a late channel reply can never overturn a timeout already
// returned to the caller (or vice versa).
type Pending struct {
	ID        string
	Request   model.PaymentRequest
	Result    model.PolicyResult
	CreatedAt time.Time

	mu    sync.Mutex
	state State
	done  chan Outcome // buffered; receives the winning outcome once
}

func newPending(id string, req model.PaymentRequest, res model.PolicyResult) *Pending {
	return &Pending{
		ID:        id,
		Request:   req,
		Result:    res,
		CreatedAt: time.Now(),
		state:     StateCreated,
		done:      make(chan Outcome, 1),
	}
}

// Resolve attempts the transition out of Created. Returns true if this
// call won; false means the request was already terminal.
func (p *Pending) Resolve(state State, approved bool, note string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateCreated {
		return false
	}
	p.state = state
	p.done <- Outcome{State: state, Approved: approved, Note: note}
	return true
}

// StateNow returns the current state.
func (p *Pending) StateNow() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Done yields the winning outcome. It is readable exactly once, by the
// orchestrator that owns the wait.
func (p *Pending) Done() <-chan Outcome {
	return p.done
}

// Registry is the process-wide pending-approval set: created on first
// dispatch, entry removed on any terminal transition, discarded with the
// process. Safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	pending map[string]*Pending
}

func NewRegistry() *Registry {
	return &Registry{pending: make(map[string]*Pending)}
}

// Add creates and registers a Pending for the given request.
func (r *Registry) Add(id string, req model.PaymentRequest, res model.PolicyResult) *Pending {
	p := newPending(id, req, res)
	r.mu.Lock()
	r.pending[id] = p
	r.mu.Unlock()
	return p
}

// Remove drops the entry. The handle is not reachable afterwards.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()
}

// Get returns the pending request, if still unresolved.
func (r *Registry) Get(id string) (*Pending, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[id]
	return p, ok
}

// List returns a snapshot of the pending set.
func (r *Registry) List() []*Pending {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Pending, 0, len(r.pending))
	for _, p := range r.pending {
		out = append(out, p)
	}
	return out
}

// Resolve applies an external resolution to a pending request. Returns
// false when the id is unknown or the request is already terminal.
func (r *Registry) Resolve(id string, approved bool, note string) bool {
	p, ok := r.Get(id)
	if !ok {
		return false
	}
	return p.Resolve(StateExternallyResolved, approved, note)
}
