package google

import (
	"errors"
	"sync"
	"time"
)

// FlowState is what the login flow remembers between sending the user to the
// provider and receiving the callback.
type FlowState struct {
	CodeVerifier string
	Nonce        string
	CreatedAt    time.Time
}

type StateRepo interface {
	Upsert(state string, flow *FlowState) error
	Get(state string) (*FlowState, error)
	Delete(state string) error
}

var _ StateRepo = (*InMemoryStateRepo)(nil)

// InMemoryStateRepo is a thread-safe in-memory StateRepo
type InMemoryStateRepo struct {
	mu     sync.RWMutex
	states map[string]*FlowState
}

func NewInMemoryStateRepo() *InMemoryStateRepo {
	return &InMemoryStateRepo{
		states: make(map[string]*FlowState),
	}
}

func (r *InMemoryStateRepo) Upsert(state string, flow *FlowState) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if flow == nil {
		return errors.New("flow state cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *flow
	r.states[state] = &stored
	return nil
}

func (r *InMemoryStateRepo) Get(state string) (*FlowState, error) {
	if state == "" {
		return nil, errors.New("state cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	flow, exists := r.states[state]
	if !exists {
		return nil, errors.New("state not found")
	}
	stored := *flow
	return &stored, nil
}

func (r *InMemoryStateRepo) Delete(state string) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.states, state)
	return nil
}

// Expire drops flows started before cutoff and reports how many were removed.
func (r *InMemoryStateRepo) Expire(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for state, flow := range r.states {
		if flow.CreatedAt.Before(cutoff) {
			delete(r.states, state)
			removed++
		}
	}
	return removed
}
