package saga

import (
	"context"
	"sync"
)

// DefaultFlowCapacity bounds how many flows a MemoryStateStore retains
const DefaultFlowCapacity = 1024

// MemoryStateStore keeps the most recent flows in memory, evicting the oldest
// once capacity is reached.
type MemoryStateStore struct {
	mu          sync.RWMutex
	capacity    int
	order       []string
	flows       map[string]*Flow
	transitions map[string][]StateTransition
}

// NewMemoryStateStore creates a new in-memory state store
func NewMemoryStateStore(capacity int) *MemoryStateStore {
	if capacity <= 0 {
		capacity = DefaultFlowCapacity
	}
	return &MemoryStateStore{
		capacity:    capacity,
		flows:       make(map[string]*Flow),
		transitions: make(map[string][]StateTransition),
	}
}

// SaveFlow persists a new flow
func (s *MemoryStateStore) SaveFlow(ctx context.Context, flow *Flow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.flows[flow.ID]; exists {
		s.flows[flow.ID] = copyFlow(flow)
		return nil
	}

	for len(s.order) >= s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.flows, oldest)
		delete(s.transitions, oldest)
	}

	s.flows[flow.ID] = copyFlow(flow)
	s.order = append(s.order, flow.ID)
	return nil
}

// GetFlow retrieves a flow by ID
func (s *MemoryStateStore) GetFlow(ctx context.Context, id string) (*Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flow, exists := s.flows[id]
	if !exists {
		return nil, ErrStateNotFound
	}
	return copyFlow(flow), nil
}

// UpdateFlow updates an existing flow
func (s *MemoryStateStore) UpdateFlow(ctx context.Context, flow *Flow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.flows[flow.ID]; !exists {
		return ErrStateNotFound
	}
	s.flows[flow.ID] = copyFlow(flow)
	return nil
}

// SaveTransition persists a state transition
func (s *MemoryStateStore) SaveTransition(ctx context.Context, transition *StateTransition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.flows[transition.FlowID]; !exists {
		return ErrStateNotFound
	}
	s.transitions[transition.FlowID] = append(s.transitions[transition.FlowID], *transition)
	return nil
}

// GetTransitions retrieves all transitions for a flow
func (s *MemoryStateStore) GetTransitions(ctx context.Context, flowID string) ([]StateTransition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transitions := s.transitions[flowID]
	result := make([]StateTransition, len(transitions))
	copy(result, transitions)
	return result, nil
}

// GetFlowsByState retrieves flows by state, newest first
func (s *MemoryStateStore) GetFlowsByState(ctx context.Context, state FlowState, limit int) ([]*Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Flow
	for i := len(s.order) - 1; i >= 0; i-- {
		flow := s.flows[s.order[i]]
		if flow.State != state {
			continue
		}
		result = append(result, copyFlow(flow))
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// Count returns the number of retained flows
func (s *MemoryStateStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.flows)
}

func copyFlow(flow *Flow) *Flow {
	copied := *flow
	if flow.CompletedAt != nil {
		t := *flow.CompletedAt
		copied.CompletedAt = &t
	}
	return &copied
}
