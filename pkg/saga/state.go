package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FlowKind names a provisioning flow
type FlowKind string

const (
	FlowRegisterCustomer     FlowKind = "register_customer"
	FlowRegisterAdmin        FlowKind = "register_admin"
	FlowCreateOwner          FlowKind = "create_owner"
	FlowCreateOwnerForTenant FlowKind = "create_owner_for_tenant"
	FlowCreateStaff          FlowKind = "create_staff"
	FlowCreateBusiness       FlowKind = "create_business"
	FlowOnboardTenant        FlowKind = "onboard_tenant"
)

// FlowState represents the state of a provisioning flow
type FlowState string

const (
	StateStarted           FlowState = "STARTED"
	StateValidated         FlowState = "VALIDATED"
	StateRoleResolved      FlowState = "ROLE_RESOLVED"
	StateTenantPersisted   FlowState = "TENANT_PERSISTED"
	StateIdentityPersisted FlowState = "IDENTITY_PERSISTED"
	StateLinked            FlowState = "LINKED"
	StateCommitted         FlowState = "COMMITTED"
	StateCompleted         FlowState = "COMPLETED"
	StateFailed            FlowState = "FAILED"
)

var (
	// ErrInvalidStateTransition is returned when a state transition is not allowed
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrStateNotFound is returned when a flow is not found
	ErrStateNotFound = errors.New("flow state not found")
)

// validTransitions defines allowed state transitions.
// Tenant and identity may be persisted in either order; LINKED marks the
// back-fill that makes an owner and its tenant reference each other.
var validTransitions = map[FlowState][]FlowState{
	StateStarted:           {StateValidated, StateFailed},
	StateValidated:         {StateRoleResolved, StateTenantPersisted, StateIdentityPersisted, StateFailed},
	StateRoleResolved:      {StateTenantPersisted, StateIdentityPersisted, StateFailed},
	StateTenantPersisted:   {StateIdentityPersisted, StateLinked, StateCommitted, StateFailed},
	StateIdentityPersisted: {StateTenantPersisted, StateLinked, StateCommitted, StateFailed},
	StateLinked:            {StateCommitted, StateFailed},
	StateCommitted:         {StateCompleted, StateFailed},
	StateCompleted:         {},
	StateFailed:            {},
}

// IsTerminal returns true if the state is a terminal state
func (s FlowState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// IsValid returns true if the state is a known flow state
func (s FlowState) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if transition to the target state is allowed
func (s FlowState) CanTransitionTo(target FlowState) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Flow is one provisioning request moving through the state machine
type Flow struct {
	ID            string     `json:"id"`
	Kind          FlowKind   `json:"kind"`
	Email         string     `json:"email,omitempty"`
	IdentityID    string     `json:"identity_id,omitempty"`
	TenantID      string     `json:"tenant_id,omitempty"`
	State         FlowState  `json:"state"`
	PreviousState FlowState  `json:"previous_state,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// Elapsed returns the time from start to completion, or to now if still running
func (f *Flow) Elapsed() time.Duration {
	if f.CompletedAt != nil {
		return f.CompletedAt.Sub(f.CreatedAt)
	}
	return time.Since(f.CreatedAt)
}

// StateTransition represents a state transition record
type StateTransition struct {
	ID        string    `json:"id"`
	FlowID    string    `json:"flow_id"`
	FromState FlowState `json:"from_state"`
	ToState   FlowState `json:"to_state"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StateStore persists flow states
type StateStore interface {
	SaveFlow(ctx context.Context, flow *Flow) error
	GetFlow(ctx context.Context, id string) (*Flow, error)
	UpdateFlow(ctx context.Context, flow *Flow) error
	SaveTransition(ctx context.Context, transition *StateTransition) error
	GetTransitions(ctx context.Context, flowID string) ([]StateTransition, error)
	GetFlowsByState(ctx context.Context, state FlowState, limit int) ([]*Flow, error)
}

// StateMachine manages state transitions for provisioning flows
type StateMachine struct {
	store StateStore
	now   func() time.Time
}

// NewStateMachine creates a new state machine
func NewStateMachine(store StateStore) *StateMachine {
	return &StateMachine{
		store: store,
		now:   time.Now,
	}
}

// Start records a new flow in STARTED state
func (sm *StateMachine) Start(ctx context.Context, kind FlowKind, email string) (*Flow, error) {
	now := sm.now()
	flow := &Flow{
		ID:        generateID(),
		Kind:      kind,
		Email:     email,
		State:     StateStarted,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := sm.store.SaveFlow(ctx, flow); err != nil {
		return nil, fmt.Errorf("failed to save flow: %w", err)
	}
	return flow, nil
}

// TransitionTo moves flow to newState and persists the transition
func (sm *StateMachine) TransitionTo(ctx context.Context, flow *Flow, newState FlowState, reason string) error {
	if !flow.State.CanTransitionTo(newState) {
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidStateTransition, flow.State, newState)
	}

	now := sm.now()
	transition := &StateTransition{
		ID:        generateID(),
		FlowID:    flow.ID,
		FromState: flow.State,
		ToState:   newState,
		Reason:    reason,
		Timestamp: now,
	}
	if err := sm.store.SaveTransition(ctx, transition); err != nil {
		return fmt.Errorf("failed to save transition: %w", err)
	}

	flow.PreviousState = flow.State
	flow.State = newState
	flow.UpdatedAt = now
	if newState.IsTerminal() {
		flow.CompletedAt = &now
	}

	if err := sm.store.UpdateFlow(ctx, flow); err != nil {
		return fmt.Errorf("failed to update flow: %w", err)
	}
	return nil
}

// MarkIdentity records the persisted identity and advances the flow
func (sm *StateMachine) MarkIdentity(ctx context.Context, flow *Flow, identityID string) error {
	flow.IdentityID = identityID
	return sm.TransitionTo(ctx, flow, StateIdentityPersisted, "identity persisted")
}

// MarkTenant records the persisted tenant and advances the flow
func (sm *StateMachine) MarkTenant(ctx context.Context, flow *Flow, tenantID string) error {
	flow.TenantID = tenantID
	return sm.TransitionTo(ctx, flow, StateTenantPersisted, "tenant persisted")
}

// MarkFailed moves a non-terminal flow to FAILED
func (sm *StateMachine) MarkFailed(ctx context.Context, flow *Flow, cause error) error {
	if flow.State.IsTerminal() {
		return fmt.Errorf("%w: cannot transition from terminal state %s", ErrInvalidStateTransition, flow.State)
	}
	reason := "failed"
	if cause != nil {
		reason = cause.Error()
	}
	flow.ErrorMessage = reason
	return sm.TransitionTo(ctx, flow, StateFailed, reason)
}

// GetFlow retrieves a flow by ID
func (sm *StateMachine) GetFlow(ctx context.Context, id string) (*Flow, error) {
	return sm.store.GetFlow(ctx, id)
}

// GetTransitionHistory retrieves all transitions for a flow
func (sm *StateMachine) GetTransitionHistory(ctx context.Context, flowID string) ([]StateTransition, error) {
	return sm.store.GetTransitions(ctx, flowID)
}

// GetFailedFlows retrieves recent failed flows
func (sm *StateMachine) GetFailedFlows(ctx context.Context, limit int) ([]*Flow, error) {
	return sm.store.GetFlowsByState(ctx, StateFailed, limit)
}

// generateID generates a unique ID using UUID
func generateID() string {
	return uuid.New().String()
}
