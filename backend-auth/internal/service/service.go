package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/repository"
	"github.com/prohmpiriya/multicore-crm/pkg/database"
	"github.com/prohmpiriya/multicore-crm/pkg/kafka"
	"github.com/prohmpiriya/multicore-crm/pkg/logger"
	"github.com/prohmpiriya/multicore-crm/pkg/password"
	"github.com/prohmpiriya/multicore-crm/pkg/saga"
	"github.com/prohmpiriya/multicore-crm/pkg/telemetry"
	"github.com/prohmpiriya/multicore-crm/pkg/token"
)

// Config holds the tunables shared by the services
type Config struct {
	LoginTimeout      time.Duration
	MinPasswordLength int
	IdentityTopic     string
	TenantTopic       string
}

// Deps carries the collaborators shared by every service
type Deps struct {
	Store     *repository.Store
	Hasher    password.Hasher
	Tokens    *token.Service
	Publisher kafka.Publisher
	Flows     *saga.StateMachine
	Metrics   *telemetry.Metrics
	Log       *logger.Logger
	Config    Config
}

// withDefaults fills optional collaborators
func (d *Deps) withDefaults() *Deps {
	out := *d
	if out.Log == nil {
		out.Log = logger.NewNop()
	}
	if out.Metrics == nil {
		out.Metrics = telemetry.NopMetrics()
	}
	if out.Publisher == nil {
		out.Publisher = kafka.NewLogPublisher(out.Log)
	}
	if out.Flows == nil {
		out.Flows = saga.NewStateMachine(saga.NewMemoryStateStore(saga.DefaultFlowCapacity))
	}
	if out.Config.LoginTimeout <= 0 {
		out.Config.LoginTimeout = 10 * time.Second
	}
	if out.Config.MinPasswordLength <= 0 {
		out.Config.MinPasswordLength = 8
	}
	return &out
}

// flowStep records progress of one provisioning flow. Recording failures are
// logged and never fail the flow itself.
type flowStep struct {
	deps *Deps
	flow *saga.Flow
}

func (f *flowStep) advance(ctx context.Context, state saga.FlowState, reason string) {
	if f.flow == nil {
		return
	}
	f.record(ctx, state, f.deps.Flows.TransitionTo(ctx, f.flow, state, reason))
}

func (f *flowStep) identity(ctx context.Context, identityID string) {
	if f.flow == nil {
		return
	}
	f.record(ctx, saga.StateIdentityPersisted, f.deps.Flows.MarkIdentity(ctx, f.flow, identityID))
}

func (f *flowStep) tenant(ctx context.Context, tenantID string) {
	if f.flow == nil {
		return
	}
	f.record(ctx, saga.StateTenantPersisted, f.deps.Flows.MarkTenant(ctx, f.flow, tenantID))
}

func (f *flowStep) record(ctx context.Context, state saga.FlowState, err error) {
	if err == nil {
		return
	}
	f.deps.Log.WithContext(ctx).Warn("flow transition not recorded",
		zap.String("flow", string(f.flow.Kind)),
		zap.String("state", string(state)),
		zap.Error(err),
	)
}

// runFlow executes body in a single transaction, joining an enclosing one if
// ctx already carries it, and records the flow outcome.
func (d *Deps) runFlow(ctx context.Context, kind saga.FlowKind, email string, body func(ctx context.Context, step *flowStep) error) error {
	ctx, span := telemetry.StartSpan(ctx, "provision."+string(kind), telemetry.FlowAttr(string(kind)))
	start := time.Now()
	joined := database.InTx(ctx)

	step := &flowStep{deps: d}
	if flow, err := d.Flows.Start(ctx, kind, email); err != nil {
		d.Log.WithContext(ctx).Warn("flow not recorded", zap.String("flow", string(kind)), zap.Error(err))
	} else {
		step.flow = flow
	}

	err := d.Store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		return body(ctx, step)
	})

	outcome := "success"
	if err != nil {
		outcome = "failed"
		if step.flow != nil && !step.flow.State.IsTerminal() {
			if markErr := d.Flows.MarkFailed(ctx, step.flow, err); markErr != nil {
				d.Log.WithContext(ctx).Warn("flow failure not recorded", zap.Error(markErr))
			}
		}
	} else {
		reason := "committed"
		if joined {
			reason = "joined enclosing transaction"
		}
		step.advance(ctx, saga.StateCommitted, reason)
		step.advance(ctx, saga.StateCompleted, "")
	}

	d.Metrics.ProvisionCompleted(ctx, string(kind), outcome, time.Since(start))
	telemetry.EndSpan(span, err)
	return err
}
