package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prohmpiriya/multicore-crm/backend-auth/internal/domain"
	"github.com/prohmpiriya/multicore-crm/pkg/database"
	"github.com/prohmpiriya/multicore-crm/pkg/kafka"
)

// Event types published after a provisioning flow commits
const (
	EventIdentityProvisioned = "identity.provisioned"
	EventTenantCreated       = "tenant.created"
)

const leadNotes = "Auto-created lead from customer registration"

// IdentityEvent is the payload of EventIdentityProvisioned
type IdentityEvent struct {
	IdentityID string  `json:"identity_id"`
	Email      string  `json:"email"`
	Role       string  `json:"role"`
	TenantID   *string `json:"tenant_id,omitempty"`
	Flow       string  `json:"flow"`
}

// TenantEvent is the payload of EventTenantCreated
type TenantEvent struct {
	TenantID string  `json:"tenant_id"`
	Name     string  `json:"name"`
	OwnerID  *string `json:"owner_id,omitempty"`
	Flow     string  `json:"flow"`
}

// deferEffect runs fn after the transaction in ctx commits, or inline when
// there is none. Failures are logged and swallowed.
func (d *Deps) deferEffect(ctx context.Context, name string, fn func(ctx context.Context) error) {
	database.AfterCommit(ctx, func(ctx context.Context) {
		if err := fn(ctx); err != nil {
			d.Metrics.DeferredEffectFailed(ctx, name)
			d.Log.WithContext(ctx).Warn("deferred effect failed; primary operation unaffected",
				zap.String("effect", name),
				zap.Error(err),
			)
		}
	})
}

// scheduleCustomerLead creates a lead for a newly registered customer under
// the first active tenant.
func (d *Deps) scheduleCustomerLead(ctx context.Context, identity *domain.Identity) {
	d.deferEffect(ctx, "customer_lead", func(ctx context.Context) error {
		tenant, err := d.Store.Tenants.FirstActive(ctx)
		if err != nil {
			return fmt.Errorf("find active tenant: %w", err)
		}
		if tenant == nil {
			d.Log.WithContext(ctx).Info("no active business, lead not created", zap.String("email", identity.Email))
			return nil
		}

		phone := identity.Phone
		if phone == "" {
			phone = "N/A"
		}
		lead := &domain.Lead{
			ID:        uuid.New().String(),
			TenantID:  tenant.ID,
			Name:      identity.FullName,
			Email:     identity.Email,
			Phone:     phone,
			Status:    domain.LeadStatusNew,
			Score:     0,
			Notes:     leadNotes,
			CreatedAt: time.Now(),
		}
		if err := d.Store.Leads.Create(ctx, lead); err != nil {
			return fmt.Errorf("create lead: %w", err)
		}

		d.Log.WithContext(ctx).Info("lead created for registered customer",
			zap.String("email", identity.Email),
			zap.String("tenant_id", tenant.ID),
		)
		return nil
	})
}

// scheduleIdentityEvent publishes EventIdentityProvisioned after commit
func (d *Deps) scheduleIdentityEvent(ctx context.Context, identity *domain.Identity, flow string) {
	payload := IdentityEvent{
		IdentityID: identity.ID,
		Email:      identity.Email,
		Role:       string(identity.PrimaryRole()),
		TenantID:   identity.TenantID,
		Flow:       flow,
	}
	d.deferEffect(ctx, "identity_event", func(ctx context.Context) error {
		return d.Publisher.Publish(ctx, d.Config.IdentityTopic, kafka.Event{
			Type:       EventIdentityProvisioned,
			Key:        identity.ID,
			OccurredAt: time.Now(),
			Payload:    payload,
		})
	})
}

// scheduleTenantEvent publishes EventTenantCreated after commit
func (d *Deps) scheduleTenantEvent(ctx context.Context, tenant *domain.Tenant, flow string) {
	payload := TenantEvent{
		TenantID: tenant.ID,
		Name:     tenant.Name,
		OwnerID:  tenant.OwnerID,
		Flow:     flow,
	}
	d.deferEffect(ctx, "tenant_event", func(ctx context.Context) error {
		return d.Publisher.Publish(ctx, d.Config.TenantTopic, kafka.Event{
			Type:       EventTenantCreated,
			Key:        tenant.ID,
			OccurredAt: time.Now(),
			Payload:    payload,
		})
	})
}
