package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics holds the instruments recorded by the auth and provisioning paths
type Metrics struct {
	loginAttempts     metric.Int64Counter
	gateRejections    metric.Int64Counter
	provisionDuration metric.Float64Histogram
	deferredFailures  metric.Int64Counter
	onboardingItems   metric.Int64Counter
}

// NewMetrics creates the instruments on meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.loginAttempts, err = meter.Int64Counter("crm.auth.login.attempts",
		metric.WithDescription("Login attempts by outcome"),
	); err != nil {
		return nil, err
	}
	if m.gateRejections, err = meter.Int64Counter("crm.auth.rejections",
		metric.WithDescription("Requests rejected at the auth boundary by reason"),
	); err != nil {
		return nil, err
	}
	if m.provisionDuration, err = meter.Float64Histogram("crm.provisioning.duration",
		metric.WithDescription("Provisioning flow duration"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.deferredFailures, err = meter.Int64Counter("crm.deferred_effect.failures",
		metric.WithDescription("Deferred side effects that failed after commit"),
	); err != nil {
		return nil, err
	}
	if m.onboardingItems, err = meter.Int64Counter("crm.onboarding.items",
		metric.WithDescription("Bulk onboarding items by outcome"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// NopMetrics returns instruments that record nothing
func NopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter(instrumentationName))
	return m
}

// LoginAttempt counts a login by outcome (success, invalid_credentials, inactive, timeout, error)
func (m *Metrics) LoginAttempt(ctx context.Context, outcome string) {
	m.loginAttempts.Add(ctx, 1, metric.WithAttributes(OutcomeAttr(outcome)))
}

// Rejection counts a 401/403 at the auth boundary
func (m *Metrics) Rejection(ctx context.Context, status int, reason string) {
	m.gateRejections.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("http.status_code", status),
		attribute.String("crm.reason", reason),
	))
}

// ProvisionCompleted records a provisioning flow's duration and outcome
func (m *Metrics) ProvisionCompleted(ctx context.Context, flow, outcome string, elapsed time.Duration) {
	m.provisionDuration.Record(ctx, float64(elapsed.Microseconds())/1000,
		metric.WithAttributes(FlowAttr(flow), OutcomeAttr(outcome)))
}

// DeferredEffectFailed counts a swallowed after-commit failure
func (m *Metrics) DeferredEffectFailed(ctx context.Context, effect string) {
	m.deferredFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("crm.effect", effect)))
}

// OnboardingItem counts one bulk onboarding item
func (m *Metrics) OnboardingItem(ctx context.Context, success bool) {
	outcome := "failed"
	if success {
		outcome = "succeeded"
	}
	m.onboardingItems.Add(ctx, 1, metric.WithAttributes(OutcomeAttr(outcome)))
}
