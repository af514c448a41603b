package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/dt-pm-tools/issuetracker-jira/internal/issuesync"
)

const backendScopeName = "github.com/dt-pm-tools/issuetracker-jira/backend"

// InstrumentedBackend wraps an issuesync.Backend with OTel tracing and metrics.
// Every call gets a span and is counted in issuetracker.backend.* metrics.
type InstrumentedBackend struct {
	inner  issuesync.Backend
	tracer trace.Tracer
	ops    metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

// WrapBackend returns b decorated with OTel instrumentation, or b itself when
// telemetry is disabled.
func WrapBackend(b issuesync.Backend) issuesync.Backend {
	if !Enabled() {
		return b
	}
	return NewInstrumentedBackend(b, Tracer(backendScopeName), Meter(backendScopeName))
}

// NewInstrumentedBackend decorates b using the given tracer and meter.
func NewInstrumentedBackend(b issuesync.Backend, tracer trace.Tracer, m metric.Meter) *InstrumentedBackend {
	ops, _ := m.Int64Counter("issuetracker.backend.operations",
		metric.WithDescription("Total issue tracker calls executed"),
	)
	dur, _ := m.Float64Histogram("issuetracker.backend.operation.duration",
		metric.WithDescription("Issue tracker call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("issuetracker.backend.errors",
		metric.WithDescription("Total issue tracker call errors"),
	)
	return &InstrumentedBackend{inner: b, tracer: tracer, ops: ops, dur: dur, errs: errs}
}

func (b *InstrumentedBackend) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	all := append([]attribute.KeyValue{attribute.String("issuetracker.operation", name)}, attrs...)
	ctx, span := b.tracer.Start(ctx, "backend."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	b.ops.Add(ctx, 1, metric.WithAttributes(all[0]))
	return ctx, span, time.Now()
}

func (b *InstrumentedBackend) done(ctx context.Context, name string, span trace.Span, start time.Time, err error) {
	attr := metric.WithAttributes(attribute.String("issuetracker.operation", name))
	b.dur.Record(ctx, float64(time.Since(start).Milliseconds()), attr)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.errs.Add(ctx, 1, attr)
	}
	span.End()
}

func (b *InstrumentedBackend) ProjectsByName(ctx context.Context, name string) ([]issuesync.Project, error) {
	ctx, span, t := b.op(ctx, "ProjectsByName", attribute.String("issuetracker.project", name))
	v, err := b.inner.ProjectsByName(ctx, name)
	b.done(ctx, "ProjectsByName", span, t, err)
	return v, err
}

func (b *InstrumentedBackend) UsersByIdentity(ctx context.Context, identity string) ([]issuesync.User, error) {
	ctx, span, t := b.op(ctx, "UsersByIdentity")
	v, err := b.inner.UsersByIdentity(ctx, identity)
	b.done(ctx, "UsersByIdentity", span, t, err)
	return v, err
}

func (b *InstrumentedBackend) AllIssueTypes(ctx context.Context) ([]issuesync.IssueType, error) {
	ctx, span, t := b.op(ctx, "AllIssueTypes")
	v, err := b.inner.AllIssueTypes(ctx)
	b.done(ctx, "AllIssueTypes", span, t, err)
	return v, err
}

func (b *InstrumentedBackend) IsValidForProject(ctx context.Context, projectID, typeName string) (bool, error) {
	ctx, span, t := b.op(ctx, "IsValidForProject",
		attribute.String("issuetracker.project_id", projectID),
		attribute.String("issuetracker.issue_type", typeName))
	v, err := b.inner.IsValidForProject(ctx, projectID, typeName)
	b.done(ctx, "IsValidForProject", span, t, err)
	return v, err
}

func (b *InstrumentedBackend) CreateIssue(ctx context.Context, issue issuesync.NewIssue) (string, error) {
	ctx, span, t := b.op(ctx, "CreateIssue",
		attribute.String("issuetracker.project_id", issue.ProjectID),
		attribute.String("issuetracker.issue_type", issue.IssueType))
	key, err := b.inner.CreateIssue(ctx, issue)
	if err == nil {
		span.SetAttributes(attribute.String("issuetracker.issue", key))
	}
	b.done(ctx, "CreateIssue", span, t, err)
	return key, err
}

func (b *InstrumentedBackend) GetStatus(ctx context.Context, key string) (issuesync.StatusCategory, error) {
	ctx, span, t := b.op(ctx, "GetStatus", attribute.String("issuetracker.issue", key))
	v, err := b.inner.GetStatus(ctx, key)
	b.done(ctx, "GetStatus", span, t, err)
	return v, err
}

func (b *InstrumentedBackend) GetTransitions(ctx context.Context, key string) ([]issuesync.Transition, error) {
	ctx, span, t := b.op(ctx, "GetTransitions", attribute.String("issuetracker.issue", key))
	v, err := b.inner.GetTransitions(ctx, key)
	b.done(ctx, "GetTransitions", span, t, err)
	return v, err
}

func (b *InstrumentedBackend) ApplyTransition(ctx context.Context, key, transitionID string) error {
	ctx, span, t := b.op(ctx, "ApplyTransition",
		attribute.String("issuetracker.issue", key),
		attribute.String("issuetracker.transition_id", transitionID))
	err := b.inner.ApplyTransition(ctx, key, transitionID)
	b.done(ctx, "ApplyTransition", span, t, err)
	return err
}

func (b *InstrumentedBackend) AddComment(ctx context.Context, key, text string) error {
	ctx, span, t := b.op(ctx, "AddComment",
		attribute.String("issuetracker.issue", key),
		attribute.Int("issuetracker.comment_length", len(text)))
	err := b.inner.AddComment(ctx, key, text)
	b.done(ctx, "AddComment", span, t, err)
	return err
}

func (b *InstrumentedBackend) DeleteIssue(ctx context.Context, key string) error {
	ctx, span, t := b.op(ctx, "DeleteIssue", attribute.String("issuetracker.issue", key))
	err := b.inner.DeleteIssue(ctx, key)
	b.done(ctx, "DeleteIssue", span, t, err)
	return err
}

func (b *InstrumentedBackend) SetProperties(ctx context.Context, key string, props issuesync.CorrelationProperties) error {
	ctx, span, t := b.op(ctx, "SetProperties", attribute.String("issuetracker.issue", key))
	err := b.inner.SetProperties(ctx, key, props)
	b.done(ctx, "SetProperties", span, t, err)
	return err
}

func (b *InstrumentedBackend) SearchByProperties(ctx context.Context, projectKey string, props issuesync.CorrelationProperties) (string, bool, error) {
	ctx, span, t := b.op(ctx, "SearchByProperties",
		attribute.String("issuetracker.project", projectKey),
		attribute.Int("issuetracker.property_count", len(props.Fields())))
	key, ok, err := b.inner.SearchByProperties(ctx, projectKey, props)
	span.SetAttributes(attribute.Bool("issuetracker.found", ok))
	b.done(ctx, "SearchByProperties", span, t, err)
	return key, ok, err
}
