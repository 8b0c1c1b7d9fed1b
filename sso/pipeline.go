package sso

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"profilenorm/logger"
)

const (
	instrumentationName = "profilenorm/sso"
	// DefaultTimeout bounds a normalization, including its secondary request
	DefaultTimeout = 10 * time.Second
)

// Pipeline converts raw OAuth responses into canonical profiles.
// It holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	registry *Registry
	client   *http.Client
	timeout  time.Duration
	log      *logger.Logger
	tracer   trace.Tracer

	normalizations metric.Int64Counter
	duration       metric.Float64Histogram
}

// PipelineOption configures a Pipeline
type PipelineOption func(*Pipeline)

// WithHTTPClient sets the client used for secondary provider requests
func WithHTTPClient(c *http.Client) PipelineOption {
	return func(p *Pipeline) {
		p.client = c
	}
}

// WithTimeout bounds each normalization
func WithTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger sets the pipeline logger
func WithLogger(l *logger.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.log = l
	}
}

// WithTracer sets the tracer; the global tracer provider is used otherwise
func WithTracer(t trace.Tracer) PipelineOption {
	return func(p *Pipeline) {
		p.tracer = t
	}
}

// WithMeter sets the meter for normalization metrics
func WithMeter(m metric.Meter) PipelineOption {
	return func(p *Pipeline) {
		p.normalizations, p.duration = instruments(m)
	}
}

// NewPipeline creates a pipeline over the registry
func NewPipeline(reg *Registry, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		registry: reg,
		timeout:  DefaultTimeout,
		log:      logger.NewLogger(),
		tracer:   otel.Tracer(instrumentationName),
	}
	p.normalizations, p.duration = instruments(otel.Meter(instrumentationName))

	for _, opt := range opts {
		opt(p)
	}

	if p.client == nil {
		p.client = &http.Client{
			Timeout:   p.timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return p
}

func instruments(m metric.Meter) (metric.Int64Counter, metric.Float64Histogram) {
	// Creation only fails on invalid instrument names
	counter, _ := m.Int64Counter("sso.normalizations",
		metric.WithDescription("Profile normalizations by provider and outcome"))
	hist, _ := m.Float64Histogram("sso.normalize.duration",
		metric.WithDescription("Time spent normalizing a provider response"),
		metric.WithUnit("ms"))
	return counter, hist
}

// Normalize converts raw into the canonical profile using the provider
// registered under providerID. At most one secondary request is made and it
// is never retried. On error no profile is returned.
func (p *Pipeline) Normalize(ctx context.Context, providerID string, raw RawResponse) (*Profile, error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "sso.normalize",
		trace.WithAttributes(attribute.String("sso.provider", providerID)))
	defer span.End()

	profile, err := p.normalize(ctx, providerID, raw)

	outcome := "ok"
	if err != nil {
		outcome = errorKind(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	span.SetAttributes(attribute.String("sso.outcome", outcome))

	attrs := metric.WithAttributes(
		attribute.String("provider", providerID),
		attribute.String("outcome", outcome),
	)
	if p.normalizations != nil {
		p.normalizations.Add(ctx, 1, attrs)
	}
	if p.duration != nil {
		p.duration.Record(ctx, float64(time.Since(start).Microseconds())/1000, attrs)
	}

	entry := p.log.With(logger.F("provider", providerID)).Context(ctx)
	if err != nil {
		entry.WithField("kind", outcome).WithError(err).Warn("profile normalization failed")
		return nil, err
	}

	entry.WithField("has_email", profile.Email != "").Debug("profile normalized")
	return profile, nil
}

func (p *Pipeline) normalize(ctx context.Context, providerID string, raw RawResponse) (*Profile, error) {
	provider, err := p.registry.Lookup(providerID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	profile, err := provider.Normalize(ctx, raw, p.client)
	if err != nil {
		return nil, err
	}
	if profile == nil || profile.ID == "" {
		return nil, missingField(provider.Name(), "id")
	}
	return profile, nil
}
