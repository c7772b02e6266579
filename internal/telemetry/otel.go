package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.uber.org/zap"
)

// ServiceName identifies the session service in exported spans
const ServiceName = "smart-forms"

// Options configures trace export
type Options struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
	// Insecure exports over plain HTTP; only for local collectors
	Insecure bool
}

// Tracing owns the tracer provider. A zero or nil Tracing is disabled and all
// methods are no-ops.
type Tracing struct {
	provider    *sdktrace.TracerProvider
	serviceName string
}

// Init sets up trace export. Disabled or endpoint-less options return a
// disabled Tracing rather than an error so startup never depends on a collector.
func Init(ctx context.Context, opts Options, logger *zap.Logger) (*Tracing, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ServiceName == "" {
		opts.ServiceName = ServiceName
	}
	if !opts.Enabled {
		return &Tracing{serviceName: opts.ServiceName}, nil
	}
	if opts.Endpoint == "" {
		logger.Warn("otel_enabled_but_endpoint_not_configured")
		return &Tracing{serviceName: opts.ServiceName}, nil
	}

	tp, err := InitTracer(ctx, opts.ServiceName, opts.Endpoint, opts.Insecure)
	if err != nil {
		return nil, err
	}
	logger.Info("otel_tracer_initialized",
		zap.String("endpoint", opts.Endpoint),
		zap.String("service", opts.ServiceName),
	)
	return &Tracing{provider: tp, serviceName: opts.ServiceName}, nil
}

// Enabled reports whether spans are exported
func (t *Tracing) Enabled() bool {
	return t != nil && t.provider != nil
}

// Middleware returns the mux tracing middleware, or a pass-through when disabled
func (t *Tracing) Middleware() mux.MiddlewareFunc {
	if !t.Enabled() {
		return func(next http.Handler) http.Handler { return next }
	}
	return otelmux.Middleware(t.serviceName, otelmux.WithTracerProvider(t.provider))
}

// Shutdown flushes pending spans
func (t *Tracing) Shutdown(ctx context.Context) error {
	if !t.Enabled() {
		return nil
	}
	return Shutdown(ctx, t.provider)
}

// InitTracer initializes the OpenTelemetry tracer provider and installs it globally
func InitTracer(ctx context.Context, serviceName, endpoint string, insecure bool) (*sdktrace.TracerProvider, error) {
	exporterOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	if insecure {
		exporterOpts = append(exporterOpts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, nil
}

// Shutdown gracefully shuts down the tracer provider
func Shutdown(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}
