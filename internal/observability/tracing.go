package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// ImageProviderKey tags spans with the background image backend in use.
const ImageProviderKey = attribute.Key("thumbapp.image_provider")

// TracingConfig describes the running service for exported spans.
type TracingConfig struct {
	ServiceName   string
	Version       string
	Environment   string
	ImageProvider string
	// Endpoint is the Jaeger collector URL, e.g.
	// http://localhost:14268/api/traces. Empty disables export.
	Endpoint string
}

// ServiceResource builds the resource attached to every span.
func ServiceResource(ctx context.Context, cfg TracingConfig) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.Version),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}
	if cfg.ImageProvider != "" {
		attrs = append(attrs, ImageProviderKey.String(cfg.ImageProvider))
	}
	return resource.New(ctx, resource.WithAttributes(attrs...))
}

// InitTracing installs a Jaeger-backed tracer provider for the thumbnail
// pipeline spans. It is a no-op without an endpoint.
func InitTracing(ctx context.Context, cfg TracingConfig) (func(context.Context) error, error) {
	if cfg.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	res, err := ServiceResource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.Endpoint)))
	if err != nil {
		return nil, err
	}
	tp := trace.NewTracerProvider(
		trace.WithBatcher(exp, trace.WithBatchTimeout(5*time.Second)),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
