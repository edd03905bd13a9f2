// Package o11y initializes OpenTelemetry tracing and metrics for the engine.
package o11y

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"google.golang.org/grpc/credentials"
)

// Opts configures the OTLP exporters for traces and metrics.
type Opts struct {
	ServiceName       string
	CollectorHeaders  map[string]string
	CollectorEndpoint string
	InsecureMode      bool

	ChainID string
	Address string
}

func newResource(ctx context.Context, opts *Opts) *resource.Resource {
	res, err := resource.New(
		ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(opts.ServiceName),
			attribute.String("chain.id", opts.ChainID),
			attribute.String("engine.address", opts.Address),
		),
	)
	if err != nil {
		otel.Handle(err)
		return resource.Default()
	}
	return res
}

func initTracer(ctx context.Context, opts *Opts) func() {
	secureOption := otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, ""))
	if opts.InsecureMode {
		secureOption = otlptracegrpc.WithInsecure()
	}

	exporter, err := otlptrace.New(
		ctx,
		otlptracegrpc.NewClient(
			secureOption,
			otlptracegrpc.WithEndpoint(opts.CollectorEndpoint),
			otlptracegrpc.WithHeaders(opts.CollectorHeaders),
		),
	)
	if err != nil {
		otel.Handle(err)
		return func() {}
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(newResource(ctx, opts)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func() {
		_ = tp.Shutdown(ctx)
	}
}

func initMeter(ctx context.Context, opts *Opts) func() {
	secureOption := otlpmetricgrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, ""))
	if opts.InsecureMode {
		secureOption = otlpmetricgrpc.WithInsecure()
	}

	exporter, err := otlpmetricgrpc.New(
		ctx,
		secureOption,
		otlpmetricgrpc.WithEndpoint(opts.CollectorEndpoint),
		otlpmetricgrpc.WithHeaders(opts.CollectorHeaders),
	)
	if err != nil {
		otel.Handle(err)
		return func() {}
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second)),
		),
		sdkmetric.WithResource(newResource(ctx, opts)),
	)
	otel.SetMeterProvider(mp)

	return func() {
		_ = mp.Shutdown(ctx)
	}
}

// Init bootstraps the global trace and meter providers and returns a shutdown
// function that flushes both.
func Init(opts *Opts) func() {
	ctx := context.Background()
	traceShutdown := initTracer(ctx, opts)
	meterShutdown := initMeter(ctx, opts)

	return func() {
		traceShutdown()
		meterShutdown()
	}
}
