// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package telemetry sets up OpenTelemetry tracing for the relay. Tracing is off unless
// enabled in the configuration; the HTTP layer and the SMTP sender always go through
// the global provider, so a disabled setup costs a no-op span per request.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/telekom/contact-relay/pkg/config"
	"github.com/telekom/contact-relay/pkg/version"
)

// InstrumentationName names the tracer used for spans created by this module.
const InstrumentationName = "github.com/telekom/contact-relay"

// Options configures Init.
type Options struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	// Exporter is otlp (default), stdout or none; none keeps spans in process
	Exporter string
	// Endpoint is host:port of the OTLP gRPC collector; empty uses the OTEL_EXPORTER_OTLP_* defaults
	Endpoint     string
	Insecure     bool
	SamplingRate float64
	Logger       *zap.SugaredLogger
}

// OptionsFromConfig maps the tracing section of the relay configuration.
func OptionsFromConfig(cfg config.Tracing, log *zap.SugaredLogger) Options {
	return Options{
		Enabled:        cfg.Enabled,
		ServiceName:    version.Name,
		ServiceVersion: version.GetBuildInfo().Version,
		Exporter:       cfg.Exporter,
		Endpoint:       cfg.Endpoint,
		Insecure:       cfg.Insecure,
		SamplingRate:   cfg.SamplingRate,
		Logger:         log,
	}
}

// ShutdownFunc flushes pending spans and stops the provider.
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

// Init installs the global TracerProvider and W3C propagators. A disabled setup
// installs the no-op provider and returns a no-op ShutdownFunc.
func Init(ctx context.Context, opts Options) (trace.TracerProvider, ShutdownFunc, error) {
	if !opts.Enabled {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp, noopShutdown, nil
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if opts.ServiceName == "" {
		opts.ServiceName = version.Name
	}
	if opts.SamplingRate < 0 || opts.SamplingRate > 1 {
		log.Warnw("Sampling rate out of range, sampling every trace", "samplingRate", opts.SamplingRate)
		opts.SamplingRate = 1
	}

	res, err := newResource(opts)
	if err != nil {
		return nil, nil, err
	}
	exporter, err := newExporter(ctx, opts)
	if err != nil {
		return nil, nil, err
	}

	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.SamplingRate))),
	}
	if exporter != nil {
		providerOpts = append(providerOpts, sdktrace.WithBatcher(exporter))
	}
	tp := sdktrace.NewTracerProvider(providerOpts...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		log.Warnw("Trace export failed", "error", err)
	}))

	log.Infow("Tracing enabled",
		"service", opts.ServiceName,
		"exporter", opts.Exporter,
		"endpoint", opts.Endpoint,
		"samplingRate", opts.SamplingRate,
	)

	return tp, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	}, nil
}

func newResource(opts Options) (*resource.Resource, error) {
	// schemaless so the merge with resource.Default() cannot hit a schema URL conflict
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", opts.ServiceName),
		attribute.String("service.version", opts.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}
	return res, nil
}

// newExporter returns nil for the "none" exporter.
func newExporter(ctx context.Context, opts Options) (sdktrace.SpanExporter, error) {
	switch opts.Exporter {
	case "", "otlp":
		var grpcOpts []otlptracegrpc.Option
		if opts.Endpoint != "" {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithEndpoint(opts.Endpoint))
		}
		if opts.Insecure {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, grpcOpts...)
		if err != nil {
			return nil, fmt.Errorf("create otlp exporter: %w", err)
		}
		return exp, nil
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		return exp, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown trace exporter %q: supported values are otlp, stdout, none", opts.Exporter)
	}
}

// Tracer returns the module tracer from the current global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// EndSpan marks span as failed when err is set and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
