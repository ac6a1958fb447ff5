// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package vgiotel provides OpenTelemetry instrumentation for the chariot
// worker's RPC server. It implements [vgirpc.DispatchHook] to add
// distributed tracing and metrics to every bridged DLL call.
//
//	server := vgirpc.NewServer()
//	// ... register methods ...
//	vgiotel.InstrumentServer(server, vgiotel.DefaultConfig())
package vgiotel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Query-farm/vgi-chariot/vgirpc"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/Query-farm/vgi-chariot/vgirpc/otel"

// Config configures OpenTelemetry instrumentation for a vgirpc server.
type Config struct {
	// TracerProvider supplies the tracer. Defaults to otel.GetTracerProvider().
	TracerProvider trace.TracerProvider
	// MeterProvider supplies the meter. Defaults to otel.GetMeterProvider().
	MeterProvider metric.MeterProvider
	// Propagator extracts trace context from request metadata.
	// Defaults to otel.GetTextMapPropagator().
	Propagator propagation.TextMapPropagator
	// EnableTracing enables span creation.
	EnableTracing bool
	// EnableMetrics enables counter and histogram recording.
	EnableMetrics bool
	// RecordExceptions calls RecordError on the span for failed dispatches.
	RecordExceptions bool
	// ServiceName is the rpc.service attribute value.
	// Defaults to Server.ServiceName() or "chariot-worker".
	ServiceName string
	// CustomAttributes are added to every span, e.g. the DLL path and version.
	CustomAttributes []attribute.KeyValue
}

// DefaultConfig enables tracing, metrics and exception recording. Providers
// are resolved from the global OTel SDK at instrumentation time.
func DefaultConfig() Config {
	return Config{
		EnableTracing:    true,
		EnableMetrics:    true,
		RecordExceptions: true,
	}
}

// InstrumentServer installs the hook via [vgirpc.Server.SetDispatchHook].
func InstrumentServer(server *vgirpc.Server, cfg Config) {
	server.SetDispatchHook(NewHook(server, cfg))
}

// NewHook builds the dispatch hook without installing it.
func NewHook(server *vgirpc.Server, cfg Config) vgirpc.DispatchHook {
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}
	if cfg.Propagator == nil {
		cfg.Propagator = otel.GetTextMapPropagator()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "chariot-worker"
		if server != nil && server.ServiceName() != "" {
			cfg.ServiceName = server.ServiceName()
		}
	}

	h := &hook{
		cfg:    cfg,
		tracer: cfg.TracerProvider.Tracer(instrumentationName),
	}
	if cfg.EnableMetrics {
		meter := cfg.MeterProvider.Meter(instrumentationName)
		h.calls, _ = meter.Int64Counter("rpc.server.requests",
			metric.WithUnit("{request}"),
			metric.WithDescription("Number of bridged calls"),
		)
		h.duration, _ = meter.Float64Histogram("rpc.server.duration",
			metric.WithUnit("s"),
			metric.WithDescription("Duration of bridged calls"),
		)
	}
	return h
}

type hook struct {
	cfg      Config
	tracer   trace.Tracer
	calls    metric.Int64Counter
	duration metric.Float64Histogram
}

type spanToken struct {
	span  trace.Span
	start time.Time
}

// OnDispatchStart extracts the parent trace context and starts a server span.
func (h *hook) OnDispatchStart(ctx context.Context, info vgirpc.DispatchInfo) (context.Context, vgirpc.HookToken) {
	if info.TransportMetadata != nil {
		ctx = h.cfg.Propagator.Extract(ctx, propagation.MapCarrier(info.TransportMetadata))
	}
	if !h.cfg.EnableTracing {
		return ctx, &spanToken{start: time.Now()}
	}

	attrs := []attribute.KeyValue{
		attribute.String("rpc.system", "vgi_rpc"),
		attribute.String("rpc.service", h.cfg.ServiceName),
		attribute.String("rpc.method", info.Method),
		attribute.String("rpc.vgi_rpc.method_type", info.MethodType),
		attribute.String("rpc.vgi_rpc.server_id", info.ServerID),
		attribute.String("rpc.vgi_rpc.request_id", info.RequestID),
	}
	attrs = append(attrs, h.cfg.CustomAttributes...)
	// HTTP only
	if v := info.TransportMetadata["remote_addr"]; v != "" {
		attrs = append(attrs, attribute.String("net.peer.ip", v))
	}
	if v := info.TransportMetadata["user_agent"]; v != "" {
		attrs = append(attrs, attribute.String("user_agent.original", v))
	}

	ctx, span := h.tracer.Start(ctx, fmt.Sprintf("vgi_rpc/%s", info.Method),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)
	return ctx, &spanToken{span: span, start: time.Now()}
}

// OnDispatchEnd records metrics and ends the span.
func (h *hook) OnDispatchEnd(ctx context.Context, token vgirpc.HookToken, info vgirpc.DispatchInfo, stats *vgirpc.CallStatistics, err error) {
	st, ok := token.(*spanToken)
	if !ok {
		return
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	if h.cfg.EnableMetrics {
		attrs := metric.WithAttributes(
			attribute.String("rpc.service", h.cfg.ServiceName),
			attribute.String("rpc.method", info.Method),
			attribute.String("status", status),
		)
		if h.calls != nil {
			h.calls.Add(ctx, 1, attrs)
		}
		if h.duration != nil {
			h.duration.Record(ctx, time.Since(st.start).Seconds(), attrs)
		}
	}

	if st.span == nil {
		return
	}
	if stats != nil && st.span.IsRecording() {
		st.span.SetAttributes(
			attribute.Int64("rpc.vgi_rpc.input_rows", stats.InputRows),
			attribute.Int64("rpc.vgi_rpc.output_rows", stats.OutputRows),
			attribute.Int64("rpc.vgi_rpc.input_bytes", stats.InputBytes),
			attribute.Int64("rpc.vgi_rpc.output_bytes", stats.OutputBytes),
		)
	}
	if err != nil {
		st.span.SetStatus(codes.Error, err.Error())
		if h.cfg.RecordExceptions {
			st.span.RecordError(err)
		}
		errType := fmt.Sprintf("%T", err)
		var rpcErr *vgirpc.RpcError
		if errors.As(err, &rpcErr) {
			errType = rpcErr.Type
		}
		st.span.SetAttributes(attribute.String("rpc.vgi_rpc.error_type", errType))
	} else {
		st.span.SetStatus(codes.Ok, "")
	}
	st.span.End()
}
