// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgiotel_test

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Query-farm/vgi-chariot/vgirpc"
	vgiotel "github.com/Query-farm/vgi-chariot/vgirpc/otel"
)

type empty struct{}

func TestHookContinuesClientTrace(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	s := vgirpc.NewServer()
	s.SetServiceName("chariot-test")
	vgirpc.UnaryVoid(s, "ok", func(context.Context, *vgirpc.CallContext, empty) error { return nil })
	vgirpc.UnaryVoid(s, "bad", func(context.Context, *vgirpc.CallContext, empty) error {
		return &vgirpc.RpcError{Type: "ValueError", Message: "nope"}
	})
	cfg := vgiotel.DefaultConfig()
	cfg.TracerProvider = tp
	cfg.MeterProvider = mp
	cfg.Propagator = propagation.TraceContext{}
	cfg.CustomAttributes = []attribute.KeyValue{attribute.String("chrapi.dll", "ChrApi.dll")}
	vgiotel.InstrumentServer(s, cfg)

	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Serve(reqR, respW)
		respW.Close()
	}()
	c := vgirpc.NewClient(vgirpc.NewStdioTransport(respR, reqW), vgirpc.WithPropagator(propagation.TraceContext{}))
	defer func() {
		c.Close()
		<-done
	}()

	ctx, parent := tp.Tracer("test").Start(context.Background(), "client")
	require.NoError(t, vgirpc.CallVoid(ctx, c, "ok", empty{}))
	require.Error(t, vgirpc.CallVoid(ctx, c, "bad", empty{}))
	parent.End()

	var server []sdktrace.ReadOnlySpan
	for _, span := range recorder.Ended() {
		if span.Name() != "client" {
			server = append(server, span)
		}
	}
	require.Len(t, server, 2)
	assert.Equal(t, "vgi_rpc/ok", server[0].Name())
	assert.Equal(t, parent.SpanContext().TraceID(), server[0].Parent().TraceID())
	assert.Equal(t, codes.Ok, server[0].Status().Code)
	assert.Contains(t, server[0].Attributes(), attribute.String("rpc.service", "chariot-test"))
	assert.Contains(t, server[0].Attributes(), attribute.String("chrapi.dll", "ChrApi.dll"))

	assert.Equal(t, codes.Error, server[1].Status().Code)
	assert.Contains(t, server[1].Attributes(), attribute.String("rpc.vgi_rpc.error_type", "ValueError"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	assert.True(t, names["rpc.server.requests"])
	assert.True(t, names["rpc.server.duration"])
}

func TestSetupStdout(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := vgiotel.SetupStdout(&buf, "chariot-worker", time.Hour)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
