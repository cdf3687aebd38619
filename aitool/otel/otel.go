// Copyright (c) 2026 Commonwealth Scientific and Industrial Research Organisation (CSIRO). All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package aitoolotel provides OpenTelemetry instrumentation for aitool
// servers. It implements the [aitool.DispatchHook] interface to add
// distributed tracing and metrics to tool dispatch.
//
// Usage:
//
//	srv := aitool.NewServer(reg)
//	aitoolotel.InstrumentServer(srv, aitoolotel.DefaultConfig())
package aitoolotel

import (
	"context"
	"fmt"
	"time"

	"github.com/ivcap-works/ivcap-ai-tool-go/aitool"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "aitool"

// Config configures OpenTelemetry instrumentation for a tool server.
type Config struct {
	// TracerProvider supplies the tracer. Defaults to otel.GetTracerProvider().
	TracerProvider trace.TracerProvider
	// MeterProvider supplies the meter. Defaults to otel.GetMeterProvider().
	MeterProvider metric.MeterProvider
	// EnableTracing enables span creation. Default true.
	EnableTracing bool
	// EnableMetrics enables counter and histogram recording. Default true.
	EnableMetrics bool
	// RecordExceptions calls RecordError on the span for failed dispatches.
	// Default true.
	RecordExceptions bool
	// ServiceName is the rpc.service attribute value. Defaults to
	// Server.ServiceName() or "aitool".
	ServiceName string
	// CustomAttributes are added to every span.
	CustomAttributes []attribute.KeyValue
}

// DefaultConfig returns a Config with sensible defaults. TracerProvider and
// MeterProvider are resolved from the global OTel SDK at instrumentation
// time.
func DefaultConfig() Config {
	return Config{
		EnableTracing:    true,
		EnableMetrics:    true,
		RecordExceptions: true,
	}
}

// InstrumentServer attaches OpenTelemetry instrumentation to a tool server.
// The hook is installed via [aitool.Server.SetDispatchHook].
func InstrumentServer(server *aitool.Server, cfg Config) {
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}
	if cfg.ServiceName == "" {
		if sn := server.ServiceName(); sn != "" {
			cfg.ServiceName = sn
		} else {
			cfg.ServiceName = "aitool"
		}
	}

	hook := &otelHook{
		cfg:    cfg,
		tracer: cfg.TracerProvider.Tracer(instrumentationName),
	}

	if cfg.EnableMetrics {
		meter := cfg.MeterProvider.Meter(instrumentationName)
		hook.requestCounter, _ = meter.Int64Counter("tool.server.requests",
			metric.WithUnit("{request}"),
			metric.WithDescription("Number of tool dispatches"),
		)
		hook.durationHistogram, _ = meter.Float64Histogram("tool.server.duration",
			metric.WithUnit("s"),
			metric.WithDescription("Duration of tool dispatches"),
		)
	}

	server.SetDispatchHook(hook)
}

// otelHook implements aitool.DispatchHook with OpenTelemetry tracing and
// metrics.
type otelHook struct {
	cfg               Config
	tracer            trace.Tracer
	requestCounter    metric.Int64Counter
	durationHistogram metric.Float64Histogram
}

// spanToken is the HookToken returned by OnDispatchStart.
type spanToken struct {
	span      trace.Span
	startTime time.Time
}

// OnDispatchStart starts a server span for the dispatch.
func (h *otelHook) OnDispatchStart(ctx context.Context, info aitool.DispatchInfo) (context.Context, aitool.HookToken) {
	if !h.cfg.EnableTracing {
		return ctx, &spanToken{startTime: time.Now()}
	}

	spanName := fmt.Sprintf("tool/%s", info.Tool)

	attrs := []attribute.KeyValue{
		attribute.String("rpc.system", "aitool"),
		attribute.String("rpc.service", h.cfg.ServiceName),
		attribute.String("rpc.method", info.Tool),
		attribute.String("aitool.transport", info.Transport),
		attribute.String("aitool.job_id", info.JobID),
	}
	if info.ServerID != "" {
		attrs = append(attrs, attribute.String("aitool.server_id", info.ServerID))
	}
	if info.RequestID != "" {
		attrs = append(attrs, attribute.String("aitool.request_id", info.RequestID))
	}
	attrs = append(attrs, h.cfg.CustomAttributes...)

	ctx, span := h.tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)

	return ctx, &spanToken{span: span, startTime: time.Now()}
}

// OnDispatchEnd records span attributes, metrics, and ends the span.
func (h *otelHook) OnDispatchEnd(ctx context.Context, token aitool.HookToken, info aitool.DispatchInfo, stats *aitool.CallStatistics, err error) {
	st, ok := token.(*spanToken)
	if !ok {
		return
	}

	duration := time.Since(st.startTime)

	status := "ok"
	if err != nil {
		status = "error"
	}

	if h.cfg.EnableMetrics {
		metricAttrs := metric.WithAttributes(
			attribute.String("rpc.system", "aitool"),
			attribute.String("rpc.service", h.cfg.ServiceName),
			attribute.String("rpc.method", info.Tool),
			attribute.String("aitool.transport", info.Transport),
			attribute.String("status", status),
		)
		if h.requestCounter != nil {
			h.requestCounter.Add(ctx, 1, metricAttrs)
		}
		if h.durationHistogram != nil {
			h.durationHistogram.Record(ctx, duration.Seconds(), metricAttrs)
		}
	}

	if st.span != nil && st.span.IsRecording() {
		if stats != nil {
			st.span.SetAttributes(
				attribute.Int64("aitool.input_bytes", stats.InputBytes),
				attribute.Int64("aitool.output_bytes", stats.OutputBytes),
			)
		}

		if err != nil {
			st.span.SetStatus(codes.Error, err.Error())
			if h.cfg.RecordExceptions {
				st.span.RecordError(err)
			}
			st.span.SetAttributes(attribute.String("aitool.error_type", fmt.Sprintf("%T", err)))
		} else {
			st.span.SetStatus(codes.Ok, "")
		}

		st.span.End()
	}
}
