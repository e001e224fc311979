// Package tracing wraps the OpenSecureChannel handshake in an
// OpenTelemetry span (SPEC_FULL.md §10), grounded on dittofs's otel wiring
// for its control-plane calls: a package-level tracer obtained once, a
// small Start helper that returns the standard (context.Context, trace.Span)
// pair, and span names namespaced under "opcuacore.". Span names for chunk
// send and receive are defined as well; the secure-channel send and
// receive paths do not start spans under them.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/opcuacore/opcuacore"

var tracer = otel.Tracer(instrumentationName)

// Span names for the three critical sections spec.md calls out by name.
const (
	SpanOpenSecureChannel = "opcuacore.opn"
	SpanChunkSend         = "opcuacore.chunk.send"
	SpanChunkReceive      = "opcuacore.chunk.recv"
)

// Start begins a span named name as a child of ctx, returning the usual
// (context.Context, trace.Span) pair. Callers finish the span with End,
// which records a non-nil error as the span's status.
func Start(ctx context.Context, name string, attrs ...trace.SpanStartOption) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, attrs...)
}

// End finishes span, recording err as the span's status when non-nil.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
