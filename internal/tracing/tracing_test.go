package tracing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/opcuacore/opcuacore/internal/tracing"
)

func TestEndRecordsErrorStatus(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())
	tr := tp.Tracer("test")

	_, span := tr.Start(context.Background(), tracing.SpanOpenSecureChannel)
	tracing.End(span, errors.New("handshake failed"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "handshake failed", spans[0].Status().Description)
}

func TestEndWithoutErrorLeavesStatusUnset(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())
	tr := tp.Tracer("test")

	_, span := tr.Start(context.Background(), tracing.SpanChunkSend)
	tracing.End(span, nil)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestStartReturnsNonNilSpan(t *testing.T) {
	ctx, span := tracing.Start(context.Background(), tracing.SpanChunkReceive)
	require.NotNil(t, span)
	require.NotNil(t, ctx)
	span.End()
}
