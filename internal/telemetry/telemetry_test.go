package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	UseTracerProvider(tp)
	t.Cleanup(func() {
		_, _ = Init(context.Background(), Config{Enabled: false})
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func attrMap(kvs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value
	}
	return m
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "mtpd", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()

	shutdown, err := Init(ctx, DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, shutdown(ctx))
	assert.False(t, IsEnabled())

	spanCtx, span := StartSpan(ctx, "noop")
	defer span.End()
	assert.Empty(t, TraceID(spanCtx))
	assert.Empty(t, SpanID(spanCtx))
}

func TestHelpersWithoutSpan(t *testing.T) {
	ctx := context.Background()
	require.NotPanics(t, func() {
		AddEvent(ctx, "x")
		RecordError(ctx, nil)
		RecordError(ctx, errors.New("boom"))
		SetAttributes(ctx, Handle(1))
	})
}

func TestStartTransactionSpan(t *testing.T) {
	rec := recordSpans(t)
	assert.True(t, IsEnabled())

	ctx, span := StartTransactionSpan(context.Background(), "GetObject", 0x1009, 7, 1, Handle(42))
	assert.NotEmpty(t, TraceID(ctx))
	assert.NotEmpty(t, SpanID(ctx))
	EndTransactionSpan(span, "OK", true)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "mtp.GetObject", spans[0].Name())

	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, "GetObject", attrs[AttrOperation].AsString())
	assert.Equal(t, "0x1009", attrs[AttrOpCode].AsString())
	assert.Equal(t, int64(7), attrs[AttrTransactionID].AsInt64())
	assert.Equal(t, int64(1), attrs[AttrSessionID].AsInt64())
	assert.Equal(t, int64(42), attrs[AttrHandle].AsInt64())
	assert.Equal(t, "OK", attrs[AttrResponse].AsString())
	assert.NotEqual(t, codes.Error, spans[0].Status().Code)
}

func TestEndTransactionSpanMarksFailure(t *testing.T) {
	rec := recordSpans(t)

	_, span := StartTransactionSpan(context.Background(), "DeleteObject", 0x100B, 3, 1)
	EndTransactionSpan(span, "InvalidObjectHandle", false)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "InvalidObjectHandle", spans[0].Status().Description)
}

func TestRecordErrorOnSpan(t *testing.T) {
	rec := recordSpans(t)

	ctx, span := StartSpan(context.Background(), SpanIndex)
	RecordError(ctx, errors.New("walk failed"))
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	require.Len(t, spans[0].Events(), 1)
}

func TestAttributeHelpers(t *testing.T) {
	assert.Equal(t, "0x00010001", StorageID(0x00010001).Value.AsString())
	assert.Equal(t, AttrFormat, string(Format("Text").Key))
	assert.Equal(t, int64(5), Bytes(5).Value.AsInt64())
	assert.Equal(t, AttrEvent, string(Event("ObjectAdded").Key))
	assert.Equal(t, "badger", StoreType("badger").Value.AsString())
	assert.Equal(t, "/srv", Path("/srv").Value.AsString())
}

func TestParseProfileTypes(t *testing.T) {
	types, err := ParseProfileTypes([]string{"cpu", "inuse_space", "goroutines"})
	require.NoError(t, err)
	assert.Len(t, types, 3)

	_, err = ParseProfileTypes([]string{"cpu", "heap"})
	assert.Error(t, err)
}

func TestInitProfilingDisabled(t *testing.T) {
	shutdown, err := InitProfiling(ProfilingConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown())
	assert.False(t, IsProfilingEnabled())
}
