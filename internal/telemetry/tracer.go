package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for MTP transactions.
const (
	AttrOperation     = "mtp.operation"
	AttrOpCode        = "mtp.op_code"
	AttrTransactionID = "mtp.transaction_id"
	AttrSessionID     = "mtp.session_id"
	AttrResponse      = "mtp.response"
	AttrStorageID     = "mtp.storage_id"
	AttrHandle        = "mtp.handle"
	AttrFormat        = "mtp.format"
	AttrBytes         = "mtp.bytes"
	AttrEvent         = "mtp.event"

	AttrStoreType = "store.type"
	AttrPath      = "fs.path"
)

// Span names outside the per-operation transaction spans.
const (
	SpanEvent   = "mtp.event"
	SpanIndex   = "mtp.index"
	SpanWatcher = "mtp.watch"
)

func Operation(name string) attribute.KeyValue {
	return attribute.String(AttrOperation, name)
}

func OpCode(code uint16) attribute.KeyValue {
	return attribute.String(AttrOpCode, fmt.Sprintf("0x%04X", code))
}

func TransactionID(id uint32) attribute.KeyValue {
	return attribute.Int64(AttrTransactionID, int64(id))
}

func SessionID(id uint32) attribute.KeyValue {
	return attribute.Int64(AttrSessionID, int64(id))
}

func Response(name string) attribute.KeyValue {
	return attribute.String(AttrResponse, name)
}

func StorageID(id uint32) attribute.KeyValue {
	return attribute.String(AttrStorageID, fmt.Sprintf("0x%08X", id))
}

func Handle(h uint32) attribute.KeyValue {
	return attribute.Int64(AttrHandle, int64(h))
}

func Format(name string) attribute.KeyValue {
	return attribute.String(AttrFormat, name)
}

func Bytes(n int64) attribute.KeyValue {
	return attribute.Int64(AttrBytes, n)
}

func Event(name string) attribute.KeyValue {
	return attribute.String(AttrEvent, name)
}

func StoreType(t string) attribute.KeyValue {
	return attribute.String(AttrStoreType, t)
}

func Path(p string) attribute.KeyValue {
	return attribute.String(AttrPath, p)
}

// StartTransactionSpan starts the span covering one MTP transaction, named
// "mtp.<Operation>".
func StartTransactionSpan(ctx context.Context, operation string, code uint16, transactionID, sessionID uint32, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := make([]attribute.KeyValue, 0, 4+len(attrs))
	all = append(all,
		Operation(operation),
		OpCode(code),
		TransactionID(transactionID),
		SessionID(sessionID),
	)
	all = append(all, attrs...)

	return StartSpan(ctx, "mtp."+operation, trace.WithAttributes(all...), trace.WithSpanKind(trace.SpanKindServer))
}

// EndTransactionSpan records the response on span and ends it. Any response
// other than OK marks the span as an error.
func EndTransactionSpan(span trace.Span, response string, ok bool) {
	span.SetAttributes(Response(response))
	if !ok {
		span.SetStatus(codes.Error, response)
	}
	span.End()
}
