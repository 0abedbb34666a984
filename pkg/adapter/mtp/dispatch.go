package mtp

import (
	"context"
	"slices"

	"github.com/marmos91/mtpd/internal/adapter/mtp/types"
)

// ============================================================================
// Operation Dispatch Types
// ============================================================================

// OperationHandler is the uniform handler signature. The returned error is a
// transport failure and ends the run loop; every other failure is expressed
// in the result's response code.
type OperationHandler func(ctx context.Context, t *txn) (result, error)

// Operation contains metadata about an MTP operation for dispatch.
type Operation struct {
	// Handler processes the operation.
	Handler OperationHandler

	// NeedsSession rejects the operation with SessionNotOpen when no
	// session is open.
	NeedsSession bool
}

// DispatchTable maps operation codes to their handlers.
var DispatchTable map[types.OperationCode]*Operation

func init() {
	initDispatchTable()
}

func initDispatchTable() {
	DispatchTable = map[types.OperationCode]*Operation{
		types.OpGetDeviceInfo:  {Handler: handleGetDeviceInfo},
		types.OpOpenSession:    {Handler: handleOpenSession},
		types.OpCloseSession:   {Handler: handleCloseSession, NeedsSession: true},
		types.OpGetStorageIDs:  {Handler: handleGetStorageIDs, NeedsSession: true},
		types.OpGetStorageInfo: {Handler: handleGetStorageInfo, NeedsSession: true},

		types.OpGetNumObjects:    {Handler: handleGetNumObjects, NeedsSession: true},
		types.OpGetObjectHandles: {Handler: handleGetObjectHandles, NeedsSession: true},
		types.OpGetObjectInfo:    {Handler: handleGetObjectInfo, NeedsSession: true},
		types.OpGetObject:        {Handler: handleGetObject, NeedsSession: true},
		types.OpGetPartialObject: {Handler: handleGetPartialObject, NeedsSession: true},
		types.OpDeleteObject:     {Handler: handleDeleteObject, NeedsSession: true},
		types.OpSendObjectInfo:   {Handler: handleSendObjectInfo, NeedsSession: true},
		types.OpSendObject:       {Handler: handleSendObject, NeedsSession: true},

		types.OpGetDevicePropDesc:    {Handler: handleGetDevicePropDesc, NeedsSession: true},
		types.OpGetDevicePropValue:   {Handler: handleGetDevicePropValue, NeedsSession: true},
		types.OpSetDevicePropValue:   {Handler: handleSetDevicePropValue, NeedsSession: true},
		types.OpResetDevicePropValue: {Handler: handleResetDevicePropValue, NeedsSession: true},

		types.OpGetObjectPropsSupported: {Handler: handleGetObjectPropsSupported, NeedsSession: true},
		types.OpGetObjectPropDesc:       {Handler: handleGetObjectPropDesc, NeedsSession: true},
		types.OpGetObjectPropValue:      {Handler: handleGetObjectPropValue, NeedsSession: true},
		types.OpSetObjectPropValue:      {Handler: handleSetObjectPropValue, NeedsSession: true},
		types.OpGetObjectPropList:       {Handler: handleGetObjectPropList, NeedsSession: true},
		types.OpSetObjectPropList:       {Handler: handleSetObjectPropList, NeedsSession: true},
		types.OpGetObjectReferences:     {Handler: handleGetObjectReferences, NeedsSession: true},
		types.OpSetObjectReferences:     {Handler: handleSetObjectReferences, NeedsSession: true},
	}
}

// SupportedOperations returns the dispatch table's operation codes in
// ascending order.
func SupportedOperations() []types.OperationCode {
	ops := make([]types.OperationCode, 0, len(DispatchTable))
	for code := range DispatchTable {
		ops = append(ops, code)
	}
	slices.Sort(ops)
	return ops
}

// supportedEvents lists the events the responder can send.
var supportedEvents = []types.EventCode{
	types.EventObjectAdded,
	types.EventObjectRemoved,
	types.EventStoreAdded,
	types.EventStoreRemoved,
	types.EventObjectInfoChanged,
}
