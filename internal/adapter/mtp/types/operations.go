package types

import "fmt"

// OperationCode identifies the operation requested by a command container.
type OperationCode uint16

// PTP operations
const (
	OpGetDeviceInfo        OperationCode = 0x1001
	OpOpenSession          OperationCode = 0x1002
	OpCloseSession         OperationCode = 0x1003
	OpGetStorageIDs        OperationCode = 0x1004
	OpGetStorageInfo       OperationCode = 0x1005
	OpGetNumObjects        OperationCode = 0x1006
	OpGetObjectHandles     OperationCode = 0x1007
	OpGetObjectInfo        OperationCode = 0x1008
	OpGetObject            OperationCode = 0x1009
	OpGetThumb             OperationCode = 0x100A
	OpDeleteObject         OperationCode = 0x100B
	OpSendObjectInfo       OperationCode = 0x100C
	OpSendObject           OperationCode = 0x100D
	OpInitiateCapture      OperationCode = 0x100E
	OpFormatStore          OperationCode = 0x100F
	OpResetDevice          OperationCode = 0x1010
	OpSelfTest             OperationCode = 0x1011
	OpSetObjectProtection  OperationCode = 0x1012
	OpPowerDown            OperationCode = 0x1013
	OpGetDevicePropDesc    OperationCode = 0x1014
	OpGetDevicePropValue   OperationCode = 0x1015
	OpSetDevicePropValue   OperationCode = 0x1016
	OpResetDevicePropValue OperationCode = 0x1017
	OpTerminateOpenCapture OperationCode = 0x1018
	OpMoveObject           OperationCode = 0x1019
	OpCopyObject           OperationCode = 0x101A
	OpGetPartialObject     OperationCode = 0x101B
	OpInitiateOpenCapture  OperationCode = 0x101C
)

// MTP extension operations
const (
	OpGetObjectPropsSupported   OperationCode = 0x9801
	OpGetObjectPropDesc         OperationCode = 0x9802
	OpGetObjectPropValue        OperationCode = 0x9803
	OpSetObjectPropValue        OperationCode = 0x9804
	OpGetObjectPropList         OperationCode = 0x9805
	OpSetObjectPropList         OperationCode = 0x9806
	OpGetInterdependentPropDesc OperationCode = 0x9807
	OpSendObjectPropList        OperationCode = 0x9808
	OpGetObjectReferences       OperationCode = 0x9810
	OpSetObjectReferences       OperationCode = 0x9811
	OpSkip                      OperationCode = 0x9820
)

var operationNames = map[OperationCode]string{
	OpGetDeviceInfo:             "GetDeviceInfo",
	OpOpenSession:               "OpenSession",
	OpCloseSession:              "CloseSession",
	OpGetStorageIDs:             "GetStorageIDs",
	OpGetStorageInfo:            "GetStorageInfo",
	OpGetNumObjects:             "GetNumObjects",
	OpGetObjectHandles:          "GetObjectHandles",
	OpGetObjectInfo:             "GetObjectInfo",
	OpGetObject:                 "GetObject",
	OpGetThumb:                  "GetThumb",
	OpDeleteObject:              "DeleteObject",
	OpSendObjectInfo:            "SendObjectInfo",
	OpSendObject:                "SendObject",
	OpInitiateCapture:           "InitiateCapture",
	OpFormatStore:               "FormatStore",
	OpResetDevice:               "ResetDevice",
	OpSelfTest:                  "SelfTest",
	OpSetObjectProtection:       "SetObjectProtection",
	OpPowerDown:                 "PowerDown",
	OpGetDevicePropDesc:         "GetDevicePropDesc",
	OpGetDevicePropValue:        "GetDevicePropValue",
	OpSetDevicePropValue:        "SetDevicePropValue",
	OpResetDevicePropValue:      "ResetDevicePropValue",
	OpTerminateOpenCapture:      "TerminateOpenCapture",
	OpMoveObject:                "MoveObject",
	OpCopyObject:                "CopyObject",
	OpGetPartialObject:          "GetPartialObject",
	OpInitiateOpenCapture:       "InitiateOpenCapture",
	OpGetObjectPropsSupported:   "GetObjectPropsSupported",
	OpGetObjectPropDesc:         "GetObjectPropDesc",
	OpGetObjectPropValue:        "GetObjectPropValue",
	OpSetObjectPropValue:        "SetObjectPropValue",
	OpGetObjectPropList:         "GetObjectPropList",
	OpSetObjectPropList:         "SetObjectPropList",
	OpGetInterdependentPropDesc: "GetInterdependentPropDesc",
	OpSendObjectPropList:        "SendObjectPropList",
	OpGetObjectReferences:       "GetObjectReferences",
	OpSetObjectReferences:       "SetObjectReferences",
	OpSkip:                      "Skip",
}

func (o OperationCode) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Operation(0x%04X)", uint16(o))
}
