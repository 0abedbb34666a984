package types

import "fmt"

// ResponseCode is the result of a transaction, carried by the response
// container.
type ResponseCode uint16

// PTP responses
const (
	RespUndefined                             ResponseCode = 0x2000
	RespOK                                    ResponseCode = 0x2001
	RespGeneralError                          ResponseCode = 0x2002
	RespSessionNotOpen                        ResponseCode = 0x2003
	RespInvalidTransactionID                  ResponseCode = 0x2004
	RespOperationNotSupported                 ResponseCode = 0x2005
	RespParameterNotSupported                 ResponseCode = 0x2006
	RespIncompleteTransfer                    ResponseCode = 0x2007
	RespInvalidStorageID                      ResponseCode = 0x2008
	RespInvalidObjectHandle                   ResponseCode = 0x2009
	RespDevicePropNotSupported                ResponseCode = 0x200A
	RespInvalidObjectFormatCode               ResponseCode = 0x200B
	RespStoreFull                             ResponseCode = 0x200C
	RespObjectWriteProtected                  ResponseCode = 0x200D
	RespStoreReadOnly                         ResponseCode = 0x200E
	RespAccessDenied                          ResponseCode = 0x200F
	RespNoThumbnailPresent                    ResponseCode = 0x2010
	RespSelfTestFailed                        ResponseCode = 0x2011
	RespPartialDeletion                       ResponseCode = 0x2012
	RespStoreNotAvailable                     ResponseCode = 0x2013
	RespSpecificationByFormatUnsupported      ResponseCode = 0x2014
	RespNoValidObjectInfo                     ResponseCode = 0x2015
	RespInvalidCodeFormat                     ResponseCode = 0x2016
	RespUnknownVendorCode                     ResponseCode = 0x2017
	RespCaptureAlreadyTerminated              ResponseCode = 0x2018
	RespDeviceBusy                            ResponseCode = 0x2019
	RespInvalidParentObject                   ResponseCode = 0x201A
	RespInvalidDevicePropFormat               ResponseCode = 0x201B
	RespInvalidDevicePropValue                ResponseCode = 0x201C
	RespInvalidParameter                      ResponseCode = 0x201D
	RespSessionAlreadyOpen                    ResponseCode = 0x201E
	RespTransactionCancelled                  ResponseCode = 0x201F
	RespSpecificationOfDestinationUnsupported ResponseCode = 0x2020
)

// MTP extension responses
const (
	RespInvalidObjectPropCode           ResponseCode = 0xA801
	RespInvalidObjectPropFormat         ResponseCode = 0xA802
	RespInvalidObjectPropValue          ResponseCode = 0xA803
	RespInvalidObjectReference          ResponseCode = 0xA804
	RespGroupNotSupported               ResponseCode = 0xA805
	RespInvalidDataset                  ResponseCode = 0xA806
	RespSpecificationByGroupUnsupported ResponseCode = 0xA807
	RespSpecificationByDepthUnsupported ResponseCode = 0xA808
	RespObjectTooLarge                  ResponseCode = 0xA809
	RespObjectPropNotSupported          ResponseCode = 0xA80A
)

var responseNames = map[ResponseCode]string{
	RespUndefined:                             "Undefined",
	RespOK:                                    "OK",
	RespGeneralError:                          "GeneralError",
	RespSessionNotOpen:                        "SessionNotOpen",
	RespInvalidTransactionID:                  "InvalidTransactionID",
	RespOperationNotSupported:                 "OperationNotSupported",
	RespParameterNotSupported:                 "ParameterNotSupported",
	RespIncompleteTransfer:                    "IncompleteTransfer",
	RespInvalidStorageID:                      "InvalidStorageID",
	RespInvalidObjectHandle:                   "InvalidObjectHandle",
	RespDevicePropNotSupported:                "DevicePropNotSupported",
	RespInvalidObjectFormatCode:               "InvalidObjectFormatCode",
	RespStoreFull:                             "StoreFull",
	RespObjectWriteProtected:                  "ObjectWriteProtected",
	RespStoreReadOnly:                         "StoreReadOnly",
	RespAccessDenied:                          "AccessDenied",
	RespNoThumbnailPresent:                    "NoThumbnailPresent",
	RespSelfTestFailed:                        "SelfTestFailed",
	RespPartialDeletion:                       "PartialDeletion",
	RespStoreNotAvailable:                     "StoreNotAvailable",
	RespSpecificationByFormatUnsupported:      "SpecificationByFormatUnsupported",
	RespNoValidObjectInfo:                     "NoValidObjectInfo",
	RespInvalidCodeFormat:                     "InvalidCodeFormat",
	RespUnknownVendorCode:                     "UnknownVendorCode",
	RespCaptureAlreadyTerminated:              "CaptureAlreadyTerminated",
	RespDeviceBusy:                            "DeviceBusy",
	RespInvalidParentObject:                   "InvalidParentObject",
	RespInvalidDevicePropFormat:               "InvalidDevicePropFormat",
	RespInvalidDevicePropValue:                "InvalidDevicePropValue",
	RespInvalidParameter:                      "InvalidParameter",
	RespSessionAlreadyOpen:                    "SessionAlreadyOpen",
	RespTransactionCancelled:                  "TransactionCancelled",
	RespSpecificationOfDestinationUnsupported: "SpecificationOfDestinationUnsupported",
	RespInvalidObjectPropCode:                 "InvalidObjectPropCode",
	RespInvalidObjectPropFormat:               "InvalidObjectPropFormat",
	RespInvalidObjectPropValue:                "InvalidObjectPropValue",
	RespInvalidObjectReference:                "InvalidObjectReference",
	RespGroupNotSupported:                     "GroupNotSupported",
	RespInvalidDataset:                        "InvalidDataset",
	RespSpecificationByGroupUnsupported:       "SpecificationByGroupUnsupported",
	RespSpecificationByDepthUnsupported:       "SpecificationByDepthUnsupported",
	RespObjectTooLarge:                        "ObjectTooLarge",
	RespObjectPropNotSupported:                "ObjectPropNotSupported",
}

func (r ResponseCode) String() string {
	if name, ok := responseNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Response(0x%04X)", uint16(r))
}

// IsOK reports whether r is RespOK.
func (r ResponseCode) IsOK() bool {
	return r == RespOK
}
