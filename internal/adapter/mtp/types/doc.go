// Package types contains MTP protocol constants and their names.
//
// Every code family has its own Go type (OperationCode, ResponseCode,
// EventCode, ObjectFormat, ObjectProperty, DeviceProperty, DataType,
// ContainerType) so that values from different tables cannot be mixed and
// each renders a readable name in logs, traces and metrics.
//
// Values follow the PTP (PIMA 15740) base tables plus the MTP 1.1 extension
// ranges (0x98xx operations, 0xA8xx responses, 0xC8xx events, 0xB8xx-0xBAxx
// formats, 0xDCxx object properties, 0xD4xx device properties).
package types
