// Package dataset encodes and decodes the MTP datasets carried in data
// containers: DeviceInfo, StorageInfo, ObjectInfo, device and object
// property descriptors and object property lists.
//
// All datasets are little-endian and use MTP strings (count-prefixed
// UTF-16LE) as implemented by the codec package. Timestamps travel as MTP
// DateTime strings, see FormatDateTime.
package dataset
