// Package codec frames MTP containers over a transfer-oriented transport.
//
// Every container starts with a 12-byte little-endian header:
//
//	offset 0  uint32  total length, header included
//	offset 4  uint16  container type (command, data, response, event)
//	offset 6  uint16  operation, response or event code
//	offset 8  uint32  transaction ID
//
// Command, response and event containers carry up to five uint32 parameters
// after the header. Data containers carry an arbitrary payload that is split
// across as many transport writes as its length requires, and reassembled on
// read until the declared length is satisfied (or, for the 0xFFFFFFFF
// "unknown length" marker, until the transport ends the transfer with a
// short or zero-length packet).
//
// The Codec reads whole transport transfers into a pooled buffer and serves
// containers from it, so it works both on USB gadget endpoints (one read
// returns one bulk transfer) and on byte streams.
package codec
