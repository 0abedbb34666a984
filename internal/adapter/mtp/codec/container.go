package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/marmos91/mtpd/internal/adapter/mtp/types"
)

const (
	// HeaderSize is the size of every container header.
	HeaderSize = 12

	// MaxParams is the maximum number of parameters in a command, response
	// or event container.
	MaxParams = 5

	// MaxCommandSize is the largest well-formed command container.
	MaxCommandSize = HeaderSize + 4*MaxParams

	// UnknownLength marks a data container longer than 4GiB. Its end is
	// signalled by the transport.
	UnknownLength uint32 = 0xFFFFFFFF
)

// Header is the fixed part of every container.
type Header struct {
	Length        uint32
	Type          types.ContainerType
	Code          uint16
	TransactionID uint32
}

// PutHeader encodes h into the first HeaderSize bytes of b.
func PutHeader(b []byte, h Header) {
	binary.LittleEndian.PutUint32(b[0:4], h.Length)
	binary.LittleEndian.PutUint16(b[4:6], uint16(h.Type))
	binary.LittleEndian.PutUint16(b[6:8], h.Code)
	binary.LittleEndian.PutUint32(b[8:12], h.TransactionID)
}

// ParseHeader decodes a header from the first HeaderSize bytes of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d header bytes", ErrMalformedPacket, len(b))
	}
	return Header{
		Length:        binary.LittleEndian.Uint32(b[0:4]),
		Type:          types.ContainerType(binary.LittleEndian.Uint16(b[4:6])),
		Code:          binary.LittleEndian.Uint16(b[6:8]),
		TransactionID: binary.LittleEndian.Uint32(b[8:12]),
	}, nil
}

// payloadLength returns the payload size declared by h, or -1 for
// UnknownLength and lengths shorter than a header.
func (h Header) payloadLength() int64 {
	if h.Length == UnknownLength || h.Length < HeaderSize {
		return -1
	}
	return int64(h.Length) - HeaderSize
}

// Request is a decoded command container.
type Request struct {
	Code          types.OperationCode
	TransactionID uint32
	Params        []uint32
}

// Param returns parameter i, or 0 when the host omitted it.
func (r *Request) Param(i int) uint32 {
	if i < len(r.Params) {
		return r.Params[i]
	}
	return 0
}

// Marshal encodes the request as a command container.
func (r *Request) Marshal() []byte {
	return marshalContainer(types.ContainerCommand, uint16(r.Code), r.TransactionID, r.Params)
}

// Response is a response container.
type Response struct {
	Code          types.ResponseCode
	TransactionID uint32
	Params        []uint32
}

// Marshal encodes the response container.
func (r *Response) Marshal() []byte {
	return marshalContainer(types.ContainerResponse, uint16(r.Code), r.TransactionID, r.Params)
}

// Event is an event container.
type Event struct {
	Code          types.EventCode
	TransactionID uint32
	Params        []uint32
}

// Marshal encodes the event container.
func (e *Event) Marshal() []byte {
	return marshalContainer(types.ContainerEvent, uint16(e.Code), e.TransactionID, e.Params)
}

func marshalContainer(t types.ContainerType, code uint16, tid uint32, params []uint32) []byte {
	if len(params) > MaxParams {
		params = params[:MaxParams]
	}
	b := make([]byte, HeaderSize+4*len(params))
	PutHeader(b, Header{Length: uint32(len(b)), Type: t, Code: code, TransactionID: tid})
	for i, p := range params {
		binary.LittleEndian.PutUint32(b[HeaderSize+4*i:], p)
	}
	return b
}

// parseParamContainer decodes a complete command, response or event
// container held in b.
func parseParamContainer(b []byte, want types.ContainerType) (Header, []uint32, error) {
	h, err := ParseHeader(b)
	if err != nil {
		return h, nil, err
	}
	if h.Type != want {
		return h, nil, fmt.Errorf("%w: got %s, want %s", ErrUnexpectedContainer, h.Type, want)
	}
	if int(h.Length) != len(b) || (h.Length-HeaderSize)%4 != 0 {
		return h, nil, fmt.Errorf("%w: length %d for %d bytes", ErrMalformedPacket, h.Length, len(b))
	}
	n := min(int(h.Length-HeaderSize)/4, MaxParams)
	params := make([]uint32, n)
	for i := range params {
		params[i] = binary.LittleEndian.Uint32(b[HeaderSize+4*i:])
	}
	return h, params, nil
}

// ParseRequest decodes a complete command container.
func ParseRequest(b []byte) (*Request, error) {
	h, params, err := parseParamContainer(b, types.ContainerCommand)
	if err != nil {
		return nil, err
	}
	return &Request{Code: types.OperationCode(h.Code), TransactionID: h.TransactionID, Params: params}, nil
}

// ParseResponse decodes a complete response container.
func ParseResponse(b []byte) (*Response, error) {
	h, params, err := parseParamContainer(b, types.ContainerResponse)
	if err != nil {
		return nil, err
	}
	return &Response{Code: types.ResponseCode(h.Code), TransactionID: h.TransactionID, Params: params}, nil
}

// ParseEvent decodes a complete event container.
func ParseEvent(b []byte) (*Event, error) {
	h, params, err := parseParamContainer(b, types.ContainerEvent)
	if err != nil {
		return nil, err
	}
	return &Event{Code: types.EventCode(h.Code), TransactionID: h.TransactionID, Params: params}, nil
}
