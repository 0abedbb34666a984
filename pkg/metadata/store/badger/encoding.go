package badger

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/marmos91/mtpd/pkg/metadata"
)

// ============================================================================
// Database Key Namespace Design
// ============================================================================
//
// BadgerDB is a key-value store, so records are grouped under prefixed keys.
// Handles are encoded big-endian so that iterating a prefix visits objects in
// handle order.
//
// Data Type          Prefix   Key Format                       Value Type
// ===========================================================================
// Objects            "o:"     o:<handle>                       Object (JSON)
// Path Index         "p:"     p:<absolute path>                handle (binary)
// Children Index     "c:"     c:<parent handle><child handle>  empty
// References         "r:"     r:<handle>                       []uint32 (binary)
// Handle Sequence    "seq:"   seq:handle                       managed by badger

const (
	prefixObject    = "o:"
	prefixPath      = "p:"
	prefixChild     = "c:"
	prefixReference = "r:"

	keyHandleSequence = "seq:handle"
)

// ============================================================================
// Key Generation Functions
// ============================================================================

func appendHandle(b []byte, h uint32) []byte {
	return binary.BigEndian.AppendUint32(b, h)
}

// keyObject generates "o:<handle>".
func keyObject(h uint32) []byte {
	return appendHandle([]byte(prefixObject), h)
}

// keyPath generates "p:<path>".
func keyPath(path string) []byte {
	return []byte(prefixPath + path)
}

// keyChild generates "c:<parent><child>".
func keyChild(parent, child uint32) []byte {
	return appendHandle(keyChildPrefix(parent), child)
}

// keyChildPrefix generates the range-scan prefix "c:<parent>".
func keyChildPrefix(parent uint32) []byte {
	return appendHandle([]byte(prefixChild), parent)
}

// keyReference generates "r:<handle>".
func keyReference(h uint32) []byte {
	return appendHandle([]byte(prefixReference), h)
}

// childFromKey extracts the child handle from a children index key.
func childFromKey(key []byte) uint32 {
	return binary.BigEndian.Uint32(key[len(key)-4:])
}

// ============================================================================
// Value Encoding
// ============================================================================

func encodeObject(obj *metadata.Object) ([]byte, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to encode object: %w", err)
	}
	return data, nil
}

func decodeObject(data []byte) (*metadata.Object, error) {
	var obj metadata.Object
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("failed to decode object: %w", err)
	}
	return &obj, nil
}

func encodeHandle(h uint32) []byte {
	return appendHandle(nil, h)
}

func decodeHandle(data []byte) (uint32, error) {
	if len(data) != 4 {
		return 0, fmt.Errorf("invalid handle value length %d", len(data))
	}
	return binary.BigEndian.Uint32(data), nil
}

func encodeReferences(refs []uint32) []byte {
	out := make([]byte, 0, 4*len(refs))
	for _, r := range refs {
		out = appendHandle(out, r)
	}
	return out
}

func decodeReferences(data []byte) ([]uint32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid reference list length %d", len(data))
	}
	refs := make([]uint32, len(data)/4)
	for i := range refs {
		refs[i] = binary.BigEndian.Uint32(data[4*i:])
	}
	return refs, nil
}
