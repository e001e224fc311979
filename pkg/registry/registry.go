// Package registry holds the two lookup tables the secure-channel and
// codec layers need but cannot own themselves: the per-connection
// namespace-URI table negotiated during OpenSecureChannel, and the
// process-wide table of encodeable types an ExtensionObject's TypeId can
// resolve to.
package registry

import (
	"fmt"
	"sync"

	"github.com/opcuacore/opcuacore/pkg/buffer"
)

// opcFoundationNamespaceURI occupies namespace index 0 on every channel by
// definition (Part 3 §8.2.3) and is never sent on the wire.
const opcFoundationNamespaceURI = "http://opcfoundation.org/UA/"

// NamespaceTable maps namespace URIs to the small integer indices carried
// by NodeId/ExpandedNodeId on the wire. It is built once per secure
// channel from the server's namespace array (or the client's own table)
// during the OpenSecureChannel exchange, then treated as read-only for the
// rest of the channel's life: Seal enforces that by rejecting further
// Append calls.
type NamespaceTable struct {
	mu     sync.RWMutex
	uris   []string
	sealed bool
}

// NewNamespaceTable returns a table pre-seeded with index 0.
func NewNamespaceTable() *NamespaceTable {
	return &NamespaceTable{uris: []string{opcFoundationNamespaceURI}}
}

// Append adds uri at the next free index and returns it. It fails once the
// table has been Sealed.
func (t *NamespaceTable) Append(uri string) (uint16, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sealed {
		return 0, fmt.Errorf("registry: namespace_table: append after seal")
	}
	if len(t.uris) > 0xFFFF {
		return 0, fmt.Errorf("registry: namespace_table: full")
	}
	t.uris = append(t.uris, uri)
	return uint16(len(t.uris) - 1), nil
}

// Seal freezes the table against further Append calls, matching the
// protocol's expectation that the namespace array does not change once a
// channel is open.
func (t *NamespaceTable) Seal() {
	t.mu.Lock()
	t.sealed = true
	t.mu.Unlock()
}

// Index returns the namespace index for uri, if present.
func (t *NamespaceTable) Index(uri string) (uint16, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i, u := range t.uris {
		if u == uri {
			return uint16(i), true
		}
	}
	return 0, false
}

// URI returns the namespace URI at index, if present.
func (t *NamespaceTable) URI(index uint16) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(index) >= len(t.uris) {
		return "", false
	}
	return t.uris[index], true
}

// EncodeFunc and DecodeFunc adapt a concrete Go type's codec functions to
// the shape the type registry stores them in. Decode returns the decoded
// value boxed as any; callers type-assert it back to the concrete type
// they registered.
type EncodeFunc func(*buffer.Buffer, any) error
type DecodeFunc func(*buffer.Buffer, int) (any, error)

// EncodeableType describes one service-layer type an ExtensionObject body
// can be decoded into: its identity within a namespace, and the codec
// functions that turn raw bytes into a Go value and back (Part 4 §7.2 —
// the "encodeable type" concept generalised from the address-space layer
// this module's non-goals keep external).
type EncodeableType struct {
	NamespaceURI         string
	TypeID               uint32
	BinaryEncodingTypeID uint32
	New                  func() any
	Encode               EncodeFunc
	Decode               DecodeFunc
}

type typeKey struct {
	namespaceURI         string
	binaryEncodingTypeID uint32
}

// TypeRegistry is the process-wide, append-only table of EncodeableTypes.
// A single instance is normally shared across every secure channel in a
// process; registration typically happens once at startup from an
// init-time call per generated service type.
type TypeRegistry struct {
	mu   sync.RWMutex
	byID map[typeKey]*EncodeableType
}

// NewTypeRegistry returns an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{byID: make(map[typeKey]*EncodeableType)}
}

// Register adds t to the registry. It fails if another type already
// claims the same (NamespaceURI, BinaryEncodingTypeID) pair.
func (r *TypeRegistry) Register(t *EncodeableType) error {
	if t == nil {
		return fmt.Errorf("registry: register: nil type")
	}
	key := typeKey{t.NamespaceURI, t.BinaryEncodingTypeID}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[key]; exists {
		return fmt.Errorf("registry: register: type already registered for namespace %q binary_encoding_id %d", t.NamespaceURI, t.BinaryEncodingTypeID)
	}
	r.byID[key] = t
	return nil
}

// Lookup finds the EncodeableType registered for (namespaceURI,
// binaryEncodingTypeID).
func (r *TypeRegistry) Lookup(namespaceURI string, binaryEncodingTypeID uint32) (*EncodeableType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[typeKey{namespaceURI, binaryEncodingTypeID}]
	return t, ok
}

// ResolveNamespace maps a namespace index to the URI it was assigned
// during OpenSecureChannel, for use when an ExtensionObject's TypeId gave
// only a namespace index rather than an explicit NamespaceUri.
func ResolveNamespace(ns *NamespaceTable, namespaceIndex uint16) (string, error) {
	uri, ok := ns.URI(namespaceIndex)
	if !ok {
		return "", fmt.Errorf("registry: resolve_namespace: unknown namespace index %d", namespaceIndex)
	}
	return uri, nil
}
