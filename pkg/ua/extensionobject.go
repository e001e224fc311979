package ua

import (
	"fmt"

	"github.com/opcuacore/opcuacore/pkg/buffer"
	"github.com/opcuacore/opcuacore/pkg/codec"
	"github.com/opcuacore/opcuacore/pkg/registry"
)

// ExtensionObjectEncoding identifies how an ExtensionObject's body is
// carried (Part 6 §5.2.2.15).
type ExtensionObjectEncoding byte

const (
	ExtensionObjectNone       ExtensionObjectEncoding = 0x00
	ExtensionObjectByteString ExtensionObjectEncoding = 0x01
	ExtensionObjectXMLElement ExtensionObjectEncoding = 0x02
	// ExtensionObjectObject never appears on the wire — Part 6 defines only
	// 0x00-0x02 and this stack follows it by rejecting a received 0x02
	// outright. It marks an in-memory ExtensionObject whose Object field
	// holds a decoded value (or a value waiting to be encoded) instead of
	// raw Body bytes; on the wire it is always carried as ByteString.
	ExtensionObjectObject ExtensionObjectEncoding = 0x03
)

// ExtensionObject wraps an opaque, type-tagged body: TypeId names the
// encodeable type (resolved against the per-connection namespace table and
// the process-wide type registry), Encoding selects the body form, and
// either Body (raw bytes) or Object (a decoded value) carries the payload.
// This package never decodes a ByteString body on its own; a caller must
// pass a *registry.TypeRegistry to the WithRegistry variants below to get
// Object-form promotion — without one, Body is always ByteString/XmlElement
// raw bytes, matching the original behavior.
type ExtensionObject struct {
	TypeID   ExpandedNodeId
	Encoding ExtensionObjectEncoding
	Body     []byte
	Object   any // populated instead of Body when Encoding == ExtensionObjectObject
}

// EncodeExtensionObject writes TypeId, the encoding byte, and — unless
// Encoding is None — the body in the shared length-prefixed shape. It never
// resolves the Object form; pass obj.Encoding == ExtensionObjectObject to
// EncodeExtensionObjectWithRegistry instead.
func EncodeExtensionObject(buf *buffer.Buffer, obj ExtensionObject) error {
	return EncodeExtensionObjectWithRegistry(buf, obj, nil, nil)
}

// EncodeExtensionObjectWithRegistry additionally resolves an
// ExtensionObjectObject-form obj.Object into a length-prefixed ByteString
// body, using reg to find the EncodeableType registered for
// (namespace URI, BinaryEncodingTypeId) and ns to resolve obj.TypeID's
// namespace index to a URI when TypeID did not already carry one (spec
// §4.2): write the NodeId and a ByteString encoding byte, reserve 4 bytes
// for the length, run the type's encoder, then rewind and patch the true
// length — the same reserve-then-patch shape
// securechannel.patchChunkHeader uses for a chunk's size field.
func EncodeExtensionObjectWithRegistry(buf *buffer.Buffer, obj ExtensionObject, reg *registry.TypeRegistry, ns *registry.NamespaceTable) error {
	if err := EncodeExpandedNodeId(buf, obj.TypeID); err != nil {
		return err
	}
	switch obj.Encoding {
	case ExtensionObjectNone:
		return codec.EncodeByte(buf, byte(ExtensionObjectNone))
	case ExtensionObjectByteString, ExtensionObjectXMLElement:
		if err := codec.EncodeByte(buf, byte(obj.Encoding)); err != nil {
			return err
		}
		return codec.EncodeByteString(buf, obj.Body)
	case ExtensionObjectObject:
		if reg == nil {
			return fmt.Errorf("ua: encode_extension_object: object form requires a type registry")
		}
		uri, err := extensionObjectNamespaceURI(obj.TypeID, ns)
		if err != nil {
			return fmt.Errorf("ua: encode_extension_object: %w", err)
		}
		t, ok := reg.Lookup(uri, obj.TypeID.NodeId.Numeric)
		if !ok {
			return fmt.Errorf("ua: encode_extension_object: no encodeable type registered for namespace %q binary_encoding_id %d", uri, obj.TypeID.NodeId.Numeric)
		}
		if err := codec.EncodeByte(buf, byte(ExtensionObjectByteString)); err != nil {
			return err
		}
		lenPos := buf.Position()
		if err := codec.EncodeInt32(buf, 0); err != nil {
			return err
		}
		bodyStart := buf.Position()
		if err := t.Encode(buf, obj.Object); err != nil {
			return fmt.Errorf("ua: encode_extension_object: body: %w", err)
		}
		bodyLen := buf.Position() - bodyStart
		endPos := buf.Position()
		if err := buf.SetPosition(lenPos); err != nil {
			return err
		}
		if err := codec.EncodeInt32(buf, int32(bodyLen)); err != nil {
			return err
		}
		return buf.SetPosition(endPos)
	default:
		return fmt.Errorf("ua: encode_extension_object: unknown encoding %#x", obj.Encoding)
	}
}

// DecodeExtensionObject reads TypeId, the encoding byte, and the body,
// never promoting a ByteString body to Object form. Only None and
// ByteString are accepted; the decoder does not consume the legacy
// XmlElement body form (EncodeExtensionObject still writes it when asked),
// so a received 0x02 is reported as an invalid encoding rather than
// silently carried through.
func DecodeExtensionObject(buf *buffer.Buffer, maxLen int) (ExtensionObject, error) {
	return DecodeExtensionObjectWithRegistry(buf, maxLen, nil, nil)
}

// DecodeExtensionObjectWithRegistry additionally promotes a ByteString body
// to Object form when reg has an EncodeableType registered for the
// decoded TypeId's (namespace URI, BinaryEncodingTypeId) — resolving a
// namespace-index-only TypeId through ns first — invoking that type's
// decoder over exactly the ByteString's bytes (spec §4.2). An unregistered
// type, or a nil reg, leaves the body as plain ByteString, matching
// DecodeExtensionObject's behavior exactly.
func DecodeExtensionObjectWithRegistry(buf *buffer.Buffer, maxLen int, reg *registry.TypeRegistry, ns *registry.NamespaceTable) (ExtensionObject, error) {
	typeID, err := DecodeExpandedNodeId(buf, maxLen)
	if err != nil {
		return ExtensionObject{}, fmt.Errorf("ua: decode_extension_object: type_id: %w", err)
	}
	var encByte byte
	if err := codec.DecodeByte(buf, &encByte); err != nil {
		return ExtensionObject{}, fmt.Errorf("ua: decode_extension_object: encoding: %w", err)
	}
	enc := ExtensionObjectEncoding(encByte)
	switch enc {
	case ExtensionObjectNone:
		return ExtensionObject{TypeID: typeID, Encoding: enc}, nil
	case ExtensionObjectByteString:
		body, err := codec.DecodeByteString(buf, maxLen)
		if err != nil {
			return ExtensionObject{}, fmt.Errorf("ua: decode_extension_object: body: %w", err)
		}
		if reg != nil {
			if uri, uerr := extensionObjectNamespaceURI(typeID, ns); uerr == nil {
				if t, ok := reg.Lookup(uri, typeID.NodeId.Numeric); ok {
					inner := buffer.New(len(body))
					if _, err := inner.Write(body); err != nil {
						return ExtensionObject{}, fmt.Errorf("ua: decode_extension_object: object body: %w", err)
					}
					inner.Reset()
					val, err := t.Decode(inner, maxLen)
					if err != nil {
						return ExtensionObject{}, fmt.Errorf("ua: decode_extension_object: object body: %w", err)
					}
					return ExtensionObject{TypeID: typeID, Encoding: ExtensionObjectObject, Object: val}, nil
				}
			}
		}
		return ExtensionObject{TypeID: typeID, Encoding: enc, Body: body}, nil
	default:
		return ExtensionObject{}, fmt.Errorf("ua: decode_extension_object: unsupported encoding %#x", encByte)
	}
}

// extensionObjectNamespaceURI resolves n's namespace to a URI, preferring
// an explicit NamespaceUri over a table lookup of the numeric index the
// way Part 6 §5.2.2.10 allows either form.
func extensionObjectNamespaceURI(n ExpandedNodeId, ns *registry.NamespaceTable) (string, error) {
	if n.HasNamespaceURI {
		return n.NamespaceURI, nil
	}
	if ns == nil {
		return "", fmt.Errorf("namespace index %d requires a namespace table", n.NodeId.Namespace)
	}
	return registry.ResolveNamespace(ns, n.NodeId.Namespace)
}
