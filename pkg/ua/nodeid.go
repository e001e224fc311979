package ua

import (
	"fmt"

	"github.com/opcuacore/opcuacore/pkg/buffer"
	"github.com/opcuacore/opcuacore/pkg/codec"
)

// IdentifierType discriminates how a NodeId's identifier field is encoded,
// both as a decoded value (numeric, string, guid, opaque) and — through the
// wire encoding byte — which of the six compact wire forms was used.
type IdentifierType byte

const (
	IdentifierNumeric IdentifierType = iota
	IdentifierString
	IdentifierGuid
	IdentifierOpaque
)

// wire encoding-byte values (low 6 bits of the first byte, Part 6 §5.2.2.9).
const (
	nodeIDFormTwoByte    byte = 0x00
	nodeIDFormFourByte   byte = 0x01
	nodeIDFormNumeric    byte = 0x02
	nodeIDFormString     byte = 0x03
	nodeIDFormGuid       byte = 0x04
	nodeIDFormByteString byte = 0x05
)

const (
	expandedNodeIDNamespaceURIFlag byte = 0x80
	expandedNodeIDServerIndexFlag  byte = 0x40
	nodeIDFormMask                 byte = 0x3F
)

// NodeId identifies a node within a server's address space. Namespace is
// always the numeric namespace index; exactly one of Numeric/StrID/Guid/
// Opaque is meaningful, selected by Type.
type NodeId struct {
	Type      IdentifierType
	Namespace uint16
	Numeric   uint32
	StrID     string
	Guid      Guid
	Opaque    []byte
}

// Guid re-exports codec.Guid so callers only need to import pkg/ua.
type Guid = codec.Guid

// chooseForm picks the most compact of the six wire forms for a numeric
// NodeId, or the String/Guid/ByteString form otherwise. This canonicalises
// encoding: two NodeIds that are semantically equal always serialise to the
// same bytes, regardless of which form the caller happened to construct.
func (n NodeId) chooseForm() byte {
	switch n.Type {
	case IdentifierNumeric:
		if n.Namespace == 0 && n.Numeric <= 255 {
			return nodeIDFormTwoByte
		}
		if n.Namespace <= 255 && n.Numeric <= 65535 {
			return nodeIDFormFourByte
		}
		return nodeIDFormNumeric
	case IdentifierString:
		return nodeIDFormString
	case IdentifierGuid:
		return nodeIDFormGuid
	case IdentifierOpaque:
		return nodeIDFormByteString
	default:
		return nodeIDFormNumeric
	}
}

// EncodeNodeId writes a NodeId using the narrowest applicable wire form.
func EncodeNodeId(buf *buffer.Buffer, n NodeId) error {
	form := n.chooseForm()
	switch form {
	case nodeIDFormTwoByte:
		if err := codec.EncodeByte(buf, nodeIDFormTwoByte); err != nil {
			return err
		}
		return codec.EncodeByte(buf, byte(n.Numeric))
	case nodeIDFormFourByte:
		if err := codec.EncodeByte(buf, nodeIDFormFourByte); err != nil {
			return err
		}
		if err := codec.EncodeByte(buf, byte(n.Namespace)); err != nil {
			return err
		}
		return codec.EncodeUInt16(buf, uint16(n.Numeric))
	case nodeIDFormNumeric:
		if err := codec.EncodeByte(buf, nodeIDFormNumeric); err != nil {
			return err
		}
		if err := codec.EncodeUInt16(buf, n.Namespace); err != nil {
			return err
		}
		return codec.EncodeUInt32(buf, n.Numeric)
	case nodeIDFormString:
		if err := codec.EncodeByte(buf, nodeIDFormString); err != nil {
			return err
		}
		if err := codec.EncodeUInt16(buf, n.Namespace); err != nil {
			return err
		}
		return codec.EncodeString(buf, n.StrID)
	case nodeIDFormGuid:
		if err := codec.EncodeByte(buf, nodeIDFormGuid); err != nil {
			return err
		}
		if err := codec.EncodeUInt16(buf, n.Namespace); err != nil {
			return err
		}
		return codec.EncodeGuid(buf, n.Guid)
	case nodeIDFormByteString:
		if err := codec.EncodeByte(buf, nodeIDFormByteString); err != nil {
			return err
		}
		if err := codec.EncodeUInt16(buf, n.Namespace); err != nil {
			return err
		}
		return codec.EncodeByteString(buf, n.Opaque)
	default:
		return fmt.Errorf("ua: encode_node_id: unreachable form %#x", form)
	}
}

// DecodeNodeId reads a NodeId in whichever of the six compact forms the
// wire declares. maxLen bounds String/ByteString identifiers against the
// remaining chunk payload.
func DecodeNodeId(buf *buffer.Buffer, maxLen int) (NodeId, error) {
	var formByte byte
	if err := codec.DecodeByte(buf, &formByte); err != nil {
		return NodeId{}, fmt.Errorf("ua: decode_node_id: form: %w", err)
	}
	form := formByte & nodeIDFormMask
	switch form {
	case nodeIDFormTwoByte:
		var v uint8
		if err := codec.DecodeByte(buf, &v); err != nil {
			return NodeId{}, err
		}
		return NodeId{Type: IdentifierNumeric, Numeric: uint32(v)}, nil
	case nodeIDFormFourByte:
		var ns uint8
		var v uint16
		if err := codec.DecodeByte(buf, &ns); err != nil {
			return NodeId{}, err
		}
		if err := codec.DecodeUInt16(buf, &v); err != nil {
			return NodeId{}, err
		}
		return NodeId{Type: IdentifierNumeric, Namespace: uint16(ns), Numeric: uint32(v)}, nil
	case nodeIDFormNumeric:
		var ns uint16
		var v uint32
		if err := codec.DecodeUInt16(buf, &ns); err != nil {
			return NodeId{}, err
		}
		if err := codec.DecodeUInt32(buf, &v); err != nil {
			return NodeId{}, err
		}
		return NodeId{Type: IdentifierNumeric, Namespace: ns, Numeric: v}, nil
	case nodeIDFormString:
		var ns uint16
		if err := codec.DecodeUInt16(buf, &ns); err != nil {
			return NodeId{}, err
		}
		s, _, err := codec.DecodeString(buf, maxLen)
		if err != nil {
			return NodeId{}, err
		}
		return NodeId{Type: IdentifierString, Namespace: ns, StrID: s}, nil
	case nodeIDFormGuid:
		var ns uint16
		if err := codec.DecodeUInt16(buf, &ns); err != nil {
			return NodeId{}, err
		}
		var g codec.Guid
		if err := codec.DecodeGuid(buf, &g); err != nil {
			return NodeId{}, err
		}
		return NodeId{Type: IdentifierGuid, Namespace: ns, Guid: g}, nil
	case nodeIDFormByteString:
		var ns uint16
		if err := codec.DecodeUInt16(buf, &ns); err != nil {
			return NodeId{}, err
		}
		data, err := codec.DecodeByteString(buf, maxLen)
		if err != nil {
			return NodeId{}, err
		}
		return NodeId{Type: IdentifierOpaque, Namespace: ns, Opaque: data}, nil
	default:
		return NodeId{}, fmt.Errorf("ua: decode_node_id: unknown form %#x", form)
	}
}

// ExpandedNodeId extends NodeId with an optional namespace URI (replacing
// the numeric Namespace at the receiver via a per-connection URI table) and
// an optional server index for cross-server references.
type ExpandedNodeId struct {
	NodeId        NodeId
	NamespaceURI  string
	HasNamespaceURI bool
	ServerIndex   uint32
	HasServerIndex bool
}

// EncodeExpandedNodeId writes the inner NodeId's form byte with the
// NamespaceUriFlag/ServerIndexFlag bits set as needed, followed by the
// inner NodeId's body and the optional trailing fields.
func EncodeExpandedNodeId(buf *buffer.Buffer, n ExpandedNodeId) error {
	form := n.NodeId.chooseForm()
	flags := form
	if n.HasNamespaceURI {
		flags |= expandedNodeIDNamespaceURIFlag
	}
	if n.HasServerIndex {
		flags |= expandedNodeIDServerIndexFlag
	}
	if err := codec.EncodeByte(buf, flags); err != nil {
		return err
	}
	if err := encodeNodeIDBody(buf, n.NodeId, form); err != nil {
		return err
	}
	if n.HasNamespaceURI {
		if err := codec.EncodeString(buf, n.NamespaceURI); err != nil {
			return err
		}
	}
	if n.HasServerIndex {
		if err := codec.EncodeUInt32(buf, n.ServerIndex); err != nil {
			return err
		}
	}
	return nil
}

// DecodeExpandedNodeId reads an ExpandedNodeId, extracting the flag bits
// from the leading byte before decoding the inner NodeId body in the
// form the low 6 bits declare.
func DecodeExpandedNodeId(buf *buffer.Buffer, maxLen int) (ExpandedNodeId, error) {
	var flags byte
	if err := codec.DecodeByte(buf, &flags); err != nil {
		return ExpandedNodeId{}, fmt.Errorf("ua: decode_expanded_node_id: flags: %w", err)
	}
	form := flags & nodeIDFormMask
	inner, err := decodeNodeIDBody(buf, form, maxLen)
	if err != nil {
		return ExpandedNodeId{}, err
	}
	out := ExpandedNodeId{NodeId: inner}
	if flags&expandedNodeIDNamespaceURIFlag != 0 {
		uri, _, err := codec.DecodeString(buf, maxLen)
		if err != nil {
			return ExpandedNodeId{}, err
		}
		out.NamespaceURI = uri
		out.HasNamespaceURI = true
	}
	if flags&expandedNodeIDServerIndexFlag != 0 {
		var idx uint32
		if err := codec.DecodeUInt32(buf, &idx); err != nil {
			return ExpandedNodeId{}, err
		}
		out.ServerIndex = idx
		out.HasServerIndex = true
	}
	return out, nil
}

// encodeNodeIDBody/decodeNodeIDBody factor out the six-form body logic so
// NodeId and ExpandedNodeId share it; EncodeNodeId/DecodeNodeId additionally
// own the leading form byte for the non-expanded case.
func encodeNodeIDBody(buf *buffer.Buffer, n NodeId, form byte) error {
	switch form {
	case nodeIDFormTwoByte:
		return codec.EncodeByte(buf, byte(n.Numeric))
	case nodeIDFormFourByte:
		if err := codec.EncodeByte(buf, byte(n.Namespace)); err != nil {
			return err
		}
		return codec.EncodeUInt16(buf, uint16(n.Numeric))
	case nodeIDFormNumeric:
		if err := codec.EncodeUInt16(buf, n.Namespace); err != nil {
			return err
		}
		return codec.EncodeUInt32(buf, n.Numeric)
	case nodeIDFormString:
		if err := codec.EncodeUInt16(buf, n.Namespace); err != nil {
			return err
		}
		return codec.EncodeString(buf, n.StrID)
	case nodeIDFormGuid:
		if err := codec.EncodeUInt16(buf, n.Namespace); err != nil {
			return err
		}
		return codec.EncodeGuid(buf, n.Guid)
	case nodeIDFormByteString:
		if err := codec.EncodeUInt16(buf, n.Namespace); err != nil {
			return err
		}
		return codec.EncodeByteString(buf, n.Opaque)
	default:
		return fmt.Errorf("ua: encode_node_id_body: unreachable form %#x", form)
	}
}

func decodeNodeIDBody(buf *buffer.Buffer, form byte, maxLen int) (NodeId, error) {
	switch form {
	case nodeIDFormTwoByte:
		var v uint8
		if err := codec.DecodeByte(buf, &v); err != nil {
			return NodeId{}, err
		}
		return NodeId{Type: IdentifierNumeric, Numeric: uint32(v)}, nil
	case nodeIDFormFourByte:
		var ns uint8
		var v uint16
		if err := codec.DecodeByte(buf, &ns); err != nil {
			return NodeId{}, err
		}
		if err := codec.DecodeUInt16(buf, &v); err != nil {
			return NodeId{}, err
		}
		return NodeId{Type: IdentifierNumeric, Namespace: uint16(ns), Numeric: uint32(v)}, nil
	case nodeIDFormNumeric:
		var ns uint16
		var v uint32
		if err := codec.DecodeUInt16(buf, &ns); err != nil {
			return NodeId{}, err
		}
		if err := codec.DecodeUInt32(buf, &v); err != nil {
			return NodeId{}, err
		}
		return NodeId{Type: IdentifierNumeric, Namespace: ns, Numeric: v}, nil
	case nodeIDFormString:
		var ns uint16
		if err := codec.DecodeUInt16(buf, &ns); err != nil {
			return NodeId{}, err
		}
		s, _, err := codec.DecodeString(buf, maxLen)
		if err != nil {
			return NodeId{}, err
		}
		return NodeId{Type: IdentifierString, Namespace: ns, StrID: s}, nil
	case nodeIDFormGuid:
		var ns uint16
		if err := codec.DecodeUInt16(buf, &ns); err != nil {
			return NodeId{}, err
		}
		var g codec.Guid
		if err := codec.DecodeGuid(buf, &g); err != nil {
			return NodeId{}, err
		}
		return NodeId{Type: IdentifierGuid, Namespace: ns, Guid: g}, nil
	case nodeIDFormByteString:
		var ns uint16
		if err := codec.DecodeUInt16(buf, &ns); err != nil {
			return NodeId{}, err
		}
		data, err := codec.DecodeByteString(buf, maxLen)
		if err != nil {
			return NodeId{}, err
		}
		return NodeId{Type: IdentifierOpaque, Namespace: ns, Opaque: data}, nil
	default:
		return NodeId{}, fmt.Errorf("ua: decode_node_id_body: unknown form %#x", form)
	}
}
