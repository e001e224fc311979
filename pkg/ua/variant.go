package ua

import (
	"fmt"

	"github.com/opcuacore/opcuacore/pkg/buffer"
	"github.com/opcuacore/opcuacore/pkg/codec"
)

const (
	variantArrayValueFlag  byte = 0x80
	variantArrayMatrixFlag byte = 0x40
	variantBuiltInIDMask   byte = 0x3F
)

// DateTime wraps the raw Int64 tick count so a Variant's type switch can
// tell it apart from a plain Int64 scalar.
type DateTime int64

// XmlElement wraps raw element bytes so a Variant's type switch can tell
// it apart from a plain ByteString.
type XmlElement []byte

// Variant is a tagged union over the 25 built-in types plus arrays and
// matrices of any of them (Part 6 §5.2.2.16). TypeID always names the
// element type — for a Matrix or Array, Scalar is unused and Value holds
// the (possibly flattened) slice instead.
//
// Matrix is checked before Array when both flags could apply: a Variant
// with ArrayDimensions present is always handled as a Matrix, never
// mistaken for a flat Array with leftover dimension metadata.
type Variant struct {
	TypeID          BuiltInID
	IsArray         bool
	IsMatrix        bool
	Scalar          any
	Value           any // []T when IsArray or IsMatrix
	ArrayDimensions []int32
}

// EncodeVariant writes the encoding byte followed by the scalar, array, or
// matrix body.
func EncodeVariant(buf *buffer.Buffer, v Variant) error {
	if !v.TypeID.valid() {
		return fmt.Errorf("ua: encode_variant: invalid built_in_id %d", v.TypeID)
	}
	mask := byte(v.TypeID)
	isArray := v.IsArray || v.IsMatrix
	if isArray {
		mask |= variantArrayValueFlag
	}
	if v.IsMatrix {
		mask |= variantArrayMatrixFlag
	}
	if err := codec.EncodeByte(buf, mask); err != nil {
		return err
	}
	if !isArray {
		if v.TypeID == BuiltInVariant {
			return fmt.Errorf("ua: encode_variant: scalar variant must not contain a nested variant")
		}
		return encodeVariantScalar(buf, v.TypeID, v.Scalar)
	}
	if err := encodeVariantArrayBody(buf, v.TypeID, v.Value); err != nil {
		return err
	}
	if v.IsMatrix {
		if err := codec.EncodeInt32(buf, int32(len(v.ArrayDimensions))); err != nil {
			return err
		}
		for _, dim := range v.ArrayDimensions {
			if err := codec.EncodeInt32(buf, dim); err != nil {
				return err
			}
		}
	}
	return nil
}

// DecodeVariant reads the encoding byte and dispatches to scalar, array, or
// matrix decoding. maxLen bounds any String/ByteString/ExtensionObject
// payload nested within.
func DecodeVariant(buf *buffer.Buffer, maxLen int) (Variant, error) {
	var mask byte
	if err := codec.DecodeByte(buf, &mask); err != nil {
		return Variant{}, fmt.Errorf("ua: decode_variant: encoding byte: %w", err)
	}
	id := BuiltInID(mask & variantBuiltInIDMask)
	if !id.valid() {
		return Variant{}, fmt.Errorf("ua: decode_variant: invalid built_in_id %d", id)
	}
	isMatrix := mask&variantArrayMatrixFlag != 0
	isArray := mask&variantArrayValueFlag != 0 || isMatrix

	if !isArray {
		if id == BuiltInVariant {
			return Variant{}, fmt.Errorf("ua: decode_variant: scalar variant must not contain a nested variant")
		}
		scalar, err := decodeVariantScalar(buf, id, maxLen)
		if err != nil {
			return Variant{}, err
		}
		return Variant{TypeID: id, Scalar: scalar}, nil
	}

	value, err := decodeVariantArrayBody(buf, id, maxLen)
	if err != nil {
		return Variant{}, err
	}
	out := Variant{TypeID: id, Value: value}
	if isMatrix {
		out.IsMatrix = true
		var dimCount int32
		if err := codec.DecodeInt32(buf, &dimCount); err != nil {
			return Variant{}, fmt.Errorf("ua: decode_variant: array_dimensions length: %w", err)
		}
		if dimCount < 0 {
			return Variant{}, fmt.Errorf("ua: decode_variant: negative array_dimensions length %d", dimCount)
		}
		if int(dimCount) > buf.Remaining() {
			return Variant{}, fmt.Errorf("ua: decode_variant: array_dimensions length %d exceeds remaining buffer", dimCount)
		}
		dims := make([]int32, dimCount)
		for i := range dims {
			if err := codec.DecodeInt32(buf, &dims[i]); err != nil {
				return Variant{}, fmt.Errorf("ua: decode_variant: array_dimensions[%d]: %w", i, err)
			}
		}
		out.ArrayDimensions = dims
	} else {
		out.IsArray = true
	}
	return out, nil
}

func encodeVariantScalar(buf *buffer.Buffer, id BuiltInID, v any) error {
	switch id {
	case BuiltInBoolean:
		b, ok := v.(bool)
		if !ok {
			return typeMismatch(id, v)
		}
		return codec.EncodeBoolean(buf, b)
	case BuiltInSByte:
		x, ok := v.(int8)
		if !ok {
			return typeMismatch(id, v)
		}
		return codec.EncodeSByte(buf, x)
	case BuiltInByte:
		x, ok := v.(byte)
		if !ok {
			return typeMismatch(id, v)
		}
		return codec.EncodeByte(buf, x)
	case BuiltInInt16:
		x, ok := v.(int16)
		if !ok {
			return typeMismatch(id, v)
		}
		return codec.EncodeInt16(buf, x)
	case BuiltInUInt16:
		x, ok := v.(uint16)
		if !ok {
			return typeMismatch(id, v)
		}
		return codec.EncodeUInt16(buf, x)
	case BuiltInInt32:
		x, ok := v.(int32)
		if !ok {
			return typeMismatch(id, v)
		}
		return codec.EncodeInt32(buf, x)
	case BuiltInUInt32:
		x, ok := v.(uint32)
		if !ok {
			return typeMismatch(id, v)
		}
		return codec.EncodeUInt32(buf, x)
	case BuiltInInt64:
		x, ok := v.(int64)
		if !ok {
			return typeMismatch(id, v)
		}
		return codec.EncodeInt64(buf, x)
	case BuiltInUInt64:
		x, ok := v.(uint64)
		if !ok {
			return typeMismatch(id, v)
		}
		return codec.EncodeUInt64(buf, x)
	case BuiltInFloat:
		x, ok := v.(float32)
		if !ok {
			return typeMismatch(id, v)
		}
		return codec.EncodeFloat(buf, x)
	case BuiltInDouble:
		x, ok := v.(float64)
		if !ok {
			return typeMismatch(id, v)
		}
		return codec.EncodeDouble(buf, x)
	case BuiltInString:
		x, ok := v.(string)
		if !ok {
			return typeMismatch(id, v)
		}
		return codec.EncodeString(buf, x)
	case BuiltInDateTime:
		x, ok := v.(DateTime)
		if !ok {
			return typeMismatch(id, v)
		}
		return codec.EncodeDateTime(buf, int64(x))
	case BuiltInGuid:
		x, ok := v.(Guid)
		if !ok {
			return typeMismatch(id, v)
		}
		return codec.EncodeGuid(buf, x)
	case BuiltInByteString:
		x, ok := v.([]byte)
		if !ok {
			return typeMismatch(id, v)
		}
		return codec.EncodeByteString(buf, x)
	case BuiltInXmlElement:
		x, ok := v.(XmlElement)
		if !ok {
			return typeMismatch(id, v)
		}
		return codec.EncodeXmlElement(buf, []byte(x))
	case BuiltInNodeId:
		x, ok := v.(NodeId)
		if !ok {
			return typeMismatch(id, v)
		}
		return EncodeNodeId(buf, x)
	case BuiltInExpandedNodeId:
		x, ok := v.(ExpandedNodeId)
		if !ok {
			return typeMismatch(id, v)
		}
		return EncodeExpandedNodeId(buf, x)
	case BuiltInStatusCode:
		x, ok := v.(StatusCode)
		if !ok {
			return typeMismatch(id, v)
		}
		return codec.EncodeStatusCode(buf, uint32(x))
	case BuiltInQualifiedName:
		x, ok := v.(QualifiedName)
		if !ok {
			return typeMismatch(id, v)
		}
		return EncodeQualifiedName(buf, x)
	case BuiltInLocalizedText:
		x, ok := v.(LocalizedText)
		if !ok {
			return typeMismatch(id, v)
		}
		return EncodeLocalizedText(buf, x)
	case BuiltInExtensionObject:
		x, ok := v.(ExtensionObject)
		if !ok {
			return typeMismatch(id, v)
		}
		return EncodeExtensionObject(buf, x)
	case BuiltInDataValue:
		x, ok := v.(DataValue)
		if !ok {
			return typeMismatch(id, v)
		}
		return EncodeDataValue(buf, x)
	case BuiltInVariant:
		x, ok := v.(*Variant)
		if !ok {
			return typeMismatch(id, v)
		}
		return EncodeVariant(buf, *x)
	case BuiltInDiagnosticInfo:
		x, ok := v.(DiagnosticInfo)
		if !ok {
			return typeMismatch(id, v)
		}
		return EncodeDiagnosticInfo(buf, x)
	default:
		return fmt.Errorf("ua: encode_variant_scalar: unhandled built_in_id %d", id)
	}
}

func decodeVariantScalar(buf *buffer.Buffer, id BuiltInID, maxLen int) (any, error) {
	switch id {
	case BuiltInBoolean:
		var x bool
		err := codec.DecodeBoolean(buf, &x)
		return x, err
	case BuiltInSByte:
		var x int8
		err := codec.DecodeSByte(buf, &x)
		return x, err
	case BuiltInByte:
		var x byte
		err := codec.DecodeByte(buf, &x)
		return x, err
	case BuiltInInt16:
		var x int16
		err := codec.DecodeInt16(buf, &x)
		return x, err
	case BuiltInUInt16:
		var x uint16
		err := codec.DecodeUInt16(buf, &x)
		return x, err
	case BuiltInInt32:
		var x int32
		err := codec.DecodeInt32(buf, &x)
		return x, err
	case BuiltInUInt32:
		var x uint32
		err := codec.DecodeUInt32(buf, &x)
		return x, err
	case BuiltInInt64:
		var x int64
		err := codec.DecodeInt64(buf, &x)
		return x, err
	case BuiltInUInt64:
		var x uint64
		err := codec.DecodeUInt64(buf, &x)
		return x, err
	case BuiltInFloat:
		var x float32
		err := codec.DecodeFloat(buf, &x)
		return x, err
	case BuiltInDouble:
		var x float64
		err := codec.DecodeDouble(buf, &x)
		return x, err
	case BuiltInString:
		s, _, err := codec.DecodeString(buf, maxLen)
		return s, err
	case BuiltInDateTime:
		var ticks int64
		err := codec.DecodeDateTime(buf, &ticks)
		return DateTime(ticks), err
	case BuiltInGuid:
		var g Guid
		err := codec.DecodeGuid(buf, &g)
		return g, err
	case BuiltInByteString:
		return codec.DecodeByteString(buf, maxLen)
	case BuiltInXmlElement:
		data, err := codec.DecodeXmlElement(buf, maxLen)
		return XmlElement(data), err
	case BuiltInNodeId:
		return DecodeNodeId(buf, maxLen)
	case BuiltInExpandedNodeId:
		return DecodeExpandedNodeId(buf, maxLen)
	case BuiltInStatusCode:
		var code uint32
		err := codec.DecodeStatusCode(buf, &code)
		return StatusCode(code), err
	case BuiltInQualifiedName:
		return DecodeQualifiedName(buf, maxLen)
	case BuiltInLocalizedText:
		return DecodeLocalizedText(buf, maxLen)
	case BuiltInExtensionObject:
		return DecodeExtensionObject(buf, maxLen)
	case BuiltInDataValue:
		return DecodeDataValue(buf, maxLen)
	case BuiltInVariant:
		inner, err := DecodeVariant(buf, maxLen)
		if err != nil {
			return nil, err
		}
		return &inner, nil
	case BuiltInDiagnosticInfo:
		return DecodeDiagnosticInfo(buf, maxLen)
	default:
		return nil, fmt.Errorf("ua: decode_variant_scalar: unhandled built_in_id %d", id)
	}
}

// encodeVariantArrayBody and decodeVariantArrayBody share the Array and
// Matrix wire shape: an Int32 element count followed by that many scalar
// values in row-major order. Each built-in id is switched explicitly so a
// UInt16 array is always decoded into a []uint16 — never copy-pasted into
// the wrong element slice, which is the one bug this package is careful
// not to reproduce from the reference client it was checked against.
func encodeVariantArrayBody(buf *buffer.Buffer, id BuiltInID, value any) error {
	switch id {
	case BuiltInBoolean:
		items, ok := value.([]bool)
		if !ok {
			return typeMismatch(id, value)
		}
		return codec.EncodeArray(buf, items, codec.EncodeBoolean)
	case BuiltInSByte:
		items, ok := value.([]int8)
		if !ok {
			return typeMismatch(id, value)
		}
		return codec.EncodeArray(buf, items, codec.EncodeSByte)
	case BuiltInByte:
		items, ok := value.([]byte)
		if !ok {
			return typeMismatch(id, value)
		}
		return codec.EncodeArray(buf, items, codec.EncodeByte)
	case BuiltInInt16:
		items, ok := value.([]int16)
		if !ok {
			return typeMismatch(id, value)
		}
		return codec.EncodeArray(buf, items, codec.EncodeInt16)
	case BuiltInUInt16:
		items, ok := value.([]uint16)
		if !ok {
			return typeMismatch(id, value)
		}
		return codec.EncodeArray(buf, items, codec.EncodeUInt16)
	case BuiltInInt32:
		items, ok := value.([]int32)
		if !ok {
			return typeMismatch(id, value)
		}
		return codec.EncodeArray(buf, items, codec.EncodeInt32)
	case BuiltInUInt32:
		items, ok := value.([]uint32)
		if !ok {
			return typeMismatch(id, value)
		}
		return codec.EncodeArray(buf, items, codec.EncodeUInt32)
	case BuiltInInt64:
		items, ok := value.([]int64)
		if !ok {
			return typeMismatch(id, value)
		}
		return codec.EncodeArray(buf, items, codec.EncodeInt64)
	case BuiltInUInt64:
		items, ok := value.([]uint64)
		if !ok {
			return typeMismatch(id, value)
		}
		return codec.EncodeArray(buf, items, codec.EncodeUInt64)
	case BuiltInFloat:
		items, ok := value.([]float32)
		if !ok {
			return typeMismatch(id, value)
		}
		return codec.EncodeArray(buf, items, codec.EncodeFloat)
	case BuiltInDouble:
		items, ok := value.([]float64)
		if !ok {
			return typeMismatch(id, value)
		}
		return codec.EncodeArray(buf, items, codec.EncodeDouble)
	case BuiltInString:
		items, ok := value.([]string)
		if !ok {
			return typeMismatch(id, value)
		}
		return codec.EncodeArray(buf, items, codec.EncodeString)
	case BuiltInDateTime:
		items, ok := value.([]DateTime)
		if !ok {
			return typeMismatch(id, value)
		}
		return codec.EncodeArray(buf, items, func(b *buffer.Buffer, x DateTime) error {
			return codec.EncodeDateTime(b, int64(x))
		})
	case BuiltInGuid:
		items, ok := value.([]Guid)
		if !ok {
			return typeMismatch(id, value)
		}
		return codec.EncodeArray(buf, items, codec.EncodeGuid)
	case BuiltInByteString:
		items, ok := value.([][]byte)
		if !ok {
			return typeMismatch(id, value)
		}
		return codec.EncodeArray(buf, items, codec.EncodeByteString)
	case BuiltInXmlElement:
		items, ok := value.([]XmlElement)
		if !ok {
			return typeMismatch(id, value)
		}
		return codec.EncodeArray(buf, items, func(b *buffer.Buffer, x XmlElement) error {
			return codec.EncodeXmlElement(b, []byte(x))
		})
	case BuiltInNodeId:
		items, ok := value.([]NodeId)
		if !ok {
			return typeMismatch(id, value)
		}
		return codec.EncodeArray(buf, items, EncodeNodeId)
	case BuiltInExpandedNodeId:
		items, ok := value.([]ExpandedNodeId)
		if !ok {
			return typeMismatch(id, value)
		}
		return codec.EncodeArray(buf, items, EncodeExpandedNodeId)
	case BuiltInStatusCode:
		items, ok := value.([]StatusCode)
		if !ok {
			return typeMismatch(id, value)
		}
		return codec.EncodeArray(buf, items, func(b *buffer.Buffer, x StatusCode) error {
			return codec.EncodeStatusCode(b, uint32(x))
		})
	case BuiltInQualifiedName:
		items, ok := value.([]QualifiedName)
		if !ok {
			return typeMismatch(id, value)
		}
		return codec.EncodeArray(buf, items, EncodeQualifiedName)
	case BuiltInLocalizedText:
		items, ok := value.([]LocalizedText)
		if !ok {
			return typeMismatch(id, value)
		}
		return codec.EncodeArray(buf, items, EncodeLocalizedText)
	case BuiltInExtensionObject:
		items, ok := value.([]ExtensionObject)
		if !ok {
			return typeMismatch(id, value)
		}
		return codec.EncodeArray(buf, items, EncodeExtensionObject)
	case BuiltInDataValue:
		items, ok := value.([]DataValue)
		if !ok {
			return typeMismatch(id, value)
		}
		return codec.EncodeArray(buf, items, EncodeDataValue)
	case BuiltInVariant:
		items, ok := value.([]*Variant)
		if !ok {
			return typeMismatch(id, value)
		}
		return codec.EncodeArray(buf, items, func(b *buffer.Buffer, x *Variant) error {
			return EncodeVariant(b, *x)
		})
	case BuiltInDiagnosticInfo:
		items, ok := value.([]DiagnosticInfo)
		if !ok {
			return typeMismatch(id, value)
		}
		return codec.EncodeArray(buf, items, EncodeDiagnosticInfo)
	default:
		return fmt.Errorf("ua: encode_variant_array: unhandled built_in_id %d", id)
	}
}

func decodeVariantArrayBody(buf *buffer.Buffer, id BuiltInID, maxLen int) (any, error) {
	switch id {
	case BuiltInBoolean:
		return codec.DecodeArray(buf, func(b *buffer.Buffer) (bool, error) {
			var x bool
			err := codec.DecodeBoolean(b, &x)
			return x, err
		})
	case BuiltInSByte:
		return codec.DecodeArray(buf, func(b *buffer.Buffer) (int8, error) {
			var x int8
			err := codec.DecodeSByte(b, &x)
			return x, err
		})
	case BuiltInByte:
		return codec.DecodeArray(buf, func(b *buffer.Buffer) (byte, error) {
			var x byte
			err := codec.DecodeByte(b, &x)
			return x, err
		})
	case BuiltInInt16:
		return codec.DecodeArray(buf, func(b *buffer.Buffer) (int16, error) {
			var x int16
			err := codec.DecodeInt16(b, &x)
			return x, err
		})
	case BuiltInUInt16:
		return codec.DecodeArray(buf, func(b *buffer.Buffer) (uint16, error) {
			var x uint16
			err := codec.DecodeUInt16(b, &x)
			return x, err
		})
	case BuiltInInt32:
		return codec.DecodeArray(buf, func(b *buffer.Buffer) (int32, error) {
			var x int32
			err := codec.DecodeInt32(b, &x)
			return x, err
		})
	case BuiltInUInt32:
		return codec.DecodeArray(buf, func(b *buffer.Buffer) (uint32, error) {
			var x uint32
			err := codec.DecodeUInt32(b, &x)
			return x, err
		})
	case BuiltInInt64:
		return codec.DecodeArray(buf, func(b *buffer.Buffer) (int64, error) {
			var x int64
			err := codec.DecodeInt64(b, &x)
			return x, err
		})
	case BuiltInUInt64:
		return codec.DecodeArray(buf, func(b *buffer.Buffer) (uint64, error) {
			var x uint64
			err := codec.DecodeUInt64(b, &x)
			return x, err
		})
	case BuiltInFloat:
		return codec.DecodeArray(buf, func(b *buffer.Buffer) (float32, error) {
			var x float32
			err := codec.DecodeFloat(b, &x)
			return x, err
		})
	case BuiltInDouble:
		return codec.DecodeArray(buf, func(b *buffer.Buffer) (float64, error) {
			var x float64
			err := codec.DecodeDouble(b, &x)
			return x, err
		})
	case BuiltInString:
		return codec.DecodeArray(buf, func(b *buffer.Buffer) (string, error) {
			s, _, err := codec.DecodeString(b, maxLen)
			return s, err
		})
	case BuiltInDateTime:
		return codec.DecodeArray(buf, func(b *buffer.Buffer) (DateTime, error) {
			var ticks int64
			err := codec.DecodeDateTime(b, &ticks)
			return DateTime(ticks), err
		})
	case BuiltInGuid:
		return codec.DecodeArray(buf, func(b *buffer.Buffer) (Guid, error) {
			var g Guid
			err := codec.DecodeGuid(b, &g)
			return g, err
		})
	case BuiltInByteString:
		return codec.DecodeArray(buf, func(b *buffer.Buffer) ([]byte, error) {
			return codec.DecodeByteString(b, maxLen)
		})
	case BuiltInXmlElement:
		return codec.DecodeArray(buf, func(b *buffer.Buffer) (XmlElement, error) {
			data, err := codec.DecodeXmlElement(b, maxLen)
			return XmlElement(data), err
		})
	case BuiltInNodeId:
		return codec.DecodeArray(buf, func(b *buffer.Buffer) (NodeId, error) {
			return DecodeNodeId(b, maxLen)
		})
	case BuiltInExpandedNodeId:
		return codec.DecodeArray(buf, func(b *buffer.Buffer) (ExpandedNodeId, error) {
			return DecodeExpandedNodeId(b, maxLen)
		})
	case BuiltInStatusCode:
		return codec.DecodeArray(buf, func(b *buffer.Buffer) (StatusCode, error) {
			var code uint32
			err := codec.DecodeStatusCode(b, &code)
			return StatusCode(code), err
		})
	case BuiltInQualifiedName:
		return codec.DecodeArray(buf, func(b *buffer.Buffer) (QualifiedName, error) {
			return DecodeQualifiedName(b, maxLen)
		})
	case BuiltInLocalizedText:
		return codec.DecodeArray(buf, func(b *buffer.Buffer) (LocalizedText, error) {
			return DecodeLocalizedText(b, maxLen)
		})
	case BuiltInExtensionObject:
		return codec.DecodeArray(buf, func(b *buffer.Buffer) (ExtensionObject, error) {
			return DecodeExtensionObject(b, maxLen)
		})
	case BuiltInDataValue:
		return codec.DecodeArray(buf, func(b *buffer.Buffer) (DataValue, error) {
			return DecodeDataValue(b, maxLen)
		})
	case BuiltInVariant:
		return codec.DecodeArray(buf, func(b *buffer.Buffer) (*Variant, error) {
			v, err := DecodeVariant(b, maxLen)
			if err != nil {
				return nil, err
			}
			return &v, nil
		})
	case BuiltInDiagnosticInfo:
		return codec.DecodeArray(buf, func(b *buffer.Buffer) (DiagnosticInfo, error) {
			return DecodeDiagnosticInfo(b, maxLen)
		})
	default:
		return nil, fmt.Errorf("ua: decode_variant_array: unhandled built_in_id %d", id)
	}
}

func typeMismatch(id BuiltInID, v any) error {
	return fmt.Errorf("ua: variant: value of type %T does not match built_in_id %s", v, id)
}
