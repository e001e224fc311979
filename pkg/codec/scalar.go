package codec

import (
	"fmt"
	"math"

	"github.com/opcuacore/opcuacore/pkg/buffer"
)

// EncodeBoolean writes a single byte: 0x00 for false, 0x01 for true. Any
// non-zero input value is canonicalised to 0x01, matching DecodeBoolean's
// canonicalisation on the way back in.
func EncodeBoolean(buf *buffer.Buffer, v bool) error {
	if err := requireHostOrder(); err != nil {
		return err
	}
	b := byte(0)
	if v {
		b = 1
	}
	_, err := buf.Write([]byte{b})
	return err
}

// DecodeBoolean reads one byte, canonicalising any non-zero value to true.
func DecodeBoolean(buf *buffer.Buffer, v *bool) error {
	if v == nil {
		return fmt.Errorf("codec: decode_boolean: nil destination")
	}
	if err := requireHostOrder(); err != nil {
		return err
	}
	var b [1]byte
	if _, err := buf.Read(b[:], 1); err != nil {
		return fmt.Errorf("codec: decode_boolean: %w", err)
	}
	*v = b[0] != 0
	return nil
}

func encodeFixed(buf *buffer.Buffer, width int, put func([]byte)) error {
	if err := requireHostOrder(); err != nil {
		return err
	}
	b := make([]byte, width)
	put(b)
	_, err := buf.Write(b)
	return err
}

func decodeFixed(buf *buffer.Buffer, width int, get func([]byte)) error {
	if err := requireHostOrder(); err != nil {
		return err
	}
	b := make([]byte, width)
	if _, err := buf.Read(b, width); err != nil {
		return fmt.Errorf("codec: decode: %w", err)
	}
	get(b)
	return nil
}

func EncodeSByte(buf *buffer.Buffer, v int8) error {
	return encodeFixed(buf, 1, func(b []byte) { b[0] = byte(v) })
}

func DecodeSByte(buf *buffer.Buffer, v *int8) error {
	return decodeFixed(buf, 1, func(b []byte) { *v = int8(b[0]) })
}

func EncodeByte(buf *buffer.Buffer, v uint8) error {
	return encodeFixed(buf, 1, func(b []byte) { b[0] = v })
}

func DecodeByte(buf *buffer.Buffer, v *uint8) error {
	return decodeFixed(buf, 1, func(b []byte) { *v = b[0] })
}

func EncodeInt16(buf *buffer.Buffer, v int16) error {
	return encodeFixed(buf, 2, func(b []byte) { wireOrder.PutUint16(b, uint16(v)) })
}

func DecodeInt16(buf *buffer.Buffer, v *int16) error {
	return decodeFixed(buf, 2, func(b []byte) { *v = int16(wireOrder.Uint16(b)) })
}

func EncodeUInt16(buf *buffer.Buffer, v uint16) error {
	return encodeFixed(buf, 2, func(b []byte) { wireOrder.PutUint16(b, v) })
}

func DecodeUInt16(buf *buffer.Buffer, v *uint16) error {
	return decodeFixed(buf, 2, func(b []byte) { *v = wireOrder.Uint16(b) })
}

func EncodeInt32(buf *buffer.Buffer, v int32) error {
	return encodeFixed(buf, 4, func(b []byte) { wireOrder.PutUint32(b, uint32(v)) })
}

func DecodeInt32(buf *buffer.Buffer, v *int32) error {
	return decodeFixed(buf, 4, func(b []byte) { *v = int32(wireOrder.Uint32(b)) })
}

func EncodeUInt32(buf *buffer.Buffer, v uint32) error {
	return encodeFixed(buf, 4, func(b []byte) { wireOrder.PutUint32(b, v) })
}

func DecodeUInt32(buf *buffer.Buffer, v *uint32) error {
	return decodeFixed(buf, 4, func(b []byte) { *v = wireOrder.Uint32(b) })
}

func EncodeInt64(buf *buffer.Buffer, v int64) error {
	return encodeFixed(buf, 8, func(b []byte) { wireOrder.PutUint64(b, uint64(v)) })
}

func DecodeInt64(buf *buffer.Buffer, v *int64) error {
	return decodeFixed(buf, 8, func(b []byte) { *v = int64(wireOrder.Uint64(b)) })
}

func EncodeUInt64(buf *buffer.Buffer, v uint64) error {
	return encodeFixed(buf, 8, func(b []byte) { wireOrder.PutUint64(b, v) })
}

func DecodeUInt64(buf *buffer.Buffer, v *uint64) error {
	return decodeFixed(buf, 8, func(b []byte) { *v = wireOrder.Uint64(b) })
}

func EncodeFloat(buf *buffer.Buffer, v float32) error {
	return encodeFixed(buf, 4, func(b []byte) { wireOrder.PutUint32(b, math.Float32bits(v)) })
}

func DecodeFloat(buf *buffer.Buffer, v *float32) error {
	return decodeFixed(buf, 4, func(b []byte) { *v = math.Float32frombits(wireOrder.Uint32(b)) })
}

func EncodeDouble(buf *buffer.Buffer, v float64) error {
	return encodeFixed(buf, 8, func(b []byte) { wireOrder.PutUint64(b, math.Float64bits(v)) })
}

func DecodeDouble(buf *buffer.Buffer, v *float64) error {
	return decodeFixed(buf, 8, func(b []byte) { *v = math.Float64frombits(wireOrder.Uint64(b)) })
}

// EncodeDateTime writes a DateTime as its raw 64-bit tick count (Int64).
func EncodeDateTime(buf *buffer.Buffer, ticks int64) error {
	return EncodeInt64(buf, ticks)
}

// DecodeDateTime reads a DateTime's raw 64-bit tick count.
func DecodeDateTime(buf *buffer.Buffer, ticks *int64) error {
	return DecodeInt64(buf, ticks)
}

// EncodeStatusCode writes a StatusCode as a raw UInt32.
func EncodeStatusCode(buf *buffer.Buffer, code uint32) error {
	return EncodeUInt32(buf, code)
}

// DecodeStatusCode reads a StatusCode as a raw UInt32.
func DecodeStatusCode(buf *buffer.Buffer, code *uint32) error {
	return DecodeUInt32(buf, code)
}
