package codec

import (
	"fmt"

	"github.com/opcuacore/opcuacore/pkg/buffer"
)

// Guid is a 128-bit OPC UA identifier, encoded on the wire as
// UInt32 Data1 | UInt16 Data2 | UInt16 Data3 | 8 raw bytes Data4.
type Guid struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

// EncodeGuid writes the four Guid fields in order.
func EncodeGuid(buf *buffer.Buffer, g Guid) error {
	if err := EncodeUInt32(buf, g.Data1); err != nil {
		return err
	}
	if err := EncodeUInt16(buf, g.Data2); err != nil {
		return err
	}
	if err := EncodeUInt16(buf, g.Data3); err != nil {
		return err
	}
	_, err := buf.Write(g.Data4[:])
	return err
}

// DecodeGuid reads the four Guid fields in order.
func DecodeGuid(buf *buffer.Buffer, g *Guid) error {
	if g == nil {
		return fmt.Errorf("codec: decode_guid: nil destination")
	}
	if err := DecodeUInt32(buf, &g.Data1); err != nil {
		return err
	}
	if err := DecodeUInt16(buf, &g.Data2); err != nil {
		return err
	}
	if err := DecodeUInt16(buf, &g.Data3); err != nil {
		return err
	}
	_, err := buf.Read(g.Data4[:], 8)
	return err
}
