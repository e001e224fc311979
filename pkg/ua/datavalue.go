package ua

import (
	"github.com/opcuacore/opcuacore/pkg/buffer"
	"github.com/opcuacore/opcuacore/pkg/codec"
)

const (
	dataValueValueFlag          byte = 0x01
	dataValueStatusFlag         byte = 0x02
	dataValueSourceTimestampFlag byte = 0x04
	dataValueSourcePicoFlag      byte = 0x10
	dataValueServerTimestampFlag byte = 0x08
	dataValueServerPicoFlag      byte = 0x20
)

// DataValue pairs a Variant with its quality status and up to two
// timestamps, each independently optional and selected by a leading
// presence-mask byte (Part 6 §5.2.2.17).
type DataValue struct {
	Value             Variant
	HasValue          bool
	Status            StatusCode
	HasStatus         bool
	SourceTimestamp   DateTime
	HasSourceTimestamp bool
	SourcePicoseconds  uint16
	HasSourcePicoseconds bool
	ServerTimestamp   DateTime
	HasServerTimestamp bool
	ServerPicoseconds  uint16
	HasServerPicoseconds bool
}

// EncodeDataValue writes the presence-mask byte followed by whichever
// fields it declares present, in field-declaration order.
func EncodeDataValue(buf *buffer.Buffer, dv DataValue) error {
	var mask byte
	if dv.HasValue {
		mask |= dataValueValueFlag
	}
	if dv.HasStatus {
		mask |= dataValueStatusFlag
	}
	if dv.HasSourceTimestamp {
		mask |= dataValueSourceTimestampFlag
	}
	if dv.HasSourcePicoseconds {
		mask |= dataValueSourcePicoFlag
	}
	if dv.HasServerTimestamp {
		mask |= dataValueServerTimestampFlag
	}
	if dv.HasServerPicoseconds {
		mask |= dataValueServerPicoFlag
	}
	if err := codec.EncodeByte(buf, mask); err != nil {
		return err
	}
	if dv.HasValue {
		if err := EncodeVariant(buf, dv.Value); err != nil {
			return err
		}
	}
	if dv.HasStatus {
		if err := codec.EncodeStatusCode(buf, uint32(dv.Status)); err != nil {
			return err
		}
	}
	if dv.HasSourceTimestamp {
		if err := codec.EncodeDateTime(buf, int64(dv.SourceTimestamp)); err != nil {
			return err
		}
	}
	if dv.HasSourcePicoseconds {
		if err := codec.EncodeUInt16(buf, dv.SourcePicoseconds); err != nil {
			return err
		}
	}
	if dv.HasServerTimestamp {
		if err := codec.EncodeDateTime(buf, int64(dv.ServerTimestamp)); err != nil {
			return err
		}
	}
	if dv.HasServerPicoseconds {
		if err := codec.EncodeUInt16(buf, dv.ServerPicoseconds); err != nil {
			return err
		}
	}
	return nil
}

// DecodeDataValue reads the presence-mask byte and then whichever fields
// it declares present. maxLen bounds any String/ByteString/
// ExtensionObject nested within the Value Variant.
func DecodeDataValue(buf *buffer.Buffer, maxLen int) (DataValue, error) {
	var mask byte
	if err := codec.DecodeByte(buf, &mask); err != nil {
		return DataValue{}, err
	}
	var dv DataValue
	if mask&dataValueValueFlag != 0 {
		v, err := DecodeVariant(buf, maxLen)
		if err != nil {
			return DataValue{}, err
		}
		dv.Value = v
		dv.HasValue = true
	}
	if mask&dataValueStatusFlag != 0 {
		var code uint32
		if err := codec.DecodeStatusCode(buf, &code); err != nil {
			return DataValue{}, err
		}
		dv.Status = StatusCode(code)
		dv.HasStatus = true
	}
	if mask&dataValueSourceTimestampFlag != 0 {
		var ticks int64
		if err := codec.DecodeDateTime(buf, &ticks); err != nil {
			return DataValue{}, err
		}
		dv.SourceTimestamp = DateTime(ticks)
		dv.HasSourceTimestamp = true
	}
	if mask&dataValueSourcePicoFlag != 0 {
		if err := codec.DecodeUInt16(buf, &dv.SourcePicoseconds); err != nil {
			return DataValue{}, err
		}
		dv.HasSourcePicoseconds = true
	}
	if mask&dataValueServerTimestampFlag != 0 {
		var ticks int64
		if err := codec.DecodeDateTime(buf, &ticks); err != nil {
			return DataValue{}, err
		}
		dv.ServerTimestamp = DateTime(ticks)
		dv.HasServerTimestamp = true
	}
	if mask&dataValueServerPicoFlag != 0 {
		if err := codec.DecodeUInt16(buf, &dv.ServerPicoseconds); err != nil {
			return DataValue{}, err
		}
		dv.HasServerPicoseconds = true
	}
	return dv, nil
}
