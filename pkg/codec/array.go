package codec

import (
	"fmt"

	"github.com/opcuacore/opcuacore/pkg/buffer"
)

// EncodeArray writes an Int32 length followed by each element in order. A
// nil items slice encodes as length -1 (null); a non-nil empty slice
// encodes as length 0.
func EncodeArray[T any](buf *buffer.Buffer, items []T, encodeElem func(*buffer.Buffer, T) error) error {
	if items == nil {
		return EncodeInt32(buf, -1)
	}
	if len(items) > 0x7fffffff {
		return fmt.Errorf("codec: encode_array: %d elements exceeds Int32 range", len(items))
	}
	if err := EncodeInt32(buf, int32(len(items))); err != nil {
		return err
	}
	for i, item := range items {
		if err := encodeElem(buf, item); err != nil {
			return fmt.Errorf("codec: encode_array: element %d: %w", i, err)
		}
	}
	return nil
}

// DecodeArray reads an Int32 length and then that many elements. A
// negative length decodes to a nil slice. Every element must consume at
// least one wire byte, so the declared length is rejected up front if it
// exceeds the buffer's remaining byte count — this bounds allocation
// before a single element is decoded. If any element fails to decode, the
// partially built slice is discarded (Go's GC reclaims it; there is no
// manual per-arm cleanup to perform).
func DecodeArray[T any](buf *buffer.Buffer, decodeElem func(*buffer.Buffer) (T, error)) ([]T, error) {
	var n int32
	if err := DecodeInt32(buf, &n); err != nil {
		return nil, fmt.Errorf("codec: decode_array: length: %w", err)
	}
	if n < 0 {
		return nil, nil
	}
	if int(n) > buf.Remaining() {
		return nil, fmt.Errorf("codec: decode_array: length %d exceeds remaining buffer %d", n, buf.Remaining())
	}
	items := make([]T, 0, n)
	for i := int32(0); i < n; i++ {
		item, err := decodeElem(buf)
		if err != nil {
			return nil, fmt.Errorf("codec: decode_array: element %d: %w", i, err)
		}
		items = append(items, item)
	}
	return items, nil
}
