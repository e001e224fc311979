package codec

import (
	"fmt"

	"github.com/opcuacore/opcuacore/pkg/buffer"
)

// String, ByteString and XmlElement share one wire shape: a signed Int32
// length followed by that many bytes. A negative length denotes null (no
// bytes follow); zero denotes an empty-but-present value.
//
// Go's []byte/string already carry their own length and need no C-string
// NUL terminator to interoperate safely, so unlike the original stack this
// package does not allocate a trailing zero byte beyond the decoded data.

// EncodeByteString writes data (nil meaning null) in the shared
// length-prefixed shape.
func EncodeByteString(buf *buffer.Buffer, data []byte) error {
	return encodeLengthPrefixed(buf, data)
}

// DecodeByteString reads the shared length-prefixed shape. maxLen bounds
// the accepted length against the remaining chunk payload size; a longer
// declared length is rejected without allocating. maxLen <= 0 means
// unbounded.
func DecodeByteString(buf *buffer.Buffer, maxLen int) ([]byte, error) {
	return decodeLengthPrefixed(buf, maxLen)
}

// EncodeString writes a non-null UTF-8 string.
func EncodeString(buf *buffer.Buffer, s string) error {
	return encodeLengthPrefixed(buf, []byte(s))
}

// EncodeNullableString writes s if present is true, or the null encoding
// (length -1) otherwise.
func EncodeNullableString(buf *buffer.Buffer, s string, present bool) error {
	if !present {
		return encodeLengthPrefixed(buf, nil)
	}
	return encodeLengthPrefixed(buf, []byte(s))
}

// DecodeString reads a UTF-8 string; a null encoding decodes to "" with
// present=false.
func DecodeString(buf *buffer.Buffer, maxLen int) (s string, present bool, err error) {
	data, err := decodeLengthPrefixed(buf, maxLen)
	if err != nil {
		return "", false, err
	}
	if data == nil {
		return "", false, nil
	}
	return string(data), true, nil
}

// EncodeXmlElement writes an XmlElement using the shared shape; content is
// the element's raw UTF-8 bytes.
func EncodeXmlElement(buf *buffer.Buffer, content []byte) error {
	return encodeLengthPrefixed(buf, content)
}

// DecodeXmlElement reads an XmlElement using the shared shape.
func DecodeXmlElement(buf *buffer.Buffer, maxLen int) ([]byte, error) {
	return decodeLengthPrefixed(buf, maxLen)
}

func encodeLengthPrefixed(buf *buffer.Buffer, data []byte) error {
	if data == nil {
		return EncodeInt32(buf, -1)
	}
	if len(data) > 0x7fffffff {
		return fmt.Errorf("codec: encode length-prefixed: %d bytes exceeds Int32 range", len(data))
	}
	if err := EncodeInt32(buf, int32(len(data))); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	_, err := buf.Write(data)
	return err
}

func decodeLengthPrefixed(buf *buffer.Buffer, maxLen int) ([]byte, error) {
	var n int32
	if err := DecodeInt32(buf, &n); err != nil {
		return nil, fmt.Errorf("codec: decode length-prefixed: %w", err)
	}
	if n < 0 {
		return nil, nil
	}
	if maxLen > 0 && int(n) > maxLen {
		return nil, fmt.Errorf("codec: decode length-prefixed: length %d exceeds max_chunk_payload %d", n, maxLen)
	}
	if n == 0 {
		return []byte{}, nil
	}
	data := make([]byte, n)
	if _, err := buf.Read(data, int(n)); err != nil {
		return nil, fmt.Errorf("codec: decode length-prefixed: %w", err)
	}
	return data, nil
}
