package ua

import (
	"fmt"

	"github.com/opcuacore/opcuacore/pkg/buffer"
	"github.com/opcuacore/opcuacore/pkg/codec"
)

const (
	diagSymbolicIDFlag          byte = 0x01
	diagNamespaceURIFlag        byte = 0x02
	diagLocaleFlag              byte = 0x04
	diagLocalizedTextFlag       byte = 0x08
	diagAdditionalInfoFlag      byte = 0x10
	diagInnerStatusCodeFlag     byte = 0x20
	diagInnerDiagnosticInfoFlag byte = 0x40
)

// maxDiagnosticInfoDepth bounds InnerDiagnosticInfo nesting on decode. The
// wire format allows unbounded recursion; a hostile or corrupt peer could
// otherwise exhaust the stack.
const maxDiagnosticInfoDepth = 100

// DiagnosticInfo carries optional extra detail about a StatusCode, with
// every field indexed into the enclosing response's StringTable rather
// than inlined (Part 4 §7.8). Presence of each field is recorded in a
// leading bitmask byte.
type DiagnosticInfo struct {
	SymbolicID             int32
	HasSymbolicID          bool
	NamespaceURI           int32
	HasNamespaceURI        bool
	Locale                 int32
	HasLocale              bool
	LocalizedText          int32
	HasLocalizedText       bool
	AdditionalInfo         string
	HasAdditionalInfo      bool
	InnerStatusCode        StatusCode
	HasInnerStatusCode     bool
	InnerDiagnosticInfo    *DiagnosticInfo
	HasInnerDiagnosticInfo bool
}

// EncodeDiagnosticInfo writes the presence-mask byte followed by whichever
// fields it declares present, recursing into InnerDiagnosticInfo if set.
func EncodeDiagnosticInfo(buf *buffer.Buffer, d DiagnosticInfo) error {
	return encodeDiagnosticInfo(buf, d, 0)
}

func encodeDiagnosticInfo(buf *buffer.Buffer, d DiagnosticInfo, depth int) error {
	if depth > maxDiagnosticInfoDepth {
		return fmt.Errorf("ua: encode_diagnostic_info: depth %d exceeds max %d", depth, maxDiagnosticInfoDepth)
	}
	var mask byte
	if d.HasSymbolicID {
		mask |= diagSymbolicIDFlag
	}
	if d.HasNamespaceURI {
		mask |= diagNamespaceURIFlag
	}
	if d.HasLocale {
		mask |= diagLocaleFlag
	}
	if d.HasLocalizedText {
		mask |= diagLocalizedTextFlag
	}
	if d.HasAdditionalInfo {
		mask |= diagAdditionalInfoFlag
	}
	if d.HasInnerStatusCode {
		mask |= diagInnerStatusCodeFlag
	}
	if d.HasInnerDiagnosticInfo && d.InnerDiagnosticInfo != nil {
		mask |= diagInnerDiagnosticInfoFlag
	}
	if err := codec.EncodeByte(buf, mask); err != nil {
		return err
	}
	if d.HasSymbolicID {
		if err := codec.EncodeInt32(buf, d.SymbolicID); err != nil {
			return err
		}
	}
	if d.HasNamespaceURI {
		if err := codec.EncodeInt32(buf, d.NamespaceURI); err != nil {
			return err
		}
	}
	if d.HasLocale {
		if err := codec.EncodeInt32(buf, d.Locale); err != nil {
			return err
		}
	}
	if d.HasLocalizedText {
		if err := codec.EncodeInt32(buf, d.LocalizedText); err != nil {
			return err
		}
	}
	if d.HasAdditionalInfo {
		if err := codec.EncodeString(buf, d.AdditionalInfo); err != nil {
			return err
		}
	}
	if d.HasInnerStatusCode {
		if err := codec.EncodeStatusCode(buf, uint32(d.InnerStatusCode)); err != nil {
			return err
		}
	}
	if mask&diagInnerDiagnosticInfoFlag != 0 {
		if err := encodeDiagnosticInfo(buf, *d.InnerDiagnosticInfo, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// DecodeDiagnosticInfo reads the presence-mask byte and then whichever
// fields it declares present, recursing into an inner DiagnosticInfo up to
// maxDiagnosticInfoDepth levels.
func DecodeDiagnosticInfo(buf *buffer.Buffer, maxLen int) (DiagnosticInfo, error) {
	return decodeDiagnosticInfo(buf, maxLen, 0)
}

func decodeDiagnosticInfo(buf *buffer.Buffer, maxLen int, depth int) (DiagnosticInfo, error) {
	if depth > maxDiagnosticInfoDepth {
		return DiagnosticInfo{}, fmt.Errorf("ua: decode_diagnostic_info: depth %d exceeds max %d", depth, maxDiagnosticInfoDepth)
	}
	var mask byte
	if err := codec.DecodeByte(buf, &mask); err != nil {
		return DiagnosticInfo{}, err
	}
	var d DiagnosticInfo
	if mask&diagSymbolicIDFlag != 0 {
		if err := codec.DecodeInt32(buf, &d.SymbolicID); err != nil {
			return DiagnosticInfo{}, err
		}
		d.HasSymbolicID = true
	}
	if mask&diagNamespaceURIFlag != 0 {
		if err := codec.DecodeInt32(buf, &d.NamespaceURI); err != nil {
			return DiagnosticInfo{}, err
		}
		d.HasNamespaceURI = true
	}
	if mask&diagLocaleFlag != 0 {
		if err := codec.DecodeInt32(buf, &d.Locale); err != nil {
			return DiagnosticInfo{}, err
		}
		d.HasLocale = true
	}
	if mask&diagLocalizedTextFlag != 0 {
		if err := codec.DecodeInt32(buf, &d.LocalizedText); err != nil {
			return DiagnosticInfo{}, err
		}
		d.HasLocalizedText = true
	}
	if mask&diagAdditionalInfoFlag != 0 {
		s, _, err := codec.DecodeString(buf, maxLen)
		if err != nil {
			return DiagnosticInfo{}, err
		}
		d.AdditionalInfo = s
		d.HasAdditionalInfo = true
	}
	if mask&diagInnerStatusCodeFlag != 0 {
		var code uint32
		if err := codec.DecodeStatusCode(buf, &code); err != nil {
			return DiagnosticInfo{}, err
		}
		d.InnerStatusCode = StatusCode(code)
		d.HasInnerStatusCode = true
	}
	if mask&diagInnerDiagnosticInfoFlag != 0 {
		inner, err := decodeDiagnosticInfo(buf, maxLen, depth+1)
		if err != nil {
			return DiagnosticInfo{}, err
		}
		d.InnerDiagnosticInfo = &inner
		d.HasInnerDiagnosticInfo = true
	}
	return d, nil
}
