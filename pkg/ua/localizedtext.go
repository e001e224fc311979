package ua

import (
	"github.com/opcuacore/opcuacore/pkg/buffer"
	"github.com/opcuacore/opcuacore/pkg/codec"
)

const (
	localizedTextLocaleFlag byte = 0x01
	localizedTextTextFlag   byte = 0x02
)

// LocalizedText is a human-readable string tagged with the locale it was
// written in (Part 3 §8.5). Either field may be absent; an encoding byte
// in front of the body records which ones follow.
type LocalizedText struct {
	Locale     string
	HasLocale  bool
	Text       string
	HasText    bool
}

// EncodeLocalizedText writes the presence-flag byte followed by whichever
// of Locale/Text are present, in that order.
func EncodeLocalizedText(buf *buffer.Buffer, lt LocalizedText) error {
	var flags byte
	if lt.HasLocale {
		flags |= localizedTextLocaleFlag
	}
	if lt.HasText {
		flags |= localizedTextTextFlag
	}
	if err := codec.EncodeByte(buf, flags); err != nil {
		return err
	}
	if lt.HasLocale {
		if err := codec.EncodeString(buf, lt.Locale); err != nil {
			return err
		}
	}
	if lt.HasText {
		if err := codec.EncodeString(buf, lt.Text); err != nil {
			return err
		}
	}
	return nil
}

// DecodeLocalizedText reads the presence-flag byte and then whichever
// fields it declares present.
func DecodeLocalizedText(buf *buffer.Buffer, maxLen int) (LocalizedText, error) {
	var flags byte
	if err := codec.DecodeByte(buf, &flags); err != nil {
		return LocalizedText{}, err
	}
	var lt LocalizedText
	if flags&localizedTextLocaleFlag != 0 {
		s, _, err := codec.DecodeString(buf, maxLen)
		if err != nil {
			return LocalizedText{}, err
		}
		lt.Locale = s
		lt.HasLocale = true
	}
	if flags&localizedTextTextFlag != 0 {
		s, _, err := codec.DecodeString(buf, maxLen)
		if err != nil {
			return LocalizedText{}, err
		}
		lt.Text = s
		lt.HasText = true
	}
	return lt, nil
}
