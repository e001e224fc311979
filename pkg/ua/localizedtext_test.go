package ua_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opcuacore/opcuacore/pkg/buffer"
	"github.com/opcuacore/opcuacore/pkg/ua"
)

func TestLocalizedTextRoundTripBothFields(t *testing.T) {
	buf := buffer.New(64)
	lt := ua.LocalizedText{Locale: "en-US", HasLocale: true, Text: "Running", HasText: true}
	require.NoError(t, ua.EncodeLocalizedText(buf, lt))
	buf.Reset()

	got, err := ua.DecodeLocalizedText(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, lt, got)
}

func TestLocalizedTextRoundTripNeitherField(t *testing.T) {
	buf := buffer.New(8)
	lt := ua.LocalizedText{}
	require.NoError(t, ua.EncodeLocalizedText(buf, lt))
	buf.Reset()

	got, err := ua.DecodeLocalizedText(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, lt, got)
}

func TestLocalizedTextRoundTripTextOnly(t *testing.T) {
	buf := buffer.New(32)
	lt := ua.LocalizedText{Text: "Alarm", HasText: true}
	require.NoError(t, ua.EncodeLocalizedText(buf, lt))
	buf.Reset()

	got, err := ua.DecodeLocalizedText(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, lt, got)
}
