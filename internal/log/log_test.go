package log_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opcuacore/opcuacore/internal/log"
)

func TestInfoWritesJSONWithMessageAndFields(t *testing.T) {
	var buf bytes.Buffer
	log.InitWithWriter(&buf, "INFO", "json", false)

	log.Info("channel opened", log.ChannelID(7))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "channel opened", entry["msg"])
	assert.EqualValues(t, 7, entry["channel_id"])
}

func TestDebugSuppressedBelowConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	log.InitWithWriter(&buf, "WARN", "json", false)

	log.Info("should not appear")
	log.Debug("should not appear either")
	assert.Empty(t, buf.String())

	log.Warn("should appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestSetLevelIgnoresUnrecognizedValue(t *testing.T) {
	var buf bytes.Buffer
	log.InitWithWriter(&buf, "INFO", "json", false)
	log.SetLevel("NOT-A-LEVEL")

	log.Info("still at info")
	assert.Contains(t, buf.String(), "still at info")
}

func TestSetFormatIgnoresUnrecognizedValue(t *testing.T) {
	var buf bytes.Buffer
	log.InitWithWriter(&buf, "INFO", "json", false)
	log.SetFormat("xml")

	log.Info("json again")
	assert.True(t, strings.HasPrefix(strings.TrimSpace(buf.String()), "{"))
}

func TestErrAttrHandlesNilError(t *testing.T) {
	var buf bytes.Buffer
	log.InitWithWriter(&buf, "INFO", "json", false)

	log.Error("no cause", log.Err(nil))
	assert.Contains(t, buf.String(), "no cause")
}

func TestErrAttrCarriesMessage(t *testing.T) {
	var buf bytes.Buffer
	log.InitWithWriter(&buf, "INFO", "json", false)

	log.Error("decode failed", log.Err(errors.New("short read")))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "short read", entry["error"])
}

func TestInfoCtxInjectsChannelContextFields(t *testing.T) {
	var buf bytes.Buffer
	log.InitWithWriter(&buf, "INFO", "json", false)

	cc := log.NewChannelContext("127.0.0.1:4840").WithChannel(42).WithRequest(5)
	ctx := log.WithContext(context.Background(), cc)

	log.InfoCtx(ctx, "request handled")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.EqualValues(t, 42, entry["channel_id"])
	assert.EqualValues(t, 5, entry["request_id"])
	assert.Equal(t, "127.0.0.1:4840", entry["remote_addr"])
}

func TestInfoCtxWithoutContextValueOmitsFields(t *testing.T) {
	var buf bytes.Buffer
	log.InitWithWriter(&buf, "INFO", "json", false)

	log.InfoCtx(context.Background(), "bare message")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	_, hasChannel := entry["channel_id"]
	assert.False(t, hasChannel)
}

func TestChannelContextFromContextNilWhenAbsent(t *testing.T) {
	assert.Nil(t, log.FromContext(context.Background()))
}

func TestChannelContextWithersProduceIndependentCopies(t *testing.T) {
	base := log.NewChannelContext("10.0.0.1:1")
	withChannel := base.WithChannel(1)
	withToken := base.WithToken(2)

	assert.EqualValues(t, 0, base.ChannelID)
	assert.EqualValues(t, 1, withChannel.ChannelID)
	assert.EqualValues(t, 0, withChannel.TokenID)
	assert.EqualValues(t, 2, withToken.TokenID)
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", log.LevelDebug.String())
	assert.Equal(t, "ERROR", log.LevelError.String())
	assert.Equal(t, "UNKNOWN", log.Level(99).String())
}
