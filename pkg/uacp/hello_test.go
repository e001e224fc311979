package uacp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opcuacore/opcuacore/pkg/buffer"
	"github.com/opcuacore/opcuacore/pkg/uacp"
)

func TestHelloRoundTrip(t *testing.T) {
	buf := buffer.New(4096)
	h := uacp.Hello{
		ProtocolVersion:   0,
		ReceiveBufferSize: 65536,
		SendBufferSize:    65536,
		MaxMessageSize:    1 << 20,
		MaxChunkCount:     10,
		EndpointURL:       "opc.tcp://localhost:4840/",
	}
	require.NoError(t, uacp.EncodeHello(buf, h))
	buf.Reset()

	got, err := uacp.DecodeHello(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestAcknowledgeRoundTrip(t *testing.T) {
	buf := buffer.New(64)
	a := uacp.Acknowledge{ProtocolVersion: 0, ReceiveBufferSize: 8192, SendBufferSize: 8192, MaxMessageSize: 4096, MaxChunkCount: 1}
	require.NoError(t, uacp.EncodeAcknowledge(buf, a))
	buf.Reset()

	got, err := uacp.DecodeAcknowledge(buf)
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestErrorMessageRoundTrip(t *testing.T) {
	buf := buffer.New(256)
	e := uacp.ErrorMessage{Error: 0x807D0000, Reason: "unknown endpoint url"}
	require.NoError(t, uacp.EncodeErrorMessage(buf, e))
	buf.Reset()

	got, err := uacp.DecodeErrorMessage(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, e, got)
}
