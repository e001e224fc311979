package uacp_test

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opcuacore/opcuacore/pkg/uacp"
)

func TestConnWriteChunkReadChunkRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	cc := uacp.NewConn(client)
	sc := uacp.NewConn(server)

	done := make(chan uacp.Chunk, 1)
	errCh := make(chan error, 1)
	go func() {
		chunk, err := sc.ReadChunk()
		errCh <- err
		done <- chunk
	}()

	body := []byte("payload-bytes")
	require.NoError(t, cc.WriteChunk(uacp.ChunkHeader{MessageType: uacp.MessageTypeSecureConversation, ChunkType: uacp.ChunkFinal}, body))

	require.NoError(t, <-errCh)
	chunk := <-done
	defer chunk.Release()
	assert.Equal(t, uacp.MessageTypeSecureConversation, chunk.Header.MessageType)
	assert.Equal(t, uacp.ChunkFinal, chunk.Header.ChunkType)
	assert.Equal(t, body, chunk.Body)
}

func TestConnWriteRawRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	cc := uacp.NewConn(client)
	sc := uacp.NewConn(server)

	buf := make([]byte, uacp.HeaderSize+4)
	copy(buf[0:3], "OPN")
	buf[3] = byte(uacp.ChunkFinal)
	buf[4] = byte(len(buf))

	errCh := make(chan error, 1)
	chunkCh := make(chan uacp.Chunk, 1)
	go func() {
		chunk, err := sc.ReadChunk()
		errCh <- err
		chunkCh <- chunk
	}()

	require.NoError(t, cc.WriteRaw(buf))
	require.NoError(t, <-errCh)
	chunk := <-chunkCh
	defer chunk.Release()
	assert.Equal(t, uacp.MessageTypeOpenChannel, chunk.Header.MessageType)
}

func TestConnWriteRawRejectsFrameShorterThanHeader(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	cc := uacp.NewConn(client)
	err := cc.WriteRaw([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestConnStateTransitions(t *testing.T) {
	client, _ := net.Pipe()
	defer client.Close()
	cc := uacp.NewConn(client)
	assert.Equal(t, uacp.StateConnecting, cc.State())
	require.NoError(t, cc.Close())
	assert.Equal(t, uacp.StateDisconnected, cc.State())
}
