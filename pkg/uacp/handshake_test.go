package uacp_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opcuacore/opcuacore/pkg/uacp"
)

func TestDialAcceptHandshakeRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	serverLimits := uacp.LocalLimits{ReceiveBufferSize: 65536, SendBufferSize: 65536, MaxMessageSize: 1 << 20, MaxChunkCount: 10}
	clientLimits := uacp.LocalLimits{ReceiveBufferSize: 65536, SendBufferSize: 65536, MaxMessageSize: 1 << 20, MaxChunkCount: 10}

	serverCh := make(chan *uacp.Conn, 1)
	serverErrCh := make(chan error, 1)
	go func() {
		nc, err := ln.Accept()
		if err != nil {
			serverErrCh <- err
			return
		}
		sconn, err := uacp.Accept(nc, serverLimits, func(url string) bool { return url == "opc.tcp://test/" })
		serverErrCh <- err
		serverCh <- sconn
	}()

	deadline := time.Now().Add(2 * time.Second)
	cconn, err := uacp.Dial(deadline, ln.Addr().String(), "opc.tcp://test/", clientLimits)
	require.NoError(t, err)
	defer cconn.Close()

	require.NoError(t, <-serverErrCh)
	sconn := <-serverCh
	defer sconn.Close()

	assert.Equal(t, uacp.StateConnected, cconn.State())
	assert.Equal(t, uacp.StateConnected, sconn.State())
	assert.Equal(t, cconn.Config(), sconn.Config())
}

func TestAcceptRejectsUnknownEndpoint(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	limits := uacp.LocalLimits{ReceiveBufferSize: 65536, SendBufferSize: 65536, MaxMessageSize: 1 << 20, MaxChunkCount: 10}

	serverErrCh := make(chan error, 1)
	go func() {
		nc, err := ln.Accept()
		if err != nil {
			serverErrCh <- err
			return
		}
		_, err = uacp.Accept(nc, limits, func(url string) bool { return false })
		serverErrCh <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	_, err = uacp.Dial(deadline, ln.Addr().String(), "opc.tcp://unknown/", limits)
	require.Error(t, err)
	require.Error(t, <-serverErrCh)
}
