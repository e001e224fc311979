package securechannel_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opcuacore/opcuacore/pkg/securechannel"
	"github.com/opcuacore/opcuacore/pkg/testca"
	"github.com/opcuacore/opcuacore/pkg/testcrypto"
	"github.com/opcuacore/opcuacore/pkg/uacp"
)

// negotiatedPipe performs a real Hello/Acknowledge handshake over a
// loopback TCP connection so both sides end up with a non-zero negotiated
// SendBufferSize, the way sendOpen sizes its chunk capacity.
func negotiatedPipe(t *testing.T) (client, server *uacp.Conn, cleanup func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	limits := uacp.LocalLimits{ReceiveBufferSize: 65536, SendBufferSize: 65536, MaxMessageSize: 1 << 20, MaxChunkCount: 100}

	serverCh := make(chan *uacp.Conn, 1)
	serverErrCh := make(chan error, 1)
	go func() {
		nc, err := ln.Accept()
		if err != nil {
			serverErrCh <- err
			return
		}
		sconn, err := uacp.Accept(nc, limits, func(url string) bool { return true })
		serverErrCh <- err
		serverCh <- sconn
	}()

	cconn, err := uacp.Dial(time.Now().Add(2*time.Second), ln.Addr().String(), "opc.tcp://test/", limits)
	require.NoError(t, err)
	require.NoError(t, <-serverErrCh)
	sconn := <-serverCh

	return cconn, sconn, func() {
		cconn.Close()
		sconn.Close()
		ln.Close()
	}
}

func runHandshake(t *testing.T, mode securechannel.SecurityMode, policyURI string) (client, server *securechannel.Channel) {
	t.Helper()
	crypto := testcrypto.New()
	cconn, sconn, cleanup := negotiatedPipe(t)
	t.Cleanup(cleanup)

	clientCfg := securechannel.ClientConfig{
		ProtocolVersion: 0,
		PolicyURI:       policyURI,
		Mode:            mode,
		RequestLifetime: time.Minute,
	}
	serverCfg := securechannel.ServerConfig{
		ProtocolVersion:  0,
		Policies:         []securechannel.EndpointPolicy{{PolicyURI: policyURI, Mode: mode}},
		TokenLifetimeMin: time.Second,
		TokenLifetimeMax: time.Hour,
		Crypto:           crypto,
	}

	var peerCert securechannel.Certificate
	var serverPrivateKey []byte
	if mode != securechannel.SecurityModeNone {
		clientID, err := testca.New("client")
		require.NoError(t, err)
		serverID, err := testca.New("server")
		require.NoError(t, err)

		clientCfg.LocalCertificate = securechannel.Certificate(clientID.CertDER)
		clientCfg.PrivateKey = clientID.PrivateKeyDER
		serverCfg.LocalCertificate = securechannel.Certificate(serverID.CertDER)
		peerCert = securechannel.Certificate(serverID.CertDER)
		serverPrivateKey = serverID.PrivateKeyDER
	}

	csc := securechannel.NewSecurityContext(crypto, mode, policyURI)
	cch := securechannel.NewChannel(cconn, csc)

	ssc := securechannel.NewSecurityContext(crypto, securechannel.SecurityModeNone, "")
	sch := securechannel.NewChannel(sconn, ssc)

	serverErrCh := make(chan error, 1)
	go func() {
		chunk, err := sconn.ReadChunk()
		if err != nil {
			serverErrCh <- err
			return
		}
		defer chunk.Release()
		serverErrCh <- sch.ServeOneOpen(context.Background(), serverCfg, chunk, serverPrivateKey)
	}()

	err := cch.ClientOpenChannel(context.Background(), clientCfg, peerCert, securechannel.TokenRequestIssue)
	require.NoError(t, err)
	require.NoError(t, <-serverErrCh)

	return cch, sch
}

func TestChannelOpenSecureChannelModeNone(t *testing.T) {
	client, server := runHandshake(t, securechannel.SecurityModeNone, securechannel.PolicyNone)
	assert.Equal(t, securechannel.ChannelConnected, client.State())
	assert.Equal(t, securechannel.ChannelConnected, server.State())

	ct := client.SecurityContext().CurrentToken()
	st := server.SecurityContext().CurrentToken()
	assert.True(t, ct.Valid())
	assert.Equal(t, ct.ChannelID, st.ChannelID)
	assert.Equal(t, ct.TokenID, st.TokenID)
}

func TestChannelOpenSecureChannelModeSign(t *testing.T) {
	client, server := runHandshake(t, securechannel.SecurityModeSign, securechannel.PolicyBasic256Sha256)
	assert.Equal(t, securechannel.ChannelConnected, client.State())
	assert.Equal(t, securechannel.ChannelConnected, server.State())
	assert.Equal(t, client.SecurityContext().CurrentToken().TokenID, server.SecurityContext().CurrentToken().TokenID)
}

func TestChannelOpenSecureChannelModeSignAndEncrypt(t *testing.T) {
	client, server := runHandshake(t, securechannel.SecurityModeSignAndEncrypt, securechannel.PolicyBasic256Sha256)
	assert.Equal(t, securechannel.ChannelConnected, client.State())
	assert.Equal(t, securechannel.ChannelConnected, server.State())
	assert.Equal(t, client.SecurityContext().CurrentToken().TokenID, server.SecurityContext().CurrentToken().TokenID)
}

func TestChannelServeOneOpenRejectsUnofferedPolicy(t *testing.T) {
	crypto := testcrypto.New()
	cconn, sconn, cleanup := negotiatedPipe(t)
	t.Cleanup(cleanup)

	clientCfg := securechannel.ClientConfig{ProtocolVersion: 0, PolicyURI: securechannel.PolicyNone, Mode: securechannel.SecurityModeNone, RequestLifetime: time.Minute}
	serverCfg := securechannel.ServerConfig{
		ProtocolVersion:  0,
		Policies:         []securechannel.EndpointPolicy{{PolicyURI: securechannel.PolicyBasic256Sha256, Mode: securechannel.SecurityModeSign}},
		TokenLifetimeMin: time.Second,
		TokenLifetimeMax: time.Hour,
		Crypto:           crypto,
	}

	csc := securechannel.NewSecurityContext(crypto, securechannel.SecurityModeNone, securechannel.PolicyNone)
	cch := securechannel.NewChannel(cconn, csc)
	ssc := securechannel.NewSecurityContext(crypto, securechannel.SecurityModeNone, "")
	sch := securechannel.NewChannel(sconn, ssc)

	serverErrCh := make(chan error, 1)
	go func() {
		chunk, err := sconn.ReadChunk()
		if err != nil {
			serverErrCh <- err
			return
		}
		defer chunk.Release()
		serverErrCh <- sch.ServeOneOpen(context.Background(), serverCfg, chunk, nil)
	}()

	_ = cch.ClientOpenChannel(context.Background(), clientCfg, nil, securechannel.TokenRequestIssue)
	assert.Error(t, <-serverErrCh)
}
