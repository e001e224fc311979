package securechannel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opcuacore/opcuacore/internal/log"
	"github.com/opcuacore/opcuacore/internal/metrics"
	"github.com/opcuacore/opcuacore/internal/tracing"
	"github.com/opcuacore/opcuacore/pkg/buffer"
	"github.com/opcuacore/opcuacore/pkg/ua"
	"github.com/opcuacore/opcuacore/pkg/uacp"
	"github.com/opcuacore/opcuacore/pkg/uaerr"
)

// handshakeBufferSize bounds an OPN request/response body: protocol
// version, type/mode, a nonce up to maxNonceLen, and a lifetime all fit
// comfortably within a few hundred bytes.
const handshakeBufferSize = 4096

// newHandshakeBuffer returns an empty buffer sized for one OPN request or
// response body.
func newHandshakeBuffer() *buffer.Buffer {
	return buffer.New(handshakeBufferSize)
}

// ChannelState is the secure-channel state machine (spec §4.7): entered
// once the underlying uacp.Conn reaches StateConnected, and moved to
// Connected only once the OPN exchange completes.
type ChannelState int

const (
	ChannelDisconnected ChannelState = iota
	ChannelConnecting
	ChannelConnectingSecure
	ChannelConnected
	ChannelError
)

func (s ChannelState) String() string {
	switch s {
	case ChannelDisconnected:
		return "disconnected"
	case ChannelConnecting:
		return "connecting"
	case ChannelConnectingSecure:
		return "connecting_secure"
	case ChannelConnected:
		return "connected"
	case ChannelError:
		return "error"
	default:
		return "unknown"
	}
}

// Channel binds a uacp.Conn, its SecurityContext, the single-holder send
// permit that serialises writes, and the receive-side chunk assembler
// into the one object a caller drives a secure channel through. It
// mirrors dittofs's session objects: identity/crypto state that is
// read-only after the handshake, plus a small amount of mutable state
// guarded by its own lock.
type Channel struct {
	conn      *uacp.Conn
	sc        *SecurityContext
	permit    *SendPermit
	assembler *Assembler
	metrics   *metrics.Transport

	mu    sync.RWMutex
	state ChannelState

	requestID atomic.Uint32
}

// NewChannel wraps an already Hello/Acknowledge-negotiated uacp.Conn.
func NewChannel(conn *uacp.Conn, sc *SecurityContext) *Channel {
	return &Channel{
		conn:      conn,
		sc:        sc,
		permit:    NewSendPermit(),
		assembler: NewAssembler(),
		state:     ChannelConnectingSecure,
	}
}

// SetMetrics attaches m as the channel's OpenSecureChannel handshake
// instrumentation. m may be nil.
func (ch *Channel) SetMetrics(m *metrics.Transport) {
	ch.mu.Lock()
	ch.metrics = m
	ch.mu.Unlock()
}

// State returns the channel's current state.
func (ch *Channel) State() ChannelState {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return ch.state
}

func (ch *Channel) setState(s ChannelState) {
	ch.mu.Lock()
	ch.state = s
	ch.mu.Unlock()
}

// SecurityContext returns the channel's security context.
func (ch *Channel) SecurityContext() *SecurityContext { return ch.sc }

// Conn returns the underlying transport connection.
func (ch *Channel) Conn() *uacp.Conn { return ch.conn }

// nextRequestID returns the next request id, wrapping past zero like the
// sequence-number space (a request id of 0 is never issued).
func (ch *Channel) nextRequestID() uint32 {
	id := ch.requestID.Add(1)
	if id == 0 {
		id = ch.requestID.Add(1)
	}
	return id
}

// ClientOpenChannel drives the client side of an OpenSecureChannel
// handshake (spec §4.6): build and send the request, wait for and install
// the response. On success the channel moves to Connected; any failure
// moves it to Error and the caller should close the connection.
func (ch *Channel) ClientOpenChannel(ctx context.Context, cfg ClientConfig, peerCert Certificate, requestType TokenRequestType) (err error) {
	ctx, span := tracing.Start(ctx, tracing.SpanOpenSecureChannel)
	start := time.Now()
	defer func() {
		ch.metrics.RecordOpenHandshake(time.Since(start).Seconds())
		tracing.End(span, err)
	}()

	crypto := ch.sc.Crypto()

	req, asym, err := ClientBuildOpenRequest(crypto, cfg, requestType, peerCert)
	if err != nil {
		ch.setState(ChannelError)
		return err
	}

	if err := ch.permit.Acquire(ctx); err != nil {
		ch.setState(ChannelError)
		return fmt.Errorf("securechannel: acquire send permit: %w", err)
	}
	defer ch.permit.Release()

	reqID := ch.nextRequestID()
	if err := ch.sendOpen(req, asym, 0, reqID, cfg.PrivateKey, peerCert); err != nil {
		ch.setState(ChannelError)
		return err
	}

	chunk, err := ch.conn.ReadChunk()
	if err != nil {
		ch.setState(ChannelError)
		return fmt.Errorf("securechannel: read opn response: %w", err)
	}
	defer chunk.Release()

	dc, err := Receive(chunk, ReceiveParams{
		Mode:              cfg.Mode,
		Crypto:            crypto,
		ExpectedChannelID: 0,
		PrivateKey:        cfg.PrivateKey,
		ResetSeqNum:       ch.sc.ResetReceivedSeqNum,
	})
	if err != nil {
		ch.setState(ChannelError)
		return err
	}
	if dc.ChunkType == uacp.ChunkAbort {
		ch.setState(ChannelError)
		return uaerr.New(uaerr.KindDisconnected, abortMessage(dc)).WithStatus(dc.AbortCode)
	}

	respBuf, err := bufferFromChunkBody(dc.Body)
	if err != nil {
		ch.setState(ChannelError)
		return err
	}
	resp, err := DecodeOpenResponse(respBuf)
	if err != nil {
		ch.setState(ChannelError)
		return fmt.Errorf("securechannel: decode opn response: %w", err)
	}

	keys, err := ClientDeriveTokenKeys(crypto, req.ClientNonce, resp.ServerNonce, cfg.Mode)
	if err != nil {
		ch.setState(ChannelError)
		return err
	}

	ch.sc.InstallToken(resp.Token, keys)
	ch.setState(ChannelConnected)
	log.Info("securechannel: channel opened",
		log.ChannelID(resp.Token.ChannelID),
		log.TokenID(resp.Token.TokenID),
		log.SecurityMode(cfg.Mode.String()))
	return nil
}

// sendOpen writes a single-chunk OPN message carrying req, signing with
// privateKey and, under SecurityModeSignAndEncrypt, encrypting for peerCert
// (Part 6 §6.7.5: the asymmetric handshake message is protected with the
// sender's private key and the receiver's public certificate, never with
// token-derived symmetric keys).
func (ch *Channel) sendOpen(req OpenRequest, asym AsymmetricSecurityHeader, channelID, requestID uint32, privateKey []byte, peerCert Certificate) error {
	buf := newHandshakeBuffer()
	if err := EncodeOpenRequest(buf, req); err != nil {
		return err
	}
	return Send(ch.conn, ChunkParams{
		SecType:       secureTypeOPN,
		ChunkCapacity: int(ch.conn.Config().SendBufferSize),
		MaxChunks:     1,
		ChannelID:     channelID,
		Mode:          req.SecurityMode,
		Crypto:        ch.sc.Crypto(),
		PrivateKey:    privateKey,
		PeerCert:      peerCert,
		Asym:          asym,
		RequestID:     requestID,
		NextSeqNum:    ch.sc.NextSendSeqNum,
	}, buf.Bytes())
}

// ServeOneOpen handles a single incoming OPN request on the server side
// (spec §4.6), replying with the negotiated response and installing the
// resulting token/keys into the channel's SecurityContext. Callers drive
// their read loop; this is called once per OPN chunk received.
func (ch *Channel) ServeOneOpen(ctx context.Context, cfg ServerConfig, chunk uacp.Chunk, localPrivateKey []byte) (err error) {
	ctx, span := tracing.Start(ctx, tracing.SpanOpenSecureChannel)
	start := time.Now()
	defer func() {
		ch.metrics.RecordOpenHandshake(time.Since(start).Seconds())
		tracing.End(span, err)
	}()

	dc, err := Receive(chunk, ReceiveParams{
		Mode:              ch.sc.Mode(),
		Crypto:            cfg.Crypto,
		ExpectedChannelID: ch.sc.CurrentToken().ChannelID,
		PrivateKey:        localPrivateKey,
		ResetSeqNum:       ch.sc.ResetReceivedSeqNum,
		ResolveMode:       cfg.ModeForPolicy,
	})
	if err != nil {
		ch.setState(ChannelError)
		return err
	}

	reqBuf, err := bufferFromChunkBody(dc.Body)
	if err != nil {
		ch.setState(ChannelError)
		return err
	}
	req, err := DecodeOpenRequest(reqBuf)
	if err != nil {
		ch.setState(ChannelError)
		return fmt.Errorf("securechannel: decode opn request: %w", err)
	}

	resp, keys, err := ServerHandleOpen(cfg, dc.Asym, req, time.Now())
	if err != nil {
		ch.setState(ChannelError)
		return err
	}

	if err := ch.permit.Acquire(ctx); err != nil {
		return fmt.Errorf("securechannel: acquire send permit: %w", err)
	}
	defer ch.permit.Release()

	respAsym := AsymmetricSecurityHeader{SecurityPolicyURI: dc.Asym.SecurityPolicyURI}
	if req.SecurityMode != SecurityModeNone {
		respAsym.SenderCertificate = cfg.LocalCertificate
		thumb, err := cfg.Crypto.Thumbprint(dc.Asym.SenderCertificate)
		if err != nil {
			ch.setState(ChannelError)
			return uaerr.Wrap(uaerr.KindCertificateValidationFailed, "securechannel: thumbprint client certificate", err).WithStatus(ua.BadSecurityChecksFailed)
		}
		respAsym.ReceiverCertThumbprint = thumb
	}

	respBuf := newHandshakeBuffer()
	if err := EncodeOpenResponse(respBuf, resp); err != nil {
		ch.setState(ChannelError)
		return err
	}
	if err := Send(ch.conn, ChunkParams{
		SecType:       secureTypeOPN,
		ChunkCapacity: int(ch.conn.Config().SendBufferSize),
		MaxChunks:     1,
		ChannelID:     resp.Token.ChannelID,
		Mode:          req.SecurityMode,
		Crypto:        cfg.Crypto,
		PrivateKey:    localPrivateKey,
		PeerCert:      dc.Asym.SenderCertificate,
		Asym:          respAsym,
		RequestID:     dc.RequestID,
		NextSeqNum:    ch.sc.NextSendSeqNum,
	}, respBuf.Bytes()); err != nil {
		ch.setState(ChannelError)
		return err
	}

	ch.sc.SetMode(req.SecurityMode, dc.Asym.SecurityPolicyURI)
	ch.sc.InstallToken(resp.Token, keys)
	ch.setState(ChannelConnected)
	return nil
}
