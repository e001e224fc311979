package uacp

import (
	"fmt"
	"net"
	"time"

	"github.com/opcuacore/opcuacore/internal/log"
	"github.com/opcuacore/opcuacore/pkg/ua"
)

// maxEndpointURLLen bounds the Hello endpoint URL and the Error reason
// string during handshake, before a ConnectionConfig even exists to
// derive a limit from.
const maxEndpointURLLen = 4096

// LocalLimits are the sizing parameters a local peer is willing to
// offer or accept, independent of anything negotiated with a remote
// peer yet.
type LocalLimits struct {
	ReceiveBufferSize uint32
	SendBufferSize    uint32
	MaxMessageSize    uint32
	MaxChunkCount     uint32
}

// Dial opens a TCP connection to addr and drives the client side of the
// handshake: send Hello, wait for Acknowledge (or Error), and negotiate
// the effective ConnectionConfig. endpointURL is the OPC UA endpoint URL
// advertised in the Hello, not necessarily the same string as addr.
func Dial(deadline time.Time, addr, endpointURL string, limits LocalLimits) (*Conn, error) {
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("uacp: dial: %w", err)
	}
	c := NewConn(nc)
	if !deadline.IsZero() {
		if err := c.SetDeadline(deadline); err != nil {
			c.Close()
			return nil, fmt.Errorf("uacp: dial: set deadline: %w", err)
		}
	}

	hello := Hello{
		ProtocolVersion:   ProtocolVersion,
		ReceiveBufferSize: clampFloor(limits.ReceiveBufferSize),
		SendBufferSize:    clampFloor(limits.SendBufferSize),
		MaxMessageSize:    limits.MaxMessageSize,
		MaxChunkCount:     limits.MaxChunkCount,
		EndpointURL:       endpointURL,
	}

	buf := newHandshakeBuffer()
	if err := EncodeHello(buf, hello); err != nil {
		c.Close()
		return nil, fmt.Errorf("uacp: dial: encode hello: %w", err)
	}
	if err := c.WriteChunk(ChunkHeader{MessageType: MessageTypeHello, ChunkType: ChunkFinal}, buf.Bytes()); err != nil {
		c.Close()
		return nil, fmt.Errorf("uacp: dial: write hello: %w", err)
	}

	chunk, err := c.ReadChunk()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("uacp: dial: read reply: %w", err)
	}
	defer chunk.Release()

	switch chunk.Header.MessageType {
	case MessageTypeAcknowledge:
		rbuf, err := bufferFromBytes(chunk.Body)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("uacp: dial: wrap acknowledge body: %w", err)
		}
		ack, err := DecodeAcknowledge(rbuf)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("uacp: dial: decode acknowledge: %w", err)
		}
		c.setConfig(NegotiateClient(hello, ack))
		log.Info("uacp client handshake complete", log.RemoteAddr(c.RemoteAddr()))
		return c, nil
	case MessageTypeError:
		rbuf, wrapErr := bufferFromBytes(chunk.Body)
		if wrapErr != nil {
			c.setState(StateError)
			c.Close()
			return nil, fmt.Errorf("uacp: dial: wrap error body: %w", wrapErr)
		}
		em, decErr := DecodeErrorMessage(rbuf, maxEndpointURLLen)
		c.setState(StateError)
		c.Close()
		if decErr != nil {
			return nil, fmt.Errorf("uacp: dial: peer sent error, undecodable reason: %w", decErr)
		}
		return nil, fmt.Errorf("uacp: dial: peer rejected hello: code=0x%08X reason=%q", em.Error, em.Reason)
	default:
		c.Close()
		return nil, fmt.Errorf("uacp: dial: unexpected reply message_type %q", chunk.Header.MessageType.String())
	}
}

// EndpointValidator reports whether an endpoint URL from a Hello is one
// this listener serves, letting Accept reject connections for an unknown
// endpoint before a secure channel is ever opened.
type EndpointValidator func(endpointURL string) bool

// Accept drives the server side of the handshake over an already
// accepted net.Conn: wait for Hello, validate it, and reply with either
// Acknowledge or Error. On success it returns a Conn ready to carry
// OPN/MSG/CLO chunks.
func Accept(nc net.Conn, limits LocalLimits, validate EndpointValidator) (*Conn, error) {
	c := NewConn(nc)

	chunk, err := c.ReadChunk()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("uacp: accept: read hello: %w", err)
	}
	defer chunk.Release()

	if chunk.Header.MessageType != MessageTypeHello {
		c.writeError(uint32(ua.BadTcpMessageTypeInvalid), "expected HEL as first message")
		c.Close()
		return nil, fmt.Errorf("uacp: accept: expected HEL, got %q", chunk.Header.MessageType.String())
	}

	rbuf, err := bufferFromBytes(chunk.Body)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("uacp: accept: wrap hello body: %w", err)
	}
	hello, err := DecodeHello(rbuf, maxEndpointURLLen)
	if err != nil {
		c.writeError(uint32(ua.BadDecodingError), "malformed hello")
		c.Close()
		return nil, fmt.Errorf("uacp: accept: decode hello: %w", err)
	}

	if validate != nil && !validate(hello.EndpointURL) {
		c.writeError(uint32(ua.BadTcpEndpointURLInvalid), "unknown endpoint url")
		c.Close()
		return nil, fmt.Errorf("uacp: accept: unknown endpoint url %q", hello.EndpointURL)
	}

	ack := Acknowledge{
		ProtocolVersion:   ProtocolVersion,
		ReceiveBufferSize: clampFloor(limits.ReceiveBufferSize),
		SendBufferSize:    clampFloor(minNonZero(limits.SendBufferSize, hello.ReceiveBufferSize)),
		MaxMessageSize:    minNonZero(limits.MaxMessageSize, hello.MaxMessageSize),
		MaxChunkCount:     minNonZero(limits.MaxChunkCount, hello.MaxChunkCount),
	}

	abuf := newHandshakeBuffer()
	if err := EncodeAcknowledge(abuf, ack); err != nil {
		c.Close()
		return nil, fmt.Errorf("uacp: accept: encode acknowledge: %w", err)
	}
	if err := c.WriteChunk(ChunkHeader{MessageType: MessageTypeAcknowledge, ChunkType: ChunkFinal}, abuf.Bytes()); err != nil {
		c.Close()
		return nil, fmt.Errorf("uacp: accept: write acknowledge: %w", err)
	}

	c.setConfig(NegotiateServer(limits.ReceiveBufferSize, limits.SendBufferSize, limits.MaxMessageSize, limits.MaxChunkCount, hello))
	log.Info("uacp server handshake complete", log.RemoteAddr(c.RemoteAddr()))
	return c, nil
}

// writeError sends an ERR message best-effort; any failure to write it
// is swallowed since the caller is already tearing the connection down.
func (c *Conn) writeError(code uint32, reason string) {
	buf := newHandshakeBuffer()
	if err := EncodeErrorMessage(buf, ErrorMessage{Error: code, Reason: reason}); err != nil {
		return
	}
	_ = c.WriteChunk(ChunkHeader{MessageType: MessageTypeError, ChunkType: ChunkFinal}, buf.Bytes())
}
