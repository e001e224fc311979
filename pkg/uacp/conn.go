package uacp

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/opcuacore/opcuacore/internal/log"
	"github.com/opcuacore/opcuacore/internal/metrics"
	"github.com/opcuacore/opcuacore/pkg/bufpool"
)

// State is the connection-level state machine a Conn moves through,
// independent of whatever secure channel is later layered on top of it.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Conn wraps a TCP connection with UACP chunk framing: reading and
// writing whole chunks (header plus body) rather than raw bytes, and
// tracking the sizing limits negotiated at Hello/Acknowledge time.
//
// A Conn is not safe for concurrent Write calls from multiple goroutines
// — the secure-channel layer's single-holder send permit (see
// pkg/securechannel) is what serialises writers above this layer. Reads
// are expected to happen from exactly one goroutine, the connection's
// read loop.
type Conn struct {
	netConn net.Conn

	mu      sync.Mutex
	state   State
	config  ConnectionConfig
	metrics *metrics.Transport
}

// NewConn wraps an already-connected net.Conn. The caller still has to
// drive the Hello/Acknowledge handshake (via Client/Server helpers in
// this package) before the Conn is ready to carry OPN/CLO/MSG chunks.
func NewConn(nc net.Conn) *Conn {
	return &Conn{netConn: nc, state: StateConnecting}
}

// SetMetrics attaches m as the Conn's chunk/byte counters. m may be nil,
// in which case recording calls are no-ops; the zero value of *Conn
// already behaves this way, so this is only needed when an endpoint wants
// real instrumentation.
func (c *Conn) SetMetrics(m *metrics.Transport) {
	c.mu.Lock()
	c.metrics = m
	c.mu.Unlock()
}

// State returns the connection's current state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Config returns the negotiated sizing parameters. Only meaningful after
// the handshake has completed.
func (c *Conn) Config() ConnectionConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

func (c *Conn) setConfig(cfg ConnectionConfig) {
	c.mu.Lock()
	c.config = cfg
	c.state = StateConnected
	c.mu.Unlock()
}

// RemoteAddr returns the underlying connection's remote address string.
func (c *Conn) RemoteAddr() string {
	if c.netConn == nil {
		return ""
	}
	return c.netConn.RemoteAddr().String()
}

// SetDeadline forwards to the underlying net.Conn, used while waiting on
// a Hello or an Acknowledge that never arrives.
func (c *Conn) SetDeadline(t time.Time) error {
	return c.netConn.SetDeadline(t)
}

// Close closes the underlying TCP connection and marks this Conn
// disconnected.
func (c *Conn) Close() error {
	c.setState(StateDisconnected)
	return c.netConn.Close()
}

// Chunk is one decoded chunk: its header plus the raw body bytes that
// followed it (excluding the 8-byte header itself). Body is backed by a
// bufpool buffer; callers must call Release when done with it.
type Chunk struct {
	Header ChunkHeader
	Body   []byte
}

// Release returns Body to the buffer pool. Safe to call on a Chunk whose
// Body is nil.
func (c *Chunk) Release() {
	if c.Body != nil {
		bufpool.Put(c.Body)
		c.Body = nil
	}
}

// absoluteMaxChunkSize is the ceiling ReadChunk applies, together with
// the connection's negotiated receive buffer, to a single incoming
// chunk's declared body size, so a corrupt or hostile header cannot force
// an unbounded allocation before the rest of this module gets a chance to
// reject the message.
const absoluteMaxChunkSize = 16 << 20

// ReadChunk reads one chunk header plus body from the connection: this is
// the "header-accumulation, then body-accumulation" mini state machine
// (Part 6 §7.2.2) collapsed into a single blocking call, since Go's
// io.ReadFull already accumulates exactly as many bytes as requested
// before returning.
func (c *Conn) ReadChunk() (Chunk, error) {
	var hdrBytes [HeaderSize]byte
	if _, err := io.ReadFull(c.netConn, hdrBytes[:]); err != nil {
		return Chunk{}, err
	}

	var mt MessageType
	copy(mt[:], hdrBytes[0:3])
	chunkType := ChunkType(hdrBytes[3])
	if !chunkType.valid() {
		return Chunk{}, fmt.Errorf("uacp: read_chunk: invalid chunk_type %q", hdrBytes[3])
	}
	size := binary.LittleEndian.Uint32(hdrBytes[4:8])
	header := ChunkHeader{MessageType: mt, ChunkType: chunkType, MessageSize: size}

	if size < HeaderSize {
		return Chunk{}, fmt.Errorf("uacp: read_chunk: message_size %d smaller than header", size)
	}
	bodyLen := size - HeaderSize

	recvLimit := c.Config().ReceiveBufferSize
	limit := uint32(absoluteMaxChunkSize)
	if recvLimit != 0 && recvLimit < limit {
		limit = recvLimit
	}
	if bodyLen > limit {
		return Chunk{}, fmt.Errorf("uacp: read_chunk: body size %d exceeds limit %d", bodyLen, limit)
	}

	body := bufpool.GetUint32(bodyLen)
	if bodyLen > 0 {
		if _, err := io.ReadFull(c.netConn, body); err != nil {
			bufpool.Put(body)
			return Chunk{}, fmt.Errorf("uacp: read_chunk: body: %w", err)
		}
	}

	log.Debug("uacp chunk received",
		log.MessageType(mt.String()),
		log.ChunkSize(int(size)),
		log.RemoteAddr(c.RemoteAddr()))
	c.metrics.RecordChunkReceived(mt.String(), int(size))

	return Chunk{Header: header, Body: body}, nil
}

// WriteChunk writes a chunk header followed by body in a single Write
// call so a half-written header can never reach the peer.
func (c *Conn) WriteChunk(header ChunkHeader, body []byte) error {
	if !header.ChunkType.valid() {
		return fmt.Errorf("uacp: write_chunk: invalid chunk_type %q", byte(header.ChunkType))
	}
	header.MessageSize = uint32(HeaderSize + len(body))

	out := bufpool.GetUint32(header.MessageSize)
	defer bufpool.Put(out)
	copy(out[0:3], header.MessageType[:])
	out[3] = byte(header.ChunkType)
	binary.LittleEndian.PutUint32(out[4:8], header.MessageSize)
	copy(out[HeaderSize:], body)

	if _, err := c.netConn.Write(out); err != nil {
		return fmt.Errorf("uacp: write_chunk: %w", err)
	}
	log.Debug("uacp chunk sent",
		log.MessageType(header.MessageType.String()),
		log.ChunkSize(int(header.MessageSize)),
		log.RemoteAddr(c.RemoteAddr()))
	c.metrics.RecordChunkSent(header.MessageType.String(), int(header.MessageSize))
	return nil
}

// WriteRaw writes a complete, already-framed chunk (header included)
// exactly as given. Used by the secure-channel layer, which must sign
// over the final header bytes itself and so builds the frame, including
// its own 8-byte header, before handing it to the transport.
func (c *Conn) WriteRaw(frame []byte) error {
	if len(frame) < HeaderSize {
		return fmt.Errorf("uacp: write_raw: frame shorter than header (%d bytes)", len(frame))
	}
	if _, err := c.netConn.Write(frame); err != nil {
		return fmt.Errorf("uacp: write_raw: %w", err)
	}
	var mt MessageType
	copy(mt[:], frame[0:3])
	log.Debug("uacp chunk sent",
		log.MessageType(mt.String()),
		log.ChunkSize(len(frame)),
		log.RemoteAddr(c.RemoteAddr()))
	c.metrics.RecordChunkSent(mt.String(), len(frame))
	return nil
}
