// Package uacp implements the OPC UA Connection Protocol (UACP): the
// framed TCP transport beneath a secure channel. It owns the HEL/ACK
// handshake, the 8-byte chunk header, and the two-state mini state
// machine (header-accumulation, then body-accumulation) that turns a
// TCP byte stream into discrete, typed chunks.
package uacp

import (
	"fmt"

	"github.com/opcuacore/opcuacore/pkg/buffer"
	"github.com/opcuacore/opcuacore/pkg/codec"
)

// MessageType is the 3-byte ASCII tag at the front of every UACP chunk
// header (Part 6 §7.1).
type MessageType [3]byte

var (
	MessageTypeHello            = MessageType{'H', 'E', 'L'}
	MessageTypeAcknowledge      = MessageType{'A', 'C', 'K'}
	MessageTypeError            = MessageType{'E', 'R', 'R'}
	MessageTypeOpenChannel      = MessageType{'O', 'P', 'N'}
	MessageTypeCloseChannel     = MessageType{'C', 'L', 'O'}
	MessageTypeSecureConversation MessageType = MessageType{'M', 'S', 'G'}
)

func (t MessageType) String() string { return string(t[:]) }

// ChunkType is the one-byte chunk indicator following MessageType: 'F'
// for a final (and possibly only) chunk, 'C' for an intermediate chunk of
// a multi-chunk message, 'A' for an abort chunk that replaces the rest of
// an in-progress message with an error.
type ChunkType byte

const (
	ChunkFinal        ChunkType = 'F'
	ChunkIntermediate ChunkType = 'C'
	ChunkAbort        ChunkType = 'A'
)

func (c ChunkType) valid() bool {
	return c == ChunkFinal || c == ChunkIntermediate || c == ChunkAbort
}

// HeaderSize is the fixed size in bytes of a chunk header.
const HeaderSize = 8

// maxHandshakeMessageSize bounds HEL/ACK/ERR message bodies, which are
// always encoded before any ConnectionConfig exists to derive a tighter
// limit from.
const maxHandshakeMessageSize = 64 << 10

// newHandshakeBuffer allocates a Buffer sized for encoding a HEL/ACK/ERR
// body.
func newHandshakeBuffer() *buffer.Buffer {
	return buffer.New(maxHandshakeMessageSize)
}

// bufferFromBytes wraps an already-received chunk body in a Buffer
// positioned at the start, ready for the Decode* functions to read from.
func bufferFromBytes(data []byte) (*buffer.Buffer, error) {
	buf := buffer.New(len(data))
	if _, err := buf.Write(data); err != nil {
		return nil, err
	}
	buf.Reset()
	return buf, nil
}

// ChunkHeader is the 8-byte prefix of every UACP chunk: a 3-byte message
// type, a 1-byte chunk type, and a 4-byte little-endian total chunk size
// (header included).
type ChunkHeader struct {
	MessageType MessageType
	ChunkType   ChunkType
	MessageSize uint32
}

// EncodeChunkHeader writes the 8-byte header.
func EncodeChunkHeader(buf *buffer.Buffer, h ChunkHeader) error {
	if !h.ChunkType.valid() {
		return fmt.Errorf("uacp: encode_chunk_header: invalid chunk_type %q", byte(h.ChunkType))
	}
	if _, err := buf.Write(h.MessageType[:]); err != nil {
		return err
	}
	if err := codec.EncodeByte(buf, byte(h.ChunkType)); err != nil {
		return err
	}
	return codec.EncodeUInt32(buf, h.MessageSize)
}

// DecodeChunkHeader reads the 8-byte header.
func DecodeChunkHeader(buf *buffer.Buffer) (ChunkHeader, error) {
	var h ChunkHeader
	if _, err := buf.Read(h.MessageType[:], 3); err != nil {
		return ChunkHeader{}, fmt.Errorf("uacp: decode_chunk_header: message_type: %w", err)
	}
	var ct byte
	if err := codec.DecodeByte(buf, &ct); err != nil {
		return ChunkHeader{}, fmt.Errorf("uacp: decode_chunk_header: chunk_type: %w", err)
	}
	h.ChunkType = ChunkType(ct)
	if !h.ChunkType.valid() {
		return ChunkHeader{}, fmt.Errorf("uacp: decode_chunk_header: invalid chunk_type %q", ct)
	}
	if err := codec.DecodeUInt32(buf, &h.MessageSize); err != nil {
		return ChunkHeader{}, fmt.Errorf("uacp: decode_chunk_header: message_size: %w", err)
	}
	if h.MessageSize < HeaderSize {
		return ChunkHeader{}, fmt.Errorf("uacp: decode_chunk_header: message_size %d smaller than header", h.MessageSize)
	}
	return h, nil
}
