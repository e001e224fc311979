package uacp

import (
	"github.com/opcuacore/opcuacore/pkg/buffer"
	"github.com/opcuacore/opcuacore/pkg/codec"
)

// ProtocolVersion is the UACP protocol version this module implements and
// advertises in Hello/Acknowledge.
const ProtocolVersion uint32 = 0

// Hello is the client's opening message on a new TCP connection: its
// proposed buffer sizes, message-size cap, and the endpoint URL it wants
// to reach (Part 6 §7.1.2).
type Hello struct {
	ProtocolVersion   uint32
	ReceiveBufferSize uint32
	SendBufferSize    uint32
	MaxMessageSize    uint32
	MaxChunkCount     uint32
	EndpointURL       string
}

// EncodeHello writes a Hello body (the chunk header is written
// separately by the caller).
func EncodeHello(buf *buffer.Buffer, h Hello) error {
	if err := codec.EncodeUInt32(buf, h.ProtocolVersion); err != nil {
		return err
	}
	if err := codec.EncodeUInt32(buf, h.ReceiveBufferSize); err != nil {
		return err
	}
	if err := codec.EncodeUInt32(buf, h.SendBufferSize); err != nil {
		return err
	}
	if err := codec.EncodeUInt32(buf, h.MaxMessageSize); err != nil {
		return err
	}
	if err := codec.EncodeUInt32(buf, h.MaxChunkCount); err != nil {
		return err
	}
	return codec.EncodeString(buf, h.EndpointURL)
}

// DecodeHello reads a Hello body. maxEndpointURLLen bounds the endpoint
// URL string length (<= 0 means unbounded); no negotiated size exists yet
// at this point, so Accept passes a fixed bound.
func DecodeHello(buf *buffer.Buffer, maxEndpointURLLen int) (Hello, error) {
	var h Hello
	if err := codec.DecodeUInt32(buf, &h.ProtocolVersion); err != nil {
		return Hello{}, err
	}
	if err := codec.DecodeUInt32(buf, &h.ReceiveBufferSize); err != nil {
		return Hello{}, err
	}
	if err := codec.DecodeUInt32(buf, &h.SendBufferSize); err != nil {
		return Hello{}, err
	}
	if err := codec.DecodeUInt32(buf, &h.MaxMessageSize); err != nil {
		return Hello{}, err
	}
	if err := codec.DecodeUInt32(buf, &h.MaxChunkCount); err != nil {
		return Hello{}, err
	}
	url, _, err := codec.DecodeString(buf, maxEndpointURLLen)
	if err != nil {
		return Hello{}, err
	}
	h.EndpointURL = url
	return h, nil
}

// Acknowledge is the server's reply to Hello: the sizes it actually grants
// (Part 6 §7.1.3). Accept bounds SendBufferSize by the client's
// ReceiveBufferSize and MaxMessageSize/MaxChunkCount by the client's
// values; ReceiveBufferSize is the server's own limit and is not bounded
// by the client's SendBufferSize.
type Acknowledge struct {
	ProtocolVersion   uint32
	ReceiveBufferSize uint32
	SendBufferSize    uint32
	MaxMessageSize    uint32
	MaxChunkCount     uint32
}

// EncodeAcknowledge writes an Acknowledge body.
func EncodeAcknowledge(buf *buffer.Buffer, a Acknowledge) error {
	if err := codec.EncodeUInt32(buf, a.ProtocolVersion); err != nil {
		return err
	}
	if err := codec.EncodeUInt32(buf, a.ReceiveBufferSize); err != nil {
		return err
	}
	if err := codec.EncodeUInt32(buf, a.SendBufferSize); err != nil {
		return err
	}
	if err := codec.EncodeUInt32(buf, a.MaxMessageSize); err != nil {
		return err
	}
	return codec.EncodeUInt32(buf, a.MaxChunkCount)
}

// DecodeAcknowledge reads an Acknowledge body.
func DecodeAcknowledge(buf *buffer.Buffer) (Acknowledge, error) {
	var a Acknowledge
	if err := codec.DecodeUInt32(buf, &a.ProtocolVersion); err != nil {
		return Acknowledge{}, err
	}
	if err := codec.DecodeUInt32(buf, &a.ReceiveBufferSize); err != nil {
		return Acknowledge{}, err
	}
	if err := codec.DecodeUInt32(buf, &a.SendBufferSize); err != nil {
		return Acknowledge{}, err
	}
	if err := codec.DecodeUInt32(buf, &a.MaxMessageSize); err != nil {
		return Acknowledge{}, err
	}
	if err := codec.DecodeUInt32(buf, &a.MaxChunkCount); err != nil {
		return Acknowledge{}, err
	}
	return a, nil
}

// ErrorMessage is sent by either peer to report a fatal connection-level
// error and is always immediately followed by closing the socket
// (Part 6 §7.1.4).
type ErrorMessage struct {
	Error  uint32
	Reason string
}

// EncodeErrorMessage writes an ErrorMessage body.
func EncodeErrorMessage(buf *buffer.Buffer, e ErrorMessage) error {
	if err := codec.EncodeUInt32(buf, e.Error); err != nil {
		return err
	}
	return codec.EncodeString(buf, e.Reason)
}

// DecodeErrorMessage reads an ErrorMessage body.
func DecodeErrorMessage(buf *buffer.Buffer, maxReasonLen int) (ErrorMessage, error) {
	var e ErrorMessage
	if err := codec.DecodeUInt32(buf, &e.Error); err != nil {
		return ErrorMessage{}, err
	}
	reason, _, err := codec.DecodeString(buf, maxReasonLen)
	if err != nil {
		return ErrorMessage{}, err
	}
	e.Reason = reason
	return e, nil
}
