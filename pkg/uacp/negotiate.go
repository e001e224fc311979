package uacp

// MinBufferSize is the smallest receive/send buffer size this stack will
// negotiate down to; the buffer sizes this stack puts in a Hello or
// Acknowledge, and each negotiated buffer size, are raised to it if
// smaller, after the 0-means-unlimited minimum is taken (Part 6 §7.1.2
// recommends 8192 as a practical minimum every implementation should
// support).
const MinBufferSize = 8192

// ConnectionConfig is the fully negotiated set of sizing parameters for a
// connection, derived from a local config and a peer's Hello/Acknowledge.
type ConnectionConfig struct {
	ReceiveBufferSize uint32
	SendBufferSize    uint32
	MaxMessageSize    uint32
	MaxChunkCount     uint32
}

// clampFloor applies MinBufferSize as a hard floor to a buffer size.
func clampFloor(size uint32) uint32 {
	if size < MinBufferSize {
		return MinBufferSize
	}
	return size
}

// minNonZero returns the smaller of a and b, treating 0 as "unlimited" —
// a value of 0 from either side never wins over a concrete limit from the
// other, and only when both are 0 does the result stay 0 (unlimited).
func minNonZero(a, b uint32) uint32 {
	if a == 0 {
		return b
	}
	if b == 0 {
		return a
	}
	if a < b {
		return a
	}
	return b
}

// NegotiateServer computes a server's Acknowledge from its own local
// limits and the client's Hello. The server's local send buffer is
// bounded by what the client said it can receive; the server's receive
// buffer is its own local value and is not bounded by the client's send
// buffer. Message size and chunk count are bounded by the smaller of the
// two sides, with 0 meaning unlimited on either side.
func NegotiateServer(localRecv, localSend, localMaxMessage, localMaxChunks uint32, hello Hello) ConnectionConfig {
	return ConnectionConfig{
		ReceiveBufferSize: clampFloor(localRecv),
		SendBufferSize:    clampFloor(minNonZero(localSend, hello.ReceiveBufferSize)),
		MaxMessageSize:    minNonZero(localMaxMessage, hello.MaxMessageSize),
		MaxChunkCount:     minNonZero(localMaxChunks, hello.MaxChunkCount),
	}
}

// NegotiateClient computes the client's effective ConnectionConfig from
// its own Hello proposal and the server's Acknowledge reply. A compliant
// server's Acknowledge values are already each <= what the client
// proposed; this additionally re-applies the floor and the 0-means-
// unlimited rule defensively against a server that replies with something
// larger or zero where the client asked for a concrete bound.
func NegotiateClient(hello Hello, ack Acknowledge) ConnectionConfig {
	return ConnectionConfig{
		ReceiveBufferSize: clampFloor(minNonZero(hello.ReceiveBufferSize, ack.ReceiveBufferSize)),
		SendBufferSize:    clampFloor(minNonZero(hello.SendBufferSize, ack.SendBufferSize)),
		MaxMessageSize:    minNonZero(hello.MaxMessageSize, ack.MaxMessageSize),
		MaxChunkCount:     minNonZero(hello.MaxChunkCount, ack.MaxChunkCount),
	}
}
