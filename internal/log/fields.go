package log

import "log/slog"

// Standard field keys for structured logging across the transport and
// secure-channel layers.
const (
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	KeyChannelID  = "channel_id"
	KeyTokenID    = "token_id"
	KeyRequestID  = "request_id"
	KeySequenceNo = "sequence_number"

	KeyRemoteAddr   = "remote_addr"
	KeyMessageType  = "message_type"
	KeyChunkCount   = "chunk_count"
	KeyChunkSize    = "chunk_size"
	KeyBytesSent    = "bytes_sent"
	KeyBytesRecv    = "bytes_received"
	KeySecurityMode = "security_mode"
	KeyPolicyURI    = "security_policy_uri"

	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyStatusCode = "status_code"
)

func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }
func SpanID(id string) slog.Attr  { return slog.String(KeySpanID, id) }

func ChannelID(id uint32) slog.Attr  { return slog.Any(KeyChannelID, id) }
func TokenID(id uint32) slog.Attr    { return slog.Any(KeyTokenID, id) }
func RequestID(id uint32) slog.Attr  { return slog.Any(KeyRequestID, id) }
func SequenceNo(n uint32) slog.Attr  { return slog.Any(KeySequenceNo, n) }
func RemoteAddr(addr string) slog.Attr { return slog.String(KeyRemoteAddr, addr) }

func MessageType(t string) slog.Attr   { return slog.String(KeyMessageType, t) }
func ChunkCount(n int) slog.Attr       { return slog.Int(KeyChunkCount, n) }
func ChunkSize(n int) slog.Attr        { return slog.Int(KeyChunkSize, n) }
func BytesSent(n int) slog.Attr        { return slog.Int(KeyBytesSent, n) }
func BytesRecv(n int) slog.Attr        { return slog.Int(KeyBytesRecv, n) }
func SecurityMode(mode string) slog.Attr { return slog.String(KeySecurityMode, mode) }
func PolicyURI(uri string) slog.Attr   { return slog.String(KeyPolicyURI, uri) }

func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

func StatusCode(code uint32) slog.Attr { return slog.Any(KeyStatusCode, code) }
