package log

import (
	"context"
	"time"
)

type contextKey struct{}

var logContextKey = contextKey{}

// ChannelContext holds request-scoped fields identifying which secure
// channel, token, and request a log line belongs to — the correlation a
// reader needs to follow one OPC UA exchange through a busy log.
type ChannelContext struct {
	ChannelID  uint32
	TokenID    uint32
	RequestID  uint32
	RemoteAddr string
	TraceID    string
	SpanID     string
	StartTime  time.Time
}

// WithContext returns a copy of ctx carrying cc.
func WithContext(ctx context.Context, cc *ChannelContext) context.Context {
	return context.WithValue(ctx, logContextKey, cc)
}

// FromContext retrieves the ChannelContext from ctx, or nil if absent.
func FromContext(ctx context.Context) *ChannelContext {
	if ctx == nil {
		return nil
	}
	cc, _ := ctx.Value(logContextKey).(*ChannelContext)
	return cc
}

// NewChannelContext creates a ChannelContext for a newly accepted
// connection, before a secure channel id has been assigned.
func NewChannelContext(remoteAddr string) *ChannelContext {
	return &ChannelContext{RemoteAddr: remoteAddr, StartTime: time.Now()}
}

// Clone returns a shallow copy of cc.
func (cc *ChannelContext) Clone() *ChannelContext {
	if cc == nil {
		return nil
	}
	clone := *cc
	return &clone
}

// WithChannel returns a copy with ChannelID set.
func (cc *ChannelContext) WithChannel(channelID uint32) *ChannelContext {
	clone := cc.Clone()
	if clone != nil {
		clone.ChannelID = channelID
	}
	return clone
}

// WithToken returns a copy with TokenID set.
func (cc *ChannelContext) WithToken(tokenID uint32) *ChannelContext {
	clone := cc.Clone()
	if clone != nil {
		clone.TokenID = tokenID
	}
	return clone
}

// WithRequest returns a copy with RequestID set.
func (cc *ChannelContext) WithRequest(requestID uint32) *ChannelContext {
	clone := cc.Clone()
	if clone != nil {
		clone.RequestID = requestID
	}
	return clone
}

// WithTrace returns a copy with trace/span ids set.
func (cc *ChannelContext) WithTrace(traceID, spanID string) *ChannelContext {
	clone := cc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the elapsed time since StartTime in milliseconds.
func (cc *ChannelContext) DurationMs() float64 {
	if cc == nil || cc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(cc.StartTime).Microseconds()) / 1000.0
}
