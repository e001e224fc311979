package securechannel

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/opcuacore/opcuacore/internal/log"
	"github.com/opcuacore/opcuacore/internal/metrics"
	"github.com/opcuacore/opcuacore/pkg/buffer"
	"github.com/opcuacore/opcuacore/pkg/registry"
	"github.com/opcuacore/opcuacore/pkg/ua"
	"github.com/opcuacore/opcuacore/pkg/uacp"
	"github.com/opcuacore/opcuacore/pkg/uaerr"
)

// EventKind enumerates the notifications an Endpoint delivers to its
// owner (spec §6 "Upward callback interface").
type EventKind int

const (
	EventListenerOpened EventKind = iota
	EventListenerClosed
	EventConnectionNew
	EventConnectionRenewed
	EventConnectionDisconnected
	EventRequest
	EventPartialRequest
	EventAbortRequest
	EventDecoderError
)

func (k EventKind) String() string {
	switch k {
	case EventListenerOpened:
		return "listener_opened"
	case EventListenerClosed:
		return "listener_closed"
	case EventConnectionNew:
		return "connection_new"
	case EventConnectionRenewed:
		return "connection_renewed"
	case EventConnectionDisconnected:
		return "connection_disconnected"
	case EventRequest:
		return "request"
	case EventPartialRequest:
		return "partial_request"
	case EventAbortRequest:
		return "abort_request"
	case EventDecoderError:
		return "decoder_error"
	default:
		return "unknown"
	}
}

// Event is one notification delivered to an Endpoint's OnEvent callback.
// Fields not meaningful for a given Kind are left zero.
type Event struct {
	Kind      EventKind
	ChannelID uint32
	Status    ua.StatusCode
	RequestID uint32
	Body      []byte // the assembled message body, for Request only
	// TypeID and Object are populated for EventRequest when the assembled
	// body's leading type NodeId resolved through the Endpoint's
	// TypeRegistry (spec §4.5 step 9); otherwise TypeID is the zero value
	// and Object is nil, and the caller falls back to decoding Body itself.
	TypeID ua.ExpandedNodeId
	Object any
}

// OnEventFunc is the upward callback an Endpoint owner registers to learn
// about listener lifecycle, connection lifecycle, and decoded messages.
type OnEventFunc func(Event)

// EndpointState is the server-side listener state machine (spec §4.7
// "Endpoint (server)").
type EndpointState int

const (
	EndpointClosed EndpointState = iota
	EndpointOpened
	EndpointError
)

func (s EndpointState) String() string {
	switch s {
	case EndpointClosed:
		return "closed"
	case EndpointOpened:
		return "opened"
	case EndpointError:
		return "error"
	default:
		return "unknown"
	}
}

// EndpointConfig carries everything an Endpoint needs to accept and
// secure incoming connections.
type EndpointConfig struct {
	URL            string // opc.tcp://host:port/path, validated before Open
	Limits         uacp.LocalLimits
	Server         ServerConfig
	MaxConnections int // OPCUA_ENDPOINT_MAXCONNECTIONS; 0 = unlimited
	PrivateKey     []byte
	Metrics        *metrics.Transport // optional; nil disables instrumentation
	// TypeRegistry resolves an assembled message's leading type NodeId to
	// a decoded service object (spec §4.5 step 9, §6). Nil disables
	// dispatch-time decoding: EventRequest still fires with the raw Body,
	// just without TypeID/Object populated.
	TypeRegistry *registry.TypeRegistry
	// Namespaces resolves a namespace-index-only type NodeId to the URI
	// TypeRegistry indexes by. Nil restricts resolution to messages whose
	// type NodeId already carries an explicit NamespaceUri.
	Namespaces *registry.NamespaceTable
}

// Endpoint accepts transport connections on one listening socket,
// performs the UACP handshake and OpenSecureChannel exchange on each,
// and dispatches decoded messages upward through OnEvent (spec §2 table
// "Endpoint/Listener glue", §4.7). It maintains a bounded list of live
// secure connections, rejecting new ones once MaxConnections is reached
// (SPEC_FULL.md §11 / OPCUA_ENDPOINT_MAXCONNECTIONS).
type Endpoint struct {
	cfg     EndpointConfig
	onEvent OnEventFunc

	mu    sync.RWMutex
	state EndpointState
	conns map[uint32]*Channel

	listener net.Listener
	wg       sync.WaitGroup
}

// NewEndpoint constructs a closed Endpoint; call Open to start accepting.
func NewEndpoint(cfg EndpointConfig, onEvent OnEventFunc) *Endpoint {
	return &Endpoint{
		cfg:     cfg,
		onEvent: onEvent,
		state:   EndpointClosed,
		conns:   make(map[uint32]*Channel),
	}
}

// State returns the endpoint's current lifecycle state.
func (ep *Endpoint) State() EndpointState {
	ep.mu.RLock()
	defer ep.mu.RUnlock()
	return ep.state
}

// ActiveConnections returns the number of secure channels currently open.
func (ep *Endpoint) ActiveConnections() int {
	ep.mu.RLock()
	defer ep.mu.RUnlock()
	return len(ep.conns)
}

// ListenAddr returns the address the endpoint is bound to, or "" before
// Open or after Close. Useful when Open was called with an ephemeral port
// (":0") and the caller needs to learn what was actually assigned.
func (ep *Endpoint) ListenAddr() string {
	ep.mu.RLock()
	defer ep.mu.RUnlock()
	if ep.listener == nil {
		return ""
	}
	return ep.listener.Addr().String()
}

func (ep *Endpoint) emit(ev Event) {
	if ep.onEvent != nil {
		ep.onEvent(ev)
	}
}

// Open starts listening on network/addr and accepts connections until
// ctx is cancelled or Close is called. It returns once the listener is
// bound; acceptance runs on a background goroutine.
func (ep *Endpoint) Open(ctx context.Context, network, addr string) error {
	l, err := net.Listen(network, addr)
	if err != nil {
		ep.mu.Lock()
		ep.state = EndpointError
		ep.mu.Unlock()
		return uaerr.Wrap(uaerr.KindInvalidState, "securechannel: endpoint: listen", err).WithStatus(ua.BadTcpInternalError)
	}

	ep.mu.Lock()
	ep.listener = l
	ep.state = EndpointOpened
	ep.mu.Unlock()

	ep.emit(Event{Kind: EventListenerOpened})
	log.Info("securechannel: endpoint opened", log.RemoteAddr(l.Addr().String()))

	ep.wg.Add(1)
	go ep.acceptLoop(ctx)
	return nil
}

// Close stops accepting new connections and tears down every live
// channel.
func (ep *Endpoint) Close() error {
	ep.mu.Lock()
	if ep.state == EndpointClosed {
		ep.mu.Unlock()
		return nil
	}
	ep.state = EndpointClosed
	l := ep.listener
	conns := make([]*Channel, 0, len(ep.conns))
	for _, ch := range ep.conns {
		conns = append(conns, ch)
	}
	ep.conns = make(map[uint32]*Channel)
	ep.mu.Unlock()

	if l != nil {
		_ = l.Close()
	}
	for _, ch := range conns {
		_ = ch.Conn().Close()
	}
	ep.wg.Wait()

	ep.emit(Event{Kind: EventListenerClosed})
	return nil
}

func (ep *Endpoint) acceptLoop(ctx context.Context) {
	defer ep.wg.Done()
	for {
		nc, err := ep.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if ep.State() == EndpointClosed {
				return
			}
			log.Warn("securechannel: endpoint accept error", log.Err(err))
			continue
		}

		if ep.cfg.MaxConnections > 0 && ep.ActiveConnections() >= ep.cfg.MaxConnections {
			log.Warn("securechannel: endpoint rejecting connection: at capacity",
				log.RemoteAddr(nc.RemoteAddr().String()))
			_ = nc.Close()
			continue
		}

		ep.wg.Add(1)
		go ep.handleConn(ctx, nc)
	}
}

func (ep *Endpoint) handleConn(ctx context.Context, nc net.Conn) {
	defer ep.wg.Done()

	conn, err := uacp.Accept(nc, ep.cfg.Limits, func(url string) bool { return url == ep.cfg.URL })
	if err != nil {
		log.Warn("securechannel: endpoint handshake failed", log.Err(err))
		return
	}
	conn.SetMetrics(ep.cfg.Metrics)

	sc := NewSecurityContext(ep.cfg.Server.Crypto, SecurityModeNone, "")
	ch := NewChannel(conn, sc)
	ch.SetMetrics(ep.cfg.Metrics)

	var channelID uint32
	defer func() {
		ep.mu.Lock()
		if channelID != 0 {
			delete(ep.conns, channelID)
		}
		ep.mu.Unlock()
		_ = conn.Close()
		sc.Destroy()
		if channelID != 0 {
			ep.cfg.Metrics.RecordChannelClosed()
		}
		ep.emit(Event{Kind: EventConnectionDisconnected, ChannelID: channelID})
	}()

	assembler := NewAssembler()
	for {
		chunk, err := conn.ReadChunk()
		if err != nil {
			return
		}

		if chunk.Header.MessageType == uacp.MessageTypeOpenChannel {
			if err := ch.ServeOneOpen(ctx, ep.cfg.Server, chunk, ep.cfg.PrivateKey); err != nil {
				chunk.Release()
				log.Warn("securechannel: opn handshake failed", log.Err(err))
				return
			}
			chunk.Release()

			newID := ch.SecurityContext().CurrentToken().ChannelID
			renewed := channelID != 0
			channelID = newID
			ep.mu.Lock()
			ep.conns[channelID] = ch
			ep.mu.Unlock()
			if renewed {
				ep.emit(Event{Kind: EventConnectionRenewed, ChannelID: channelID})
			} else {
				ep.emit(Event{Kind: EventConnectionNew, ChannelID: channelID})
				ep.cfg.Metrics.RecordChannelOpened()
			}
			continue
		}

		dc, err := Receive(chunk, ReceiveParams{
			Mode:              ch.SecurityContext().Mode(),
			Crypto:            ep.cfg.Server.Crypto,
			ExpectedChannelID: channelID,
			PrivateKey:        ep.cfg.PrivateKey,
			KeysForToken:      ch.SecurityContext().KeysForToken,
			ValidateSeqNum:    ch.SecurityContext().ValidateReceivedSeqNum,
			ResetSeqNum:       ch.SecurityContext().ResetReceivedSeqNum,
		})
		chunk.Release()
		if err != nil {
			if chunk.Header.MessageType == uacp.MessageTypeCloseChannel && channelID == 0 {
				// A CLO for a channel this endpoint never established is a
				// no-op, not an error (SPEC_FULL.md §11).
				continue
			}
			ep.cfg.Metrics.RecordDecodeError("receive")
			ep.emit(Event{Kind: EventDecoderError, ChannelID: channelID})
			return
		}

		if dc.SecType == secureTypeCLO {
			return
		}

		msg, ready, err := assembler.Feed(dc)
		if err != nil {
			ep.cfg.Metrics.RecordAbort("assembler")
			ep.emit(Event{Kind: EventAbortRequest, ChannelID: channelID, RequestID: dc.RequestID})
			continue
		}
		if !ready {
			ep.emit(Event{Kind: EventPartialRequest, ChannelID: channelID, RequestID: dc.RequestID})
			continue
		}

		ev := Event{Kind: EventRequest, ChannelID: channelID, RequestID: msg.RequestID, Body: msg.Body}
		if ep.cfg.TypeRegistry != nil {
			if typeID, obj, err := decodeDispatchObject(msg.Body, ep.cfg.TypeRegistry, ep.cfg.Namespaces); err == nil {
				ev.TypeID = typeID
				ev.Object = obj
			} else {
				log.Warn("securechannel: endpoint: dispatch decode failed, delivering raw body", log.Err(err))
			}
		}
		ep.emit(ev)
	}
}

// decodeDispatchObject reads the type NodeId leading an assembled service
// message body and resolves it through reg to a decoded service object
// (spec §4.5 step 9). Unlike ExtensionObject's wire shape, a service
// message's body is the bare type NodeId immediately followed by that
// type's encoded fields — no encoding byte, no ByteString length prefix —
// so this does not go through DecodeExtensionObjectWithRegistry.
func decodeDispatchObject(body []byte, reg *registry.TypeRegistry, ns *registry.NamespaceTable) (ua.ExpandedNodeId, any, error) {
	buf := buffer.New(len(body))
	if _, err := buf.Write(body); err != nil {
		return ua.ExpandedNodeId{}, nil, fmt.Errorf("securechannel: dispatch: wrap body: %w", err)
	}
	buf.Reset()

	typeID, err := ua.DecodeExpandedNodeId(buf, len(body))
	if err != nil {
		return ua.ExpandedNodeId{}, nil, fmt.Errorf("securechannel: dispatch: decode type id: %w", err)
	}

	uri := typeID.NamespaceURI
	if !typeID.HasNamespaceURI {
		if ns == nil {
			return ua.ExpandedNodeId{}, nil, fmt.Errorf("securechannel: dispatch: namespace index %d requires a namespace table", typeID.NodeId.Namespace)
		}
		uri, err = registry.ResolveNamespace(ns, typeID.NodeId.Namespace)
		if err != nil {
			return ua.ExpandedNodeId{}, nil, fmt.Errorf("securechannel: dispatch: %w", err)
		}
	}

	t, ok := reg.Lookup(uri, typeID.NodeId.Numeric)
	if !ok {
		return ua.ExpandedNodeId{}, nil, fmt.Errorf("securechannel: dispatch: no encodeable type registered for namespace %q binary_encoding_id %d", uri, typeID.NodeId.Numeric)
	}

	obj, err := t.Decode(buf, len(body))
	if err != nil {
		return ua.ExpandedNodeId{}, nil, fmt.Errorf("securechannel: dispatch: decode body: %w", err)
	}
	return typeID, obj, nil
}
