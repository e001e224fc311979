package securechannel

import (
	"sync"

	"github.com/opcuacore/opcuacore/internal/log"
	"github.com/opcuacore/opcuacore/pkg/uacp"
	"github.com/opcuacore/opcuacore/pkg/uaerr"
)

// AssembledMessage is one complete logical message, concatenated from all
// the chunks that carried it (spec §4.5 step 9).
type AssembledMessage struct {
	RequestID uint32
	Body      []byte
}

// Assembler reassembles the chunk stream of one secure channel into
// complete messages (spec §4.5 step 8). Feed holds a mutex for the whole
// call, so concurrent callers are serialised; the endpoint feeds each
// assembler from a single read loop.
type Assembler struct {
	mu        sync.Mutex
	pending   bool
	requestID uint32
	bodies    [][]byte
}

// NewAssembler returns an empty Assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Feed adds one decoded chunk to the assembly. It returns a complete
// AssembledMessage with ready == true once a Final chunk closes out a
// message. An Abort chunk discards the in-progress assembly and returns
// the abort as an error; the caller surfaces this as AbortRequest rather
// than delivering a decoded service object.
func (a *Assembler) Feed(dc DecodedChunk) (AssembledMessage, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pending && dc.RequestID != a.requestID {
		// A different request id arrived mid-assembly: the peer has
		// implicitly abandoned the older partial message (spec §4.5
		// step 8). Discard it and let this chunk start a fresh one.
		log.Warn("securechannel: discarding partial message for new request id",
			log.RequestID(a.requestID))
		a.reset()
	}

	switch dc.ChunkType {
	case uacp.ChunkAbort:
		a.reset()
		return AssembledMessage{}, false, uaerr.New(uaerr.KindDisconnected, abortMessage(dc)).WithStatus(dc.AbortCode)

	case uacp.ChunkIntermediate:
		if !a.pending {
			a.pending = true
			a.requestID = dc.RequestID
		}
		a.bodies = append(a.bodies, dc.Body)
		return AssembledMessage{}, false, nil

	default: // uacp.ChunkFinal
		requestID := dc.RequestID
		bodies := a.bodies
		a.reset()

		total := len(dc.Body)
		for _, b := range bodies {
			total += len(b)
		}
		body := make([]byte, 0, total)
		for _, b := range bodies {
			body = append(body, b...)
		}
		body = append(body, dc.Body...)
		return AssembledMessage{RequestID: requestID, Body: body}, true, nil
	}
}

func (a *Assembler) reset() {
	a.pending = false
	a.requestID = 0
	a.bodies = nil
}

func abortMessage(dc DecodedChunk) string {
	if dc.AbortText != "" {
		return "securechannel: message aborted by peer: " + dc.AbortText
	}
	return "securechannel: message aborted by peer"
}
