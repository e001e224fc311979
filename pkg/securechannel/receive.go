package securechannel

import (
	"fmt"
	"time"

	"github.com/opcuacore/opcuacore/pkg/buffer"
	"github.com/opcuacore/opcuacore/pkg/codec"
	"github.com/opcuacore/opcuacore/pkg/ua"
	"github.com/opcuacore/opcuacore/pkg/uacp"
	"github.com/opcuacore/opcuacore/pkg/uaerr"
)

// DecodedChunk is one incoming chunk after security processing: its
// sequence/request metadata and the plaintext body with padding,
// signature, and every header already stripped (spec §4.5 steps 1-7).
type DecodedChunk struct {
	SecType   secureMessageType
	ChunkType uacp.ChunkType
	ChannelID uint32
	RequestID uint32
	Asym      AsymmetricSecurityHeader // populated only when SecType == secureTypeOPN
	Body      []byte                   // only meaningful when ChunkType != ChunkAbort
	AbortCode ua.StatusCode
	AbortText string
}

// ReceiveParams carries the per-channel state Receive needs to validate
// and unprotect one incoming chunk.
type ReceiveParams struct {
	Mode              SecurityMode
	Crypto            CryptoProvider
	ExpectedChannelID uint32 // 0 before the first OPN response assigns one
	PrivateKey        []byte // this side's private key, for OPN asymmetric decrypt
	KeysForToken      func(tokenID uint32, now time.Time) (KeySets, error)
	ValidateSeqNum    func(got uint32) error
	ResetSeqNum       func(got uint32) // OPN only
	// ResolveMode looks up the mode an endpoint has configured for a
	// SecurityPolicyURI, used only for OPN: the server does not know
	// which mode the client picked until it has decoded the asymmetric
	// security header's (unencrypted) policy URI. When set, it overrides
	// Mode for the remainder of this call. Clients, who already know
	// their own chosen mode, leave this nil.
	ResolveMode func(policyURI string) (SecurityMode, error)
}

// Receive validates and unprotects a raw uacp.Chunk into a DecodedChunk.
// It does not assemble multi-chunk messages; callers drive that with an
// Assembler.
func Receive(chunk uacp.Chunk, p ReceiveParams) (DecodedChunk, error) {
	var secType secureMessageType
	switch chunk.Header.MessageType {
	case uacp.MessageTypeOpenChannel:
		secType = secureTypeOPN
	case uacp.MessageTypeCloseChannel:
		secType = secureTypeCLO
	case uacp.MessageTypeSecureConversation:
		secType = secureTypeMSG
	default:
		return DecodedChunk{}, uaerr.New(uaerr.KindInvalidReceivedParameter,
			fmt.Sprintf("securechannel: unexpected message type %q", chunk.Header.MessageType.String())).
			WithStatus(ua.BadTcpMessageTypeInvalid)
	}

	buf, err := bufferFromChunkBody(chunk.Body)
	if err != nil {
		return DecodedChunk{}, err
	}

	var channelID uint32
	if err := codec.DecodeUInt32(buf, &channelID); err != nil {
		return DecodedChunk{}, uaerr.Wrap(uaerr.KindDecodingError, "securechannel: decode channel id", err).WithStatus(ua.BadDecodingError)
	}
	if p.ExpectedChannelID != 0 && channelID != p.ExpectedChannelID {
		return DecodedChunk{}, uaerr.New(uaerr.KindInvalidReceivedParameter,
			fmt.Sprintf("securechannel: channel id %d does not match %d", channelID, p.ExpectedChannelID)).
			WithStatus(ua.BadSecureChannelIDInvalid)
	}

	mode := p.Mode
	var keys KeySets
	var senderCert Certificate
	var asymHdr AsymmetricSecurityHeader
	if secType == secureTypeOPN {
		asym, err := decodeAsymmetricSecurityHeader(buf)
		if err != nil {
			return DecodedChunk{}, uaerr.Wrap(uaerr.KindDecodingError, "securechannel: decode asymmetric security header", err).WithStatus(ua.BadDecodingError)
		}
		if p.ResolveMode != nil {
			mode, err = p.ResolveMode(asym.SecurityPolicyURI)
			if err != nil {
				return DecodedChunk{}, uaerr.Wrap(uaerr.KindInvalidReceivedParameter, "securechannel: resolve security mode", err).WithStatus(ua.BadSecurityChecksFailed)
			}
		}
		if err := asym.validatePresence(mode); err != nil {
			return DecodedChunk{}, uaerr.Wrap(uaerr.KindInvalidReceivedParameter, err.Error(), err).WithStatus(ua.BadSecurityChecksFailed)
		}
		senderCert = asym.SenderCertificate
		asymHdr = asym
	} else {
		sym, err := decodeSymmetricSecurityHeader(buf)
		if err != nil {
			return DecodedChunk{}, uaerr.Wrap(uaerr.KindDecodingError, "securechannel: decode symmetric security header", err).WithStatus(ua.BadDecodingError)
		}
		keys, err = p.KeysForToken(sym.TokenID, time.Now())
		if err != nil {
			return DecodedChunk{}, uaerr.Wrap(uaerr.KindInvalidReceivedParameter, "securechannel: resolve token", err).WithStatus(ua.BadSecureChannelIDInvalid)
		}
	}

	seqStart := buf.Position()
	rest := buf.Bytes()[seqStart:]

	var plainRest []byte
	if mode == SecurityModeSignAndEncrypt {
		if secType == secureTypeOPN {
			plainRest, err = p.Crypto.AsymmetricDecrypt(p.PrivateKey, rest)
		} else {
			plainRest, err = p.Crypto.Decrypt(keys.Recv, rest)
		}
		if err != nil {
			return DecodedChunk{}, uaerr.Wrap(uaerr.KindDecodingError, "securechannel: decrypt chunk", err).WithStatus(ua.BadSecurityChecksFailed)
		}
	} else {
		plainRest = rest
	}

	if mode != SecurityModeNone {
		sigSize := p.Crypto.SignatureSize(keys.Recv)
		if secType == secureTypeOPN {
			sigSize = p.Crypto.AsymmetricSignatureSize(p.PrivateKey)
		}
		if len(plainRest) < sigSize {
			return DecodedChunk{}, uaerr.New(uaerr.KindInvalidReceivedParameter, "securechannel: chunk shorter than signature").WithStatus(ua.BadSecurityChecksFailed)
		}
		// The sender signs over its own 8-byte chunk header too, but
		// uacp.Conn.ReadChunk already stripped that header from
		// chunk.Body — reconstruct it identically before verifying.
		hdrBuf := buffer.New(uacp.HeaderSize)
		if err := uacp.EncodeChunkHeader(hdrBuf, chunk.Header); err != nil {
			return DecodedChunk{}, uaerr.Wrap(uaerr.KindDecodingError, "securechannel: rebuild chunk header", err).WithStatus(ua.BadDecodingError)
		}
		signedRegion := append(append(append([]byte(nil), hdrBuf.Bytes()...), buf.Bytes()[:seqStart]...), plainRest[:len(plainRest)-sigSize]...)
		sig := plainRest[len(plainRest)-sigSize:]
		if secType == secureTypeOPN {
			err = p.Crypto.AsymmetricVerify(senderCert, signedRegion, sig)
		} else {
			err = p.Crypto.Verify(keys.Recv, signedRegion, sig)
		}
		if err != nil {
			return DecodedChunk{}, uaerr.Wrap(uaerr.KindInvalidReceivedParameter, "securechannel: signature verification failed", err).WithStatus(ua.BadSecurityChecksFailed)
		}
		plainRest = plainRest[:len(plainRest)-sigSize]
	}

	rbuf, err := bufferFromChunkBody(plainRest)
	if err != nil {
		return DecodedChunk{}, err
	}
	seqHdr, err := decodeSequenceHeader(rbuf)
	if err != nil {
		return DecodedChunk{}, uaerr.Wrap(uaerr.KindDecodingError, "securechannel: decode sequence header", err).WithStatus(ua.BadDecodingError)
	}

	if secType == secureTypeOPN {
		p.ResetSeqNum(seqHdr.SequenceNumber)
	} else if err := p.ValidateSeqNum(seqHdr.SequenceNumber); err != nil {
		return DecodedChunk{}, uaerr.Wrap(uaerr.KindInvalidReceivedParameter, err.Error(), err).WithStatus(ua.BadSequenceNumberInvalid)
	}

	body := rbuf.Bytes()[rbuf.Position():]
	if mode == SecurityModeSignAndEncrypt {
		body, err = stripPadding(body, p.Crypto.PlainBlockSize())
		if err != nil {
			return DecodedChunk{}, uaerr.Wrap(uaerr.KindDecodingError, "securechannel: strip padding", err).WithStatus(ua.BadDecodingError)
		}
	}

	dc := DecodedChunk{
		SecType:   secType,
		ChunkType: chunk.Header.ChunkType,
		ChannelID: channelID,
		RequestID: seqHdr.RequestID,
		Asym:      asymHdr,
	}
	if chunk.Header.ChunkType == uacp.ChunkAbort {
		abuf, err := bufferFromChunkBody(body)
		if err != nil {
			return DecodedChunk{}, err
		}
		var code uint32
		if err := codec.DecodeUInt32(abuf, &code); err != nil {
			return DecodedChunk{}, uaerr.Wrap(uaerr.KindDecodingError, "securechannel: decode abort code", err).WithStatus(ua.BadDecodingError)
		}
		reason, _, err := codec.DecodeString(abuf, 4096)
		if err != nil {
			return DecodedChunk{}, uaerr.Wrap(uaerr.KindDecodingError, "securechannel: decode abort reason", err).WithStatus(ua.BadDecodingError)
		}
		dc.AbortCode = ua.StatusCode(code)
		dc.AbortText = reason
		return dc, nil
	}
	dc.Body = body
	return dc, nil
}

// stripPadding removes the trailing padding-size byte(s) and padding
// bytes appended by applyPadding, returning the pure body.
func stripPadding(plain []byte, plainBlock int) ([]byte, error) {
	if plainBlock <= 1 || len(plain) == 0 {
		return plain, nil
	}
	fields := paddingFieldCount(plainBlock)
	if fields == 1 {
		if len(plain) < 1 {
			return nil, fmt.Errorf("securechannel: chunk too short for padding byte")
		}
		paddingLen := int(plain[len(plain)-1])
		if len(plain) < 1+paddingLen {
			return nil, fmt.Errorf("securechannel: padding length %d exceeds chunk", paddingLen)
		}
		return plain[:len(plain)-1-paddingLen], nil
	}
	if len(plain) < 2 {
		return nil, fmt.Errorf("securechannel: chunk too short for extended padding")
	}
	low := int(plain[len(plain)-2])
	high := int(plain[len(plain)-1])
	paddingLen := low | (high << 8)
	if len(plain) < 2+paddingLen {
		return nil, fmt.Errorf("securechannel: padding length %d exceeds chunk", paddingLen)
	}
	return plain[:len(plain)-2-paddingLen], nil
}

// bufferFromChunkBody wraps already-received bytes in a read-positioned
// Buffer.
func bufferFromChunkBody(data []byte) (*buffer.Buffer, error) {
	buf := buffer.New(len(data))
	if _, err := buf.Write(data); err != nil {
		return nil, uaerr.Wrap(uaerr.KindDecodingError, "securechannel: wrap chunk body", err).WithStatus(ua.BadDecodingError)
	}
	buf.Reset()
	return buf, nil
}
