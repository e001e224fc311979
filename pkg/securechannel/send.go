package securechannel

import (
	"encoding/binary"
	"fmt"

	"github.com/opcuacore/opcuacore/internal/log"
	"github.com/opcuacore/opcuacore/pkg/buffer"
	"github.com/opcuacore/opcuacore/pkg/codec"
	"github.com/opcuacore/opcuacore/pkg/ua"
	"github.com/opcuacore/opcuacore/pkg/uacp"
	"github.com/opcuacore/opcuacore/pkg/uaerr"
)

// ChunkParams carries everything needed to size, frame, and protect one
// outgoing secure-channel message (spec §4.4).
type ChunkParams struct {
	SecType       secureMessageType
	ChunkCapacity int // uacp negotiated send buffer size
	MaxChunks     int // 0 = unlimited
	ChannelID     uint32
	Mode          SecurityMode
	Crypto        CryptoProvider
	SendKeys      KeySet                   // symmetric send key set (MSG/CLO); unused for OPN
	PrivateKey    []byte                   // this side's private key, for asymmetric sign/decrypt (OPN only)
	PeerCert      Certificate              // peer's certificate, for asymmetric verify/encrypt (OPN only)
	TokenID       uint32                   // MSG/CLO only
	Asym          AsymmetricSecurityHeader // OPN only
	RequestID     uint32
	NextSeqNum    func() uint32 // advances and returns the channel's outgoing sequence number
}

// paddingFieldCount returns how many padding-size bytes precede the
// padding itself: 1 normally, 2 when the plain block size exceeds 256
// bytes (Part 6 §6.7.4, ExtraPaddingSize).
func paddingFieldCount(plainBlock int) int {
	if plainBlock > 256 {
		return 2
	}
	return 1
}

// securityHeaderSize returns the wire size of this message's security
// header, needed before any body is written to compute chunk capacity.
func securityHeaderSize(p ChunkParams) int {
	if p.SecType == secureTypeOPN {
		return 4 + len(p.Asym.SecurityPolicyURI) + 4 + len(p.Asym.SenderCertificate) + 4 + len(p.Asym.ReceiverCertThumbprint)
	}
	return 4 // symmetric: token_id
}

// maxBodySize computes the largest body slice that fits in one chunk
// after the unencrypted header, sequence header, signature, and padding
// overhead — the mantis-2897 revised formula from spec §4.4 step 1:
// max_body = plain_block * (body_region / cipher_block) - 8 - sig - padding_fields.
func maxBodySize(p ChunkParams) int {
	headerSize := uacp.HeaderSize + 4 + securityHeaderSize(p)
	bodyRegion := p.ChunkCapacity - headerSize
	if bodyRegion <= 0 {
		return 0
	}
	sigSize := 0
	if p.Mode != SecurityModeNone {
		sigSize = p.signatureSize()
	}

	switch p.Mode {
	case SecurityModeNone:
		return bodyRegion - 8
	case SecurityModeSign:
		return bodyRegion - 8 - sigSize
	default: // SignAndEncrypt
		plainBlock := p.Crypto.PlainBlockSize()
		cipherBlock := p.Crypto.CipherBlockSize()
		if cipherBlock <= 0 {
			cipherBlock = 1
		}
		blocks := bodyRegion / cipherBlock
		max := blocks*plainBlock - 8 - sigSize - paddingFieldCount(plainBlock)
		if max < 0 {
			return 0
		}
		return max
	}
}

// signatureSize returns the signature length for this chunk's security
// type: OPN signs asymmetrically with the local private key, MSG/CLO
// sign symmetrically with the token's send key (Part 6 §6.7.5/§6.7.6 —
// the asymmetric handshake and the symmetric per-token traffic use
// distinct primitives, never the same key material).
func (p ChunkParams) signatureSize() int {
	if p.SecType == secureTypeOPN {
		return p.Crypto.AsymmetricSignatureSize(p.PrivateKey)
	}
	return p.Crypto.SignatureSize(p.SendKeys)
}

// Send splits body into one or more chunks per p, protects each chunk
// (pad, sign, encrypt as the mode requires), and writes them to conn as
// a contiguous transaction. The caller must hold conn's SendPermit for
// the duration of this call.
//
// secType OPN is additionally constrained to a single chunk (spec §4.4:
// "the OPN message must fit in a single chunk"); if body does not fit,
// Send returns a uaerr of KindTooLarge without writing anything.
func Send(conn *uacp.Conn, p ChunkParams, body []byte) error {
	maxBody := maxBodySize(p)
	if maxBody <= 0 {
		return uaerr.New(uaerr.KindTooLarge, "securechannel: send: no room for body in a chunk").WithStatus(ua.BadRequestTooLarge)
	}

	maxChunks := p.MaxChunks
	if p.SecType == secureTypeOPN {
		maxChunks = 1
	}

	nChunks := (len(body) + maxBody - 1) / maxBody
	if nChunks == 0 {
		nChunks = 1
	}
	if maxChunks != 0 && nChunks > maxChunks {
		if p.SecType == secureTypeOPN {
			return uaerr.New(uaerr.KindTooLarge, "securechannel: send: OPN message does not fit in a single chunk").WithStatus(ua.BadRequestTooLarge)
		}
		if err := SendAbort(conn, p, ua.BadRequestTooLarge, "message exceeds max_chunks"); err != nil {
			log.Warn("securechannel: failed to send abort chunk", log.Err(err))
		}
		return uaerr.New(uaerr.KindTooLarge, fmt.Sprintf("securechannel: send: message needs %d chunks, max is %d", nChunks, maxChunks)).WithStatus(ua.BadRequestTooLarge)
	}

	for i := 0; i < nChunks; i++ {
		start := i * maxBody
		end := start + maxBody
		if end > len(body) {
			end = len(body)
		}
		final := i == nChunks-1
		if err := sendOneChunk(conn, p, body[start:end], final); err != nil {
			return err
		}
	}
	return nil
}

// SendAbort emits an Abort chunk carrying {error_code, reason} in place
// of the rest of an in-progress message (spec §4.4, §7). It consumes one
// sequence number like any other chunk.
func SendAbort(conn *uacp.Conn, p ChunkParams, errorCode ua.StatusCode, reason string) error {
	buf := buffer.New(len(reason) + 16)
	if err := codec.EncodeUInt32(buf, uint32(errorCode)); err != nil {
		return err
	}
	if err := codec.EncodeString(buf, reason); err != nil {
		return err
	}
	return sendOneChunkRaw(conn, p, buf.Bytes(), uacp.ChunkAbort)
}

func sendOneChunk(conn *uacp.Conn, p ChunkParams, bodySlice []byte, final bool) error {
	ct := uacp.ChunkIntermediate
	if final {
		ct = uacp.ChunkFinal
	}
	return sendOneChunkRaw(conn, p, bodySlice, ct)
}

// sendOneChunkRaw builds, protects, and writes a single chunk whose
// plaintext payload (after the sequence header) is payload. Used both
// for ordinary body chunks and for the Abort chunk's {code, reason} body.
//
// The chunk's header (message type, chunk type, final size) is patched
// into buf, and only then is the signature computed — the receiver
// verifies over the exact bytes that cross the wire, so signing over a
// placeholder header would never verify.
func sendOneChunkRaw(conn *uacp.Conn, p ChunkParams, payload []byte, chunkType uacp.ChunkType) error {
	buf := buffer.New(p.ChunkCapacity * 2) // generous headroom before padding/sig are known

	if _, err := buf.Write(make([]byte, uacp.HeaderSize)); err != nil { // reserved for the header, patched below
		return err
	}
	if err := codec.EncodeUInt32(buf, p.ChannelID); err != nil {
		return err
	}
	if p.SecType == secureTypeOPN {
		if err := encodeAsymmetricSecurityHeader(buf, p.Asym); err != nil {
			return err
		}
	} else {
		if err := encodeSymmetricSecurityHeader(buf, SymmetricSecurityHeader{TokenID: p.TokenID}); err != nil {
			return err
		}
	}

	seqPos := buf.Position()
	seqNum := p.NextSeqNum()
	if err := encodeSequenceHeader(buf, SequenceHeader{SequenceNumber: seqNum, RequestID: p.RequestID}); err != nil {
		return err
	}
	if _, err := buf.Write(payload); err != nil {
		return err
	}

	if p.Mode == SecurityModeSignAndEncrypt {
		if err := applyPadding(buf, p); err != nil {
			return err
		}
	}

	sigSize := 0
	if p.Mode != SecurityModeNone {
		sigSize = p.signatureSize()
	}
	if err := patchChunkHeader(buf, p.SecType.uacpType(), chunkType, uint32(buf.Length()+sigSize)); err != nil {
		return err
	}

	if p.Mode != SecurityModeNone {
		var sig []byte
		var err error
		if p.SecType == secureTypeOPN {
			sig, err = p.Crypto.AsymmetricSign(p.PrivateKey, buf.Bytes())
		} else {
			sig, err = p.Crypto.Sign(p.SendKeys, buf.Bytes())
		}
		if err != nil {
			return fmt.Errorf("securechannel: sign chunk: %w", err)
		}
		if _, err := buf.Write(sig); err != nil {
			return err
		}
	}

	plain := buf.Bytes()
	var wire []byte
	if p.Mode == SecurityModeSignAndEncrypt {
		var cipher []byte
		var err error
		if p.SecType == secureTypeOPN {
			cipher, err = p.Crypto.AsymmetricEncrypt(p.PeerCert, plain[seqPos:])
		} else {
			cipher, err = p.Crypto.Encrypt(p.SendKeys, plain[seqPos:])
		}
		if err != nil {
			return fmt.Errorf("securechannel: encrypt chunk: %w", err)
		}
		wire = append(append([]byte(nil), plain[:seqPos]...), cipher...)
	} else {
		wire = plain
	}

	return conn.WriteRaw(wire)
}

// patchChunkHeader overwrites the 8 reserved header bytes at the front
// of buf with the real message type, chunk type, and final size, then
// restores the write cursor to where it was.
func patchChunkHeader(buf *buffer.Buffer, mt uacp.MessageType, ct uacp.ChunkType, size uint32) error {
	savedPos := buf.Position()
	if err := buf.SetPosition(0); err != nil {
		return err
	}
	if _, err := buf.Write(mt[:]); err != nil {
		return err
	}
	if err := codec.EncodeByte(buf, byte(ct)); err != nil {
		return err
	}
	if err := codec.EncodeUInt32(buf, size); err != nil {
		return err
	}
	return buf.SetPosition(savedPos)
}

// applyPadding appends the padding-size byte(s) plus padding_size bytes
// of value padding_size's low byte, so that (payload-so-far + signature)
// becomes a multiple of the cipher's plain block size (spec §4.4 step 5).
// When plainBlock > 256 a second, "extra padding" byte carries the high
// byte of the padding size and is written after the padding bytes
// (Part 6 §6.7.4).
func applyPadding(buf *buffer.Buffer, p ChunkParams) error {
	plainBlock := p.Crypto.PlainBlockSize()
	if plainBlock <= 1 {
		return nil
	}
	sigSize := p.signatureSize()
	fields := paddingFieldCount(plainBlock)
	unpadded := buf.Length() + fields + sigSize
	paddingLen := (plainBlock - (unpadded % plainBlock)) % plainBlock

	var sz [2]byte
	binary.LittleEndian.PutUint16(sz[:], uint16(paddingLen))
	paddingByte := sz[0]

	out := make([]byte, 0, fields+paddingLen)
	out = append(out, paddingByte)
	for i := 0; i < paddingLen; i++ {
		out = append(out, paddingByte)
	}
	if fields == 2 {
		out = append(out, sz[1])
	}
	_, err := buf.Write(out)
	return err
}
