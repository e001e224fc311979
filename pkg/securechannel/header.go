package securechannel

import (
	"fmt"

	"github.com/opcuacore/opcuacore/pkg/buffer"
	"github.com/opcuacore/opcuacore/pkg/codec"
	"github.com/opcuacore/opcuacore/pkg/uacp"
)

// maxCertificateLen and maxPolicyURILen bound the asymmetric security
// header fields during decode, mirroring the endpoint-url bound uacp
// applies to Hello.
const (
	maxCertificateLen = 1 << 20
	maxPolicyURILen    = 4096
)

// SequenceHeader is the {sequence_number, request_id} pair written
// immediately after the security header in every chunk (Part 6 §6.7.2).
// Its offset within the chunk — sequence_number_position in spec
// terminology — is identical across every chunk of one message.
type SequenceHeader struct {
	SequenceNumber uint32
	RequestID      uint32
}

func encodeSequenceHeader(buf *buffer.Buffer, h SequenceHeader) error {
	if err := codec.EncodeUInt32(buf, h.SequenceNumber); err != nil {
		return err
	}
	return codec.EncodeUInt32(buf, h.RequestID)
}

func decodeSequenceHeader(buf *buffer.Buffer) (SequenceHeader, error) {
	var h SequenceHeader
	if err := codec.DecodeUInt32(buf, &h.SequenceNumber); err != nil {
		return SequenceHeader{}, err
	}
	if err := codec.DecodeUInt32(buf, &h.RequestID); err != nil {
		return SequenceHeader{}, err
	}
	return h, nil
}

// SymmetricSecurityHeader is the security header written for MSG/CLO
// chunks: just the token identifying the key set in use.
type SymmetricSecurityHeader struct {
	TokenID uint32
}

func encodeSymmetricSecurityHeader(buf *buffer.Buffer, h SymmetricSecurityHeader) error {
	return codec.EncodeUInt32(buf, h.TokenID)
}

func decodeSymmetricSecurityHeader(buf *buffer.Buffer) (SymmetricSecurityHeader, error) {
	var h SymmetricSecurityHeader
	if err := codec.DecodeUInt32(buf, &h.TokenID); err != nil {
		return SymmetricSecurityHeader{}, err
	}
	return h, nil
}

// AsymmetricSecurityHeader is the security header written for OPN
// chunks (Part 6 §6.7.2): the negotiated policy, this side's certificate
// (nil under SecurityModeNone), and the thumbprint of the certificate
// the peer should use to decrypt/verify this message.
type AsymmetricSecurityHeader struct {
	SecurityPolicyURI        string
	SenderCertificate        Certificate
	ReceiverCertThumbprint   []byte
}

func encodeAsymmetricSecurityHeader(buf *buffer.Buffer, h AsymmetricSecurityHeader) error {
	if err := codec.EncodeString(buf, h.SecurityPolicyURI); err != nil {
		return err
	}
	if err := codec.EncodeByteString(buf, h.SenderCertificate); err != nil {
		return err
	}
	return codec.EncodeByteString(buf, h.ReceiverCertThumbprint)
}

func decodeAsymmetricSecurityHeader(buf *buffer.Buffer) (AsymmetricSecurityHeader, error) {
	var h AsymmetricSecurityHeader
	policy, _, err := codec.DecodeString(buf, maxPolicyURILen)
	if err != nil {
		return AsymmetricSecurityHeader{}, fmt.Errorf("securechannel: decode policy uri: %w", err)
	}
	h.SecurityPolicyURI = policy
	cert, err := codec.DecodeByteString(buf, maxCertificateLen)
	if err != nil {
		return AsymmetricSecurityHeader{}, fmt.Errorf("securechannel: decode sender certificate: %w", err)
	}
	h.SenderCertificate = Certificate(cert)
	thumb, err := codec.DecodeByteString(buf, maxCertificateLen)
	if err != nil {
		return AsymmetricSecurityHeader{}, fmt.Errorf("securechannel: decode receiver thumbprint: %w", err)
	}
	h.ReceiverCertThumbprint = thumb
	return h, nil
}

// validatePresence enforces spec §4.5 step 3: None requires both
// certificate fields empty; Sign/SignAndEncrypt require both present.
func (h AsymmetricSecurityHeader) validatePresence(mode SecurityMode) error {
	certPresent := len(h.SenderCertificate) > 0
	thumbPresent := len(h.ReceiverCertThumbprint) > 0
	if mode == SecurityModeNone {
		if certPresent || thumbPresent {
			return fmt.Errorf("securechannel: security mode None must carry no certificate fields")
		}
		return nil
	}
	if !certPresent || !thumbPresent {
		return fmt.Errorf("securechannel: security mode %s requires both certificate fields", mode)
	}
	return nil
}

// secureMessageType maps a uacp.MessageType to the secure_type enum
// spec §3 calls out for the chunk currently being built/parsed.
type secureMessageType int

const (
	secureTypeMSG secureMessageType = iota
	secureTypeOPN
	secureTypeCLO
)

func (t secureMessageType) uacpType() uacp.MessageType {
	switch t {
	case secureTypeOPN:
		return uacp.MessageTypeOpenChannel
	case secureTypeCLO:
		return uacp.MessageTypeCloseChannel
	default:
		return uacp.MessageTypeSecureConversation
	}
}
