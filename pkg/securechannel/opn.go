package securechannel

import (
	"bytes"
	"fmt"
	"time"

	"github.com/opcuacore/opcuacore/internal/log"
	"github.com/opcuacore/opcuacore/pkg/buffer"
	"github.com/opcuacore/opcuacore/pkg/codec"
	"github.com/opcuacore/opcuacore/pkg/ua"
	"github.com/opcuacore/opcuacore/pkg/uaerr"
)

// OpenRequest is the body of an OpenSecureChannel request (spec §4.6). The
// full service stack is out of scope; this package encodes and decodes
// just the fields the handshake itself needs, directly after the sequence
// header, the way §4.4 step 4 treats any message body.
type OpenRequest struct {
	ClientProtocolVersion uint32
	RequestType           TokenRequestType
	SecurityMode          SecurityMode
	ClientNonce           []byte
	RequestedLifetime     time.Duration
}

// OpenResponse is the body of an OpenSecureChannel response.
type OpenResponse struct {
	ServerProtocolVersion uint32
	Token                 SecurityToken
	ServerNonce           []byte
}

const maxNonceLen = 1024

func EncodeOpenRequest(buf *buffer.Buffer, r OpenRequest) error {
	if err := codec.EncodeUInt32(buf, r.ClientProtocolVersion); err != nil {
		return err
	}
	if err := codec.EncodeUInt32(buf, uint32(r.RequestType)); err != nil {
		return err
	}
	if err := codec.EncodeUInt32(buf, uint32(r.SecurityMode)); err != nil {
		return err
	}
	if err := codec.EncodeByteString(buf, r.ClientNonce); err != nil {
		return err
	}
	return codec.EncodeInt64(buf, int64(r.RequestedLifetime/time.Millisecond))
}

func DecodeOpenRequest(buf *buffer.Buffer) (OpenRequest, error) {
	var r OpenRequest
	if err := codec.DecodeUInt32(buf, &r.ClientProtocolVersion); err != nil {
		return OpenRequest{}, err
	}
	var reqType, mode uint32
	if err := codec.DecodeUInt32(buf, &reqType); err != nil {
		return OpenRequest{}, err
	}
	r.RequestType = TokenRequestType(reqType)
	if err := codec.DecodeUInt32(buf, &mode); err != nil {
		return OpenRequest{}, err
	}
	r.SecurityMode = SecurityMode(mode)
	nonce, err := codec.DecodeByteString(buf, maxNonceLen)
	if err != nil {
		return OpenRequest{}, err
	}
	r.ClientNonce = nonce
	var lifetimeMs int64
	if err := codec.DecodeInt64(buf, &lifetimeMs); err != nil {
		return OpenRequest{}, err
	}
	r.RequestedLifetime = time.Duration(lifetimeMs) * time.Millisecond
	return r, nil
}

func EncodeOpenResponse(buf *buffer.Buffer, r OpenResponse) error {
	if err := codec.EncodeUInt32(buf, r.ServerProtocolVersion); err != nil {
		return err
	}
	if err := codec.EncodeUInt32(buf, r.Token.ChannelID); err != nil {
		return err
	}
	if err := codec.EncodeUInt32(buf, r.Token.TokenID); err != nil {
		return err
	}
	if err := codec.EncodeDateTime(buf, r.Token.CreatedAt.UnixMilli()); err != nil {
		return err
	}
	if err := codec.EncodeInt64(buf, int64(r.Token.RevisedLifetime/time.Millisecond)); err != nil {
		return err
	}
	return codec.EncodeByteString(buf, r.ServerNonce)
}

func DecodeOpenResponse(buf *buffer.Buffer) (OpenResponse, error) {
	var r OpenResponse
	if err := codec.DecodeUInt32(buf, &r.ServerProtocolVersion); err != nil {
		return OpenResponse{}, err
	}
	if err := codec.DecodeUInt32(buf, &r.Token.ChannelID); err != nil {
		return OpenResponse{}, err
	}
	if err := codec.DecodeUInt32(buf, &r.Token.TokenID); err != nil {
		return OpenResponse{}, err
	}
	var createdAtMs int64
	if err := codec.DecodeDateTime(buf, &createdAtMs); err != nil {
		return OpenResponse{}, err
	}
	r.Token.CreatedAt = time.UnixMilli(createdAtMs).UTC()
	var lifetimeMs int64
	if err := codec.DecodeInt64(buf, &lifetimeMs); err != nil {
		return OpenResponse{}, err
	}
	r.Token.RevisedLifetime = time.Duration(lifetimeMs) * time.Millisecond
	nonce, err := codec.DecodeByteString(buf, maxNonceLen)
	if err != nil {
		return OpenResponse{}, err
	}
	r.ServerNonce = nonce
	return r, nil
}

// EndpointPolicy is one security mode/policy combination an endpoint
// accepts, used to validate an incoming OPN request (spec §4.6 "matches
// the requested security mode against the endpoint's configured
// policies").
type EndpointPolicy struct {
	PolicyURI string
	Mode      SecurityMode
}

// ServerConfig carries everything the server side of the handshake needs
// beyond what arrives on the wire.
type ServerConfig struct {
	ProtocolVersion  uint32
	Policies         []EndpointPolicy
	TokenLifetimeMin time.Duration
	TokenLifetimeMax time.Duration
	LocalCertificate Certificate // empty under SecurityModeNone
	Crypto           CryptoProvider
}

func (c ServerConfig) accepts(policyURI string, mode SecurityMode) bool {
	for _, p := range c.Policies {
		if p.PolicyURI == policyURI && p.Mode == mode {
			return true
		}
	}
	return false
}

// ModeForPolicy resolves the mode this endpoint has configured for a
// policy URI, so the server can decode an incoming OPN chunk before it
// has parsed the request body that would otherwise tell it the mode
// (spec §4.5 step 3 reads the asymmetric header's policy URI in the
// clear, ahead of any decrypt/verify). Ambiguous configurations (more
// than one mode offered for the same policy URI) are rejected rather
// than guessed.
func (c ServerConfig) ModeForPolicy(policyURI string) (SecurityMode, error) {
	found := false
	var mode SecurityMode
	for _, p := range c.Policies {
		if p.PolicyURI != policyURI {
			continue
		}
		if found && p.Mode != mode {
			return SecurityMode(0), fmt.Errorf("securechannel: policy %q offers more than one security mode", policyURI)
		}
		mode = p.Mode
		found = true
	}
	if !found {
		return SecurityMode(0), fmt.Errorf("securechannel: endpoint does not offer policy %q", policyURI)
	}
	return mode, nil
}

// ValidateReceiverThumbprint enforces spec §4.5 step 3 / §8 scenario 6: the
// client's receiver_cert_thumbprint must equal the thumbprint of this
// endpoint's own certificate, computed with the channel's CryptoProvider.
// Mismatch is a security failure returned as a uaerr carrying
// BadSecurityChecksFailed, never as a service-level fault; no ERR message
// is sent to the peer for it.
func ValidateReceiverThumbprint(crypto CryptoProvider, localCert Certificate, gotThumbprint []byte) error {
	want, err := crypto.Thumbprint(localCert)
	if err != nil {
		return uaerr.Wrap(uaerr.KindCertificateValidationFailed, "securechannel: compute local thumbprint", err).WithStatus(ua.BadSecurityChecksFailed)
	}
	if !bytes.Equal(want, gotThumbprint) {
		return uaerr.New(uaerr.KindCertificateValidationFailed, "securechannel: receiver certificate thumbprint does not match this endpoint's certificate").
			WithStatus(ua.BadSecurityChecksFailed)
	}
	return nil
}

// ServerHandleOpen validates one OpenSecureChannel request, generates a
// fresh channel id/token id/server nonce, derives the key sets, and
// returns the response to send back (spec §4.6). Callers install the
// returned token/keys into the SecurityContext via InstallToken once the
// response has been written — InstallToken itself implements the
// current→prec rollover on renewal.
func ServerHandleOpen(cfg ServerConfig, asym AsymmetricSecurityHeader, req OpenRequest, now time.Time) (OpenResponse, KeySets, error) {
	if req.ClientProtocolVersion != cfg.ProtocolVersion {
		return OpenResponse{}, KeySets{}, uaerr.New(uaerr.KindInvalidReceivedParameter,
			"securechannel: client protocol version does not match negotiated transport version").
			WithStatus(ua.BadTcpMessageTypeInvalid)
	}
	if !cfg.accepts(asym.SecurityPolicyURI, req.SecurityMode) {
		return OpenResponse{}, KeySets{}, uaerr.New(uaerr.KindInvalidReceivedParameter,
			"securechannel: endpoint does not offer the requested security mode/policy").
			WithStatus(ua.BadSecurityChecksFailed)
	}
	if req.SecurityMode != SecurityModeNone {
		if err := ValidateReceiverThumbprint(cfg.Crypto, cfg.LocalCertificate, asym.ReceiverCertThumbprint); err != nil {
			return OpenResponse{}, KeySets{}, err
		}
	}

	resp := OpenResponse{
		ServerProtocolVersion: cfg.ProtocolVersion,
		Token: SecurityToken{
			RevisedLifetime: ClampLifetime(req.RequestedLifetime, cfg.TokenLifetimeMin, cfg.TokenLifetimeMax),
			CreatedAt:       now,
		},
	}

	channelID, err := cfg.Crypto.GenerateRandomID()
	if err != nil {
		return OpenResponse{}, KeySets{}, uaerr.Wrap(uaerr.KindInvalidState, "securechannel: generate channel id", err).WithStatus(ua.BadTcpInternalError)
	}
	tokenID, err := cfg.Crypto.GenerateRandomID()
	if err != nil {
		return OpenResponse{}, KeySets{}, uaerr.Wrap(uaerr.KindInvalidState, "securechannel: generate token id", err).WithStatus(ua.BadTcpInternalError)
	}
	resp.Token.ChannelID = channelID
	resp.Token.TokenID = tokenID

	var keys KeySets
	if req.SecurityMode != SecurityModeNone {
		serverNonce, err := cfg.Crypto.GenerateNonce(cfg.Crypto.NonceLength())
		if err != nil {
			return OpenResponse{}, KeySets{}, uaerr.Wrap(uaerr.KindInvalidState, "securechannel: generate server nonce", err).WithStatus(ua.BadTcpInternalError)
		}
		resp.ServerNonce = serverNonce

		// Server derives from (serverNonce as secret, clientNonce as
		// seed); the provider returns the matching Send/Recv pair for
		// that side directly (spec §4.6).
		keys, err = cfg.Crypto.DeriveKeySets(serverNonce, req.ClientNonce)
		if err != nil {
			return OpenResponse{}, KeySets{}, uaerr.Wrap(uaerr.KindInvalidState, "securechannel: derive key sets", err).WithStatus(ua.BadTcpInternalError)
		}
	}

	log.Debug("securechannel: opn request accepted",
		log.ChannelID(channelID),
		log.TokenID(tokenID),
		log.SecurityMode(req.SecurityMode.String()),
		log.PolicyURI(asym.SecurityPolicyURI))

	return resp, keys, nil
}

// ClientConfig carries what the client side of the handshake needs.
type ClientConfig struct {
	ProtocolVersion  uint32
	PolicyURI        string
	Mode             SecurityMode
	RequestLifetime  time.Duration
	LocalCertificate Certificate
	// PrivateKey is this side's private key, used to asymmetrically sign
	// the OpenSecureChannel request and, under SecurityModeSignAndEncrypt,
	// to decrypt the server's response. Unused under SecurityModeNone.
	PrivateKey []byte
}

// ClientBuildOpenRequest constructs the request body and asymmetric
// security header for a fresh OpenSecureChannel, generating a client
// nonce when the mode requires one.
func ClientBuildOpenRequest(crypto CryptoProvider, cfg ClientConfig, requestType TokenRequestType, peerCert Certificate) (OpenRequest, AsymmetricSecurityHeader, error) {
	req := OpenRequest{
		ClientProtocolVersion: cfg.ProtocolVersion,
		RequestType:           requestType,
		SecurityMode:          cfg.Mode,
		RequestedLifetime:     cfg.RequestLifetime,
	}
	asym := AsymmetricSecurityHeader{SecurityPolicyURI: cfg.PolicyURI}

	if cfg.Mode == SecurityModeNone {
		return req, asym, nil
	}

	nonce, err := crypto.GenerateNonce(crypto.NonceLength())
	if err != nil {
		return OpenRequest{}, AsymmetricSecurityHeader{}, uaerr.Wrap(uaerr.KindInvalidState, "securechannel: generate client nonce", err).WithStatus(ua.BadTcpInternalError)
	}
	req.ClientNonce = nonce

	thumb, err := crypto.Thumbprint(peerCert)
	if err != nil {
		return OpenRequest{}, AsymmetricSecurityHeader{}, uaerr.Wrap(uaerr.KindCertificateValidationFailed, "securechannel: thumbprint peer certificate", err).WithStatus(ua.BadSecurityChecksFailed)
	}
	asym.SenderCertificate = cfg.LocalCertificate
	asym.ReceiverCertThumbprint = thumb
	return req, asym, nil
}

// ClientDeriveTokenKeys derives this side's key sets from the response's
// server nonce and the client nonce this side sent: (clientNonce as
// secret, serverNonce as seed) mirrors the server's derivation with the
// two nonces' roles swapped.
func ClientDeriveTokenKeys(crypto CryptoProvider, clientNonce, serverNonce []byte, mode SecurityMode) (KeySets, error) {
	if mode == SecurityModeNone {
		return KeySets{}, nil
	}
	keys, err := crypto.DeriveKeySets(clientNonce, serverNonce)
	if err != nil {
		return KeySets{}, uaerr.Wrap(uaerr.KindInvalidState, "securechannel: derive key sets", err).WithStatus(ua.BadTcpInternalError)
	}
	return keys, nil
}
