// Package securechannel implements the OPC UA secure-channel layer: the
// asymmetric OpenSecureChannel handshake, symmetric message signing and
// encryption, sequence numbering, token lifecycle, and chunk
// assembly/disassembly that sit on top of pkg/uacp.
//
// The package consumes cryptography through the narrow CryptoProvider and
// PKIProvider interfaces defined here rather than implementing any cipher
// itself — pkg/testcrypto supplies a non-production implementation used by
// this module's own tests, the same way a production build would wire in
// a real security library.
package securechannel

import "github.com/opcuacore/opcuacore/pkg/ua"

// SecurityMode is the message protection level negotiated for a secure
// channel (Part 4 §7.15).
type SecurityMode int

const (
	SecurityModeInvalid SecurityMode = iota
	SecurityModeNone
	SecurityModeSign
	SecurityModeSignAndEncrypt
)

func (m SecurityMode) String() string {
	switch m {
	case SecurityModeNone:
		return "None"
	case SecurityModeSign:
		return "Sign"
	case SecurityModeSignAndEncrypt:
		return "SignAndEncrypt"
	default:
		return "Invalid"
	}
}

// Security policy URIs this stack recognises (Part 7 Annex A).
const (
	PolicyNone             = "http://opcfoundation.org/UA/SecurityPolicy#None"
	PolicyBasic128Rsa15    = "http://opcfoundation.org/UA/SecurityPolicy#Basic128Rsa15"
	PolicyBasic256         = "http://opcfoundation.org/UA/SecurityPolicy#Basic256"
	PolicyBasic256Sha256   = "http://opcfoundation.org/UA/SecurityPolicy#Basic256Sha256"
)

// ValidPolicyURI reports whether uri is one of the policies this stack
// implements.
func ValidPolicyURI(uri string) bool {
	switch uri {
	case PolicyNone, PolicyBasic128Rsa15, PolicyBasic256, PolicyBasic256Sha256:
		return true
	default:
		return false
	}
}

// KeySet is the symmetric key material derived for one direction of
// traffic on a token: the signing key, the encryption key, and the
// initial value used to seed the cipher (Part 6 §6.7.5). None-mode
// channels carry a zero-value KeySet.
type KeySet struct {
	SignKey    []byte
	EncryptKey []byte
	InitVector []byte
}

// Wipe zeroes all key material in place. Called when a token is retired
// or the channel is torn down.
func (k *KeySet) Wipe() {
	if k == nil {
		return
	}
	clear(k.SignKey)
	clear(k.EncryptKey)
	clear(k.InitVector)
}

// KeySets holds the two directional KeySets derived for one token: send
// (this side signs/encrypts with it) and recv (the peer's traffic is
// verified/decrypted with it).
type KeySets struct {
	Send KeySet
	Recv KeySet
}

// Wipe zeroes both directions' key material.
func (k *KeySets) Wipe() {
	if k == nil {
		return
	}
	k.Send.Wipe()
	k.Recv.Wipe()
}

// Certificate is an opaque DER-encoded certificate blob. The
// secure-channel layer never parses a certificate itself; it only
// carries the bytes and asks the providers to reason about them.
type Certificate []byte

// CryptoProvider is the narrow interface this package uses for every
// cryptographic operation. A production build backs it with a real
// security-policy implementation (Basic256Sha256, etc.); pkg/testcrypto
// backs it for this module's own tests.
type CryptoProvider interface {
	// SignatureSize returns the byte length of a symmetric signature for
	// the given KeySet.
	SignatureSize(key KeySet) int
	// Sign computes the symmetric signature over data.
	Sign(key KeySet, data []byte) ([]byte, error)
	// Verify checks a symmetric signature over data.
	Verify(key KeySet, data, signature []byte) error
	// PlainBlockSize and CipherBlockSize report the cipher's block sizes
	// in bytes, used by the padding-and-chunk-capacity formula; for a
	// stream cipher both are 1.
	PlainBlockSize() int
	CipherBlockSize() int
	// Encrypt/Decrypt perform symmetric encryption in SignAndEncrypt mode.
	// For SecurityModeSign and SecurityModeNone callers never invoke these.
	Encrypt(key KeySet, plaintext []byte) ([]byte, error)
	Decrypt(key KeySet, ciphertext []byte) ([]byte, error)

	// AsymmetricSignatureSize returns the byte length of an asymmetric
	// signature produced with the given private key.
	AsymmetricSignatureSize(privateKey []byte) int
	AsymmetricSign(privateKey []byte, data []byte) ([]byte, error)
	AsymmetricVerify(publicKeyCert Certificate, data, signature []byte) error
	AsymmetricEncrypt(publicKeyCert Certificate, plaintext []byte) ([]byte, error)
	AsymmetricDecrypt(privateKey []byte, ciphertext []byte) ([]byte, error)
	// AsymmetricDecryptedLength reports the output buffer size needed to
	// decrypt a ciphertext of the given length with privateKey. Receive
	// does not call it; it takes the plaintext from AsymmetricDecrypt.
	AsymmetricDecryptedLength(privateKey []byte, ciphertextLen int) int

	// DeriveKeySets derives the send/recv KeySets for a token from the
	// client and server nonces exchanged during OPN (Part 6 §6.7.5). The
	// caller supplies the nonces in (secret, seed) order already matching
	// which side is deriving: server derives Send from (serverNonce as
	// secret, clientNonce as seed) and Recv the reverse, per spec.
	DeriveKeySets(secretNonce, seedNonce []byte) (KeySets, error)
	// NonceLength reports how many bytes of random nonce this policy
	// requires (0 for SecurityPolicyNone).
	NonceLength() int

	// GenerateRandomID returns a random uint32 suitable for a channel id
	// or token id (never zero).
	GenerateRandomID() (uint32, error)
	// GenerateNonce returns n random bytes for use as a client/server
	// nonce.
	GenerateNonce(n int) ([]byte, error)

	// Thumbprint computes the certificate thumbprint used to identify a
	// peer certificate in the OPN security header.
	Thumbprint(cert Certificate) ([]byte, error)
	ThumbprintLength() int
}

// PKIProvider validates a certificate chain against trusted roots and
// revocation lists. Implementations surface rejection as a uaerr with
// uaerr.KindCertificateValidationFailed.
type PKIProvider interface {
	Validate(cert Certificate) error
}

// statusForSecurityFailure is the StatusCode this package reports when a
// PKIProvider or CryptoProvider rejects a peer's security material.
const statusForSecurityFailure = ua.BadSecurityChecksFailed
