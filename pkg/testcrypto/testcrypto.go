// Package testcrypto implements securechannel.CryptoProvider well enough
// to drive this module's own tests end to end: HMAC-SHA256 symmetric
// signing, AES-256-CBC symmetric encryption, RSA-PSS/OAEP asymmetric
// operations, and an HKDF-based DeriveKeySets standing in for the real
// Basic256Sha256 P_SHA derivation a production security library would
// provide (see SPEC_FULL.md §10). It is not a production security policy
// implementation — no replay protection beyond what securechannel itself
// enforces, and key material is not protected against side channels.
package testcrypto

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/hkdf"

	"github.com/opcuacore/opcuacore/pkg/securechannel"
)

const (
	signKeyLen    = 32 // HMAC-SHA256 key
	signatureLen  = 32
	encryptKeyLen = 32 // AES-256
	ivLen         = aes.BlockSize
	nonceLen      = 32
)

// Provider implements securechannel.CryptoProvider.
type Provider struct{}

// New returns a ready-to-use test CryptoProvider.
func New() *Provider { return &Provider{} }

var _ securechannel.CryptoProvider = (*Provider)(nil)

func (p *Provider) SignatureSize(securechannel.KeySet) int { return signatureLen }

func (p *Provider) Sign(key securechannel.KeySet, data []byte) ([]byte, error) {
	if len(key.SignKey) != signKeyLen {
		return nil, fmt.Errorf("testcrypto: sign key must be %d bytes, got %d", signKeyLen, len(key.SignKey))
	}
	mac := hmac.New(sha256.New, key.SignKey)
	mac.Write(data)
	return mac.Sum(nil), nil
}

func (p *Provider) Verify(key securechannel.KeySet, data, signature []byte) error {
	want, err := p.Sign(key, data)
	if err != nil {
		return err
	}
	if !hmac.Equal(want, signature) {
		return fmt.Errorf("testcrypto: signature mismatch")
	}
	return nil
}

func (p *Provider) PlainBlockSize() int  { return aes.BlockSize }
func (p *Provider) CipherBlockSize() int { return aes.BlockSize }

func (p *Provider) Encrypt(key securechannel.KeySet, plaintext []byte) ([]byte, error) {
	block, iv, err := p.cbcBlock(key)
	if err != nil {
		return nil, err
	}
	if len(plaintext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("testcrypto: plaintext length %d is not a multiple of the block size", len(plaintext))
	}
	out := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, plaintext)
	return out, nil
}

func (p *Provider) Decrypt(key securechannel.KeySet, ciphertext []byte) ([]byte, error) {
	block, iv, err := p.cbcBlock(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("testcrypto: ciphertext length %d is not a multiple of the block size", len(ciphertext))
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return out, nil
}

func (p *Provider) cbcBlock(key securechannel.KeySet) (cipher.Block, []byte, error) {
	if len(key.EncryptKey) != encryptKeyLen {
		return nil, nil, fmt.Errorf("testcrypto: encrypt key must be %d bytes, got %d", encryptKeyLen, len(key.EncryptKey))
	}
	if len(key.InitVector) != ivLen {
		return nil, nil, fmt.Errorf("testcrypto: init vector must be %d bytes, got %d", ivLen, len(key.InitVector))
	}
	block, err := aes.NewCipher(key.EncryptKey)
	if err != nil {
		return nil, nil, err
	}
	return block, key.InitVector, nil
}

func (p *Provider) AsymmetricSignatureSize(privateKey []byte) int {
	key, err := x509.ParsePKCS1PrivateKey(privateKey)
	if err != nil {
		return 0
	}
	return key.Size()
}

func (p *Provider) AsymmetricSign(privateKey []byte, data []byte) ([]byte, error) {
	key, err := x509.ParsePKCS1PrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("testcrypto: parse private key: %w", err)
	}
	digest := sha256.Sum256(data)
	return rsa.SignPSS(rand.Reader, key, crypto.SHA256, digest[:], nil)
}

func (p *Provider) AsymmetricVerify(publicKeyCert securechannel.Certificate, data, signature []byte) error {
	pub, err := certPublicKey(publicKeyCert)
	if err != nil {
		return err
	}
	digest := sha256.Sum256(data)
	return rsa.VerifyPSS(pub, crypto.SHA256, digest[:], signature, nil)
}

func (p *Provider) AsymmetricEncrypt(publicKeyCert securechannel.Certificate, plaintext []byte) ([]byte, error) {
	pub, err := certPublicKey(publicKeyCert)
	if err != nil {
		return nil, err
	}
	return rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, plaintext, nil)
}

func (p *Provider) AsymmetricDecrypt(privateKey []byte, ciphertext []byte) ([]byte, error) {
	key, err := x509.ParsePKCS1PrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("testcrypto: parse private key: %w", err)
	}
	return rsa.DecryptOAEP(sha256.New(), rand.Reader, key, ciphertext, nil)
}

func (p *Provider) AsymmetricDecryptedLength(privateKey []byte, ciphertextLen int) int {
	key, err := x509.ParsePKCS1PrivateKey(privateKey)
	if err != nil {
		return 0
	}
	return key.Size()
}

func certPublicKey(cert securechannel.Certificate) (*rsa.PublicKey, error) {
	parsed, err := x509.ParseCertificate(cert)
	if err != nil {
		return nil, fmt.Errorf("testcrypto: parse certificate: %w", err)
	}
	pub, ok := parsed.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("testcrypto: certificate does not carry an RSA public key")
	}
	return pub, nil
}

// DeriveKeySets derives Send from (secretNonce, seedNonce) and Recv from
// the reverse order, so that a server calling
// DeriveKeySets(serverNonce, clientNonce) and a client calling
// DeriveKeySets(clientNonce, serverNonce) end up with each side's Send
// equal to the other's Recv (spec.md §3/§4.6).
func (p *Provider) DeriveKeySets(secretNonce, seedNonce []byte) (securechannel.KeySets, error) {
	send, err := deriveOneDirection(secretNonce, seedNonce)
	if err != nil {
		return securechannel.KeySets{}, err
	}
	recv, err := deriveOneDirection(seedNonce, secretNonce)
	if err != nil {
		return securechannel.KeySets{}, err
	}
	return securechannel.KeySets{Send: send, Recv: recv}, nil
}

func deriveOneDirection(secret, seed []byte) (securechannel.KeySet, error) {
	reader := hkdf.New(sha256.New, secret, nil, seed)
	total := signKeyLen + encryptKeyLen + ivLen
	material := make([]byte, total)
	if _, err := reader.Read(material); err != nil {
		return securechannel.KeySet{}, fmt.Errorf("testcrypto: hkdf expand: %w", err)
	}
	return securechannel.KeySet{
		SignKey:    material[:signKeyLen],
		EncryptKey: material[signKeyLen : signKeyLen+encryptKeyLen],
		InitVector: material[signKeyLen+encryptKeyLen:],
	}, nil
}

func (p *Provider) NonceLength() int { return nonceLen }

func (p *Provider) GenerateRandomID() (uint32, error) {
	var b [4]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			return 0, err
		}
		if id := binary.LittleEndian.Uint32(b[:]); id != 0 {
			return id, nil
		}
	}
}

func (p *Provider) GenerateNonce(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

func (p *Provider) Thumbprint(cert securechannel.Certificate) ([]byte, error) {
	sum := sha1.Sum(cert)
	return sum[:], nil
}

func (p *Provider) ThumbprintLength() int { return sha1.Size }
