package testcrypto_test

import (
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opcuacore/opcuacore/pkg/securechannel"
	"github.com/opcuacore/opcuacore/pkg/testca"
	"github.com/opcuacore/opcuacore/pkg/testcrypto"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	p := testcrypto.New()
	ks := securechannel.KeySet{SignKey: make([]byte, 32)}
	copy(ks.SignKey, "0123456789abcdef0123456789abcdef")

	data := []byte("message to authenticate")
	sig, err := p.Sign(ks, data)
	require.NoError(t, err)
	assert.Equal(t, p.SignatureSize(ks), len(sig))
	require.NoError(t, p.Verify(ks, data, sig))
}

func TestVerifyRejectsTamperedData(t *testing.T) {
	p := testcrypto.New()
	ks := securechannel.KeySet{SignKey: make([]byte, 32)}
	sig, err := p.Sign(ks, []byte("original"))
	require.NoError(t, err)
	assert.Error(t, p.Verify(ks, []byte("tampered"), sig))
}

func TestSignRejectsWrongKeyLength(t *testing.T) {
	p := testcrypto.New()
	_, err := p.Sign(securechannel.KeySet{SignKey: []byte("too-short")}, []byte("x"))
	assert.Error(t, err)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	p := testcrypto.New()
	ks := securechannel.KeySet{
		EncryptKey: make([]byte, 32),
		InitVector: make([]byte, 16),
	}
	copy(ks.EncryptKey, "abcdef0123456789abcdef0123456789")
	copy(ks.InitVector, "fedcba9876543210")

	plaintext := make([]byte, 32) // multiple of AES block size
	copy(plaintext, "0123456789abcdef0123456789abcdef")

	cipher, err := p.Encrypt(ks, plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, cipher)

	got, err := p.Decrypt(ks, cipher)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestEncryptRejectsNonBlockAlignedPlaintext(t *testing.T) {
	p := testcrypto.New()
	ks := securechannel.KeySet{EncryptKey: make([]byte, 32), InitVector: make([]byte, 16)}
	_, err := p.Encrypt(ks, []byte("not-block-aligned"))
	assert.Error(t, err)
}

func TestAsymmetricSignVerifyRoundTrip(t *testing.T) {
	p := testcrypto.New()
	id, err := testca.New("signer")
	require.NoError(t, err)

	data := []byte("opn handshake payload")
	sig, err := p.AsymmetricSign(id.PrivateKeyDER, data)
	require.NoError(t, err)
	assert.Equal(t, p.AsymmetricSignatureSize(id.PrivateKeyDER), len(sig))

	require.NoError(t, p.AsymmetricVerify(securechannel.Certificate(id.CertDER), data, sig))
}

func TestAsymmetricVerifyRejectsWrongCertificate(t *testing.T) {
	p := testcrypto.New()
	signer, err := testca.New("signer")
	require.NoError(t, err)
	other, err := testca.New("other")
	require.NoError(t, err)

	sig, err := p.AsymmetricSign(signer.PrivateKeyDER, []byte("data"))
	require.NoError(t, err)
	assert.Error(t, p.AsymmetricVerify(securechannel.Certificate(other.CertDER), []byte("data"), sig))
}

func TestAsymmetricEncryptDecryptRoundTrip(t *testing.T) {
	p := testcrypto.New()
	id, err := testca.New("recipient")
	require.NoError(t, err)

	plaintext := []byte("small secret")
	cipher, err := p.AsymmetricEncrypt(securechannel.Certificate(id.CertDER), plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, cipher)

	got, err := p.AsymmetricDecrypt(id.PrivateKeyDER, cipher)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestDeriveKeySetsIsSymmetricAcrossSides(t *testing.T) {
	p := testcrypto.New()
	clientNonce, err := p.GenerateNonce(p.NonceLength())
	require.NoError(t, err)
	serverNonce, err := p.GenerateNonce(p.NonceLength())
	require.NoError(t, err)

	serverKeys, err := p.DeriveKeySets(serverNonce, clientNonce)
	require.NoError(t, err)
	clientKeys, err := p.DeriveKeySets(clientNonce, serverNonce)
	require.NoError(t, err)

	assert.Equal(t, serverKeys.Send, clientKeys.Recv)
	assert.Equal(t, serverKeys.Recv, clientKeys.Send)
}

func TestGenerateRandomIDNeverZero(t *testing.T) {
	p := testcrypto.New()
	for i := 0; i < 20; i++ {
		id, err := p.GenerateRandomID()
		require.NoError(t, err)
		assert.NotZero(t, id)
	}
}

func TestThumbprintLengthMatchesSHA1(t *testing.T) {
	p := testcrypto.New()
	id, err := testca.New("thumbed")
	require.NoError(t, err)
	thumb, err := p.Thumbprint(securechannel.Certificate(id.CertDER))
	require.NoError(t, err)
	assert.Equal(t, p.ThumbprintLength(), len(thumb))
}

func TestAsymmetricDecryptedLengthMatchesKeySize(t *testing.T) {
	p := testcrypto.New()
	id, err := testca.New("sized")
	require.NoError(t, err)
	key, err := x509.ParsePKCS1PrivateKey(id.PrivateKeyDER)
	require.NoError(t, err)
	assert.Equal(t, key.Size(), p.AsymmetricDecryptedLength(id.PrivateKeyDER, 256))
}
