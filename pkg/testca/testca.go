// Package testca builds throwaway self-signed RSA certificates for
// exercising the OpenSecureChannel handshake in tests — grounded on
// SPEC_FULL.md §9.4. Nothing here is fit for production use: keys are
// generated fresh on every call and never persisted.
package testca

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"
)

// Identity is a throwaway certificate plus the PKCS#1 DER encoding of its
// private key, in the shapes securechannel.Certificate and a
// CryptoProvider private-key argument expect.
type Identity struct {
	CertDER       []byte
	PrivateKeyDER []byte
}

// New generates a fresh self-signed 2048-bit RSA identity for commonName,
// valid for one day from now.
func New(commonName string) (Identity, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return Identity{}, fmt.Errorf("testca: generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return Identity{}, fmt.Errorf("testca: generate serial: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return Identity{}, fmt.Errorf("testca: create certificate: %w", err)
	}

	return Identity{
		CertDER:       der,
		PrivateKeyDER: x509.MarshalPKCS1PrivateKey(key),
	}, nil
}
