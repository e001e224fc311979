package securechannel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opcuacore/opcuacore/pkg/buffer"
)

func TestSequenceHeaderRoundTrip(t *testing.T) {
	buf := buffer.New(32)
	h := SequenceHeader{SequenceNumber: 42, RequestID: 7}
	require.NoError(t, encodeSequenceHeader(buf, h))
	buf.Reset()

	got, err := decodeSequenceHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestSymmetricSecurityHeaderRoundTrip(t *testing.T) {
	buf := buffer.New(32)
	h := SymmetricSecurityHeader{TokenID: 99}
	require.NoError(t, encodeSymmetricSecurityHeader(buf, h))
	buf.Reset()

	got, err := decodeSymmetricSecurityHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestAsymmetricSecurityHeaderRoundTrip(t *testing.T) {
	buf := buffer.New(4096)
	h := AsymmetricSecurityHeader{
		SecurityPolicyURI:      PolicyBasic256Sha256,
		SenderCertificate:      Certificate([]byte{1, 2, 3, 4}),
		ReceiverCertThumbprint: []byte{5, 6, 7, 8},
	}
	require.NoError(t, encodeAsymmetricSecurityHeader(buf, h))
	buf.Reset()

	got, err := decodeAsymmetricSecurityHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestAsymmetricSecurityHeaderValidatePresenceNoneRejectsCertificates(t *testing.T) {
	h := AsymmetricSecurityHeader{SenderCertificate: []byte{1}}
	err := h.validatePresence(SecurityModeNone)
	assert.Error(t, err)

	empty := AsymmetricSecurityHeader{}
	assert.NoError(t, empty.validatePresence(SecurityModeNone))
}

func TestAsymmetricSecurityHeaderValidatePresenceSignedRequiresBoth(t *testing.T) {
	h := AsymmetricSecurityHeader{SenderCertificate: []byte{1}}
	assert.Error(t, h.validatePresence(SecurityModeSign))

	full := AsymmetricSecurityHeader{SenderCertificate: []byte{1}, ReceiverCertThumbprint: []byte{2}}
	assert.NoError(t, full.validatePresence(SecurityModeSign))
}

func TestSecureMessageTypeUacpType(t *testing.T) {
	assert.Equal(t, "OPN", secureTypeOPN.uacpType().String())
	assert.Equal(t, "CLO", secureTypeCLO.uacpType().String())
	assert.Equal(t, "MSG", secureTypeMSG.uacpType().String())
}
