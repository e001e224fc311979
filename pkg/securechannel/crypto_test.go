package securechannel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opcuacore/opcuacore/pkg/securechannel"
)

func TestValidPolicyURI(t *testing.T) {
	assert.True(t, securechannel.ValidPolicyURI(securechannel.PolicyNone))
	assert.True(t, securechannel.ValidPolicyURI(securechannel.PolicyBasic256Sha256))
	assert.False(t, securechannel.ValidPolicyURI("http://opcfoundation.org/UA/SecurityPolicy#DoesNotExist"))
}

func TestKeySetWipeZeroesMaterial(t *testing.T) {
	ks := securechannel.KeySet{
		SignKey:    []byte{1, 2, 3},
		EncryptKey: []byte{4, 5, 6},
		InitVector: []byte{7, 8, 9},
	}
	ks.Wipe()
	assert.Equal(t, []byte{0, 0, 0}, ks.SignKey)
	assert.Equal(t, []byte{0, 0, 0}, ks.EncryptKey)
	assert.Equal(t, []byte{0, 0, 0}, ks.InitVector)
}

func TestKeySetsWipeNilReceiverIsNoOp(t *testing.T) {
	var ks *securechannel.KeySets
	assert.NotPanics(t, func() { ks.Wipe() })
}

func TestSecurityModeString(t *testing.T) {
	assert.Equal(t, "None", securechannel.SecurityModeNone.String())
	assert.Equal(t, "Sign", securechannel.SecurityModeSign.String())
	assert.Equal(t, "SignAndEncrypt", securechannel.SecurityModeSignAndEncrypt.String())
	assert.Equal(t, "Invalid", securechannel.SecurityModeInvalid.String())
}
