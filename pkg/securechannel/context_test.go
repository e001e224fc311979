package securechannel_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opcuacore/opcuacore/pkg/securechannel"
	"github.com/opcuacore/opcuacore/pkg/testcrypto"
)

func newTestContext() *securechannel.SecurityContext {
	return securechannel.NewSecurityContext(testcrypto.New(), securechannel.SecurityModeSign, securechannel.PolicyBasic256Sha256)
}

func TestSecurityContextModeAndPolicy(t *testing.T) {
	sc := newTestContext()
	assert.Equal(t, securechannel.SecurityModeSign, sc.Mode())
	assert.Equal(t, securechannel.PolicyBasic256Sha256, sc.PolicyURI())

	sc.SetMode(securechannel.SecurityModeSignAndEncrypt, securechannel.PolicyBasic256)
	assert.Equal(t, securechannel.SecurityModeSignAndEncrypt, sc.Mode())
	assert.Equal(t, securechannel.PolicyBasic256, sc.PolicyURI())
}

func TestSecurityContextInstallTokenRollsOverPrevious(t *testing.T) {
	sc := newTestContext()
	tok1 := securechannel.SecurityToken{ChannelID: 1, TokenID: 100, CreatedAt: time.Now(), RevisedLifetime: time.Hour}
	keys1 := securechannel.KeySets{Send: securechannel.KeySet{SignKey: []byte("s1")}}
	sc.InstallToken(tok1, keys1)
	assert.Equal(t, tok1, sc.CurrentToken())

	tok2 := securechannel.SecurityToken{ChannelID: 1, TokenID: 200, CreatedAt: time.Now(), RevisedLifetime: time.Hour}
	keys2 := securechannel.KeySets{Send: securechannel.KeySet{SignKey: []byte("s2")}}
	sc.InstallToken(tok2, keys2)
	assert.Equal(t, tok2, sc.CurrentToken())

	got, err := sc.KeysForToken(100, time.Now())
	require.NoError(t, err)
	assert.Equal(t, keys1, got)

	got, err = sc.KeysForToken(200, time.Now())
	require.NoError(t, err)
	assert.Equal(t, keys2, got)
}

func TestSecurityContextKeysForTokenRejectsExpiredPrevious(t *testing.T) {
	sc := newTestContext()
	tok1 := securechannel.SecurityToken{ChannelID: 1, TokenID: 100, CreatedAt: time.Now().Add(-time.Hour), RevisedLifetime: time.Minute}
	sc.InstallToken(tok1, securechannel.KeySets{})
	tok2 := securechannel.SecurityToken{ChannelID: 1, TokenID: 200, CreatedAt: time.Now(), RevisedLifetime: time.Hour}
	sc.InstallToken(tok2, securechannel.KeySets{})

	_, err := sc.KeysForToken(100, time.Now())
	assert.Error(t, err)
}

func TestSecurityContextKeysForTokenRejectsUnknown(t *testing.T) {
	sc := newTestContext()
	_, err := sc.KeysForToken(999, time.Now())
	assert.Error(t, err)
}

func TestSecurityContextSeqNumLifecycle(t *testing.T) {
	sc := newTestContext()
	assert.Equal(t, uint32(1), sc.NextSendSeqNum())
	assert.Equal(t, uint32(2), sc.NextSendSeqNum())

	require.NoError(t, sc.ValidateReceivedSeqNum(1))
	require.NoError(t, sc.ValidateReceivedSeqNum(2))
	assert.Error(t, sc.ValidateReceivedSeqNum(2))

	sc.ResetReceivedSeqNum(50)
	require.NoError(t, sc.ValidateReceivedSeqNum(51))
}

func TestSecurityContextCurrentNonce(t *testing.T) {
	sc := newTestContext()
	assert.Nil(t, sc.CurrentNonce())
	sc.SetCurrentNonce([]byte("nonce"))
	assert.Equal(t, []byte("nonce"), sc.CurrentNonce())
}

func TestSecurityContextDestroyWipesState(t *testing.T) {
	sc := newTestContext()
	tok := securechannel.SecurityToken{ChannelID: 1, TokenID: 1, CreatedAt: time.Now(), RevisedLifetime: time.Hour}
	sc.InstallToken(tok, securechannel.KeySets{Send: securechannel.KeySet{SignKey: []byte("k")}})
	sc.Destroy()
	assert.False(t, sc.CurrentToken().Valid())
}
