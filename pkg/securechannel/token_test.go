package securechannel_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/opcuacore/opcuacore/pkg/securechannel"
)

func TestSecurityTokenExpired(t *testing.T) {
	tok := securechannel.SecurityToken{CreatedAt: time.Now().Add(-time.Hour), RevisedLifetime: time.Minute}
	assert.True(t, tok.Expired(time.Now()))

	fresh := securechannel.SecurityToken{CreatedAt: time.Now(), RevisedLifetime: time.Hour}
	assert.False(t, fresh.Expired(time.Now()))
}

func TestSecurityTokenExpiredZeroValueIsAlwaysExpired(t *testing.T) {
	var tok securechannel.SecurityToken
	assert.True(t, tok.Expired(time.Now()))
}

func TestSecurityTokenValid(t *testing.T) {
	assert.False(t, securechannel.SecurityToken{}.Valid())
	assert.True(t, securechannel.SecurityToken{TokenID: 7}.Valid())
}

func TestClampLifetimeZeroRequestedUsesMax(t *testing.T) {
	got := securechannel.ClampLifetime(0, time.Second, time.Hour)
	assert.Equal(t, time.Hour, got)
}

func TestClampLifetimeBelowMinClampsUp(t *testing.T) {
	got := securechannel.ClampLifetime(time.Millisecond, time.Second, time.Hour)
	assert.Equal(t, time.Second, got)
}

func TestClampLifetimeAboveMaxClampsDown(t *testing.T) {
	got := securechannel.ClampLifetime(2*time.Hour, time.Second, time.Hour)
	assert.Equal(t, time.Hour, got)
}

func TestClampLifetimeWithinRangeUnchanged(t *testing.T) {
	got := securechannel.ClampLifetime(10*time.Minute, time.Second, time.Hour)
	assert.Equal(t, 10*time.Minute, got)
}
