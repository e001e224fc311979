package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opcuacore/opcuacore/pkg/config"
	"github.com/opcuacore/opcuacore/pkg/securechannel"
)

func TestParseMode(t *testing.T) {
	cases := []struct {
		in   string
		want securechannel.SecurityMode
	}{
		{"None", securechannel.SecurityModeNone},
		{"Sign", securechannel.SecurityModeSign},
		{"SignAndEncrypt", securechannel.SecurityModeSignAndEncrypt},
	}
	for _, c := range cases {
		got, err := config.ParseMode(c.in)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}
}

func TestParseModeRejectsUnknown(t *testing.T) {
	_, err := config.ParseMode("Bogus")
	assert.Error(t, err)
}

func TestEndpointPolicies(t *testing.T) {
	sec := config.SecurityConfig{
		Policies: []config.SecurityPolicyConfig{
			{PolicyURI: securechannel.PolicyNone, Mode: "None"},
			{PolicyURI: securechannel.PolicyBasic256Sha256, Mode: "SignAndEncrypt"},
		},
	}
	got, err := sec.EndpointPolicies()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, securechannel.EndpointPolicy{PolicyURI: securechannel.PolicyNone, Mode: securechannel.SecurityModeNone}, got[0])
	assert.Equal(t, securechannel.EndpointPolicy{PolicyURI: securechannel.PolicyBasic256Sha256, Mode: securechannel.SecurityModeSignAndEncrypt}, got[1])
}

func TestEndpointPoliciesPropagatesModeError(t *testing.T) {
	sec := config.SecurityConfig{Policies: []config.SecurityPolicyConfig{{PolicyURI: "uri", Mode: "Bogus"}}}
	_, err := sec.EndpointPolicies()
	assert.Error(t, err)
}

func TestHelloConfigLocalLimits(t *testing.T) {
	hc := config.HelloConfig{
		ReceiveBufferSize: 65536,
		SendBufferSize:    32768,
		MaxMessageSize:    1 << 20,
		MaxChunks:         16,
	}
	got := hc.LocalLimits()
	assert.Equal(t, hc.ReceiveBufferSize, got.ReceiveBufferSize)
	assert.Equal(t, hc.SendBufferSize, got.SendBufferSize)
	assert.Equal(t, hc.MaxMessageSize, got.MaxMessageSize)
	assert.Equal(t, hc.MaxChunks, got.MaxChunkCount)
}
