package config

import (
	"fmt"

	"github.com/opcuacore/opcuacore/pkg/securechannel"
	"github.com/opcuacore/opcuacore/pkg/uacp"
)

// ParseMode maps this config's string Mode field to a
// securechannel.SecurityMode.
func ParseMode(mode string) (securechannel.SecurityMode, error) {
	switch mode {
	case "None":
		return securechannel.SecurityModeNone, nil
	case "Sign":
		return securechannel.SecurityModeSign, nil
	case "SignAndEncrypt":
		return securechannel.SecurityModeSignAndEncrypt, nil
	default:
		return securechannel.SecurityModeInvalid, fmt.Errorf("config: unknown security mode %q", mode)
	}
}

// EndpointPolicies converts this config's policy list to the
// []securechannel.EndpointPolicy ServerConfig expects.
func (c SecurityConfig) EndpointPolicies() ([]securechannel.EndpointPolicy, error) {
	out := make([]securechannel.EndpointPolicy, 0, len(c.Policies))
	for _, p := range c.Policies {
		mode, err := ParseMode(p.Mode)
		if err != nil {
			return nil, err
		}
		out = append(out, securechannel.EndpointPolicy{PolicyURI: p.PolicyURI, Mode: mode})
	}
	return out, nil
}

// LocalLimits converts this config's Hello sizing to the
// uacp.LocalLimits a Dial/Accept call expects.
func (c HelloConfig) LocalLimits() uacp.LocalLimits {
	return uacp.LocalLimits{
		ReceiveBufferSize: c.ReceiveBufferSize,
		SendBufferSize:    c.SendBufferSize,
		MaxMessageSize:    c.MaxMessageSize,
		MaxChunkCount:     c.MaxChunks,
	}
}
