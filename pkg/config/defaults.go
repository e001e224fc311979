package config

import "time"

// Default Hello sizing: 64KB buffers comfortably clear the 8192-byte
// floor spec.md §4.3 step 2 requires of both peers.
const (
	DefaultReceiveBufferSize = 64 << 10
	DefaultSendBufferSize    = 64 << 10
	DefaultMaxMessageSize    = 4 << 20
	DefaultMaxChunks         = 0 // unlimited

	// DefaultTokenLifetimeMin/Max bound the clamp spec.md §4.6 applies to
	// a client's requested token lifetime.
	DefaultTokenLifetimeMin = 1 * time.Minute
	DefaultTokenLifetimeMax = 1 * time.Hour
)

// DefaultConfig returns a Config with every field set to its default
// value: a None-security policy on localhost:4840, conservative Hello
// sizing, and metrics disabled.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "INFO", Format: "text"},
		Listener: ListenerConfig{
			BindAddress:    ":4840",
			EndpointURL:    "opc.tcp://localhost:4840/",
			MaxConnections: 100,
		},
		Hello: HelloConfig{
			ReceiveBufferSize: DefaultReceiveBufferSize,
			SendBufferSize:    DefaultSendBufferSize,
			MaxMessageSize:    DefaultMaxMessageSize,
			MaxChunks:         DefaultMaxChunks,
		},
		Security: SecurityConfig{
			Policies: []SecurityPolicyConfig{
				{PolicyURI: "http://opcfoundation.org/UA/SecurityPolicy#None", Mode: "None"},
			},
			TokenLifetimeMin: DefaultTokenLifetimeMin,
			TokenLifetimeMax: DefaultTokenLifetimeMax,
		},
		Metrics: MetricsConfig{
			Enabled:     false,
			BindAddress: ":9090",
		},
	}
}
