// Package config loads this module's runtime configuration: listener
// binding, Hello/Acknowledge sizing defaults, the set of security
// policy/mode combinations an endpoint offers, token lifetime bounds, and
// the connection cap (SPEC_FULL.md §9.3). It follows dittofs's
// pkg/config/config.go layering — a struct tagged for both `mapstructure`
// (bound through spf13/viper, env override prefix UACORE_) and `yaml` (for
// file generation via gopkg.in/yaml.v3), validated with
// go-playground/validator/v10 struct tags — generalized from dittofs's
// server-wide config down to the fields a protocol core, not a full
// server, actually owns.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// envPrefix is the environment-variable prefix viper binds config keys
// under, e.g. UACORE_LISTENER_BIND_ADDRESS.
const envPrefix = "UACORE"

// Config is this module's complete runtime configuration.
type Config struct {
	// Logging controls internal/log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Listener binds the UACP transport's listening socket and the
	// endpoint URL it advertises.
	Listener ListenerConfig `mapstructure:"listener" yaml:"listener"`

	// Hello carries the Hello/Acknowledge sizing defaults this endpoint
	// offers (spec.md §4.3).
	Hello HelloConfig `mapstructure:"hello" yaml:"hello"`

	// Security lists the policy/mode combinations this endpoint accepts
	// and the token lifetime bounds it enforces.
	Security SecurityConfig `mapstructure:"security" yaml:"security"`

	// Metrics controls the Prometheus metrics server.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls internal/log.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
}

// ListenerConfig configures the endpoint's listening socket.
type ListenerConfig struct {
	// BindAddress is the host:port the endpoint listens on, e.g. ":4840".
	BindAddress string `mapstructure:"bind_address" validate:"required" yaml:"bind_address"`
	// EndpointURL is the opc.tcp:// URL advertised to clients (Part 6
	// table 35 caps this at 4096 bytes).
	EndpointURL string `mapstructure:"endpoint_url" validate:"required,max=4096" yaml:"endpoint_url"`
	// MaxConnections bounds concurrent secure channels
	// (OPCUA_ENDPOINT_MAXCONNECTIONS); 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"gte=0" yaml:"max_connections"`
}

// HelloConfig carries this endpoint's local Hello/Acknowledge sizing
// defaults. A value of 0 for MaxMessageSize or MaxChunks means
// "unlimited" (spec.md §4.3 step 4); the floor on buffer sizes is
// enforced separately in pkg/uacp (MinBufferSize).
type HelloConfig struct {
	ReceiveBufferSize uint32 `mapstructure:"receive_buffer_size" validate:"gte=8192" yaml:"receive_buffer_size"`
	SendBufferSize    uint32 `mapstructure:"send_buffer_size" validate:"gte=8192" yaml:"send_buffer_size"`
	MaxMessageSize    uint32 `mapstructure:"max_message_size" yaml:"max_message_size"`
	MaxChunks         uint32 `mapstructure:"max_chunks" yaml:"max_chunks"`
}

// SecurityPolicyConfig is one policy/mode combination an endpoint offers.
type SecurityPolicyConfig struct {
	PolicyURI string `mapstructure:"policy_uri" validate:"required" yaml:"policy_uri"`
	Mode      string `mapstructure:"mode" validate:"required,oneof=None Sign SignAndEncrypt" yaml:"mode"`
}

// SecurityConfig configures the policies an endpoint accepts and the
// token lifetime bounds it enforces (spec.md §4.6 "TOKEN_LIFETIME_MIN/MAX").
type SecurityConfig struct {
	Policies         []SecurityPolicyConfig `mapstructure:"policies" validate:"required,min=1,dive" yaml:"policies"`
	TokenLifetimeMin time.Duration          `mapstructure:"token_lifetime_min" validate:"required,gt=0" yaml:"token_lifetime_min"`
	TokenLifetimeMax time.Duration          `mapstructure:"token_lifetime_max" validate:"required,gtfield=TokenLifetimeMin" yaml:"token_lifetime_max"`
	// CertificatePath/PrivateKeyPath locate this endpoint's identity on
	// disk; loading and parsing them is a CLI/application concern, out
	// of scope per spec.md §1 ("file loading of keys/certs").
	CertificatePath string `mapstructure:"certificate_path" yaml:"certificate_path"`
	PrivateKeyPath  string `mapstructure:"private_key_path" yaml:"private_key_path"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	BindAddress string `mapstructure:"bind_address" validate:"required_if=Enabled true" yaml:"bind_address"`
}

// Load starts from DefaultConfig and, when a config file is found,
// overlays the file's settings; an environment variable under envPrefix
// overrides a setting the file contains. When no file is found the
// defaults are used as they are. The result is then validated.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if found {
		if err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.StringToTimeDurationHookFunc())); err != nil {
			return nil, fmt.Errorf("config: unmarshal: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

// Save writes cfg to path in YAML, creating parent directories as needed.
func Save(cfg *Config, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create directory: %w", err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(".")
	v.SetConfigName("uacore")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: read file: %w", err)
	}
	return true, nil
}
