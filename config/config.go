// Package config loads and validates certward configuration from a YAML
// file, with environment variable overrides for deployment secrets and
// paths.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the service.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	RecordStore RecordStoreConfig `yaml:"record_store"`
	Signer      SignerConfig      `yaml:"signer"`
	Allowlist   AllowlistConfig   `yaml:"allowlist"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig contains the operational HTTP surface settings. The
// server always speaks TLS; when no pair is configured it generates a
// self-signed certificate at startup.
type ServerConfig struct {
	ListenAddr  string `yaml:"listen_addr"`
	TLSCertPath string `yaml:"tls_cert_path"`
	TLSKeyPath  string `yaml:"tls_key_path"`
}

// RecordStoreConfig selects and configures the certificate record store
// backend. An empty Backend disables record keeping (and with it replay
// detection), which is a supported deployment choice.
type RecordStoreConfig struct {
	Backend          string `yaml:"backend"`
	Path             string `yaml:"path"`
	DSN              string `yaml:"dsn"`
	PasswordFile     string `yaml:"password_file"`
	OpTimeoutSeconds int    `yaml:"op_timeout_seconds"`
	FailClosed       bool   `yaml:"fail_closed"`
}

// OperationTimeout converts the configured seconds to a duration. Zero
// and negative values fall back to the store default downstream.
func (c RecordStoreConfig) OperationTimeout() time.Duration {
	return time.Duration(c.OpTimeoutSeconds) * time.Second
}

// SignerConfig locates the local signer's CA material. When all paths
// are empty the server generates ephemeral material at startup, which
// is only suitable for development.
type SignerConfig struct {
	CACertPath     string `yaml:"ca_cert_path"`
	CAKeyPath      string `yaml:"ca_key_path"`
	SSHHostKeyPath string `yaml:"ssh_host_key_path"`
	SSHUserKeyPath string `yaml:"ssh_user_key_path"`
}

// Ephemeral reports whether no CA material is configured.
func (c SignerConfig) Ephemeral() bool {
	return c.CACertPath == "" && c.CAKeyPath == "" &&
		c.SSHHostKeyPath == "" && c.SSHUserKeyPath == ""
}

// AllowlistConfig holds the paths of the two allowlist files. Empty
// paths disable the corresponding check (allow all).
type AllowlistConfig struct {
	CertRefreshPath      string `yaml:"cert_refresh_path"`
	InstanceRegisterPath string `yaml:"instance_register_path"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// LoadWithEnv loads configuration from a file and applies environment
// variable overrides.
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if backend := os.Getenv("CERTWARD_RECORD_STORE_BACKEND"); backend != "" {
		cfg.RecordStore.Backend = backend
	}
	if dsn := os.Getenv("CERTWARD_RECORD_STORE_DSN"); dsn != "" {
		cfg.RecordStore.DSN = dsn
	}
	if path := os.Getenv("CERTWARD_RECORD_STORE_PATH"); path != "" {
		cfg.RecordStore.Path = path
	}
	if addr := os.Getenv("CERTWARD_LISTEN_ADDR"); addr != "" {
		cfg.Server.ListenAddr = addr
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8443"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}

	if c.RecordStore.Backend == "bolt" && c.RecordStore.Path == "" {
		return fmt.Errorf("record_store.path is required for the bolt backend")
	}
	if c.RecordStore.Backend == "postgres" && c.RecordStore.DSN == "" {
		return fmt.Errorf("record_store.dsn is required for the postgres backend")
	}

	if (c.Server.TLSCertPath == "") != (c.Server.TLSKeyPath == "") {
		return fmt.Errorf("server requires either both tls_cert_path and tls_key_path or neither")
	}

	partial := !c.Signer.Ephemeral() &&
		(c.Signer.CACertPath == "" || c.Signer.CAKeyPath == "" ||
			c.Signer.SSHHostKeyPath == "" || c.Signer.SSHUserKeyPath == "")
	if partial {
		return fmt.Errorf("signer requires either all CA material paths or none")
	}
	return nil
}
