// Package config loads the TOML configuration for the vault client
// and server binaries.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ClientConfig locates the vault server and the local key files.
type ClientConfig struct {
	Host               string `toml:"host"`
	Port               int    `toml:"port"`
	TLS                bool   `toml:"tls"`
	CAFile             string `toml:"ca_file"`
	ServerName         string `toml:"server_name"`
	KeyDir             string `toml:"key_dir"`
	User               string `toml:"user"`
	ReadTimeoutSeconds int    `toml:"read_timeout_seconds"`
}

// ServerConfig configures the vault server.
type ServerConfig struct {
	Addr              string `toml:"addr"`
	AdminAddr         string `toml:"admin_addr"`
	DBPath            string `toml:"db_path"`
	TLSCertFile       string `toml:"tls_cert_file"`
	TLSKeyFile        string `toml:"tls_key_file"`
	SessionTTLSeconds int    `toml:"session_ttl_seconds"`
}

func LoadClientConfig(path string) (ClientConfig, error) {
	var cfg ClientConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

// DefaultClientConfig returns the built-in client settings, used when
// no config file exists on disk.
func DefaultClientConfig() ClientConfig {
	var cfg ClientConfig
	cfg.applyDefaults()
	return cfg
}

func (c *ClientConfig) applyDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 4455
	}
	if c.KeyDir == "" {
		c.KeyDir = "keys"
	}
	if c.ReadTimeoutSeconds == 0 {
		c.ReadTimeoutSeconds = 120
	}
}

func (c ClientConfig) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("client config missing host")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("client config port out of range: %d", c.Port)
	}
	if c.ReadTimeoutSeconds < 0 {
		return fmt.Errorf("client config negative read timeout")
	}
	return nil
}

// Address joins host and port into a dialable endpoint.
func (c ClientConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c ClientConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

func LoadServerConfig(path string) (ServerConfig, error) {
	var cfg ServerConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

func (c *ServerConfig) applyDefaults() {
	if c.Addr == "" {
		c.Addr = ":4455"
	}
	if c.DBPath == "" {
		c.DBPath = "passvault.db"
	}
	if c.SessionTTLSeconds == 0 {
		c.SessionTTLSeconds = 3 * 60 * 60
	}
}

func (c ServerConfig) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("server config missing addr")
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("server config missing db_path")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("server config needs both tls_cert_file and tls_key_file")
	}
	if c.SessionTTLSeconds < 0 {
		return fmt.Errorf("server config negative session ttl")
	}
	return nil
}

func (c ServerConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}
