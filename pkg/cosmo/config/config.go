package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	VersionV1 = "v1"

	DefaultUploadEndpoint = "https://od8wzcssy7.execute-api.us-west-2.amazonaws.com/Prod/generate-upload-url"
	DefaultAuthURL        = "https://buildcosmo.com/cli-auth"
	DefaultCallbackPort   = 8789
	DefaultBuildCommand   = "npm run build"
	DefaultTimeout        = "30s"
	DefaultAuthTimeout    = "5m"

	TokenStorageFile     = "file"
	TokenStorageKeychain = "keychain"
)

type Config struct {
	Version        string `yaml:"version" json:"version"`
	UploadEndpoint string `yaml:"upload-endpoint,omitempty" json:"uploadEndpoint,omitempty"`
	AuthURL        string `yaml:"auth-url,omitempty" json:"authUrl,omitempty"`
	CallbackPort   int    `yaml:"callback-port,omitempty" json:"callbackPort,omitempty"`
	BuildCommand   string `yaml:"build-command,omitempty" json:"buildCommand,omitempty"`
	TokenStorage   string `yaml:"token-storage,omitempty" json:"tokenStorage,omitempty"`
	Timeout        string `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	AuthTimeout    string `yaml:"auth-timeout,omitempty" json:"authTimeout,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Version:        VersionV1,
		UploadEndpoint: DefaultUploadEndpoint,
		AuthURL:        DefaultAuthURL,
		CallbackPort:   DefaultCallbackPort,
		BuildCommand:   DefaultBuildCommand,
		TokenStorage:   TokenStorageFile,
		Timeout:        DefaultTimeout,
		AuthTimeout:    DefaultAuthTimeout,
	}
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadOrDefault behaves like Load but falls back to DefaultConfig when the
// file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		def := DefaultConfig()
		return &def, nil
	}
	return nil, err
}

func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	content, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, content, 0o600)
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Version == "" {
		c.Version = def.Version
	}
	if c.UploadEndpoint == "" {
		c.UploadEndpoint = def.UploadEndpoint
	}
	if c.AuthURL == "" {
		c.AuthURL = def.AuthURL
	}
	if c.CallbackPort == 0 {
		c.CallbackPort = def.CallbackPort
	}
	if c.BuildCommand == "" {
		c.BuildCommand = def.BuildCommand
	}
	if c.TokenStorage == "" {
		c.TokenStorage = def.TokenStorage
	}
	if c.Timeout == "" {
		c.Timeout = def.Timeout
	}
	if c.AuthTimeout == "" {
		c.AuthTimeout = def.AuthTimeout
	}
}

// ApplyEnv overrides settings with COSMO_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := strings.TrimSpace(os.Getenv("COSMO_UPLOAD_URL_ENDPOINT")); v != "" {
		c.UploadEndpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("COSMO_AUTH_WEB_URL")); v != "" {
		c.AuthURL = v
	}
	if v := strings.TrimSpace(os.Getenv("COSMO_CALLBACK_PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid COSMO_CALLBACK_PORT %q: %w", v, err)
		}
		c.CallbackPort = port
	}
	if v := strings.TrimSpace(os.Getenv("COSMO_BUILD_COMMAND")); v != "" {
		c.BuildCommand = v
	}
	if v := strings.TrimSpace(os.Getenv("COSMO_TOKEN_STORAGE")); v != "" {
		c.TokenStorage = v
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Version == "" {
		return errors.New("config version missing")
	}
	if c.Version != VersionV1 {
		return fmt.Errorf("unsupported config version: %s", c.Version)
	}
	if err := validateURL("upload-endpoint", c.UploadEndpoint); err != nil {
		return err
	}
	if err := validateURL("auth-url", c.AuthURL); err != nil {
		return err
	}
	if c.CallbackPort < 1 || c.CallbackPort > 65535 {
		return fmt.Errorf("callback-port out of range: %d", c.CallbackPort)
	}
	switch c.TokenStorage {
	case TokenStorageFile, TokenStorageKeychain:
	default:
		return fmt.Errorf("unsupported token-storage %q (expected %s or %s)", c.TokenStorage, TokenStorageFile, TokenStorageKeychain)
	}
	if _, err := c.HTTPTimeout(); err != nil {
		return err
	}
	if _, err := c.LoginTimeout(); err != nil {
		return err
	}
	return nil
}

func (c *Config) HTTPTimeout() (time.Duration, error) {
	return parsePositiveDuration("timeout", c.Timeout)
}

func (c *Config) LoginTimeout() (time.Duration, error) {
	return parsePositiveDuration("auth-timeout", c.AuthTimeout)
}

func parsePositiveDuration(field, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", field)
	}
	return d, nil
}

func validateURL(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", field)
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", field, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL: %s", field, value)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s has no host: %s", field, value)
	}
	return nil
}
