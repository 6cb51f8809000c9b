package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/fitrunner/internal/protocol"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Vault   VaultConfig       `yaml:"vault"`
	History HistoryConfig     `yaml:"history"`
	Fixture FixtureConfig     `yaml:"fixture"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.History.Validate(); err != nil {
		return err
	}
	if err := c.Fixture.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the path to the document tree.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// HistoryConfig holds the test history location and its SQLite index.
type HistoryConfig struct {
	// Disabled turns history off for every run.
	Disabled bool `yaml:"disabled"`
	// Path is the directory record files are written under.
	Path string `yaml:"path"`
	// IndexPath is the SQLite database indexing the records.
	IndexPath string `yaml:"index_path"`
}

// Validate validates the history configuration.
func (c *HistoryConfig) Validate() error {
	if c.Disabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.IndexPath, validation.Required),
	)
}

// FixtureConfig describes how fixture servers are started and reached.
//
// Commands are templates; {host}, {port}, {classpath}, {id} and {document}
// are substituted before launch.
type FixtureConfig struct {
	Host             string        `yaml:"host"`
	FitCommand       string        `yaml:"fit_command"`
	SlimCommand      string        `yaml:"slim_command"`
	PortMin          int           `yaml:"port_min"`
	PortMax          int           `yaml:"port_max"`
	AcceptTimeout    time.Duration `yaml:"accept_timeout"`
	ExecutionTimeout time.Duration `yaml:"execution_timeout"`
	MaxFrameBytes    int           `yaml:"max_frame_bytes"`
}

// Validate validates the fixture configuration.
func (c *FixtureConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Host, validation.Required),
		validation.Field(&c.FitCommand, validation.Required),
		validation.Field(&c.SlimCommand, validation.Required),
		validation.Field(&c.PortMin, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.PortMax, validation.Required, validation.Min(c.PortMin), validation.Max(65535)),
		validation.Field(&c.AcceptTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.ExecutionTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxFrameBytes, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("fixture: %w", err)
	}
	return nil
}

// Commands returns the launch template of each test system.
func (c *FixtureConfig) Commands() map[protocol.Kind]string {
	return map[protocol.Kind]string{
		protocol.KindFit:  c.FitCommand,
		protocol.KindSlim: c.SlimCommand,
	}
}

// Limits returns the frame limits, defaulting when unset.
func (c *FixtureConfig) Limits() protocol.Limits {
	l := protocol.DefaultLimits()
	if c.MaxFrameBytes > 0 {
		l.MaxFrameBytes = c.MaxFrameBytes
	}
	return l
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		History: HistoryConfig{
			Path:      "./history",
			IndexPath: "./fitrunner.db",
		},
		Fixture: FixtureConfig{
			Host:             "127.0.0.1",
			FitCommand:       "java -cp {classpath} fit.FitServer {host} {port} {id}",
			SlimCommand:      "java -cp {classpath} fitnesse.slim.SlimService {port}",
			PortMin:          8085,
			PortMax:          8185,
			AcceptTimeout:    10 * time.Second,
			ExecutionTimeout: 5 * time.Minute,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
