package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notecommits/internal/commits"
	"github.com/starford/notecommits/internal/spotlight"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Vault     VaultConfig       `yaml:"vault"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Auth      AuthConfig        `yaml:"auth"`
	Commits   CommitsConfig     `yaml:"commits"`
	Spotlight SpotlightConfig   `yaml:"spotlight"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Commits.Validate(); err != nil {
		return fmt.Errorf("commits: %w", err)
	}
	if err := c.Spotlight.Validate(); err != nil {
		return fmt.Errorf("spotlight: %w", err)
	}
	return nil
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

// VaultConfig holds the path to the Markdown vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
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
	// Normalise empty mode to "disabled" for backward compatibility.
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

// CommitsConfig holds the commit tracking defaults. The values seed the
// persisted settings on first start; afterwards the persisted ones win.
type CommitsConfig struct {
	Threshold         int64         `yaml:"threshold"`
	Percent           float64       `yaml:"percent"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	Top               int           `yaml:"top"`
	Chart             ChartConfig   `yaml:"chart"`
}

// ChartConfig holds the default look of rendered commit blocks.
type ChartConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Align  string `yaml:"align"`
	Fill   string `yaml:"fill"`
	Border string `yaml:"border"`
	Grid   string `yaml:"grid"`
}

// Validate validates the commits configuration.
func (c *CommitsConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.ReconcileInterval, validation.Required, validation.Min(time.Second)),
	); err != nil {
		return err
	}
	s := c.Settings()
	return s.Validate()
}

// Settings converts the configuration into commit settings.
func (c *CommitsConfig) Settings() commits.Settings {
	return commits.Settings{
		TopCommits:      c.Top,
		CommitThreshold: c.Threshold,
		CommitPerc:      c.Percent,
		DivWidth:        c.Chart.Width,
		DivHeight:       c.Chart.Height,
		DivAlign:        c.Chart.Align,
		FillColor:       c.Chart.Fill,
		BorderColor:     c.Chart.Border,
		GridColor:       c.Chart.Grid,
	}
}

// SpotlightConfig holds the default spotlight container size.
type SpotlightConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Validate validates the spotlight configuration.
func (c *SpotlightConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Width, validation.Required, validation.Min(1)),
		validation.Field(&c.Height, validation.Required, validation.Min(1)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	cd := commits.DefaultSettings()
	sd := spotlight.DefaultSettings()
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
		SQLite: SQLiteConfig{
			Path: "./notecommits.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Commits: CommitsConfig{
			Threshold:         cd.CommitThreshold,
			Percent:           cd.CommitPerc,
			ReconcileInterval: 5 * time.Minute,
			Top:               cd.TopCommits,
			Chart: ChartConfig{
				Width:  cd.DivWidth,
				Height: cd.DivHeight,
				Align:  cd.DivAlign,
				Fill:   cd.FillColor,
				Border: cd.BorderColor,
				Grid:   cd.GridColor,
			},
		},
		Spotlight: SpotlightConfig{
			Width:  sd.DivWidth,
			Height: sd.DivHeight,
		},
	}
}
