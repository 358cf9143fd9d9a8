// Package config loads pageshot settings from flags, environment and an
// optional YAML file through viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/jmylchreest/pageshot/internal/browser"
	"github.com/jmylchreest/pageshot/pkg/capture"
)

// EnvPrefix prefixes every environment variable, e.g. PAGESHOT_ADDR or
// PAGESHOT_CAPTURE_MAX_RETRIES.
const EnvPrefix = "PAGESHOT"

// Config is the full service configuration.
type Config struct {
	Addr      string        `mapstructure:"addr" validate:"required"`
	AssetsDir string        `mapstructure:"assets_dir" validate:"required"`
	Browser   BrowserConfig `mapstructure:"browser"`
	Capture   CaptureConfig `mapstructure:"capture"`
	Server    ServerConfig  `mapstructure:"server"`
}

// BrowserConfig controls how sessions are provisioned.
type BrowserConfig struct {
	Path            string        `mapstructure:"path"`
	Managed         bool          `mapstructure:"managed"`
	UserAgent       string        `mapstructure:"user_agent"`
	Stealth         bool          `mapstructure:"stealth"`
	ViewportWidth   int           `mapstructure:"viewport_width" validate:"min=320,max=7680"`
	ViewportHeight  int           `mapstructure:"viewport_height" validate:"min=240,max=4320"`
	PageLoadTimeout time.Duration `mapstructure:"page_load_timeout" validate:"min=1s"`
}

// CaptureConfig controls retries and page timings.
type CaptureConfig struct {
	MaxRetries   int           `mapstructure:"max_retries" validate:"min=0,max=20"`
	RetryDelay   time.Duration `mapstructure:"retry_delay" validate:"min=0s"`
	ConsentDelay time.Duration `mapstructure:"consent_delay" validate:"min=0s"`
	DismissDelay time.Duration `mapstructure:"dismiss_delay" validate:"min=0s"`
	ScrollPause  time.Duration `mapstructure:"scroll_pause" validate:"min=0s"`
	MaxSegments  int           `mapstructure:"max_segments" validate:"min=0"`
}

// ServerConfig bounds the HTTP API.
type ServerConfig struct {
	MaxConcurrent  int           `mapstructure:"max_concurrent" validate:"min=1"`
	Backlog        int           `mapstructure:"backlog" validate:"min=0"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"min=1s"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:      ":5000",
		AssetsDir: "./assets",
		Browser: BrowserConfig{
			Managed:         true,
			ViewportWidth:   1920,
			ViewportHeight:  capture.DefaultViewportHeight,
			PageLoadTimeout: 30 * time.Second,
		},
		Capture: CaptureConfig{
			MaxRetries:   capture.DefaultMaxRetries,
			RetryDelay:   capture.DefaultRetryDelay,
			ConsentDelay: capture.DefaultConsentDelay,
			DismissDelay: capture.DefaultDismissDelay,
			ScrollPause:  capture.DefaultScrollPause,
		},
		Server: ServerConfig{
			MaxConcurrent:  4,
			Backlog:        16,
			RequestTimeout: 10 * time.Minute,
		},
	}
}

// SetDefaults registers every key with its default so that environment
// overrides are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("addr", d.Addr)
	v.SetDefault("assets_dir", d.AssetsDir)

	v.SetDefault("browser.path", d.Browser.Path)
	v.SetDefault("browser.managed", d.Browser.Managed)
	v.SetDefault("browser.user_agent", d.Browser.UserAgent)
	v.SetDefault("browser.stealth", d.Browser.Stealth)
	v.SetDefault("browser.viewport_width", d.Browser.ViewportWidth)
	v.SetDefault("browser.viewport_height", d.Browser.ViewportHeight)
	v.SetDefault("browser.page_load_timeout", d.Browser.PageLoadTimeout)

	v.SetDefault("capture.max_retries", d.Capture.MaxRetries)
	v.SetDefault("capture.retry_delay", d.Capture.RetryDelay)
	v.SetDefault("capture.consent_delay", d.Capture.ConsentDelay)
	v.SetDefault("capture.dismiss_delay", d.Capture.DismissDelay)
	v.SetDefault("capture.scroll_pause", d.Capture.ScrollPause)
	v.SetDefault("capture.max_segments", d.Capture.MaxSegments)

	v.SetDefault("server.max_concurrent", d.Server.MaxConcurrent)
	v.SetDefault("server.backlog", d.Server.Backlog)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout)
}

// Setup wires environment lookups and the config file search path into v.
// An explicit file wins over $HOME/.pageshot.yaml and ./.pageshot.yaml.
func Setup(v *viper.Viper, file string) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(".pageshot")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
}

// ReadFile reads the config file if one is present. A missing file in the
// default search path is not an error; a missing explicit file is.
func ReadFile(v *viper.Viper) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	return fmt.Errorf("read config: %w", err)
}

// Load unmarshals and validates v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks every field constraint and reports all violations at
// once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s %s", fieldKey(e), formatValidationError(e)))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// fieldKey turns "Config.browser.viewport_width" into the config key.
func fieldKey(e validator.FieldError) string {
	ns := e.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", e.Param())
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}

// BrowserOptions maps the browser section onto provisioning settings.
func (c *Config) BrowserOptions() browser.Config {
	return browser.Config{
		ExecPath:        c.Browser.Path,
		Managed:         c.Browser.Managed,
		UserAgent:       c.Browser.UserAgent,
		Stealth:         c.Browser.Stealth,
		ViewportWidth:   c.Browser.ViewportWidth,
		ViewportHeight:  c.Browser.ViewportHeight,
		PageLoadTimeout: c.Browser.PageLoadTimeout,
	}
}

// CaptureOptions maps the capture section onto capturer options. The
// scroll step always equals the browser viewport height.
func (c *Config) CaptureOptions() capture.Options {
	return capture.Options{
		MaxRetries:     c.Capture.MaxRetries,
		RetryDelay:     c.Capture.RetryDelay,
		ViewportHeight: c.Browser.ViewportHeight,
		ConsentDelay:   c.Capture.ConsentDelay,
		DismissDelay:   c.Capture.DismissDelay,
		ScrollPause:    c.Capture.ScrollPause,
		MaxSegments:    c.Capture.MaxSegments,
	}
}
