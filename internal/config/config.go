// Package config loads placefinder settings.
//
// Settings come from, lowest precedence first: the defaults in schema.cue,
// a YAML file, a .env file and the process environment. The merged values
// are validated against the CUE schema before they are decoded.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/placefinder/internal/places"
)

//go:embed schema.cue
var schemaCUE string

// Environment variables that override the file.
const (
	EnvAPIKey  = "PLACES_API_KEY"
	EnvBaseURL = "PLACES_BASE_URL"
)

// Config is the validated configuration.
type Config struct {
	BaseURL    string  `json:"base_url" yaml:"base_url"`
	KeyParam   string  `json:"key_param" yaml:"key_param"`
	APIKey     string  `json:"api_key" yaml:"api_key"`
	DebounceMS int     `json:"debounce_ms" yaml:"debounce_ms"`
	TimeoutMS  int     `json:"timeout_ms" yaml:"timeout_ms"`
	RateLimit  float64 `json:"rate_limit" yaml:"rate_limit"`
	RateBurst  int     `json:"rate_burst" yaml:"rate_burst"`
	Journal    string  `json:"journal" yaml:"journal"`
}

// ValidationError reports a configuration value the schema rejected.
type ValidationError struct {
	Source  string // file path, or "defaults"
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config (%s): %s", e.Source, e.Message)
}

// Debounce returns the debounce window.
func (c Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// Timeout returns the per-request HTTP timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// Places returns the client configuration.
func (c Config) Places() places.Config {
	return places.Config{
		BaseURL:  c.BaseURL,
		KeyParam: c.KeyParam,
		APIKey:   c.APIKey,
		Timeout:  c.Timeout(),
	}
}

// RequireAPIKey fails when no API key is configured. Commands that reach
// the network call it; offline commands do not.
func (c Config) RequireAPIKey() error {
	if c.APIKey == "" {
		return &ValidationError{
			Source:  "api_key",
			Message: "no API key: set " + EnvAPIKey + " or api_key in the config file",
		}
	}
	return nil
}

type options struct {
	envFile   string
	lookupEnv func(string) (string, bool)
}

// Option configures Load.
type Option func(*options)

// WithEnvFile reads variables from a dotenv file. A missing file is not an
// error. Variables already set in the environment win.
func WithEnvFile(path string) Option {
	return func(o *options) {
		o.envFile = path
	}
}

// WithLookupEnv replaces os.LookupEnv.
func WithLookupEnv(f func(string) (string, bool)) Option {
	return func(o *options) {
		o.lookupEnv = f
	}
}

// Load reads the YAML file at path (empty path means defaults only),
// applies environment overrides and validates the result.
func Load(path string, opts ...Option) (Config, error) {
	o := options{lookupEnv: os.LookupEnv}
	for _, opt := range opts {
		opt(&o)
	}

	source := "defaults"
	values := map[string]any{}
	if path != "" {
		source = path
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &values); err != nil {
			return Config{}, &ValidationError{Source: path, Message: err.Error()}
		}
		if values == nil {
			values = map[string]any{}
		}
	}

	env, err := readEnv(o)
	if err != nil {
		return Config{}, err
	}
	if v, ok := env[EnvAPIKey]; ok && v != "" {
		values["api_key"] = v
	}
	if v, ok := env[EnvBaseURL]; ok && v != "" {
		values["base_url"] = v
	}

	return decode(source, values)
}

// readEnv merges the dotenv file with the process environment for the
// variables Load cares about.
func readEnv(o options) (map[string]string, error) {
	env := map[string]string{}

	if o.envFile != "" {
		fileEnv, err := godotenv.Read(o.envFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read env file: %w", err)
		}
		for k, v := range fileEnv {
			env[k] = v
		}
	}

	for _, key := range []string{EnvAPIKey, EnvBaseURL} {
		if v, ok := o.lookupEnv(key); ok && v != "" {
			env[key] = v
		}
	}

	return env, nil
}

// decode unifies values with the schema, validates and decodes.
func decode(source string, values map[string]any) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	data := ctx.Encode(values)
	if err := data.Err(); err != nil {
		return Config{}, &ValidationError{Source: source, Message: err.Error()}
	}

	unified := def.Unify(data)
	if err := unified.Validate(cue.Concrete(true), cue.Final()); err != nil {
		return Config{}, &ValidationError{Source: source, Message: err.Error()}
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return Config{}, &ValidationError{Source: source, Message: err.Error()}
	}
	return cfg, nil
}
