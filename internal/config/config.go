// Package config assembles the twin's settings. Sources are applied in
// order, later ones winning: built-in defaults, a YAML file, a .env file,
// QB_* environment variables, then command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/wondertwin-ai/twin-qwikbasket/internal/catalog"
	"github.com/wondertwin-ai/twin-qwikbasket/pkg/twincore"
)

// DefaultEnvFile is read when present; a missing one is not an error.
const DefaultEnvFile = ".env"

// Config is the full twin configuration.
type Config struct {
	twincore.Config `yaml:",inline"`

	Seed          bool   `yaml:"seed"`
	WebhookSecret string `yaml:"webhook_secret"`

	DeletePolicy string `yaml:"delete_policy"`
	Transitions  string `yaml:"transitions"`

	// RateLimit is requests per second on /v1. 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`

	RequireSession bool          `yaml:"require_session"`
	JWTSecret      string        `yaml:"jwt_secret"`
	OTPTTL         time.Duration `yaml:"otp_ttl"`
	TokenTTL       time.Duration `yaml:"token_ttl"`

	File    string `yaml:"-"`
	EnvFile string `yaml:"-"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Config: twincore.Config{
			Name:    "twin-qwikbasket",
			Port:    8080,
			Latency: 300 * time.Millisecond,
		},
		Seed:         true,
		DeletePolicy: string(catalog.DeleteOrphan),
		Transitions:  string(catalog.FreeTransitions),
		RateBurst:    20,
		OTPTTL:       5 * time.Minute,
		TokenTTL:     24 * time.Hour,
		EnvFile:      DefaultEnvFile,
	}
}

// RegisterFlags binds every setting to fs.
func RegisterFlags(fs *flag.FlagSet, cfg *Config) {
	twincore.RegisterFlags(fs, &cfg.Config)
	fs.StringVar(&cfg.File, "config", cfg.File, "Path to YAML config file")
	fs.StringVar(&cfg.EnvFile, "env-file", cfg.EnvFile, "Path to .env file")
	fs.BoolVar(&cfg.Seed, "seed", cfg.Seed, "Load the built-in fixture on start and reset")
	fs.StringVar(&cfg.WebhookSecret, "webhook-secret", cfg.WebhookSecret, "HMAC secret for change events")
	fs.StringVar(&cfg.DeletePolicy, "delete-policy", cfg.DeletePolicy, "Main category delete policy: orphan, cascade or restrict")
	fs.StringVar(&cfg.Transitions, "transitions", cfg.Transitions, "Order status transitions: free or forward")
	fs.Float64Var(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "Requests per second on /v1, 0 disables")
	fs.IntVar(&cfg.RateBurst, "rate-burst", cfg.RateBurst, "Rate limiter burst size")
	fs.BoolVar(&cfg.RequireSession, "require-session", cfg.RequireSession, "Reject /v1 requests without a session token")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "HS256 secret for session tokens, random when empty")
	fs.DurationVar(&cfg.OTPTTL, "otp-ttl", cfg.OTPTTL, "Lifetime of an OTP code")
	fs.DurationVar(&cfg.TokenTTL, "token-ttl", cfg.TokenTTL, "Lifetime of a session token")
}

// Load builds the configuration for a process started with args.
// Flags are parsed twice: once to find -config and -env-file, and again on
// top of the file and environment so they win.
func Load(name string, args []string) (*Config, error) {
	probe := Default()
	pfs := flag.NewFlagSet(name, flag.ContinueOnError)
	RegisterFlags(pfs, &probe)
	if err := pfs.Parse(args); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := loadEnvFile(probe.EnvFile, probe.EnvFile == DefaultEnvFile); err != nil {
		return nil, err
	}
	if probe.File != "" {
		if err := LoadFile(probe.File, &cfg); err != nil {
			return nil, err
		}
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	ffs := flag.NewFlagSet(name, flag.ContinueOnError)
	RegisterFlags(ffs, &cfg)
	if err := ffs.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadEnvFile exports the file's variables without overriding ones already
// set in the environment.
func loadEnvFile(path string, optional bool) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// LoadFile merges a YAML file into cfg. Keys absent from the file keep
// their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.File = path
	return nil
}

// ApplyEnv overrides cfg from QB_* variables found by lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	parse := func(key string, fn func(string) error) {
		if v, ok := lookup(key); ok && v != "" {
			if err := fn(v); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
		}
	}
	intVar := func(key string, dst *int) {
		parse(key, func(v string) (err error) { *dst, err = strconv.Atoi(v); return })
	}
	floatVar := func(key string, dst *float64) {
		parse(key, func(v string) (err error) { *dst, err = strconv.ParseFloat(v, 64); return })
	}
	boolVar := func(key string, dst *bool) {
		parse(key, func(v string) (err error) { *dst, err = strconv.ParseBool(v); return })
	}
	durVar := func(key string, dst *time.Duration) {
		parse(key, func(v string) (err error) { *dst, err = time.ParseDuration(v); return })
	}

	intVar("QB_PORT", &cfg.Port)
	durVar("QB_LATENCY", &cfg.Latency)
	floatVar("QB_FAIL_RATE", &cfg.FailRate)
	str("QB_WEBHOOK_URL", &cfg.WebhookURL)
	str("QB_WEBHOOK_SECRET", &cfg.WebhookSecret)
	str("QB_SEED_FILE", &cfg.SeedFile)
	boolVar("QB_SEED", &cfg.Seed)
	boolVar("QB_VERBOSE", &cfg.Verbose)
	str("QB_DELETE_POLICY", &cfg.DeletePolicy)
	str("QB_TRANSITIONS", &cfg.Transitions)
	floatVar("QB_RATE_LIMIT", &cfg.RateLimit)
	intVar("QB_RATE_BURST", &cfg.RateBurst)
	boolVar("QB_REQUIRE_SESSION", &cfg.RequireSession)
	str("QB_JWT_SECRET", &cfg.JWTSecret)
	durVar("QB_OTP_TTL", &cfg.OTPTTL)
	durVar("QB_TOKEN_TTL", &cfg.TokenTTL)
	return errors.Join(errs...)
}

// Validate checks ranges and enum values.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Latency < 0 {
		errs = append(errs, errors.New("latency must not be negative"))
	}
	if c.FailRate < 0 || c.FailRate > 1 {
		errs = append(errs, fmt.Errorf("fail_rate %v must be between 0.0 and 1.0", c.FailRate))
	}
	if _, err := catalog.ParseDeletePolicy(c.DeletePolicy); err != nil {
		errs = append(errs, err)
	}
	if _, err := catalog.ParseTransitionPolicy(c.Transitions); err != nil {
		errs = append(errs, err)
	}
	if c.RateLimit < 0 {
		errs = append(errs, errors.New("rate_limit must not be negative"))
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		errs = append(errs, errors.New("rate_burst must be at least 1 when rate_limit is set"))
	}
	return errors.Join(errs...)
}

// CatalogPolicies returns the parsed delete and transition policies.
// Call after Validate.
func (c *Config) CatalogPolicies() (catalog.DeletePolicy, catalog.TransitionPolicy) {
	d, _ := catalog.ParseDeletePolicy(c.DeletePolicy)
	t, _ := catalog.ParseTransitionPolicy(c.Transitions)
	return d, t
}
