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

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile        = "config.yaml"
	DefaultKeywordsFile      = "keywords.txt"
	DefaultStatePath         = "last_seen.txt"
	DefaultSQLitePath        = "postwatch.db"
	DefaultStateBackend      = BackendFile
	DefaultBearerTokenEnv    = "X_BEARER_TOKEN"
	DefaultUserIDEnv         = "X_USER_ID"
	DefaultWebhookEnv        = "DISCORD_WEBHOOK"
	DefaultAPIBaseURL        = "https://api.twitter.com"
	DefaultRateLimitCooldown = 15 * time.Minute
	DefaultMaxMessageRunes   = 2000
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

var (
	ErrMissingBearerToken = errors.New("x: bearer token is not set")
	ErrMissingUserID      = errors.New("x: user id is not set")
	ErrMissingWebhook     = errors.New("discord: webhook url is not set")
)

// Duration wraps time.Duration for YAML unmarshaling from strings like "15m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

type Config struct {
	X        XConfig        `yaml:"x"`
	Discord  DiscordConfig  `yaml:"discord"`
	Keywords KeywordsConfig `yaml:"keywords"`
	State    StateConfig    `yaml:"state"`
	Delivery DeliveryConfig `yaml:"delivery"`

	// Dir is the config directory the file was loaded from. Relative
	// paths in the config are resolved against it.
	Dir string `yaml:"-"`
}

type XConfig struct {
	BearerTokenEnv    string   `yaml:"bearer_token_env"`
	UserIDEnv         string   `yaml:"user_id_env"`
	APIBaseURL        string   `yaml:"api_base_url"`
	RateLimitCooldown Duration `yaml:"rate_limit_cooldown"`

	// Resolved from env vars at load time.
	BearerToken string `yaml:"-"`
	UserID      string `yaml:"-"`
}

type DiscordConfig struct {
	WebhookEnv      string `yaml:"webhook_env"`
	MaxMessageRunes int    `yaml:"max_message_runes"`

	// Resolved from env var at load time.
	WebhookURL string `yaml:"-"`
}

type KeywordsConfig struct {
	File string `yaml:"file"`
}

type StateConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

type DeliveryConfig struct {
	// AdvanceOnFailure keeps the watermark moving past a post whose
	// webhook delivery failed. Nil means the default (true).
	AdvanceOnFailure *bool `yaml:"advance_on_failure"`
}

// ShouldAdvanceOnFailure reports whether a failed delivery still marks the post as seen.
func (c DeliveryConfig) ShouldAdvanceOnFailure() bool {
	if c.AdvanceOnFailure == nil {
		return true
	}
	return *c.AdvanceOnFailure
}

// Load reads config.yaml from dir if present, applies defaults, resolves env vars, and validates.
func Load(dir string) (*Config, error) {
	cfg, err := read(dir)
	if err != nil {
		return nil, err
	}

	resolveEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// LoadFile is like Load but skips validation of secrets. It is used by
// commands that only touch local state.
func LoadFile(dir string) (*Config, error) {
	cfg, err := read(dir)
	if err != nil {
		return nil, err
	}
	resolveEnv(cfg)
	if err := validateLocal(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func read(dir string) (*Config, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("config dir is required")
	}

	var cfg Config
	path := filepath.Join(dir, DefaultConfigFile)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Environment alone is a valid configuration.
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.Dir = dir
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.X.BearerTokenEnv == "" {
		cfg.X.BearerTokenEnv = DefaultBearerTokenEnv
	}
	if cfg.X.UserIDEnv == "" {
		cfg.X.UserIDEnv = DefaultUserIDEnv
	}
	if cfg.X.APIBaseURL == "" {
		cfg.X.APIBaseURL = DefaultAPIBaseURL
	}
	if cfg.X.RateLimitCooldown.Duration == 0 {
		cfg.X.RateLimitCooldown.Duration = DefaultRateLimitCooldown
	}
	if cfg.Discord.WebhookEnv == "" {
		cfg.Discord.WebhookEnv = DefaultWebhookEnv
	}
	if cfg.Discord.MaxMessageRunes == 0 {
		cfg.Discord.MaxMessageRunes = DefaultMaxMessageRunes
	}
	if cfg.Keywords.File == "" {
		cfg.Keywords.File = DefaultKeywordsFile
	}
	if cfg.State.Backend == "" {
		cfg.State.Backend = DefaultStateBackend
	}
	if cfg.State.Path == "" {
		cfg.State.Path = DefaultStatePath
		if cfg.State.Backend == BackendSQLite {
			cfg.State.Path = DefaultSQLitePath
		}
	}
}

func resolveEnv(cfg *Config) {
	cfg.X.BearerToken = strings.TrimSpace(os.Getenv(cfg.X.BearerTokenEnv))
	cfg.X.UserID = strings.TrimSpace(os.Getenv(cfg.X.UserIDEnv))
	cfg.Discord.WebhookURL = strings.TrimSpace(os.Getenv(cfg.Discord.WebhookEnv))
}

func validate(cfg *Config) error {
	if cfg.X.BearerToken == "" {
		return fmt.Errorf("%w (env %s)", ErrMissingBearerToken, cfg.X.BearerTokenEnv)
	}
	if cfg.X.UserID == "" {
		return fmt.Errorf("%w (env %s)", ErrMissingUserID, cfg.X.UserIDEnv)
	}
	if _, err := strconv.ParseUint(cfg.X.UserID, 10, 64); err != nil {
		return fmt.Errorf("x: user id %q is not numeric", cfg.X.UserID)
	}
	if cfg.Discord.WebhookURL == "" {
		return fmt.Errorf("%w (env %s)", ErrMissingWebhook, cfg.Discord.WebhookEnv)
	}
	u, err := url.Parse(cfg.Discord.WebhookURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("discord: webhook %q is not an http(s) url", cfg.Discord.WebhookURL)
	}
	return validateLocal(cfg)
}

func validateLocal(cfg *Config) error {
	if _, err := url.Parse(cfg.X.APIBaseURL); err != nil {
		return fmt.Errorf("x.api_base_url: %w", err)
	}
	if cfg.X.RateLimitCooldown.Duration < 0 {
		return fmt.Errorf("x.rate_limit_cooldown: must not be negative, got %s", cfg.X.RateLimitCooldown.Duration)
	}
	if cfg.Discord.MaxMessageRunes < 0 {
		return fmt.Errorf("discord.max_message_runes: must not be negative, got %d", cfg.Discord.MaxMessageRunes)
	}

	switch cfg.State.Backend {
	case BackendFile, BackendSQLite:
		// valid
	default:
		return fmt.Errorf("state.backend: unknown backend %q (want file or sqlite)", cfg.State.Backend)
	}

	return nil
}

// KeywordsPath returns the keyword file path resolved against the config dir.
func (c *Config) KeywordsPath() string {
	return c.resolve(c.Keywords.File)
}

// StatePath returns the watermark location resolved against the config dir.
func (c *Config) StatePath() string {
	return c.resolve(c.State.Path)
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}
