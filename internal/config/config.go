// Package config loads service configuration from config.toml and the
// environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Store     StoreConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	TLS       TLSConfig
	Matching  MatchingConfig
	Notify    NotifyConfig
	Log       LogConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// StoreConfig selects and configures the document store
type StoreConfig struct {
	Driver   string // mongo or memory
	MongoURI string
	Database string
}

// RedisConfig configures the notification pub/sub sink; empty Addr disables it
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	ChannelPrefix string
}

// JWTConfig holds token signing settings. Keys enables rotation: tokens are
// signed with ActiveKID and verified with whichever kid they carry.
type JWTConfig struct {
	Secret    string
	Keys      map[string]string
	ActiveKID string
	TTL       time.Duration
}

// RateLimitConfig holds per-client limits for the sensitive RPCs and the
// per-recipient notification limit
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
	NotifyPerMinute   int
	NotifyBurst       int
}

// TLSConfig holds server certificate settings
type TLSConfig struct {
	CertFile string
	KeyFile  string
	Required bool
}

// MatchingConfig holds match lifecycle settings
type MatchingConfig struct {
	// StrictPairKey adds a unique index on the canonical pair so concurrent
	// mutual requests cannot create two matches.
	StrictPairKey bool
	// RetryDelay is the pause before a live component re-subscribes.
	RetryDelay time.Duration
}

// NotifyConfig holds dispatcher settings
type NotifyConfig struct {
	QueueSize int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
	Output string
}

// legacyEnv maps config keys to the plain environment variables earlier
// deployments used. RESONANCE_* always wins over them.
var legacyEnv = map[string]string{
	"store.mongo_uri":                "MONGODB_URI",
	"jwt.secret":                     "JWT_SECRET",
	"jwt.keys":                       "JWT_KEYS",
	"jwt.active_kid":                 "JWT_ACTIVE_KID",
	"app.port":                       "PORT",
	"rate_limit.requests_per_minute": "RATE_LIMIT_RPM",
	"tls.cert_file":                  "TLS_CERT",
	"tls.key_file":                   "TLS_KEY",
	"tls.required":                   "REQUIRE_TLS",
	"redis.addr":                     "REDIS_ADDR",
}

// Load reads configuration.
// Priority (highest to lowest):
// 1. Environment variables with RESONANCE_ prefix (e.g., RESONANCE_STORE_DRIVER)
// 2. Legacy environment variables (MONGODB_URI, JWT_SECRET, PORT, ...)
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/resonance")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("RESONANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := "RESONANCE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	keys, err := ParseKeys(v.GetString("jwt.keys"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Store: StoreConfig{
			Driver:   v.GetString("store.driver"),
			MongoURI: v.GetString("store.mongo_uri"),
			Database: v.GetString("store.database"),
		},
		Redis: RedisConfig{
			Addr:          v.GetString("redis.addr"),
			Password:      v.GetString("redis.password"),
			DB:            v.GetInt("redis.db"),
			ChannelPrefix: v.GetString("redis.channel_prefix"),
		},
		JWT: JWTConfig{
			Secret:    v.GetString("jwt.secret"),
			Keys:      keys,
			ActiveKID: v.GetString("jwt.active_kid"),
			TTL:       v.GetDuration("jwt.ttl"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: v.GetInt("rate_limit.requests_per_minute"),
			Burst:             v.GetInt("rate_limit.burst"),
			NotifyPerMinute:   v.GetInt("rate_limit.notify_per_minute"),
			NotifyBurst:       v.GetInt("rate_limit.notify_burst"),
		},
		TLS: TLSConfig{
			CertFile: v.GetString("tls.cert_file"),
			KeyFile:  v.GetString("tls.key_file"),
			Required: v.GetBool("tls.required"),
		},
		Matching: MatchingConfig{
			StrictPairKey: v.GetBool("matching.strict_pair_key"),
			RetryDelay:    v.GetDuration("matching.retry_delay"),
		},
		Notify: NotifyConfig{
			QueueSize: v.GetInt("notify.queue_size"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseKeys parses "kid:secret,kid2:secret2".
func ParseKeys(s string) (map[string]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	keys := map[string]string{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		parts := strings.SplitN(p, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid jwt.keys entry: %q", p)
		}
		keys[parts[0]] = parts[1]
	}
	return keys, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "resonance"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "50051"
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DriverMongo
	}
	if cfg.Store.Database == "" {
		cfg.Store.Database = "resonance"
	}
	if cfg.Redis.ChannelPrefix == "" {
		cfg.Redis.ChannelPrefix = "notifications:"
	}
	if cfg.JWT.TTL == 0 {
		cfg.JWT.TTL = 24 * time.Hour
	}
	if cfg.JWT.ActiveKID == "" && len(cfg.JWT.Keys) == 1 {
		for kid := range cfg.JWT.Keys {
			cfg.JWT.ActiveKID = kid
		}
	}
	if cfg.RateLimit.RequestsPerMinute <= 0 {
		cfg.RateLimit.RequestsPerMinute = 10
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 3
	}
	if cfg.RateLimit.NotifyPerMinute <= 0 {
		cfg.RateLimit.NotifyPerMinute = 20
	}
	if cfg.RateLimit.NotifyBurst <= 0 {
		cfg.RateLimit.NotifyBurst = 5
	}
	if cfg.Matching.RetryDelay == 0 {
		cfg.Matching.RetryDelay = 2 * time.Second
	}
	if cfg.Notify.QueueSize <= 0 {
		cfg.Notify.QueueSize = 256
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
		if cfg.App.Env == "production" {
			cfg.Log.Format = "json"
		}
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Store.Driver {
	case DriverMongo:
		if c.Store.MongoURI == "" {
			return fmt.Errorf("store.mongo_uri (MONGODB_URI) must be set for the mongo driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("store.driver must be %q or %q, got %q", DriverMongo, DriverMemory, c.Store.Driver)
	}

	if c.JWT.Secret == "" && len(c.JWT.Keys) == 0 {
		return fmt.Errorf("either jwt.secret (JWT_SECRET) or jwt.keys (JWT_KEYS) must be set")
	}
	if len(c.JWT.Keys) > 0 {
		if _, ok := c.JWT.Keys[c.JWT.ActiveKID]; !ok {
			return fmt.Errorf("jwt.active_kid %q is not one of jwt.keys", c.JWT.ActiveKID)
		}
	}

	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		return fmt.Errorf("tls.cert_file and tls.key_file must be set together")
	}
	if c.TLS.Required && c.TLS.CertFile == "" {
		return fmt.Errorf("tls.required is true but tls.cert_file/tls.key_file are not configured")
	}

	if c.App.Env == "production" {
		if c.Store.Driver == DriverMemory {
			return fmt.Errorf("store.driver cannot be memory in production")
		}
		if len(c.JWT.Keys) == 0 && len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
	}
	return nil
}
