package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode           string        `mapstructure:"mode"`
	Port           int           `mapstructure:"port"`
	ReadLimit      int64         `mapstructure:"read_limit"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	Secret         string        `mapstructure:"secret"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`

	Log         LogConfig         `mapstructure:"log"`
	Show        ShowConfig        `mapstructure:"show"`
	Languages   LanguagesConfig   `mapstructure:"languages"`
	Translation TranslationConfig `mapstructure:"translation"`
	Redis       RedisConfig       `mapstructure:"redis"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Signal      SignalConfig      `mapstructure:"signal"`
	ICE         ICEConfig         `mapstructure:"ice"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type ShowConfig struct {
	Timezone string `mapstructure:"timezone"`
}

type LanguagesConfig struct {
	Base      string   `mapstructure:"base"`
	Supported []string `mapstructure:"supported"`
}

type TranslationConfig struct {
	URL           string        `mapstructure:"url"`
	APIKey        string        `mapstructure:"api_key"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxTextLength int           `mapstructure:"max_text_length"`
	MaxParallel   int           `mapstructure:"max_parallel"`
	Cache         CacheConfig   `mapstructure:"cache"`
}

type CacheConfig struct {
	Driver string        `mapstructure:"driver"`
	Size   int           `mapstructure:"size"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type RateLimitConfig struct {
	Events   int           `mapstructure:"events"`
	Interval time.Duration `mapstructure:"interval"`
}

type SignalConfig struct {
	SendBuffer   int    `mapstructure:"send_buffer"`
	Backpressure string `mapstructure:"backpressure"`
}

type ICEConfig struct {
	Servers []ICEServer `mapstructure:"servers"`
}

type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

const (
	CacheMemory = "memory"
	CacheRedis  = "redis"

	BackpressureDrop = "drop"
	BackpressureKick = "kick"
)

// Location resolves show.timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Show.Timezone)
}

// ICEServers converts the configured servers to pion's representation.
func (c *Config) ICEServers() []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(c.ICE.Servers))
	for _, s := range c.ICE.Servers {
		srv := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			srv.Credential = s.Credential
			srv.CredentialType = webrtc.ICECredentialTypePassword
		}
		out = append(out, srv)
	}
	return out
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("show.timezone: %w", err))
	}
	switch c.Translation.Cache.Driver {
	case CacheMemory, CacheRedis:
	default:
		errs = append(errs, fmt.Errorf("translation.cache.driver %q: want %s or %s", c.Translation.Cache.Driver, CacheMemory, CacheRedis))
	}
	if c.Translation.Cache.Driver == CacheRedis && c.Redis.Address == "" {
		errs = append(errs, errors.New("redis.address is required for the redis cache"))
	}
	switch c.Signal.Backpressure {
	case BackpressureDrop, BackpressureKick:
	default:
		errs = append(errs, fmt.Errorf("signal.backpressure %q: want %s or %s", c.Signal.Backpressure, BackpressureDrop, BackpressureKick))
	}
	if c.RateLimit.Events < 0 {
		errs = append(errs, errors.New("rate_limit.events must not be negative"))
	}
	for _, o := range c.AllowedOrigins {
		if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			errs = append(errs, fmt.Errorf("allowed_origins: %q needs an http:// or https:// scheme", o))
		}
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 3000)
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "25s")
	v.SetDefault("secret", "change-me")
	v.SetDefault("allowed_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)

	v.SetDefault("show.timezone", "Europe/Paris")

	v.SetDefault("languages.base", "fr")
	v.SetDefault("languages.supported", []string{"fr", "en", "es", "de", "it", "pt", "nl"})

	v.SetDefault("translation.url", "")
	v.SetDefault("translation.api_key", "")
	v.SetDefault("translation.timeout", "5s")
	v.SetDefault("translation.max_text_length", 1000)
	v.SetDefault("translation.max_parallel", 16)
	v.SetDefault("translation.cache.driver", CacheMemory)
	v.SetDefault("translation.cache.size", 10000)
	v.SetDefault("translation.cache.ttl", "24h")

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "liveshow:tr")

	v.SetDefault("rate_limit.events", 20)
	v.SetDefault("rate_limit.interval", "5s")

	v.SetDefault("signal.send_buffer", 64)
	v.SetDefault("signal.backpressure", BackpressureDrop)

	v.SetDefault("ice.servers", []map[string]any{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
	})
}

var envBindings = map[string]string{
	"mode":                     "GIN_MODE",
	"port":                     "PORT",
	"secret":                   "SESSION_SECRET",
	"allowed_origins":          "ALLOWED_ORIGINS",
	"log.level":                "LOG_LEVEL",
	"show.timezone":            "SHOW_TIMEZONE",
	"languages.base":           "BASE_LANGUAGE",
	"translation.url":          "TRANSLATE_URL",
	"translation.api_key":      "TRANSLATE_API_KEY",
	"translation.cache.driver": "TRANSLATE_CACHE",
	"redis.address":            "REDIS_ADDRESS",
	"redis.password":           "REDIS_PASSWORD",
}

// Load reads config/config.<CONFIG_ENV>.yaml (dev by default) on top of the
// defaults, then applies environment overrides.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile is Load with an explicit file; a missing file is not an error.
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)

	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.AllowedOrigins = splitList(cfg.AllowedOrigins)
	cfg.Languages.Supported = splitList(cfg.Languages.Supported)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Str("base_language", cfg.Languages.Base).Bool("translation", cfg.Translation.URL != "").
		Msg("config ready")
	return &cfg, nil
}

// splitList flattens comma separated entries coming from env overrides.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
