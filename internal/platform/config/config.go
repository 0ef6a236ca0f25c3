package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config is the resolved service configuration.
type Config struct {
	Port      string `yaml:"port" toml:"port" env:"PORT" env-default:"8080"`
	LogLevel  string `yaml:"log_level" toml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `yaml:"log_format" toml:"log_format" env:"LOG_FORMAT" env-default:"json"`

	Session  SessionConfig  `yaml:"session" toml:"session"`
	Resolver ResolverConfig `yaml:"resolver" toml:"resolver"`
	MQTT     MQTTConfig     `yaml:"mqtt" toml:"mqtt"`
}

// SessionConfig controls session retention.
type SessionConfig struct {
	// TTL is how long a session may go without a mutation before it is
	// purged. Zero keeps sessions for the life of the process.
	TTL             time.Duration `yaml:"ttl" toml:"ttl" env:"SESSION_TTL" env-default:"30m"`
	JanitorInterval time.Duration `yaml:"janitor_interval" toml:"janitor_interval" env:"SESSION_JANITOR_INTERVAL" env-default:"1m"`
}

// ResolverConfig controls the media-info provider and delivery.
type ResolverConfig struct {
	Provider              string        `yaml:"provider" toml:"provider" env:"PROVIDER" env-default:"http"`
	InfoEndpoint          string        `yaml:"info_endpoint" toml:"info_endpoint" env:"INFO_ENDPOINT"`
	YTDLPPath             string        `yaml:"ytdlp_path" toml:"ytdlp_path" env:"YTDLP_PATH" env-default:"yt-dlp"`
	ResolveTimeout        time.Duration `yaml:"resolve_timeout" toml:"resolve_timeout" env:"RESOLVE_TIMEOUT" env-default:"15s"`
	UpstreamHeaderTimeout time.Duration `yaml:"upstream_header_timeout" toml:"upstream_header_timeout" env:"UPSTREAM_HEADER_TIMEOUT" env-default:"10s"`
	StreamIdleTimeout     time.Duration `yaml:"stream_idle_timeout" toml:"stream_idle_timeout" env:"STREAM_IDLE_TIMEOUT" env-default:"30s"`
	CacheTTL              time.Duration `yaml:"cache_ttl" toml:"cache_ttl" env:"INFO_CACHE_TTL" env-default:"5m"`
	CacheBytes            int           `yaml:"cache_bytes" toml:"cache_bytes" env:"INFO_CACHE_BYTES" env-default:"67108864"`
	CacheCompress         bool          `yaml:"cache_compress" toml:"cache_compress" env:"INFO_CACHE_COMPRESS" env-default:"true"`
	FilenameSuffix        string        `yaml:"filename_suffix" toml:"filename_suffix" env:"FILENAME_SUFFIX" env-default:" - media-relay"`
}

// MQTTConfig enables publishing session state to an MQTT broker. Publishing
// is off when Broker is empty.
type MQTTConfig struct {
	Broker    string `yaml:"broker" toml:"broker" env:"MQTT_BROKER"`
	ClientID  string `yaml:"client_id" toml:"client_id" env:"MQTT_CLIENT_ID" env-default:"media-relay"`
	Username  string `yaml:"username" toml:"username" env:"MQTT_USERNAME"`
	Password  string `yaml:"password" toml:"password" env:"MQTT_PASSWORD"`
	TopicBase string `yaml:"topic_base" toml:"topic_base" env:"MQTT_TOPIC_BASE" env-default:"media-relay"`
}

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// Read builds a Config. When file is set it is parsed first (yaml, toml or
// json by extension) and environment variables override its values;
// otherwise the environment and defaults are used.
func Read(file string) (Config, error) {
	var cfg Config
	var err error
	if file != "" {
		err = cleanenv.ReadConfig(file, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that have no usable default.
func (c Config) Validate() error {
	switch c.Resolver.Provider {
	case "http":
		if c.Resolver.InfoEndpoint == "" {
			return fmt.Errorf("config: INFO_ENDPOINT is required for the http provider")
		}
	case "ytdlp":
	default:
		return fmt.Errorf("config: unknown provider %q", c.Resolver.Provider)
	}
	if c.Session.TTL < 0 {
		return fmt.Errorf("config: SESSION_TTL must not be negative")
	}
	return nil
}
