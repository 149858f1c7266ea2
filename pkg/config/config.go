// Package config loads vitalsd settings from file, environment and flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. VITALS_SERVER_PORT
const EnvPrefix = "VITALS"

// CredentialEnvVars are checked in order when api_key is not set
var CredentialEnvVars = []string{"SMARTSPECTRA_API_KEY", "PRESAGE_API_KEY"}

var (
	ErrInvalidPort       = errors.New("server.port must be between 1 and 65535")
	ErrInvalidEngineKind = errors.New("engine.kind must be process or none")
	ErrInvalidSize       = errors.New("storage sizes must not be negative")
	ErrInvalidRateLimit  = errors.New("ratelimit values must not be negative")
	ErrIncompleteTLS     = errors.New("server.tls_cert and server.tls_key must be set together")
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server" json:"server"`
	Engine    EngineConfig    `mapstructure:"engine" yaml:"engine" json:"engine"`
	APIKey    string          `mapstructure:"api_key" yaml:"api_key" json:"api_key"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage" json:"storage"`
	Log       LogConfig       `mapstructure:"log" yaml:"log" json:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
	Tracing   TracingConfig   `mapstructure:"tracing" yaml:"tracing" json:"tracing"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit" yaml:"ratelimit" json:"ratelimit"`
	Publish   PublishConfig   `mapstructure:"publish" yaml:"publish" json:"publish"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port" yaml:"port" json:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" json:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	CORSOrigin      string        `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	TLSCert         string        `mapstructure:"tls_cert" yaml:"tls_cert" json:"tls_cert"`
	TLSKey          string        `mapstructure:"tls_key" yaml:"tls_key" json:"tls_key"`
}

// TLSEnabled reports whether both halves of the key pair are configured
func (s ServerConfig) TLSEnabled() bool {
	return s.TLSCert != "" && s.TLSKey != ""
}

type EngineConfig struct {
	Kind           string        `mapstructure:"kind" yaml:"kind" json:"kind"`
	Binary         string        `mapstructure:"binary" yaml:"binary" json:"binary"`
	Args           []string      `mapstructure:"args" yaml:"args" json:"args"`
	CameraDevice   string        `mapstructure:"camera_device" yaml:"camera_device" json:"camera_device"`
	CameraDuration time.Duration `mapstructure:"camera_duration" yaml:"camera_duration" json:"camera_duration"`
}

type StorageConfig struct {
	UploadDir       string        `mapstructure:"upload_dir" yaml:"upload_dir" json:"upload_dir"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes" json:"max_upload_bytes"`
	MinFreeBytes    int64         `mapstructure:"min_free_bytes" yaml:"min_free_bytes" json:"min_free_bytes"`
	Retention       time.Duration `mapstructure:"retention" yaml:"retention" json:"retention"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval" json:"cleanup_interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	Dir    string `mapstructure:"dir" yaml:"dir" json:"dir"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio" yaml:"sample_ratio" json:"sample_ratio"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps" yaml:"rps" json:"rps"`
	Burst int     `mapstructure:"burst" yaml:"burst" json:"burst"`
}

type PublishConfig struct {
	MQTT  MQTTConfig  `mapstructure:"mqtt" yaml:"mqtt" json:"mqtt"`
	Redis RedisConfig `mapstructure:"redis" yaml:"redis" json:"redis"`
}

type MQTTConfig struct {
	Broker   string `mapstructure:"broker" yaml:"broker" json:"broker"`
	Topic    string `mapstructure:"topic" yaml:"topic" json:"topic"`
	ClientID string `mapstructure:"client_id" yaml:"client_id" json:"client_id"`
	Username string `mapstructure:"username" yaml:"username" json:"username"`
	Password string `mapstructure:"password" yaml:"password" json:"password"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr" json:"addr"`
	Password string `mapstructure:"password" yaml:"password" json:"password"`
	DB       int    `mapstructure:"db" yaml:"db" json:"db"`
	Stream   string `mapstructure:"stream" yaml:"stream" json:"stream"`
	MaxLen   int64  `mapstructure:"max_len" yaml:"max_len" json:"max_len"`
}

// SetDefaults registers every key with its default so env overrides resolve
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", time.Duration(0))
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.cors_origin", "*")
	v.SetDefault("server.tls_cert", "")
	v.SetDefault("server.tls_key", "")

	v.SetDefault("engine.kind", "process")
	v.SetDefault("engine.binary", "hello_vitals")
	v.SetDefault("engine.args", []string{})
	v.SetDefault("engine.camera_device", "/dev/video0")
	v.SetDefault("engine.camera_duration", 10*time.Second)
	v.SetDefault("api_key", "")

	v.SetDefault("storage.upload_dir", "/app/uploads")
	v.SetDefault("storage.max_upload_bytes", int64(512<<20))
	v.SetDefault("storage.min_free_bytes", int64(64<<20))
	v.SetDefault("storage.retention", 24*time.Hour)
	v.SetDefault("storage.cleanup_interval", time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.dir", "")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("ratelimit.rps", 2.0)
	v.SetDefault("ratelimit.burst", 4)

	v.SetDefault("publish.mqtt.broker", "")
	v.SetDefault("publish.mqtt.topic", "vitals/readings")
	v.SetDefault("publish.mqtt.client_id", "vitalsd")
	v.SetDefault("publish.mqtt.username", "")
	v.SetDefault("publish.mqtt.password", "")
	v.SetDefault("publish.redis.addr", "")
	v.SetDefault("publish.redis.password", "")
	v.SetDefault("publish.redis.db", 0)
	v.SetDefault("publish.redis.stream", "vitals:readings")
	v.SetDefault("publish.redis.max_len", int64(10000))
}

// Load reads configuration into v and decodes it.
// An empty configFile searches ./vitals.yaml and /etc/vitals/vitals.yaml; a missing
// file is not an error unless configFile was given explicitly.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("vitals")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/vitals")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.APIKey == "" {
		cfg.APIKey = CredentialFromEnv()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CredentialFromEnv returns the first non-empty credential variable
func CredentialFromEnv() string {
	for _, name := range CredentialEnvVars {
		if val := os.Getenv(name); val != "" {
			return val
		}
	}
	return ""
}

// Validate rejects settings the daemon cannot run with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Server.Port)
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return ErrIncompleteTLS
	}
	switch c.Engine.Kind {
	case "process", "none":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidEngineKind, c.Engine.Kind)
	}
	if c.Storage.MaxUploadBytes < 0 || c.Storage.MinFreeBytes < 0 {
		return ErrInvalidSize
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return ErrInvalidRateLimit
	}
	return nil
}

// Redacted returns a copy with secrets masked, for display
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	c.APIKey = mask(c.APIKey)
	c.Publish.MQTT.Password = mask(c.Publish.MQTT.Password)
	c.Publish.Redis.Password = mask(c.Publish.Redis.Password)
	c.Engine.Args = append([]string(nil), c.Engine.Args...)
	return c
}
