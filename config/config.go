// Package config loads the server configuration once at start-up.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. GAMEMAKER_STORAGE_BUCKET.
const EnvPrefix = "GAMEMAKER"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address        string        `mapstructure:"address"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// StorageConfig selects and configures the object store.
type StorageConfig struct {
	Type            string  `mapstructure:"type"` // s3, minio, filesystem, memory
	Bucket          string  `mapstructure:"bucket"`
	URLTimeAlive    float64 `mapstructure:"url_time_alive"` // hours
	Endpoint        string  `mapstructure:"endpoint"`
	Region          string  `mapstructure:"region"`
	AccessKeyID     string  `mapstructure:"access_key_id"`
	SecretAccessKey string  `mapstructure:"secret_access_key"`
	UseSSL          bool    `mapstructure:"use_ssl"`
	BasePath        string  `mapstructure:"base_path"`
	SigningSecret   string  `mapstructure:"signing_secret"`
	PublicURL       string  `mapstructure:"public_url"`
}

// URLValidity returns the lifetime of issued pre-signed URLs.
func (c StorageConfig) URLValidity() time.Duration {
	return time.Duration(c.URLTimeAlive * float64(time.Hour))
}

// DatabaseConfig selects and configures the descriptor store.
type DatabaseConfig struct {
	Type       string `mapstructure:"type"` // mongo, sqlite, redis, memory
	URL        string `mapstructure:"url"`
	Name       string `mapstructure:"name"`
	Collection string `mapstructure:"collection"`
	DSN        string `mapstructure:"dsn"`
	RedisDB    int    `mapstructure:"redis_db"`
}

// AuthConfig holds authentication configuration. An empty secret disables
// bearer-token checks.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text, json
}

// Load reads an optional .env file, an optional YAML file at path (or
// ./config.yaml when path is empty) and GAMEMAKER_* environment overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
		logrus.Debug("No .env file found")
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":3002")
	v.SetDefault("server.read_timeout", 20*time.Second)
	v.SetDefault("server.write_timeout", 20*time.Second)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:4200"})

	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.bucket", "cloud-game-maker")
	v.SetDefault("storage.url_time_alive", 2.0)
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.access_key_id", "")
	v.SetDefault("storage.secret_access_key", "")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.base_path", "./data")
	v.SetDefault("storage.signing_secret", "")
	v.SetDefault("storage.public_url", "http://localhost:3002")

	v.SetDefault("database.type", "memory")
	v.SetDefault("database.url", "mongodb://localhost:27017")
	v.SetDefault("database.name", "cloud-game-maker")
	v.SetDefault("database.collection", "Scene")
	v.SetDefault("database.dsn", "scenes.db")
	v.SetDefault("database.redis_db", 0)

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Storage.Bucket) == "" {
		return fmt.Errorf("storage.bucket must be set")
	}
	if c.Storage.URLTimeAlive <= 0 {
		return fmt.Errorf("storage.url_time_alive must be positive, got %v", c.Storage.URLTimeAlive)
	}

	switch c.Storage.Type {
	case "s3", "minio", "memory":
	case "filesystem":
		if c.Storage.SigningSecret == "" {
			return fmt.Errorf("storage.signing_secret must be set for filesystem storage")
		}
	default:
		return fmt.Errorf("unknown storage.type %q", c.Storage.Type)
	}

	switch c.Database.Type {
	case "mongo", "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("unknown database.type %q", c.Database.Type)
	}
	return nil
}
