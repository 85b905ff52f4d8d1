// Package config loads service configuration from a YAML file, an optional
// .env file and CERTIFY_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gartstein/certify/internal/certification/db"
	"github.com/gartstein/certify/internal/certification/directory"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envPrefix = "certify"

type Config struct {
	GRPCPort int `yaml:"GRPC_PORT" envconfig:"GRPC_PORT"`
	HTTPPort int `yaml:"HTTP_PORT" envconfig:"HTTP_PORT"`
	AuthPort int `yaml:"AUTH_PORT" envconfig:"AUTH_PORT"`

	DBDriver   string `yaml:"DB_DRIVER"   envconfig:"DB_DRIVER"`
	DBHost     string `yaml:"DB_HOST"     envconfig:"DB_HOST"`
	DBPort     int    `yaml:"DB_PORT"     envconfig:"DB_PORT"`
	DBUser     string `yaml:"DB_USER"     envconfig:"DB_USER"`
	DBPassword string `yaml:"DB_PASSWORD" envconfig:"DB_PASSWORD"`
	DBName     string `yaml:"DB_NAME"     envconfig:"DB_NAME"`
	DBSSLMode  string `yaml:"DB_SSLMODE"  envconfig:"DB_SSLMODE"`
	DBPath     string `yaml:"DB_PATH"     envconfig:"DB_PATH"`

	// An empty broker list logs notifications instead of producing them.
	KafkaBrokers  []string `yaml:"KAFKA_BROKERS"  envconfig:"KAFKA_BROKERS"`
	Topic         string   `yaml:"TOPIC"          envconfig:"TOPIC"`
	ConsumerGroup string   `yaml:"CONSUMER_GROUP" envconfig:"CONSUMER_GROUP"`

	JWTSecret string        `yaml:"JWT_SECRET" envconfig:"JWT_SECRET"`
	TokenTTL  time.Duration `yaml:"TOKEN_TTL"  envconfig:"TOKEN_TTL"`

	Users []directory.User `yaml:"USERS" ignored:"true"`
}

// Default returns the configuration used for keys missing from every source.
func Default() *Config {
	return &Config{
		GRPCPort:      50051,
		HTTPPort:      8080,
		AuthPort:      8081,
		DBDriver:      "postgres",
		DBHost:        "localhost",
		DBPort:        5432,
		DBSSLMode:     "disable",
		Topic:         "certification.notifications",
		ConsumerGroup: "certification-notifier",
		TokenTTL:      24 * time.Hour,
	}
}

// Load reads path (skipped when empty), then .env, then the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	switch c.DBDriver {
	case "postgres":
		if c.DBName == "" {
			return errors.New("config: DB_NAME is required for postgres")
		}
	case "sqlite":
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.TokenTTL <= 0 {
		return errors.New("config: TOKEN_TTL must be positive")
	}
	return nil
}

// Database returns the store connection settings.
func (c *Config) Database() *db.Config {
	return &db.Config{
		Driver:   c.DBDriver,
		Host:     c.DBHost,
		Port:     c.DBPort,
		User:     c.DBUser,
		Password: c.DBPassword,
		DBName:   c.DBName,
		SSLMode:  c.DBSSLMode,
		Path:     c.DBPath,
	}
}

// Directory builds the read-only user directory.
func (c *Config) Directory() (*directory.Directory, error) {
	return directory.New(c.Users)
}
