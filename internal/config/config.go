package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ErrMissing marks a required setting that is absent; startup cannot continue.
var ErrMissing = errors.New("required configuration is missing")

type Config struct {
	Server    ServerConfig    `mapstructure:"Server"`
	Database  DatabaseConfig  `mapstructure:"Database"`
	Storage   StorageConfig   `mapstructure:"Storage"`
	Dashboard DashboardConfig `mapstructure:"Dashboard"`
	Redis     RedisConfig     `mapstructure:"Redis"`
}

type ServerConfig struct {
	Port           string   `mapstructure:"Port"`
	GRPCPort       string   `mapstructure:"GRPCPort"`
	AllowedOrigins []string `mapstructure:"AllowedOrigins"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"Host"`
	Port     string `mapstructure:"Port"`
	User     string `mapstructure:"User"`
	Password string `mapstructure:"Password"`
	Name     string `mapstructure:"Name"`
	SSLMode  string `mapstructure:"SSLMode"`
}

type StorageConfig struct {
	DefaultLimit    int64 `mapstructure:"DefaultLimit"`
	MaxUploadMemory int64 `mapstructure:"MaxUploadMemory"`
}

type DashboardConfig struct {
	ReloadInterval time.Duration `mapstructure:"ReloadInterval"`
}

// RedisConfig is optional; an empty Addr keeps sign-out revocations in memory.
type RedisConfig struct {
	Addr     string `mapstructure:"Addr"`
	Password string `mapstructure:"Password"`
	DB       int    `mapstructure:"DB"`
}

var bindings = map[string]string{
	"Database.Host":            "DATABASE_HOST",
	"Database.Port":            "DATABASE_PORT",
	"Database.User":            "DATABASE_USER",
	"Database.Password":        "DATABASE_PASSWORD",
	"Database.Name":            "DATABASE_NAME",
	"Database.SSLMode":         "DATABASE_SSLMODE",
	"Server.Port":              "HTTP_PORT",
	"Server.GRPCPort":          "GRPC_PORT",
	"Server.AllowedOrigins":    "ALLOWED_ORIGINS",
	"Storage.DefaultLimit":     "STORAGE_DEFAULT_LIMIT",
	"Storage.MaxUploadMemory":  "STORAGE_MAX_UPLOAD_MEMORY",
	"Dashboard.ReloadInterval": "DASHBOARD_RELOAD_INTERVAL",
	"Redis.Addr":               "REDIS_ADDR",
	"Redis.Password":           "REDIS_PASSWORD",
	"Redis.DB":                 "REDIS_DB",
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("Database.SSLMode", "disable")
	v.SetDefault("Server.Port", "2525")
	v.SetDefault("Server.GRPCPort", "50051")
	v.SetDefault("Server.AllowedOrigins", []string{"*"})
	v.SetDefault("Storage.DefaultLimit", int64(5368709120))
	v.SetDefault("Storage.MaxUploadMemory", int64(100<<20))
	v.SetDefault("Dashboard.ReloadInterval", 30*time.Second)

	Read(v, bindings)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that the database can be reached with what was loaded.
func (c *Config) Validate() error {
	if c.Database.Host == "" ||
		c.Database.Port == "" ||
		c.Database.User == "" ||
		c.Database.Password == "" ||
		c.Database.Name == "" {
		return fmt.Errorf("%w: database host=%s, port=%s, user=%s, name=%s",
			ErrMissing, c.Database.Host, c.Database.Port, c.Database.User, c.Database.Name)
	}
	if c.Dashboard.ReloadInterval <= 0 {
		return fmt.Errorf("dashboard reload interval must be positive, got %s", c.Dashboard.ReloadInterval)
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

// GetURL is the form golang-migrate expects.
func (c *DatabaseConfig) GetURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
		c.SSLMode,
	)
}
