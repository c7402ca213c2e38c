package s3

import (
	"fmt"

	"github.com/spf13/viper"

	"willcloud/internal/config"
)

const (
	DriverS3    = "s3"
	DriverMinio = "minio"
)

type Config struct {
	Driver          string `mapstructure:"Driver"`
	Endpoint        string `mapstructure:"Endpoint"`
	Region          string `mapstructure:"Region"`
	AccessKeyID     string `mapstructure:"AccessKeyID"`
	SecretAccessKey string `mapstructure:"SecretAccessKey"`
	Bucket          string `mapstructure:"Bucket"`
	UseSSL          bool   `mapstructure:"UseSSL"`
}

var bindings = map[string]string{
	"Driver":          "S3_DRIVER",
	"Endpoint":        "S3_ENDPOINT",
	"Region":          "S3_REGION",
	"AccessKeyID":     "S3_ACCESS_KEY_ID",
	"SecretAccessKey": "S3_SECRET_ACCESS_KEY",
	"Bucket":          "S3_BUCKET",
	"UseSSL":          "S3_USE_SSL",
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("Driver", DriverS3)
	v.SetDefault("Region", "us-east-1")
	v.SetDefault("Bucket", "files")
	v.SetDefault("UseSSL", true)

	config.Read(v, bindings)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate reports the first missing value needed to reach the bucket.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("%w: S3 Endpoint", config.ErrMissing)
	}
	if c.AccessKeyID == "" {
		return fmt.Errorf("%w: S3 AccessKeyID", config.ErrMissing)
	}
	if c.SecretAccessKey == "" {
		return fmt.Errorf("%w: S3 SecretAccessKey", config.ErrMissing)
	}
	if c.Bucket == "" {
		return fmt.Errorf("%w: S3 Bucket", config.ErrMissing)
	}
	if c.Driver != DriverS3 && c.Driver != DriverMinio {
		return fmt.Errorf("unknown storage driver %q", c.Driver)
	}
	return nil
}
