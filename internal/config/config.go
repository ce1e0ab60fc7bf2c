package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const Production = "production"

type ImportOptions struct {
	SliceSize     int           `env:"IMPORT_SLICE_SIZE" envDefault:"500"`
	BatchSize     int           `env:"IMPORT_BATCH_SIZE" envDefault:"100"`
	MaxErrorLog   int           `env:"IMPORT_MAX_ERROR_LOG" envDefault:"50"`
	Workers       int           `env:"IMPORT_WORKERS" envDefault:"2"`
	PollInterval  time.Duration `env:"IMPORT_POLL_INTERVAL" envDefault:"1s"`
	LeaseSeconds  int           `env:"IMPORT_TASK_LEASE_SECONDS" envDefault:"60"`
	MaxUploadSize int64         `env:"MAX_UPLOAD_SIZE" envDefault:"10485760"`
}

func (o ImportOptions) LeaseDuration() time.Duration {
	return time.Duration(o.LeaseSeconds) * time.Second
}

type S3Options struct {
	Bucket    string `env:"S3_BUCKET"`
	Prefix    string `env:"S3_PREFIX" envDefault:"lead-imports"`
	Region    string `env:"AWS_REGION"`
	Endpoint  string `env:"AWS_ENDPOINT_URL"`
	PathStyle bool   `env:"S3_PATH_STYLE" envDefault:"false"`
}

type Configuration struct {
	Import ImportOptions
	S3     S3Options

	DatabaseURL      string `env:"DATABASE_URL"`
	AutoMigrate      bool   `env:"AUTO_MIGRATE" envDefault:"false"`
	ServerPort       int    `env:"PORT" envDefault:"8080"`
	StoreDriver      string `env:"STORE_DRIVER" envDefault:"postgres"`
	RowStore         string `env:"ROW_STORE" envDefault:"local"`
	RowStoreDir      string `env:"ROW_STORE_DIR" envDefault:"./data/rowsets"`
	RedisURL         string `env:"REDIS_URL"`
	MetricsPath      string `env:"METRICS_PATH" envDefault:"/metrics"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
}

// LoadEnv loads the env files that exist and reports how many were found.
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Load reads .env files (when present) and then the process environment.
func Load(envFiles ...string) (*Configuration, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env", ".env.local"}
	}
	if _, err := LoadEnv(envFiles); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}

	c := &Configuration{}
	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Configuration) Validate() error {
	switch c.StoreDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is 'postgres'")
		}
	case "memory":
	default:
		return fmt.Errorf("STORE_DRIVER must be 'postgres' or 'memory', got '%s'", c.StoreDriver)
	}

	switch c.RowStore {
	case "local":
	case "s3":
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when ROW_STORE is 's3'")
		}
	default:
		return fmt.Errorf("ROW_STORE must be 'local' or 's3', got '%s'", c.RowStore)
	}

	if c.Import.SliceSize <= 0 || c.Import.BatchSize <= 0 {
		return fmt.Errorf("import slice and batch sizes must be positive, got %d/%d", c.Import.SliceSize, c.Import.BatchSize)
	}
	if c.Import.BatchSize > c.Import.SliceSize {
		return fmt.Errorf("IMPORT_BATCH_SIZE (%d) must not exceed IMPORT_SLICE_SIZE (%d)", c.Import.BatchSize, c.Import.SliceSize)
	}
	return nil
}

func (c *Configuration) Address() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

func (c *Configuration) Logger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetLevel(c.LogrusLogLevel())
	if c.GoAppEnvironment == Production {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
