package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/tsawler/go-synth90k/internal/logger"
	"github.com/tsawler/go-synth90k/vision/dataset"
	"github.com/tsawler/go-synth90k/vision/preprocessing"
)

type Config struct {
	// Dataset
	Root  string
	Split string

	// Preprocessing
	ImageWidth  int
	ImageHeight int

	// Loader
	BatchSize int
	Workers   int
	CacheSize int
	MaxSkips  int

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// LoadDotEnv reads variables from the given .env files, or ./.env when none
// are named. Variables already set in the environment win.
func LoadDotEnv(files ...string) error {
	return godotenv.Load(files...)
}

func Load() (*Config, error) {
	config := &Config{
		Root:          getEnv("SYNTH90K_ROOT", "."),
		Split:         getEnv("SYNTH90K_SPLIT", string(dataset.SplitTrain)),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "console"),
		LogTimeFormat: getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:     getEnv("LOG_OUTPUT", "stderr"),
	}

	ints := []struct {
		key          string
		target       *int
		defaultValue int
	}{
		{"SYNTH90K_IMG_WIDTH", &config.ImageWidth, preprocessing.DefaultWidth},
		{"SYNTH90K_IMG_HEIGHT", &config.ImageHeight, preprocessing.DefaultHeight},
		{"SYNTH90K_BATCH_SIZE", &config.BatchSize, 32},
		{"SYNTH90K_WORKERS", &config.Workers, 4},
		{"SYNTH90K_CACHE_SIZE", &config.CacheSize, 1000},
		{"SYNTH90K_MAX_SKIPS", &config.MaxSkips, 0},
	}
	for _, v := range ints {
		n, err := getEnvInt(v.key, v.defaultValue)
		if err != nil {
			return nil, err
		}
		*v.target = n
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate checks the values that can be overridden after Load
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("SYNTH90K_ROOT must not be empty")
	}
	if _, err := dataset.ParseSplit(c.Split); err != nil {
		return err
	}
	if c.ImageWidth <= 0 || c.ImageHeight <= 0 {
		return fmt.Errorf("image size must be positive, got %dx%d", c.ImageWidth, c.ImageHeight)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("SYNTH90K_BATCH_SIZE must be positive, got %d", c.BatchSize)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("SYNTH90K_WORKERS must be positive, got %d", c.Workers)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("SYNTH90K_CACHE_SIZE must not be negative, got %d", c.CacheSize)
	}
	if c.MaxSkips < 0 {
		return fmt.Errorf("SYNTH90K_MAX_SKIPS must not be negative, got %d", c.MaxSkips)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, value)
	}
	return n, nil
}
