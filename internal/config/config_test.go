package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tsawler/go-synth90k/vision/dataset"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"SYNTH90K_ROOT", "SYNTH90K_SPLIT", "SYNTH90K_IMG_WIDTH", "SYNTH90K_IMG_HEIGHT",
		"SYNTH90K_BATCH_SIZE", "SYNTH90K_WORKERS", "SYNTH90K_CACHE_SIZE", "SYNTH90K_MAX_SKIPS", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Root != "." || cfg.Split != "train" {
		t.Errorf("Unexpected dataset config %q %q", cfg.Root, cfg.Split)
	}
	if cfg.ImageWidth != 100 || cfg.ImageHeight != 32 {
		t.Errorf("Expected 100x32, got %dx%d", cfg.ImageWidth, cfg.ImageHeight)
	}
	if cfg.BatchSize != 32 || cfg.Workers != 4 || cfg.CacheSize != 1000 || cfg.MaxSkips != 0 {
		t.Errorf("Unexpected loader config %+v", cfg)
	}
	if lc := cfg.GetLoggerConfig(); lc.Level != "info" || lc.Output != "stderr" {
		t.Errorf("Unexpected logger config %+v", lc)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SYNTH90K_ROOT", "/data/mjsynth")
	t.Setenv("SYNTH90K_SPLIT", "dev")
	t.Setenv("SYNTH90K_BATCH_SIZE", "8")
	t.Setenv("SYNTH90K_MAX_SKIPS", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Root != "/data/mjsynth" || cfg.Split != "dev" || cfg.BatchSize != 8 || cfg.MaxSkips != 5 {
		t.Errorf("Overrides not applied: %+v", cfg)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		want  string
	}{
		{"NotInteger", "SYNTH90K_WORKERS", "many", "not an integer"},
		{"ZeroBatch", "SYNTH90K_BATCH_SIZE", "0", "BATCH_SIZE"},
		{"NegativeSkips", "SYNTH90K_MAX_SKIPS", "-1", "MAX_SKIPS"},
		{"ZeroHeight", "SYNTH90K_IMG_HEIGHT", "0", "image size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}

	t.Run("UnknownSplit", func(t *testing.T) {
		t.Setenv("SYNTH90K_SPLIT", "bogus")
		_, err := Load()
		if !errors.Is(err, dataset.ErrUnknownSplit) {
			t.Errorf("Expected ErrUnknownSplit, got %v", err)
		}
	})
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "SYNTH90K_ROOT=/from/dotenv\nSYNTH90K_WORKERS=2\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	// t.Setenv restores the previous value once the test ends
	t.Setenv("SYNTH90K_ROOT", "")
	os.Unsetenv("SYNTH90K_ROOT")
	t.Setenv("SYNTH90K_WORKERS", "7")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Root != "/from/dotenv" {
		t.Errorf("Expected root from .env, got %q", cfg.Root)
	}
	if cfg.Workers != 7 {
		t.Errorf("Expected environment to win over .env, got %d workers", cfg.Workers)
	}

	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("Expected error for missing .env file")
	}
}
