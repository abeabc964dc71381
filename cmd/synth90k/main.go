package main

import (
	"log"
	"os"

	"github.com/tsawler/go-synth90k/internal/config"
	"github.com/tsawler/go-synth90k/internal/logger"
)

func main() {
	if err := config.LoadDotEnv(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	if err := newRootCmd(cfg, os.Stdout, os.Stderr).Execute(); err != nil {
		l := logger.WithComponent("cmd")
		l.Error().Err(err).Msg("Command execution failed")
		os.Exit(1)
	}
}
