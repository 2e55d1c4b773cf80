package main

import (
	stdlog "log"

	"github.com/joho/godotenv"

	"digiucto/cmd"
	"digiucto/internal/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		stdlog.Printf("Warning: Could not load .env file: %v", err)
	}

	// Commands load the full configuration themselves; only logging has
	// to be ready before the first command runs.
	if err := logger.Setup(logger.DefaultConfig()); err != nil {
		stdlog.Fatalf("Failed to initialize logger: %v", err)
	}

	cmd.Execute()
}
