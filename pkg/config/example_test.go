package config_test

import (
	"fmt"

	"github.com/wonny/dqpipe/backend/pkg/config"
)

// Example demonstrates how to use the config package
func Example() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	// Access configuration values
	fmt.Printf("Environment: %s\n", cfg.Env)
	fmt.Printf("Raw partitions: %s\n", cfg.Paths.DataDir)
	fmt.Printf("Postgres sink enabled: %v\n", cfg.Database.Enabled)
	fmt.Printf("Parallelism: %d\n", cfg.Pipeline.Parallelism)
}
