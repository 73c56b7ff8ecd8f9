package logger_test

import (
	"errors"

	"github.com/wonny/dqpipe/backend/pkg/config"
	"github.com/wonny/dqpipe/backend/pkg/logger"
)

// Example_basic demonstrates basic logger usage
func Example_basic() {
	cfg := &config.Config{
		Env:       "development",
		LogLevel:  "info",
		LogFormat: "console",
	}

	// Create logger (SSOT)
	log := logger.New(cfg)

	log.Debug("This won't appear (level is info)")
	log.Info("Pipeline started")
	log.Infof("events clean/quarantine: %d/%d", 980, 20)
}

// Example_withFields demonstrates structured logging per partition
func Example_withFields() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "info",
		LogFormat: "json",
	}
	log := logger.New(cfg)

	log.WithPartition("2025-12-10").WithFields(map[string]interface{}{
		"entity":     "orders",
		"total":      1200,
		"quarantine": 37,
	}).Info("Validation complete")

	log.WithPartition("2025-12-10").
		WithError(errors.New("partition not found")).
		Error("Run failed")
}
