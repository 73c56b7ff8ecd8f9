package main

import (
	"os"

	"github.com/wonny/dqpipe/backend/cmd/dqpipe/commands"
)

// main is the entry point for the dqpipe CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/dqpipe [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
