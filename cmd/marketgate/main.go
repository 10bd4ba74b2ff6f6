package main

import (
	"os"

	"github.com/wonny/marketgate/cmd/marketgate/commands"
)

// main is the entry point for the marketgate CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/marketgate [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
