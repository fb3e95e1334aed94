package main

import (
	"github.com/joho/godotenv"

	"signal-alerts/internal/cli"
)

func main() {
	// Optional local overrides; absence is not an error.
	_ = godotenv.Load()

	cli.Execute()
}
