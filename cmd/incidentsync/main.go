package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			slog.Error("Error loading .env file", slog.Any("error", err))
			os.Exit(1)
		}
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
