package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/landcover/parcelmap/cmd"
	"github.com/landcover/parcelmap/internal/conf"
	"github.com/landcover/parcelmap/internal/logging"
)

func main() {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if settings.Debug {
		level = slog.LevelDebug
	}
	logging.Init(level)

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		logging.Fatal("command failed", "error", err)
	}
}
