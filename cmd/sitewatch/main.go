package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"sitewatch/internal/app"
	"sitewatch/internal/clock"
	"sitewatch/internal/config"
)

// main starts the monitoring service from one TOML config file.
// Params: CLI flag --config.
// Returns: process exit code by startup/run result.
func main() {
	configPath := flag.String("config", "", "path to TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	service, err := app.NewService(cfg, clock.RealClock{})
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "service init failed:", err.Error())
		os.Exit(1)
	}

	if err := service.Run(context.Background()); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "service run failed:", err.Error())
		os.Exit(1)
	}
}
