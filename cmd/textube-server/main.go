package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/guiyumin/textube/internal/core/config"
	"github.com/guiyumin/textube/internal/core/logging"
	"github.com/guiyumin/textube/internal/core/version"
	"github.com/guiyumin/textube/internal/server"
)

func main() {
	// Command-line flags
	port := flag.Int("port", 0, "HTTP listen port (default: 8080)")
	configPath := flag.String("config", "", "config file (default ~/.config/textube/config.yml)")
	showVersion := flag.Bool("version", false, "show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("textube-server %s\n", version.Version)
		return
	}

	// Load configuration
	cfg := config.LoadOrDefault()
	if *configPath != "" {
		c, err := config.LoadFrom(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg = c
	}

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv(os.Getenv)

	// Port: flag > env > config > default
	if *port > 0 {
		cfg.Server.Port = *port
	}

	log := logging.New(cfg.Log)
	if *configPath == "" && !config.Exists() {
		log.Warn().Msg("config file not found, using defaults (run 'textube init' to create one)")
	}
	log.Info().Str("version", version.Version).Str("work_dir", cfg.WorkDir).Msg("textube-server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
