// Package main is the entry point for the hueste run orchestrator.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sevir/hueste/internal/config"
	"github.com/sevir/hueste/internal/orchestrator"
	"github.com/sevir/hueste/internal/server"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	// Parse flags
	var (
		configPath  = flag.String("config", "", "Path to config file")
		host        = flag.String("host", "", "Server host (default: 127.0.0.1)")
		port        = flag.Int("port", 0, "Server port (default: 8677)")
		defaultTool = flag.String("tool", "", "Default tool (codex or claude)")
		loginShell  = flag.String("login-shell", "", "Shell used for login-shell fallbacks")
		showVersion = flag.Bool("version", false, "Show version and exit")
		initConfig  = flag.Bool("init", false, "Initialize default config and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("hueste %s (%s)\n", version, commit)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Override with flags
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *defaultTool != "" {
		cfg.Runner.DefaultTool = *defaultTool
	}
	if *loginShell != "" {
		cfg.Runner.LoginShell = *loginShell
	}

	if *initConfig {
		if err := cfg.Save(*configPath); err != nil {
			log.Fatalf("Failed to save config: %v", err)
		}
		fmt.Println("Configuration initialized")
		os.Exit(0)
	}

	var runTimeout time.Duration
	if cfg.Runner.RunTimeout != "" && cfg.Runner.RunTimeout != "0" {
		runTimeout, err = time.ParseDuration(cfg.Runner.RunTimeout)
		if err != nil {
			log.Fatalf("Invalid run_timeout %q: %v", cfg.Runner.RunTimeout, err)
		}
	}

	// Create orchestrator
	orch, err := orchestrator.New(orchestrator.Config{
		ToolBins:            cfg.Runner.ToolBins,
		LoginShell:          cfg.Runner.LoginShell,
		InputStrategy:       cfg.Runner.InputStrategy,
		RunTimeout:          runTimeout,
		RejectDuplicateRuns: cfg.Runner.RejectDuplicateRuns,
		DefaultTool:         cfg.Runner.DefaultTool,
		DefaultModel:        cfg.DefaultModel,
	})
	if err != nil {
		log.Fatalf("Failed to create orchestrator: %v", err)
	}

	// Create server
	srv := server.New(server.Config{
		Addr:         cfg.Address(),
		Orchestrator: orch,
		Version:      version,
		Commit:       commit,
		AppConfig:    cfg,
	})

	// Handle shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Println("Shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}

		orch.Shutdown()
	}()

	// Print startup info
	log.Printf("hueste %s starting", version)
	log.Printf("Run endpoint:  http://%s/api/runs", cfg.Address())
	log.Printf("Health check:  http://%s/health", cfg.Address())

	// Start server
	if err := srv.Start(); err != nil {
		select {
		case <-ctx.Done():
			// Expected shutdown
		default:
			log.Fatalf("Server error: %v", err)
		}
	}
}
