package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/me/slaq/internal/logging"
	"github.com/me/slaq/internal/worker"
)

func main() {
	var cfg worker.Config
	var command string

	flag.StringVar(&cfg.ServerURL, "server", "http://localhost:8080", "slaq server URL")
	flag.StringVar(&cfg.TenantID, "tenant", "", "Claim tasks for this tenant only (default: fairness-selected)")
	flag.StringVar(&command, "command", "", "Command to run per task; receives the task JSON on stdin (required)")
	flag.DurationVar(&cfg.Poll, "poll", 2*time.Second, "Base poll interval when idle")

	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "text", "Log format (text, json)")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")
	flag.Parse()

	if *debug {
		*logLevel = "debug"
	}

	logger := logging.NewLogger(logging.ParseLevel(*logLevel), *logFormat)

	cfg.Command = strings.Fields(command)

	w, err := worker.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init worker: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting worker",
		"server", cfg.ServerURL,
		"tenant", cfg.TenantID,
		"poll", cfg.Poll,
	)

	if err := w.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "worker error: %v\n", err)
		os.Exit(1)
	}

	logger.Info("worker stopped")
}
