package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/telegrab/telegrab/internal"
	"github.com/telegrab/telegrab/pkg/logger"
)

var log = logger.Get("Main")

// main loads the user configuration and hands control to the server
// core. The process runs until SIGINT/SIGTERM, at which point the core
// drains in-flight tasks before exiting.
func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	verbose := flag.Bool("verbose", false, "enable verbose logging")
	flag.Parse()

	if *verbose {
		logger.SetMinLoggingLevel(logger.VERBOSE.Level())
	}

	config := internal.TelegrabConfig{}
	if err := config.LoadFromFile(*configPath); err != nil {
		log.Fatalf("%s\n", err.Error())
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := internal.New(config).Run(ctx); err != nil {
		log.Fatalf("Telegrab exited with error: %s\n", err.Error())
		os.Exit(1)
	}
}
