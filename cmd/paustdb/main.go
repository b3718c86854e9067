package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"paustdb/internal/cli"
	"paustdb/internal/config"
	"paustdb/internal/server"
)

// @title PaustDB API
// @version 0.0.1
// @description Decentralized TSDB specialized for real-time streaming
// @BasePath /
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr, func() (cli.Server, error) {
		// Configuration comes from the environment (.env auto-loaded if present).
		return server.New(config.Load())
	})

	stop()
	os.Exit(code)
}
