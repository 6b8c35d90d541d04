// Command consult bridges MCP tool calls to hosted specialist assistants.
// It serves the specialist and utility tools over stdio; all configuration
// comes from the environment.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/consultmcp/consult/internal/assistant"
	"github.com/consultmcp/consult/internal/bridge"
	"github.com/consultmcp/consult/internal/config"
	"github.com/consultmcp/consult/internal/logging"
	"github.com/consultmcp/consult/internal/mcpserver"
)

var version = "1.0.0"

func main() {
	rootCmd := &cobra.Command{
		Use:     "consult",
		Short:   "MCP bridge to hosted specialist assistants",
		Long:    "consult exposes specialist review tools over MCP (stdio).\nEach tool drives a conversation with a hosted assistant: it reuses the\ntool's thread, uploads and indexes any supplied files, runs the assistant,\nand returns the reply.",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env if present; real env vars take precedence.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	logging.Init(cfg.LogEnabled, cfg.DebugEnabled)

	client := assistant.NewClient(cfg.BaseURL, cfg.APIKey, assistant.DefaultRetryPolicy(cfg.MaxRetries))
	b, err := bridge.New(cfg, client)
	if err != nil {
		return err
	}
	server := mcpserver.New(cfg, b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Infof("[Consult] Received %v, shutting down", sig)
		cancel()
		// Further signals while shutdown is in progress are ignored.
		for range sigCh {
		}
	}()

	logging.Infof("[Consult] v%s starting (%d specialists, endpoint %s)",
		version, len(config.Specialists), cfg.BaseURL)

	err = server.Run(ctx)

	threads, stores, documents, images := b.CacheSizes()
	logging.Infof("[Consult] Shutdown: threads=%d stores=%d documents=%d images=%d",
		threads, stores, documents, images)

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
