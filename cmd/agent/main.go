// Package main is the entrypoint for the K8s AI query agent. It wires the
// config file, the Kubernetes client, the model backend, and the diagnostic
// pipeline behind two commands: serve runs the HTTP API, debug-pod runs one
// diagnosis from the command line.
package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/johnwroge/K8-AI-Query-Agent/internal/config"
)

// version is set during build.
var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCommand creates the agent root command.
func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "AI-assisted Kubernetes cluster queries and pod crash diagnostics",
		Long: `agent answers natural-language questions about a Kubernetes cluster and
diagnoses crashing pods by combining deterministic pattern detection with
an AI model analysis.

serve runs the HTTP API together with Prometheus metrics and health probe
endpoints; debug-pod runs a single diagnosis and prints the result.`,
		Version:      version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath,
		"path to the agent config file")

	cmd.AddCommand(newServeCommand(&configPath))
	cmd.AddCommand(newDebugPodCommand(&configPath))
	return cmd
}

// newLogger builds the process logger from the logging config. Logs go to
// w so the debug-pod command can keep stdout clean for its JSON result.
func newLogger(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLogLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler), nil
}
