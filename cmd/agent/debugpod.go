package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/johnwroge/K8-AI-Query-Agent/internal/config"
)

// newDebugPodCommand creates the debug-pod subcommand.
func newDebugPodCommand(configPath *string) *cobra.Command {
	var namespace string

	cmd := &cobra.Command{
		Use:   "debug-pod NAME",
		Short: "Diagnose one pod and print the result as JSON",
		Long: `Run a single diagnosis against the cluster: gather the pod's state,
events, and logs, classify the crash patterns, and ask the model for an
analysis. The result is printed to stdout as indented JSON; logs go to
stderr.

The command exits 1 when the diagnosis reports success=false.`,
		Example: `  # Diagnose a pod in the default namespace
  agent debug-pod crashing-api

  # Diagnose a pod in a specific namespace
  agent debug-pod crashing-api -n payments`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDebugPod(*configPath, args[0], namespace)
		},
	}

	cmd.Flags().StringVarP(&namespace, "namespace", "n", "default", "namespace of the pod")
	return cmd
}

func runDebugPod(configPath, podName, namespace string) error {
	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := app.orch.Debug(ctx, podName, namespace)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)
	result.ProcessingTimeMs = math.Round(elapsed.Seconds()*1000*100) / 100

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}

	if !result.Success {
		os.Exit(1)
	}
	return nil
}
