package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/c360studio/irops/aggregate"
	"github.com/c360studio/irops/config"
	"github.com/c360studio/irops/disruption"
	"github.com/c360studio/irops/engine"
	"github.com/c360studio/irops/model"
	"github.com/c360studio/irops/planner"
	"github.com/c360studio/irops/progress"
	"github.com/c360studio/irops/reasoning"
	"github.com/c360studio/irops/specialist"
	"github.com/spf13/cobra"
)

func runCmd(configPath, logLevel *string) *cobra.Command {
	var (
		outputPath string
		offline    bool
	)

	cmd := &cobra.Command{
		Use:   "run <snapshot.json>",
		Short: "Run one disruption response from a snapshot file",
		Long: `Run executes a single disruption response for the operational
snapshot in the given JSON file and prints the result as JSON.

The run gates the snapshot first; below the detection threshold it
terminates with a monitor-only plan. Otherwise it plans scenarios,
fans out to the recovery specialists, and aggregates a final plan.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(args[0], *configPath, *logLevel, outputPath, offline)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the result to a file instead of stdout")
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip reasoning provider calls and use heuristic fallbacks")

	return cmd
}

func runOnce(snapshotPath, configPath, logLevel, outputPath string, offline bool) error {
	logger := newLogger(logLevel)

	cfg, err := loadConfig(configPath, logger)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Models != nil {
		model.InitGlobal(model.FromConfig(cfg.Models))
	}

	snap, err := loadSnapshot(snapshotPath)
	if err != nil {
		return err
	}

	eng := buildEngine(cfg, offline, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := eng.Run(ctx, *snap)
	if err != nil {
		if disruption.IsInvalidContext(err) {
			return fmt.Errorf("snapshot rejected: %w", err)
		}
		// Aborted runs still carry a partial result worth showing.
		logger.Warn("Run did not complete", "error", err)
	}
	if result == nil {
		return fmt.Errorf("run failed: %w", err)
	}

	return writeResult(result, outputPath)
}

// loadSnapshot reads and parses an operational snapshot file.
func loadSnapshot(path string) (*disruption.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}

	var snap disruption.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}

	return &snap, nil
}

// buildEngine assembles the engine from config. In offline mode the
// provider client is left nil and every stage falls back to its
// deterministic heuristics.
func buildEngine(cfg *config.Config, offline bool, logger *slog.Logger) *engine.Engine {
	var client engine.Completer
	if !offline {
		client = reasoning.NewClient(model.Global(), reasoning.WithLogger(logger))
	}

	return engine.New(client,
		engine.WithGate(disruption.NewGate(cfg.Gate)),
		engine.WithPlanner(planner.New(client,
			planner.WithMaxScenarios(cfg.Planner.MaxScenarios),
			planner.WithCallTimeout(cfg.Planner.CallTimeout),
			planner.WithLogger(logger),
		)),
		engine.WithRunner(specialist.NewRunner(client,
			specialist.WithCallTimeout(cfg.Specialist.CallTimeout),
			specialist.WithVariantTimeout(cfg.Specialist.VariantTimeout),
			specialist.WithMaxConcurrentVariants(cfg.Specialist.MaxConcurrentVariants),
			specialist.WithLogger(logger),
		)),
		engine.WithAggregator(aggregate.New(cfg.Aggregate.ToAggregate(), aggregate.WithLogger(logger))),
		engine.WithObserver(progress.NewLogObserver(logger)),
		engine.WithRunTimeout(cfg.Engine.RunTimeout),
		engine.WithLogger(logger),
	)
}

func writeResult(result *engine.RunResult, outputPath string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, append(data, '\n'), 0644); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
		return nil
	}

	fmt.Println(string(data))
	return nil
}
