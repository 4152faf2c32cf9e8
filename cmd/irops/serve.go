package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/c360studio/irops/config"
	"github.com/c360studio/irops/model"
	responseengine "github.com/c360studio/irops/processor/response-engine"
	"github.com/c360studio/irops/reasoning"
	"github.com/c360studio/semstreams/component"
	sconfig "github.com/c360studio/semstreams/config"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/spf13/cobra"
)

func serveCmd(configPath, logLevel *string) *cobra.Command {
	var watchDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve disruption runs from NATS",
		Long: `Serve connects to NATS and processes disruption snapshots submitted
on the IROPS stream. Each submission runs the full response workflow
and the resulting plan is published back for downstream consumers.

With --watch-dir, JSON snapshot files dropped into the directory are
submitted through the same stream as message submissions.

When started with --config, the config file is watched and the
processor is rebuilt on changes without restarting the process.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(*configPath, *logLevel, watchDir)
		},
	}

	cmd.Flags().StringVar(&watchDir, "watch-dir", "", "Directory to watch for dropped snapshot files")

	return cmd
}

// componentHolder serializes component rebuilds against shutdown.
type componentHolder struct {
	mu   sync.Mutex
	comp *responseengine.Component
}

func serve(configPath, logLevel, watchDir string) error {
	printBanner()
	logger := newLogger(logLevel)

	cfg, err := loadConfig(configPath, logger)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Models != nil {
		model.InitGlobal(model.FromConfig(cfg.Models))
	}

	ctx := context.Background()

	natsClient, err := connectToNATS(ctx, pickNATSURL(cfg), logger)
	if err != nil {
		return err
	}
	defer natsClient.Close(ctx)

	if err := ensureStreams(ctx, natsClient, logger); err != nil {
		return err
	}

	// Call recording is optional; runs proceed without it.
	if err := reasoning.InitGlobalCallStore(natsClient); err != nil {
		logger.Warn("Failed to initialize reasoning call store", "error", err)
	} else {
		logger.Debug("Reasoning call store initialized")
	}

	deps := component.Dependencies{
		NATSClient: natsClient,
		Logger:     logger,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	holder := &componentHolder{}
	if err := holder.rebuild(signalCtx, cfg, watchDir, deps, logger); err != nil {
		return err
	}

	// Watch the config file when one was given explicitly. Layered
	// default configs are not watched.
	if configPath != "" {
		watcher, err := config.NewWatcher(configPath, func(newCfg *config.Config) {
			if err := holder.rebuild(signalCtx, newCfg, watchDir, deps, logger); err != nil {
				logger.Error("Config reload failed, processor stopped", "error", err)
			}
		}, config.WithWatcherLogger(logger))
		if err != nil {
			return fmt.Errorf("create config watcher: %w", err)
		}
		if err := watcher.Start(signalCtx); err != nil {
			return fmt.Errorf("start config watcher: %w", err)
		}
		defer func() { _ = watcher.Stop() }()
		logger.Info("Watching config file", "path", configPath)
	}

	logger.Info("Irops ready", "watch_dir", watchDir)

	<-signalCtx.Done()
	logger.Info("Shutting down...")

	holder.mu.Lock()
	defer holder.mu.Unlock()
	if holder.comp != nil {
		if err := holder.comp.Stop(30 * time.Second); err != nil {
			logger.Error("Error stopping processor", "error", err)
		}
	}

	logger.Info("Shutdown complete")
	return nil
}

// rebuild stops the current processor, if any, and starts a fresh one
// from cfg. The durable consumer survives the swap, so in-flight
// submissions are redelivered to the new processor.
func (h *componentHolder) rebuild(ctx context.Context, cfg *config.Config, watchDir string, deps component.Dependencies, logger *slog.Logger) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.comp != nil {
		if err := h.comp.Stop(30 * time.Second); err != nil {
			logger.Warn("Error stopping processor before rebuild", "error", err)
		}
		h.comp = nil
	}

	comp, err := newResponseEngine(cfg, watchDir, deps)
	if err != nil {
		return fmt.Errorf("create response engine: %w", err)
	}
	if err := comp.Initialize(); err != nil {
		return fmt.Errorf("initialize response engine: %w", err)
	}
	if err := comp.Start(ctx); err != nil {
		return fmt.Errorf("start response engine: %w", err)
	}

	h.comp = comp
	return nil
}

func newResponseEngine(cfg *config.Config, watchDir string, deps component.Dependencies) (*responseengine.Component, error) {
	rawConfig, err := json.Marshal(buildComponentConfig(cfg, watchDir))
	if err != nil {
		return nil, fmt.Errorf("marshal component config: %w", err)
	}

	comp, err := responseengine.NewComponent(rawConfig, deps)
	if err != nil {
		return nil, err
	}

	return comp.(*responseengine.Component), nil
}

// buildComponentConfig maps the engine config onto the processor's
// schema, which carries durations as whole seconds and the detection
// threshold as a percentage.
func buildComponentConfig(cfg *config.Config, watchDir string) responseengine.Config {
	compCfg := responseengine.DefaultConfig()

	if cfg.Gate.DetectionThreshold > 0 {
		compCfg.DetectionThresholdPercent = int(math.Round(cfg.Gate.DetectionThreshold * 100))
	}
	if cfg.Planner.MaxScenarios > 0 {
		compCfg.MaxScenarios = cfg.Planner.MaxScenarios
	}
	if cfg.Planner.CallTimeout > 0 {
		compCfg.CallTimeoutSeconds = int(cfg.Planner.CallTimeout.Seconds())
	}
	if cfg.Specialist.VariantTimeout > 0 {
		compCfg.VariantTimeoutSeconds = int(cfg.Specialist.VariantTimeout.Seconds())
	}
	if cfg.Specialist.MaxConcurrentVariants > 0 {
		compCfg.MaxConcurrentVariants = cfg.Specialist.MaxConcurrentVariants
	}
	if cfg.Engine.RunTimeout > 0 {
		compCfg.RunTimeoutSeconds = int(cfg.Engine.RunTimeout.Seconds())
	}

	if watchDir != "" {
		compCfg.Watch.Enabled = true
		compCfg.Watch.Dir = watchDir
	}

	return compCfg
}

func ensureStreams(ctx context.Context, natsClient *natsclient.Client, logger *slog.Logger) error {
	logger.Debug("Creating JetStream streams")
	streamsManager := sconfig.NewStreamsManager(natsClient, logger)

	scfg := &sconfig.Config{
		Version: "1.0.0",
		Platform: sconfig.PlatformConfig{
			Org:         "irops",
			ID:          "irops-local",
			Environment: "dev",
		},
		NATS: sconfig.NATSConfig{
			URLs:          []string{"nats://localhost:4222"},
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			JetStream: sconfig.JetStreamConfig{
				Enabled: true,
			},
		},
		Streams: sconfig.StreamConfigs{
			"IROPS": sconfig.StreamConfig{
				Subjects: []string{
					"irops.disruption.submitted",
					"irops.plan.>",
					"irops.run.progress.>",
				},
				MaxAge:   "24h",
				Storage:  "file",
				Replicas: 1,
			},
		},
	}

	if err := streamsManager.EnsureStreams(ctx, scfg); err != nil {
		return fmt.Errorf("ensure streams: %w", err)
	}

	logger.Debug("JetStream streams ready")
	return nil
}
