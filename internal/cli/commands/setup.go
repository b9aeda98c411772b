package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/wqlbridge/internal/cli/config"
	"github.com/leapstack-labs/wqlbridge/pkg/adapter"
	"github.com/leapstack-labs/wqlbridge/pkg/bridge"
	"github.com/leapstack-labs/wqlbridge/pkg/core"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg     *config.Config
	Logger  *slog.Logger
	Adapter core.Adapter
	Bridge  *bridge.Bridge
}

// NewCommandContext connects the configured adapter and builds a bridge over it.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command, observer bridge.Observer) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	a, err := openAdapter(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	b, err := bridge.New(bridge.Config{
		Adapter:           a,
		Logger:            logger,
		AllowedNamespaces: cfg.Namespaces,
		CacheSessions:     cfg.CacheConnections,
		Workers:           cfg.Workers,
		Observer:          observer,
	})
	if err != nil {
		_ = a.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := b.Close(); err != nil {
			logger.Warn("failed to close bridge", slog.Any("error", err))
		}
		if err := a.Close(); err != nil {
			logger.Warn("failed to close adapter", slog.Any("error", err))
		}
	}

	return &CommandContext{
		Cfg:     cfg,
		Logger:  logger,
		Adapter: a,
		Bridge:  b,
	}, cleanup, nil
}

// NewCommandContextWithoutBridge creates a CommandContext without an adapter.
// Useful for commands that never touch the subsystem.
func NewCommandContextWithoutBridge(cmd *cobra.Command) *CommandContext {
	return &CommandContext{
		Cfg:    getConfig(),
		Logger: config.GetLogger(cmd.Context()),
	}
}

// getConfig returns the loaded configuration, or the defaults when the
// command runs without the root's config loading (tests, direct use).
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return config.Default()
}

func openAdapter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (core.Adapter, error) {
	acfg := cfg.Adapter.ToCore()
	a, err := adapter.NewAdapter(acfg, logger)
	if err != nil {
		return nil, err
	}
	if err := a.Connect(ctx, acfg); err != nil {
		return nil, fmt.Errorf("failed to connect %s adapter: %w", acfg.Type, err)
	}
	logger.Debug("adapter connected", slog.String("type", acfg.Type))
	return a, nil
}
