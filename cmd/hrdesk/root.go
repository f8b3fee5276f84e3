package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ent0n29/hrdesk/internal/app"
	"github.com/ent0n29/hrdesk/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "hrdesk",
	Short: "hrdesk - offline HR policy assistant",
	Long: `hrdesk answers employee questions about company HR policy.

Questions are classified into an intent, grounded in the matching policy
category of the indexed corpus, and answered by a local language model.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (overrides HRDESK_CONFIG)")
}

// Execute runs the CLI. SIGINT and SIGTERM cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func loadConfig() (config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

// buildForCLI wires the pipeline without the HTTP surface.
func buildForCLI(ctx context.Context, cmd *cobra.Command) (*app.BuildResult, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	return app.Build(ctx, cfg, app.Options{
		LogOutput:  cmd.ErrOrStderr(),
		SkipServer: true,
	})
}
