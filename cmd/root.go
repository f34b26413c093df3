package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"risk_service/internal/config"
	"risk_service/internal/domain/repository"
	"risk_service/internal/logging"
)

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "risk_service",
		Short:         "Geospatial risk scoring: corpus generation, training and inference",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.Log.Level = opts.logLevel
			}
			if opts.logFormat != "" {
				cfg.Log.Format = opts.logFormat
			}
			if err := logging.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format); err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("RISK_CONFIG"), "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format: text or json (overrides config)")

	cmd.AddCommand(
		newServeCmd(opts),
		newGenerateCmd(opts),
		newTrainCmd(opts),
		newRunsCmd(opts),
		newHotspotCmd(opts),
	)
	return cmd
}

// openStore connects to the configured database. It fails when none is
// configured.
func (o *rootOptions) openStore(ctx context.Context) (*repository.IncidentStore, error) {
	if !o.cfg.Store.Enabled() {
		return nil, fmt.Errorf("no store configured (set store.driver or RISK_STORE_DRIVER)")
	}
	return repository.NewIncidentStore(ctx, o.cfg.Store.Driver, o.cfg.Store.DSN)
}
