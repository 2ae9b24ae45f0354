package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fastygo/taskdesk/internal/config"
	"github.com/fastygo/taskdesk/pkg/logger"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "taskdesk",
		Short:        "Task tracking and approval API server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
	root.AddCommand(newServeCommand(), newMigrateCommand())
	return root
}

// bootstrap loads configuration and builds the process logger.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	log, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	log = log.With(zap.String("app", cfg.AppName), zap.String("env", cfg.Environment))
	return cfg, log, nil
}
