package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gwi.com/support-copilot/internal/config"
	"gwi.com/support-copilot/internal/logger"
	"gwi.com/support-copilot/internal/vectorstore"
)

func newSetupIndexCommand() *cobra.Command {
	var pollEvery time.Duration
	cmd := &cobra.Command{
		Use:   "setup-index",
		Short: "Create the Pinecone index if it does not exist and wait until it is ready",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _ := config.Load()
			log := logger.New(cfg.LogLevel, cfg.LogFile)
			defer log.Sync()

			if cfg.PineconeAPIKey == "" {
				return fmt.Errorf("missing environment variables: PINECONE_API_KEY")
			}
			if pollEvery <= 0 {
				return fmt.Errorf("--poll must be positive, got %s", pollEvery)
			}

			created, err := vectorstore.EnsureIndex(cmd.Context(), cfg.PineconeAPIKey, vectorstore.IndexSpec{
				Name:      cfg.PineconeIndexName,
				Dimension: cfg.EmbeddingDimension,
				Region:    cfg.PineconeEnvironment,
			}, pollEvery, log)
			if err != nil {
				log.Error("Index setup failed", zap.Error(err))
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "Index %s created\n", cfg.PineconeIndexName)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Index %s already exists\n", cfg.PineconeIndexName)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&pollEvery, "poll", time.Second, "readiness polling interval")
	return cmd
}
