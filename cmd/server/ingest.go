package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gwi.com/support-copilot/internal/config"
)

func newIngestCommand() *cobra.Command {
	var (
		file  string
		reset bool
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index a knowledge base file into the vector store and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				log.Error("Invalid configuration", zap.Error(err))
				return err
			}
			if file != "" {
				cfg.KnowledgeBasePath = file
			}

			a, err := newApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			if reset {
				cleared, err := a.rag.Reset(cmd.Context())
				if err != nil {
					return err
				}
				if !cleared {
					return fmt.Errorf("--reset is only supported with VECTOR_STORE=%s", config.VectorStoreSQLite)
				}
			}

			log.Info("Starting data ingestion", zap.String("path", cfg.KnowledgeBasePath))
			n, err := a.rag.IndexDocuments(cmd.Context(), cfg.KnowledgeBasePath)
			if err != nil {
				log.Error("Data ingestion failed", zap.Error(err))
				return err
			}
			a.metrics.ObserveIndexed(n)
			log.Info("Data ingestion complete", zap.Int("chunks", n))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "knowledge base file (defaults to KNOWLEDGE_BASE_PATH)")
	cmd.Flags().BoolVar(&reset, "reset", false, "drop previously indexed chunks first (sqlite store only)")
	return cmd
}
