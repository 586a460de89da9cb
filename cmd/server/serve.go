package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"gwi.com/support-copilot/internal/api"
)

const shutdownTimeout = 30 * time.Second

type serveOptions struct {
	IndexOnStart bool
}

func (o *serveOptions) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.BoolVar(&o.IndexOnStart, "index-on-start", false, "index the knowledge base before serving")
}

func newServeCommand() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and web UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	opts.AddFlags(cmd.Flags())
	return cmd
}

func runServe(ctx context.Context, opts *serveOptions) error {
	cfg, log, err := loadConfig()
	if err != nil {
		log.Error("Invalid configuration", zap.Error(err))
		return err
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Error("Startup failed", zap.Error(err))
		return err
	}
	defer a.Close()

	if opts.IndexOnStart {
		res, err := a.copilot.Reindex(ctx)
		if err != nil {
			log.Warn("Knowledge base indexing failed", zap.Error(err))
		} else if res.Warning != "" {
			log.Warn(res.Warning)
		} else {
			log.Info("Knowledge base indexed", zap.Int("chunks", res.Chunks))
		}
	}

	apiHandler := api.NewAPIHandler(a.copilot, log)
	router := api.NewRouter(apiHandler, a.metrics, log)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // drafting may retry the model
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Starting server. Press Ctrl+C to quit.", zap.String("addr", serverAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			log.Error("Could not listen", zap.String("addr", serverAddr), zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	log.Info("Server exiting gracefully")
	return nil
}
