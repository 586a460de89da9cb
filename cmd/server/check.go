package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"gwi.com/support-copilot/internal/config"
	"gwi.com/support-copilot/internal/logger"
)

const checkQuery = "login issues"

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify configuration, connectivity, search and indexing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

type checkReport struct {
	out    io.Writer
	failed []string
}

func (r *checkReport) pass(format string, args ...any) {
	fmt.Fprintf(r.out, "PASS  "+format+"\n", args...)
}

func (r *checkReport) fail(step string, err error) {
	fmt.Fprintf(r.out, "FAIL  %s: %v\n", step, err)
	r.failed = append(r.failed, step)
}

func runCheck(ctx context.Context, out io.Writer) error {
	r := &checkReport{out: out}
	fmt.Fprintln(out, "Testing Customer Support Co-Pilot")

	cfg, _ := config.Load()
	log := logger.New(cfg.LogLevel, "")

	// The four deployment variables are only mandatory for the hosted
	// OpenAI and Pinecone stack.
	if missing := config.CheckDeployment(); len(missing) > 0 {
		notSet := fmt.Errorf("not set: %s", strings.Join(missing, ", "))
		if cfg.LLMProvider == config.ProviderOpenAI && cfg.VectorStore == config.VectorStorePinecone {
			r.fail("deployment variables", notSet)
		} else {
			fmt.Fprintf(out, "WARN  deployment variables %v\n", notSet)
		}
	} else {
		r.pass("deployment variables set")
	}

	if err := cfg.Validate(); err != nil {
		r.fail("configuration", err)
		return r.result()
	}
	r.pass("configuration valid (provider %s, vector store %s)", cfg.LLMProvider, cfg.VectorStore)

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		r.fail("component initialization", err)
		return r.result()
	}
	defer a.Close()
	r.pass("components initialized")

	if err := a.repo.Ping(ctx); err != nil {
		r.fail("database", err)
	} else {
		r.pass("database reachable at %s", cfg.DatabaseURL)
	}

	if stats, err := a.rag.Stats(ctx); err != nil {
		r.fail("vector store stats", err)
	} else {
		r.pass("vector store reachable (%d vectors)", stats.TotalVectorCount)
	}

	results := a.rag.SearchSimilar(ctx, checkQuery, 1)
	r.pass("search for %q returned %d result(s)", checkQuery, len(results))

	if res, err := a.copilot.Reindex(ctx); err != nil {
		r.fail("knowledge base indexing", err)
	} else if res.Warning != "" {
		fmt.Fprintf(out, "SKIP  indexing: %s\n", res.Warning)
	} else {
		r.pass("indexed %d chunk(s) from %s", res.Chunks, cfg.KnowledgeBasePath)
	}

	return r.result()
}

func (r *checkReport) result() error {
	if len(r.failed) > 0 {
		fmt.Fprintf(r.out, "\n%d check(s) failed\n", len(r.failed))
		return fmt.Errorf("checks failed: %s", strings.Join(r.failed, ", "))
	}
	fmt.Fprintln(r.out, "\nAll checks passed")
	return nil
}
