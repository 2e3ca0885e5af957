package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"chipwright/internal/llm"
	"chipwright/internal/orchestrate"
	"chipwright/internal/plan"
	"chipwright/internal/report"
	"chipwright/internal/sim"
	"chipwright/internal/store"
	"chipwright/internal/verify"
	"chipwright/internal/workspace"
)

var designHints []string

var designCmd = &cobra.Command{
	Use:   "design [prompt]",
	Short: "Generate and verify a design from a natural-language prompt",
	Long: `Runs the full pipeline: decompose the prompt into a module
hierarchy, then generate, simulate and repair each module bottom-up.
Verified designs are saved under the configured designs directory.

Example:
  chipwright design "4-bit ripple carry adder built from full adders"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDesign,
}

func init() {
	designCmd.Flags().StringArrayVar(&designHints, "hint", nil, "interface hint for the planner (repeatable)")
}

func runDesign(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	prompt := strings.Join(args, " ")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("shutdown signal received, cancelling run")
			cancel()
		case <-ctx.Done():
		}
	}()

	client, err := llm.NewClient(ctx, llm.Options{
		Provider:    cfg.Provider,
		Model:       cfg.Model,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Temperature: cfg.LLM.Temperature,
		NumCtx:      cfg.LLM.NumCtx,
		Timeout:     cfg.GetGenerateTimeout(),
	})
	if err != nil {
		return fmt.Errorf("creating %s client: %w", cfg.Provider, err)
	}

	var journal *store.Store
	if cfg.Store.Path != "" {
		journal, err = store.Open(cfg.Store.Path)
		if err != nil {
			logger.Warn("run journal unavailable", zap.Error(err))
			journal = nil
		} else {
			defer journal.Close()
		}
	}

	runID := uuid.NewString()
	if journal != nil {
		if err := journal.BeginRun(runID, prompt); err != nil {
			logger.Warn("journal write failed", zap.Error(err))
		}
	}

	obs := newProgressObserver(cmd.OutOrStdout(), runID, journal, cfg.ShowDiffs, logger)

	runner := sim.NewRunner(sim.RunnerConfig{
		WorkDir:        cfg.WorkspaceDir,
		CompileTimeout: cfg.GetCompileTimeout(),
		SimTimeout:     cfg.GetSimulateTimeout(),
	}, logger)

	verifier := verify.NewVerifier(client, runner, cfg.MaxRetries, logger)
	verifier.SetObserver(obs)

	planner := plan.NewBuilder(client, logger)

	orch := orchestrate.NewOrchestrator(planner, verifier, orchestrate.Options{
		RunID:      runID,
		Parallel:   cfg.Parallel,
		RunTimeout: cfg.GetRunTimeout(),
	}, logger)
	orch.SetObserver(obs)

	fmt.Fprintln(cmd.OutOrStdout(), report.InfoStyle.Render("planning: "+prompt))

	res, err := orch.Run(ctx, plan.Request{Prompt: prompt, Hints: designHints})
	if err != nil {
		if journal != nil {
			_ = journal.FinishRun(runID, "aborted", nil, nil, 0)
		}
		return fmt.Errorf("run failed: %w", err)
	}
	if journal != nil {
		if err := journal.SetTopModule(runID, res.Top); err != nil {
			logger.Warn("journal write failed", zap.Error(err))
		}
		if err := journal.FinishRun(runID, string(res.Status), res.Failed, res.Skipped, res.Duration); err != nil {
			logger.Warn("journal write failed", zap.Error(err))
		}
	}

	printRunSummary(cmd, res)

	if res.Verified() && cfg.SaveOnSuccess {
		dir, err := workspace.SaveDesign(cfg.DesignsDir, res)
		if err != nil {
			return fmt.Errorf("saving design: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), report.SuccessStyle.Render("saved to "+dir))
	}

	switch res.Status {
	case orchestrate.StatusVerified:
		exitCode = 0
	case orchestrate.StatusPartiallyFailed:
		exitCode = 1
	default:
		exitCode = 2
	}
	return nil
}

func printRunSummary(cmd *cobra.Command, res *orchestrate.DesignResult) {
	out := cmd.OutOrStdout()
	status := report.StatusStyle(string(res.Status)).Render(strings.ToUpper(string(res.Status)))
	fmt.Fprintf(out, "\n%s %s\n", status,
		report.MutedStyle.Render(fmt.Sprintf("run %.8s, %s", res.RunID, res.Duration.Round(100*time.Millisecond))))

	if len(res.Failed) > 0 {
		fmt.Fprintf(out, "%s %s\n", report.FailureStyle.Render("failed:"), strings.Join(res.Failed, ", "))
	}
	if len(res.Skipped) > 0 {
		fmt.Fprintf(out, "%s %s\n", report.WarningStyle.Render("skipped:"), strings.Join(res.Skipped, ", "))
	}
	for _, name := range res.Failed {
		if m, ok := res.Module(name); ok && m.Diagnostic != "" {
			fmt.Fprintln(out, report.PanelStyle.Render(name+":\n"+m.Diagnostic))
		}
	}
}
