package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"chipwright/internal/llm"
	"chipwright/internal/plan"
	"chipwright/internal/report"
)

var planCmd = &cobra.Command{
	Use:   "plan [prompt]",
	Short: "Decompose a prompt into a module hierarchy without verifying",
	Long: `Dry-runs the planner: asks the model for a module decomposition,
validates it (acyclic, single top, resolvable dependencies) and prints
the resulting hierarchy in verification order.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	prompt := strings.Join(args, " ")

	ctx := cmd.Context()
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

	graph, err := plan.NewBuilder(client, logger).Build(ctx, plan.Request{Prompt: prompt, Hints: designHints})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n\n",
		report.InfoStyle.Render(fmt.Sprintf("%d modules, top:", graph.Len())),
		report.SuccessStyle.Render(graph.Top()))

	for i, node := range graph.Nodes() {
		fmt.Fprintln(out, report.BannerStyle.Render(fmt.Sprintf("%d. %s", i+1, node.Name)))
		fmt.Fprintf(out, "%s\n", node.Description)
		for _, p := range node.Ports {
			fmt.Fprintf(out, "  %s\n", report.MutedStyle.Render(p.String()))
		}
		if len(node.DependsOn) > 0 {
			fmt.Fprintf(out, "  %s %s\n",
				report.InfoStyle.Render("instantiates:"), strings.Join(node.DependsOn, ", "))
		}
		fmt.Fprintln(out)
	}
	return nil
}

func init() {
	planCmd.Flags().StringArrayVar(&designHints, "hint", nil, "interface hint for the planner (repeatable)")
}
