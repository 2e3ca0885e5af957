package main

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"chipwright/internal/llm"
	"chipwright/internal/report"
	"chipwright/internal/sim"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the generation backend and the Verilog toolchain are usable",
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	ok := report.SuccessStyle.Render("ok")
	bad := report.FailureStyle.Render("missing")
	healthy := true

	// Toolchain.
	if err := sim.Probe(); err != nil {
		fmt.Fprintf(out, "%s  icarus toolchain: %v\n", bad, err)
		healthy = false
	} else {
		for _, bin := range []string{"iverilog", "vvp"} {
			path, _ := exec.LookPath(bin)
			fmt.Fprintf(out, "%s  %s (%s)\n", ok, bin, path)
		}
	}

	// Backend.
	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	client, err := llm.NewClient(ctx, llm.Options{
		Provider: cfg.Provider,
		Model:    cfg.Model,
		BaseURL:  cfg.LLM.BaseURL,
		APIKey:   cfg.LLM.APIKey,
	})
	if err != nil {
		fmt.Fprintf(out, "%s  %s provider: %v\n", bad, cfg.Provider, err)
		healthy = false
	} else if ollama, isOllama := client.(*llm.OllamaClient); isOllama {
		models, err := ollama.ListModels(ctx)
		switch {
		case err != nil:
			fmt.Fprintf(out, "%s  ollama daemon unreachable: %v\n", bad, err)
			healthy = false
		case !llm.ModelAvailable(models, cfg.Model):
			fmt.Fprintf(out, "%s  model %s not installed (have: %s)\n",
				bad, cfg.Model, strings.Join(models, ", "))
			fmt.Fprintf(out, "    run: ollama pull %s\n", cfg.Model)
			healthy = false
		default:
			fmt.Fprintf(out, "%s  ollama daemon, model %s\n", ok, cfg.Model)
		}
	} else {
		fmt.Fprintf(out, "%s  %s provider configured (model %s)\n", ok, cfg.Provider, cfg.Model)
	}

	if !healthy {
		exitCode = 2
		fmt.Fprintln(out, report.WarningStyle.Render("\nnot ready: fix the entries above before running designs"))
		return nil
	}
	fmt.Fprintln(out, report.SuccessStyle.Render("\nready"))
	return nil
}
