// chipwright turns a natural-language hardware description into a
// verified, hierarchical Verilog design: it plans a module hierarchy,
// generates each module with an LLM, simulates it against a
// self-checking testbench with Icarus Verilog, and repairs failures
// until the budget runs out.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"chipwright/internal/config"
)

var (
	// Global flags
	cfgPath string
	verbose bool

	// Logger
	logger *zap.Logger

	// exitCode is set by the design command from the run's terminal
	// status: 0 verified, 1 partially failed, 2 aborted.
	exitCode int
)

var rootCmd = &cobra.Command{
	Use:   "chipwright",
	Short: "chipwright - generate and verify Verilog designs from plain English",
	Long: `chipwright is a hardware design agent.

It decomposes a design request into a hierarchy of Verilog modules,
then for each module runs a generate -> simulate -> repair loop against
Icarus Verilog until the module passes its self-checking testbench or
the attempt budget is exhausted. Verified module interfaces feed the
generation of the modules that instantiate them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		zapCfg.Encoding = "console"
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		} else {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", config.DefaultPath, "config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(designCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(reportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(2)
	}
	os.Exit(exitCode)
}
