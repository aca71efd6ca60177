package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	scigoErrors "github.com/YuminosukeSato/bechdel/pkg/errors"
	"github.com/YuminosukeSato/bechdel/pkg/log"
	"github.com/YuminosukeSato/bechdel/pipeline"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type runFlags struct {
	configPath string
	outDir     string
	seed       uint64
	logLevel   string
	sequential bool
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bechdel",
		Short: "Model Bechdel test outcomes from movie metadata",
		Long: `bechdel joins Bechdel test scores with movie metadata and cast/crew
gender ratios, fits several model families and reports how well they
predict the test outcome on held-out movies.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newVersionCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline and write the report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, f)
		},
	}
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "YAML config file (defaults are used when empty)")
	cmd.Flags().StringVarP(&f.outDir, "out", "o", "", "Output directory, overrides the config")
	cmd.Flags().Uint64Var(&f.seed, "seed", 0, "Random seed, overrides the config")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error, overrides the config")
	cmd.Flags().BoolVar(&f.sequential, "sequential", false, "Evaluate cross-validation folds one at a time")
	return cmd
}

func runPipeline(cmd *cobra.Command, f runFlags) error {
	cfg, err := pipeline.LoadConfig(f.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("out") {
		cfg.OutputDir = f.outDir
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = f.seed
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if f.sequential {
		cfg.Parallel = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	setupLogging(cmd.ErrOrStderr(), cfg.LogLevel)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	res, err := pipeline.Run(ctx, cfg, pipeline.WithConsole(cmd.OutOrStdout()))
	if err != nil {
		return err
	}
	for _, path := range res.Outputs {
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	}
	return nil
}

// setupLogging routes structured logs and library warnings to w.
func setupLogging(w io.Writer, level string) {
	log.SetupLoggerTo(w, level)
	if p, ok := log.GetProvider().(*log.ZerologProvider); ok {
		scigoErrors.SetZerologWarnFunc(p.Root().Warning)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bechdel %s\n", version)
		},
	}
}
