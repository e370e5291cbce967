package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cusp/internal/config"
	"cusp/internal/logging"
	"cusp/internal/pipeline"
	"cusp/internal/report"
	"cusp/internal/store"
)

var (
	// Global flags
	verbose    bool
	configPath string

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "cusp",
	Short: "cusp - compressed variational ground-state pipeline",
	Long: `cusp runs a three-stage compression study of molecular ground states:

  1. prepare: variationally approximate the ground state at each bond length
  2. train:   fit one shared quantum autoencoder over those states
  3. refine:  re-synthesize each state from the compressed representation

Every stage persists its parameter vectors, so stages can run in separate
invocations against the same run record. "run" chains all three; "report"
compares the prepared and re-synthesized energies against the exact values.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if verbose {
			cfg.Logging.DebugMode = true
		}
		return logging.Initialize(cfg.Store.RunDir, logging.Settings{
			DebugMode:  cfg.Logging.DebugMode,
			Level:      cfg.Logging.Level,
			Categories: cfg.Logging.Categories,
			JSONFormat: cfg.Logging.JSONFormat,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// initCmd writes a default configuration file
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Writes the default configuration to the --config path (cusp.yaml by
default) so it can be edited before the first run. Refuses to overwrite an
existing file.`,
	RunE: runInit,
}

// prepareCmd runs Stage 1 only
var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Stage 1: prepare ground states at each bond length",
	RunE:  runPrepare,
}

// trainCmd runs Stage 2 against a persisted run
var trainCmd = &cobra.Command{
	Use:   "train [run-id]",
	Short: "Stage 2: train the shared autoencoder over the prepared states",
	Long: `Trains one encoder over the Stage 1 parameter vectors of the given
run. Without an argument the most recent run is used. Fails if Stage 1 has
not been persisted for that run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTrain,
}

// refineCmd runs Stage 3 against a persisted run
var refineCmd = &cobra.Command{
	Use:   "refine [run-id]",
	Short: "Stage 3: re-synthesize each state from the latent space",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRefine,
}

// runCmd chains all three stages
var runAllCmd = &cobra.Command{
	Use:   "run",
	Short: "Run all three stages against a fresh run record",
	RunE:  runAll,
}

// reportCmd renders the comparison table
var reportCmd = &cobra.Command{
	Use:   "report [run-id]",
	Short: "Compare prepared and re-synthesized energies against exact values",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReport,
}

// watchCmd re-renders the report as stages complete
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the run directory and re-render the report after each stage",
	RunE:  runWatch,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "cusp.yaml", "configuration file path")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(prepareCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(refineCmd)
	rootCmd.AddCommand(runAllCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()
	return ctx, cancel
}

func openStore() (*store.RunStore, error) {
	st, err := store.Open(cfg.Store.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	return st, nil
}

// resolveRun returns the run ID from the arguments, falling back to the most
// recent persisted run.
func resolveRun(st *store.RunStore, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	id, err := st.LatestRun()
	if err != nil {
		return "", fmt.Errorf("no run specified and no previous run found: %w", err)
	}
	return id, nil
}

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("refusing to overwrite existing %s", configPath)
	}
	if err := config.DefaultConfig().Save(configPath); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}
	fmt.Printf("Wrote default configuration to %s\n", configPath)
	return nil
}

func runPrepare(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	p := pipeline.New(cfg, st)
	runID, err := p.Start()
	if err != nil {
		return err
	}
	logger.Info("Starting stage 1",
		zap.String("run", runID),
		zap.Int("bonds", len(cfg.Run.BondLengths)))

	results, err := p.Prepare(ctx, runID)
	if err != nil {
		return err
	}
	for _, r := range results {
		status := "ok"
		if !r.Accepted {
			status = "best-effort"
		}
		fmt.Printf("bond %.2f: E=%.6f (exact %.6f) [%s]\n", r.Bond, r.Energy, r.Exact, status)
	}
	fmt.Printf("Run %s: stage 1 complete\n", runID)
	return nil
}

func runTrain(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	runID, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	logger.Info("Starting stage 2", zap.String("run", runID))

	res, err := pipeline.New(cfg, st).Train(ctx, runID)
	if err != nil {
		return err
	}
	fmt.Printf("Run %s: encoder fidelity %.6f after %d attempt(s)\n", runID, res.Fidelity, res.Attempts)
	return nil
}

func runRefine(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	runID, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	logger.Info("Starting stage 3", zap.String("run", runID))

	results, err := pipeline.New(cfg, st).Refine(ctx, runID)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Printf("bond %.2f: E=%.6f (exact %.6f)\n", r.Bond, r.Energy, r.Exact)
	}
	fmt.Printf("Run %s: stage 3 complete\n", runID)
	return nil
}

func runAll(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	runID, err := pipeline.New(cfg, st).Run(ctx)
	if err != nil {
		if runID != "" {
			return fmt.Errorf("run %s: %w", runID, err)
		}
		return err
	}

	rows, err := report.Build(st, runID)
	if err != nil {
		return err
	}
	fmt.Println(report.Render(runID, rows))
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	runID, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	rows, err := report.Build(st, runID)
	if err != nil {
		return err
	}
	fmt.Println(report.Render(runID, rows))
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	// Stage markers land next to the database.
	dir := filepath.Dir(cfg.Store.DatabasePath)
	fmt.Printf("Watching %s (Ctrl-C to stop)\n", dir)
	err = report.Watch(ctx, dir, func(stage string) {
		runID, rerr := st.LatestRun()
		if rerr != nil {
			logger.Warn("No run to report on yet", zap.Error(rerr))
			return
		}
		fmt.Printf("\n[%s complete]\n", stage)
		rows, rerr := report.Build(st, runID)
		if rerr != nil {
			// Early stages cannot be compared yet; show progress instead.
			fmt.Printf("run %s: waiting for later stages (%v)\n", runID, rerr)
			return
		}
		fmt.Println(report.Render(runID, rows))
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
