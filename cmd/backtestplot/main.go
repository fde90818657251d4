package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"backtestplot/internal/config"
	"backtestplot/internal/figure"
	"backtestplot/internal/finance"
	"backtestplot/internal/logging"
)

var (
	configPath string
	logLevel   string
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:   "backtestplot",
	Short: "Figures for portfolio backtest batches",
	Long: `backtestplot renders the cumulative returns and asset weights of a batch of
portfolio backtests as a 2x2 figure sized for LaTeX documents, stores batches,
serves figures over HTTP and publishes them to Telegram.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") || cfg.LogLevel == "" {
			cfg.LogLevel = logLevel
		}
		logging.Setup(cfg.LogLevel)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

// readBatchFile reads a JSON batch from path, or stdin for "-".
func readBatchFile(path string) (*finance.Batch, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read batch: %w", err)
	}
	b, err := finance.DecodeBatch(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Debug().Str("path", path).Int("runs", b.Runs()).Int("steps", b.Steps()).Msg("batch: loaded")
	return b, nil
}

// sizeFlags resolves --width/--fraction against the configured defaults.
type sizeFlags struct {
	width    string
	fraction float64
}

func (f *sizeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.width, "width", "", "Document width: thesis, beamer or points (default from config)")
	cmd.Flags().Float64Var(&f.fraction, "fraction", 0, "Fraction of the document width (default from config)")
}

func (f *sizeFlags) size() (figure.Size, error) {
	width, fraction := f.width, f.fraction
	if width == "" {
		width = cfg.Width
	}
	if fraction == 0 {
		fraction = cfg.Fraction
	}
	return figure.SetSize(width, fraction)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
