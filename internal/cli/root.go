package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jo-hoe/cdbgen/internal/common"
	"github.com/jo-hoe/cdbgen/internal/core"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return executeRoot(ctx, newRootCmd())
}

// reportedError marks a failure already written into the command's output document.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }

func (e *reportedError) Unwrap() error { return e.err }

func executeRoot(ctx context.Context, rootCmd *cobra.Command) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var reported *reportedError
		if errors.As(err, &reported) {
			return 1
		}
		if getOutputFormat(rootCmd) == "json" {
			_ = PrintJSON(rootCmd.OutOrStdout(), map[string]string{"error": err.Error()})
		} else {
			_, _ = fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// settings holds the configuration resolved before a subcommand runs.
type settings struct {
	configPath string
	logLevel   string
	logFormat  string
	output     string
	config     *core.ServiceConfig
}

func newRootCmd() *cobra.Command {
	s := &settings{}

	rootCmd := &cobra.Command{
		Use:           "cdbgen",
		Short:         "Classify raster layers and insert imagery into a CDB datastore",
		Long:          "cdbgen classifies project layers by band count and runs cdb-inject for every imagery layer.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutputFormat(s.output); err != nil {
				return err
			}
			config, err := resolveConfig(s.configPath, cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}
			// Apply precedence: flag > config file > default
			if cmd.Flags().Changed("log-level") {
				config.Log.Level = s.logLevel
			}
			if cmd.Flags().Changed("log-format") {
				config.Log.Format = s.logFormat
			}
			if err := config.Validate(); err != nil {
				return err
			}
			s.config = config
			return setupLogging(cmd.ErrOrStderr(), config.Log)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&s.configPath, "config", "c", "", "Path to the YAML config file (default $CONFIG_PATH or ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&s.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&s.logFormat, "log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().StringVarP(&s.output, "output", "o", "table", "Output format (table, json)")

	rootCmd.AddCommand(
		newRunCmd(s),
		newLayersCmd(s),
		newProbeCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// resolveConfig loads the explicit config path, then $CONFIG_PATH, then
// ./config.yaml if present, and falls back to defaults.
func resolveConfig(path string, explicit bool) (*core.ServiceConfig, error) {
	if explicit {
		return core.LoadConfig(path)
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return core.LoadConfig(env)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	local := filepath.Join(cwd, "config.yaml")
	if _, err := os.Stat(local); err == nil {
		return core.LoadConfig(local)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return core.DefaultConfig(), nil
}

func setupLogging(w io.Writer, config core.LogConfig) error {
	logger, err := common.NewLogger(w, config.Level, config.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}
