package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jo-hoe/cdbgen/internal/backend/dispatch"
	"github.com/jo-hoe/cdbgen/internal/backend/progress"
	"github.com/jo-hoe/cdbgen/internal/core"
)

// runOutput is the single JSON document printed by run -o json.
type runOutput struct {
	*core.RunResult
	Error string `json:"error,omitempty"`
}

type runFlags struct {
	toolDir     string
	datastore   string
	projectFile string
	scan        []string
	create      bool
	overviews   bool
	forceExe    bool
	timeout     time.Duration
}

func newRunCmd(s *settings) *cobra.Command {
	f := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run [tool-dir] [datastore]",
		Short: "Insert every imagery layer into the datastore",
		Long: `Classifies all layers of the project file, scanned directories and catalog.
Imagery layers (3 or 4 bands) are inserted with cdb-inject; progress is printed line by line.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				f.toolDir = args[0]
			}
			if len(args) > 1 {
				f.datastore = args[1]
			}
			applyRunFlags(cmd, s.config, f)

			svc, err := core.NewCoreService(s.config)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			request := core.RunRequest{
				ToolDir:     f.toolDir,
				Datastore:   f.datastore,
				ProjectFile: f.projectFile,
				Scan:        f.scan,
			}
			jsonOutput := getOutputFormat(cmd) == "json"
			if !jsonOutput {
				request.Sink = progress.NewWriterSink(cmd.OutOrStdout())
			}

			result, err := svc.Run(cmd.Context(), request)
			if err == nil {
				err = runFailure(result.Report)
			}
			if !jsonOutput || result == nil {
				return err
			}

			output := runOutput{RunResult: result}
			if err != nil {
				output.Error = err.Error()
			}
			if printErr := PrintJSON(cmd.OutOrStdout(), output); printErr != nil {
				return printErr
			}
			if err != nil {
				return &reportedError{err: err}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&f.toolDir, "tools", "", "Directory containing cdb-inject and gdaladdo")
	cmd.Flags().StringVar(&f.datastore, "datastore", "", "Output CDB datastore directory")
	cmd.Flags().StringVar(&f.projectFile, "project", "", "YAML project file listing layers")
	cmd.Flags().StringSliceVar(&f.scan, "scan", nil, "Directories to scan for raster and vector layers")
	cmd.Flags().BoolVar(&f.create, "create", false, "Initialise the datastore metadata if missing")
	cmd.Flags().BoolVar(&f.overviews, "overviews", false, "Build imagery overviews with gdaladdo after inserting")
	cmd.Flags().BoolVar(&f.forceExe, "force-exe", false, "Append .exe to the tool names")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Per-invocation tool timeout (0 keeps the configured value)")
	return cmd
}

// runFailure reports failed layers or a failed overview build as an error.
func runFailure(report *dispatch.Report) error {
	if failed := report.Count(dispatch.StatusFailed); failed > 0 {
		return fmt.Errorf("%d layer(s) failed: %w", failed, report.Err())
	}
	if report.Overview.Err != nil {
		return fmt.Errorf("overview build failed: %w", report.Overview.Err)
	}
	return nil
}

// applyRunFlags overrides configuration values with explicitly set flags.
func applyRunFlags(cmd *cobra.Command, config *core.ServiceConfig, f *runFlags) {
	if cmd.Flags().Changed("create") {
		config.Output.Create = f.create
	}
	if cmd.Flags().Changed("overviews") {
		config.Overviews.Enabled = f.overviews
	}
	if cmd.Flags().Changed("force-exe") {
		config.Tools.ForceExe = f.forceExe
	}
	if f.timeout > 0 {
		config.Tools.Timeout = f.timeout
	}
}
