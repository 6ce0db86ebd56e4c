package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jo-hoe/cdbgen/internal/core"
)

func newLayersCmd(s *settings) *cobra.Command {
	var (
		projectFile string
		scan        []string
	)

	cmd := &cobra.Command{
		Use:   "layers",
		Short: "List layers with their dispatch class",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := core.NewCoreService(s.config)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			views, err := svc.ListLayers(cmd.Context(), core.RunRequest{ProjectFile: projectFile, Scan: scan})
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), views)
			}

			rows := make([][]string, 0, len(views))
			for _, view := range views {
				rows = append(rows, []string{
					view.Name,
					string(view.Kind),
					strconv.Itoa(view.BandCount),
					string(view.Class),
					strconv.FormatBool(view.Exists),
					view.Source,
				})
			}
			PrintTable(cmd.OutOrStdout(), []string{"name", "kind", "bands", "class", "exists", "source"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&projectFile, "project", "", "YAML project file listing layers")
	cmd.Flags().StringSliceVar(&scan, "scan", nil, "Directories to scan for raster and vector layers")
	return cmd
}
