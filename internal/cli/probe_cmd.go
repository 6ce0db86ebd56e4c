package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jo-hoe/cdbgen/internal/core"
)

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe <file>...",
		Short: "Report band count, class and target LOD of raster or vector files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				results []*core.ProbeResult
				errs    []error
			)
			for _, path := range args {
				result, err := core.ProbeFile(path)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				results = append(results, result)
			}

			if getOutputFormat(cmd) == "json" {
				if err := PrintJSON(cmd.OutOrStdout(), results); err != nil {
					return err
				}
			} else {
				rows := make([][]string, 0, len(results))
				for _, result := range results {
					lod := ""
					if result.Lod != nil {
						lod = strconv.Itoa(*result.Lod)
					}
					rows = append(rows, []string{
						result.Path,
						result.Format,
						string(result.Kind),
						strconv.Itoa(result.Bands),
						string(result.Class),
						lod,
					})
				}
				PrintTable(cmd.OutOrStdout(), []string{"path", "format", "kind", "bands", "class", "lod"}, rows)
			}

			if len(errs) > 0 {
				return fmt.Errorf("failed to probe %d file(s): %w", len(errs), errors.Join(errs...))
			}
			return nil
		},
	}
}
