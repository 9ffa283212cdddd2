package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newStatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := opts.client.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.json {
				return printJSON(out, res)
			}

			lastIndexed := "never"
			if res.LastIndexedAt != nil {
				lastIndexed = *res.LastIndexedAt
			}

			status := statusColor(res.VectorizeStatus)

			fmt.Fprintf(out, "Vectors indexed:  %d\n", res.TotalIndexed)
			fmt.Fprintf(out, "Metadata rows:    %d\n", res.D1Rows)
			fmt.Fprintf(out, "Last indexed at:  %s\n", lastIndexed)
			fmt.Fprintf(out, "Vector index:     %s\n", status.Sprint(res.VectorizeStatus))
			return nil
		},
	}
}

func newReconcileCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Remove vectors without metadata and metadata without vectors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := opts.client.Reconcile(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.json {
				return printJSON(out, res)
			}

			fmt.Fprintf(out, "Vectors checked:          %d\n", res.VectorsChecked)
			fmt.Fprintf(out, "Metadata rows checked:    %d\n", res.MetadataChecked)
			fmt.Fprintf(out, "Orphan vectors removed:   %d\n", res.OrphanVectorsRemoved)
			fmt.Fprintf(out, "Orphan metadata removed:  %d\n", res.OrphanMetadataRemoved)
			fmt.Fprintf(out, "Took %dms\n", res.DurationMs)
			return nil
		},
	}
}

func statusColor(status string) *color.Color {
	switch status {
	case "green":
		return color.New(color.FgGreen)
	case "unavailable", "red":
		return color.New(color.FgRed)
	default:
		return color.New(color.FgYellow)
	}
}
