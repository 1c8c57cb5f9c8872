package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/paizhu/pkg/types"
)

func (a *app) newPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "Count records waiting for export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return fail(err)
			}
			count, err := s.PendingSyncCount(cmd.Context())
			if err != nil {
				return fail(err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd, count)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, kind := range types.Kinds {
				fmt.Fprintf(tw, "%s\t%d\n", kind, count.Of(kind))
			}
			fmt.Fprintf(tw, "total\t%d\n", count.Total)
			return tw.Flush()
		},
	}
}
