package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Package pending records into a sync archive",
		Long: `Export writes every pending record and its attachment files into
sync_<time>.zip in the cache directory, copies it to the export directory
and marks the records exported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine()
			if err != nil {
				return fail(err)
			}
			engine.Progress = func(f float64) {
				a.logger.Debug("export progress", "fraction", f)
			}
			res, err := engine.Export(cmd.Context())
			if err != nil && res == nil {
				return fail(err)
			}
			if a.flags.jsonMode {
				if perr := printJSON(cmd, res); perr != nil {
					return perr
				}
			} else {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Exported %s\n", res.DeliveredPath)
				fmt.Fprintf(out, "  daily %d, weekly %d, monthly %d, immediate %d, attachments %d (%d files)\n",
					res.Stats.Daily, res.Stats.Weekly, res.Stats.Monthly, res.Stats.Immediate,
					res.Stats.Attachments, res.AttachmentsCopied)
			}
			// The archive is out; rows left pending go out again next time.
			return fail(err)
		},
	}
}
