package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/paizhu/internal/attachments"
)

func (a *app) newAttachmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attachments",
		Short: "Inspect and clean the attachment directory",
	}
	cmd.AddCommand(a.newAttachmentsListCmd())
	cmd.AddCommand(a.newAttachmentsSizeCmd())
	cmd.AddCommand(a.newAttachmentsCleanupCmd())
	return cmd
}

func (a *app) newAttachmentsListCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored files, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			files := a.files()
			var (
				metas []*attachments.Meta
				err   error
			)
			if date != "" {
				metas, err = files.ListByDate(date)
			} else {
				metas, err = files.ListAll()
			}
			if err != nil {
				return fail(err)
			}
			if metas == nil {
				metas = []*attachments.Meta{}
			}
			if a.flags.jsonMode {
				return printJSON(cmd, metas)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tCATEGORY\tSIZE")
			for _, m := range metas {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", m.StoredName, m.Category, attachments.FormatSize(m.Size))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "only files tagged with this log date")
	return cmd
}

func (a *app) newAttachmentsSizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "size",
		Short: "Print the total size of stored files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			total, err := a.files().TotalSize()
			if err != nil {
				return fail(err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd, map[string]any{"bytes": total, "human": attachments.FormatSize(total)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), attachments.FormatSize(total))
			return nil
		},
	}
}

func (a *app) newAttachmentsCleanupCmd() *cobra.Command {
	var before string
	cmd := &cobra.Command{
		Use:   "cleanup --before <date>",
		Short: "Delete stored files tagged before a date",
		Long:  "Cleanup deletes generated attachment files whose date tag is earlier than\n--before. Attachment rows are kept, so export them first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := a.files().CleanupBefore(before)
			if err != nil {
				return fail(err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd, map[string]int{"removed": removed})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d files\n", removed)
			return nil
		},
	}
	cmd.Flags().StringVar(&before, "before", "", "delete files tagged before this date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("before")
	return cmd
}
