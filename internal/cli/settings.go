package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/paizhu/pkg/types"
)

func (a *app) newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and write device settings",
		Long:  fmt.Sprintf("Device settings are key/value pairs. The export reads %q and %q.", types.SettingPrisonName, types.SettingInspectorName),
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return fail(err)
			}
			v, ok, err := s.GetSetting(cmd.Context(), args[0])
			if err != nil {
				return fail(err)
			}
			if !ok {
				return userErr(fmt.Errorf("setting %q: %w", args[0], types.ErrNotFound))
			}
			if a.flags.jsonMode {
				return printJSON(cmd, types.Setting{Key: args[0], Value: v})
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Create or replace a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return fail(err)
			}
			if err := s.SaveSetting(cmd.Context(), args[0], args[1]); err != nil {
				return fail(err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd, types.Setting{Key: args[0], Value: args[1]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", args[0])
			return nil
		},
	})
	return cmd
}
