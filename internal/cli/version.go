package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/paizhu/pkg/paizhu"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the paizhu version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "paizhu v%s\nmodule: %s\n", paizhu.Version, paizhu.ModulePath)
			return nil
		},
	}
}
