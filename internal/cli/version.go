package cli

import (
	"moviesync/internal/core/version"

	"github.com/spf13/cobra"
)

// NewVersionCommand prints build information
func NewVersionCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Info()
			p := opts.out(cmd.OutOrStdout())
			if ok, err := p.JSON(info); ok {
				return err
			}
			cmd.Println(info.String())
			return nil
		},
	}
}
