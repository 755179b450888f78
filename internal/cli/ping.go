package cli

import "github.com/spf13/cobra"

// NewPingCommand checks every backend the environment configures
func NewPingCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Ping the source, the index and the state stores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.resolve().Ping(cmd.Context()); err != nil {
				return err
			}
			p := opts.out(cmd.OutOrStdout())
			if ok, err := p.JSON(map[string]string{"status": "ok"}); ok {
				return err
			}
			cmd.Println("ok")
			return nil
		},
	}
}
