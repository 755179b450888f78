// Package cli implements moviesync-ctl, the operator tool for the durable
// state the sync loop leaves behind
package cli

import (
	"context"
	"io"

	"moviesync/internal/platform/config"
	perr "moviesync/internal/platform/errors"

	"github.com/spf13/cobra"
)

// RootOptions holds the persistent flags
type RootOptions struct {
	Env    string
	Format string

	// Backends is resolved after flags are parsed so --env takes effect
	Backends func() Backends

	backends Backends
}

// NewRootCommand builds the command tree around opts
func NewRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "moviesync-ctl",
		Short:         "Inspect and repair moviesync sync state",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.Format != FormatText && opts.Format != FormatJSON {
				return perr.InvalidArgf("invalid --format %q (want text or json)", opts.Format)
			}
			if opts.Env != "" {
				if err := config.LoadDotenv(opts.Env); err != nil {
					return perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "load %s", opts.Env)
				}
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Env, "env", ".env", "dotenv file seeding the environment; missing is fine")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", FormatText, "output format: text or json")

	cmd.AddCommand(
		NewCheckpointCommand(opts),
		NewDLQCommand(opts),
		NewIndicesCommand(opts),
		NewPingCommand(opts),
		NewVersionCommand(opts),
	)
	return cmd
}

func (o *RootOptions) resolve() Backends {
	if o.backends == nil {
		o.backends = o.Backends()
	}
	return o.backends
}

func (o *RootOptions) out(w io.Writer) printer { return printer{w: w, format: o.Format} }

// Close releases whatever backends a command opened
func (o *RootOptions) Close() error {
	if o.backends == nil {
		return nil
	}
	err := o.backends.Close()
	o.backends = nil
	return err
}

// Execute runs the tree against args and returns the process exit code
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts := &RootOptions{Backends: EnvBackends}
	defer opts.Close()

	cmd := NewRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		cmd.PrintErrln("error:", err)
	}
	return ExitCode(err)
}
