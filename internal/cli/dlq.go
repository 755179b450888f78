package cli

import (
	"strconv"
	"time"

	perr "moviesync/internal/platform/errors"
	dlqdom "moviesync/internal/services/deadletter/domain"

	"github.com/spf13/cobra"
)

// NewDLQCommand groups the dead-letter subcommands
func NewDLQCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect or purge documents the index rejected",
	}
	cmd.AddCommand(newDLQList(opts), newDLQPurge(opts))
	return cmd
}

type dlqListing struct {
	Total   int64           `json:"total"`
	Letters []dlqdom.Letter `json:"letters"`
}

func newDLQList(opts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the oldest queued dead letters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return perr.InvalidArgf("--limit must be positive, got %d", limit)
			}
			q, err := opts.resolve().DeadLetters(cmd.Context())
			if err != nil {
				return err
			}
			total, err := q.Len(cmd.Context())
			if err != nil {
				return err
			}
			letters, err := q.Due(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if letters == nil {
				letters = []dlqdom.Letter{}
			}

			p := opts.out(cmd.OutOrStdout())
			if ok, err := p.JSON(dlqListing{Total: total, Letters: letters}); ok {
				return err
			}
			rows := [][]string{{"INDEX", "ID", "DETECTED", "ATTEMPTS", "REASON"}}
			for _, l := range letters {
				rows = append(rows, []string{
					l.Index, l.ID, l.DetectedAt.UTC().Format(time.RFC3339),
					strconv.Itoa(l.Attempts), l.Reason,
				})
			}
			if err := p.Rows(rows); err != nil {
				return err
			}
			cmd.Printf("%d of %d shown\n", len(letters), total)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "letters to show")
	return cmd
}

func newDLQPurge(opts *RootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Drop every queued dead letter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return perr.InvalidArgf("purge drops every dead letter; pass --yes to confirm")
			}
			q, err := opts.resolve().DeadLetters(cmd.Context())
			if err != nil {
				return err
			}
			n, err := q.Purge(cmd.Context())
			if err != nil {
				return err
			}
			p := opts.out(cmd.OutOrStdout())
			if ok, err := p.JSON(map[string]int64{"purged": n}); ok {
				return err
			}
			cmd.Printf("purged %d dead letters\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the purge")
	return cmd
}
