package cli

import (
	"strconv"
	"time"

	perr "moviesync/internal/platform/errors"
	cpdom "moviesync/internal/services/checkpoint/domain"

	"github.com/spf13/cobra"
)

type checkpointView struct {
	Cursor     string `json:"cursor"`
	Locked     bool   `json:"locked"`
	Owner      string `json:"owner,omitempty"`
	LeaseUntil string `json:"lease_until,omitempty"`
	Expired    bool   `json:"expired"`
}

func viewOf(cp cpdom.Checkpoint, now time.Time) checkpointView {
	v := checkpointView{
		Cursor:  cpdom.FormatCursor(cp.Cursor),
		Locked:  cp.Locked,
		Owner:   cp.Owner,
		Expired: cp.Expired(now),
	}
	if !cp.LeaseUntil.IsZero() {
		v.LeaseUntil = cp.LeaseUntil.UTC().Format(time.RFC3339)
	}
	return v
}

// NewCheckpointCommand groups the checkpoint subcommands
func NewCheckpointCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Show, reset or unlock the sync checkpoint",
	}
	cmd.AddCommand(
		newCheckpointShow(opts),
		newCheckpointReset(opts),
		newCheckpointUnlock(opts),
	)
	return cmd
}

func newCheckpointShow(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the checkpoint record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := opts.resolve().Checkpoint(cmd.Context())
			if err != nil {
				return err
			}
			cp, err := st.Get(cmd.Context())
			if err != nil {
				return err
			}
			return printCheckpoint(cmd, opts, cp)
		},
	}
}

func newCheckpointReset(opts *RootOptions) *cobra.Command {
	var (
		cursor string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Move the cursor, unlocked; the next tick resyncs everything after it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			at, err := cpdom.ParseCursor(cursor)
			if err != nil {
				return perr.InvalidArgf("invalid --cursor %q", cursor)
			}
			st, err := opts.resolve().Checkpoint(cmd.Context())
			if err != nil {
				return err
			}
			cur, err := st.Get(cmd.Context())
			if err != nil {
				return err
			}
			if cur.Locked && !cur.Expired(time.Now()) && !force {
				return perr.Conflictf("checkpoint is leased by %s; pass --force to reset anyway", cur.Owner)
			}
			next := cpdom.Checkpoint{Cursor: at}
			if err := st.Set(cmd.Context(), next); err != nil {
				return err
			}
			return printCheckpoint(cmd, opts, next)
		},
	}
	cmd.Flags().StringVar(&cursor, "cursor", "", "new cursor (RFC3339 or date); empty rewinds to the epoch")
	cmd.Flags().BoolVar(&force, "force", false, "reset even while a live lease is held")
	return cmd
}

func newCheckpointUnlock(opts *RootOptions) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Clear a stuck lease and keep the cursor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := opts.resolve().Checkpoint(cmd.Context())
			if err != nil {
				return err
			}
			cur, err := st.Get(cmd.Context())
			if err != nil {
				return err
			}
			if !cur.Locked {
				return printCheckpoint(cmd, opts, cur)
			}
			if owner != "" && owner != cur.Owner {
				return perr.Conflictf("checkpoint is leased by %s, not %s", cur.Owner, owner)
			}
			if err := st.Release(cmd.Context(), cur.Owner); err != nil {
				return err
			}
			next, err := st.Get(cmd.Context())
			if err != nil {
				return err
			}
			return printCheckpoint(cmd, opts, next)
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "only unlock when held by this owner")
	return cmd
}

func printCheckpoint(cmd *cobra.Command, opts *RootOptions, cp cpdom.Checkpoint) error {
	v := viewOf(cp, time.Now())
	p := opts.out(cmd.OutOrStdout())
	if ok, err := p.JSON(v); ok {
		return err
	}
	lease := v.LeaseUntil
	if lease == "" {
		lease = "-"
	}
	owner := v.Owner
	if owner == "" {
		owner = "-"
	}
	return p.Rows([][]string{
		{"cursor", v.Cursor},
		{"locked", strconv.FormatBool(v.Locked)},
		{"owner", owner},
		{"lease_until", lease},
		{"expired", strconv.FormatBool(v.Expired)},
	})
}
