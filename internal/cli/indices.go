package cli

import (
	"sort"
	"strconv"

	"moviesync/internal/services/etl/load"

	"github.com/spf13/cobra"
)

// NewIndicesCommand groups the index subcommands
func NewIndicesCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "indices",
		Short: "Create or count the destination indices",
	}
	cmd.AddCommand(newIndicesEnsure(opts), newIndicesCount(opts))
	return cmd
}

type indexState struct {
	Index   string `json:"index"`
	Created bool   `json:"created"`
}

func newIndicesEnsure(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ensure",
		Short: "Create any missing index from its bundled definition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ix, err := opts.resolve().Indices(cmd.Context())
			if err != nil {
				return err
			}
			defs := load.MustDefinitions()
			out := make([]indexState, 0, len(defs))
			for _, name := range sortedKeys(defs) {
				created, err := ix.EnsureIndex(cmd.Context(), name, defs[name])
				if err != nil {
					return err
				}
				out = append(out, indexState{Index: name, Created: created})
			}

			p := opts.out(cmd.OutOrStdout())
			if ok, err := p.JSON(out); ok {
				return err
			}
			rows := [][]string{{"INDEX", "CREATED"}}
			for _, s := range out {
				rows = append(rows, []string{s.Index, strconv.FormatBool(s.Created)})
			}
			return p.Rows(rows)
		},
	}
}

type indexCount struct {
	Index string `json:"index"`
	Docs  int64  `json:"docs"`
}

func newIndicesCount(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the document count of each index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ix, err := opts.resolve().Indices(cmd.Context())
			if err != nil {
				return err
			}
			names := sortedKeys(load.MustDefinitions())
			out := make([]indexCount, 0, len(names))
			for _, name := range names {
				n, err := ix.Count(cmd.Context(), name)
				if err != nil {
					return err
				}
				out = append(out, indexCount{Index: name, Docs: n})
			}

			p := opts.out(cmd.OutOrStdout())
			if ok, err := p.JSON(out); ok {
				return err
			}
			rows := [][]string{{"INDEX", "DOCS"}}
			for _, c := range out {
				rows = append(rows, []string{c.Index, strconv.FormatInt(c.Docs, 10)})
			}
			return p.Rows(rows)
		},
	}
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
