package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	perr "moviesync/internal/platform/errors"
)

// output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// exit codes
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// ExitCode maps an error returned by a command to a process exit code
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case perr.IsCode(err, perr.ErrorCodeInvalidArgument), perr.IsCode(err, perr.ErrorCodeValidation):
		return ExitUsage
	}
	return ExitFailure
}

// printer writes either aligned text rows or one JSON document
type printer struct {
	w      io.Writer
	format string
}

// JSON writes v indented when the format is json and reports whether it did
func (p printer) JSON(v any) (bool, error) {
	if p.format != FormatJSON {
		return false, nil
	}
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return true, enc.Encode(v)
}

// Rows writes tab separated rows aligned in columns
func (p printer) Rows(rows [][]string) error {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	for _, r := range rows {
		for i, c := range r {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, c)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
