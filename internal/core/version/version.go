// Package version reports the build stamped into the binaries
package version

import "runtime"

// BuildInfo describes a binary
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
}

// Service is the name reported by the daemon
const Service = "moviesync-etl"

// Info returns the build information. version, commit and date are set with
// -ldflags "-X moviesync/internal/core/version.version=v0.3.0
// -X moviesync/internal/core/version.commit=abcd -X moviesync/internal/core/version.date=2026-01-02"
func Info() BuildInfo {
	return BuildInfo{
		Service: Service,
		Version: version,
		Commit:  commit,
		Date:    date,
		Go:      runtime.Version(),
	}
}

// String renders the build on one line for -version flags
func (b BuildInfo) String() string {
	return b.Service + " " + b.Version + " (" + b.Commit + ", " + b.Date + ", " + b.Go + ")"
}

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)
