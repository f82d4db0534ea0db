// Package version carries build metadata injected with -ldflags.
package version

import "fmt"

var (
	// Version is the release tag of the build.
	Version = "v0.4.0"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)

// String renders version, commit and build date on one line.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date)
}
