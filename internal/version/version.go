// Package version holds build metadata injected via ldflags:
//
//	-X github.com/hareshsuppiah/sport-science-ai-chat/internal/version.Version=v1.2.0
package version

import "fmt"

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String renders all three fields, e.g. "v1.2.0 (commit 3f2a9c1, built 2026-10-01)".
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date)
}
