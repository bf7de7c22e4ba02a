// Package version holds build metadata injected at link time via
// -ldflags "-X github.com/wisbric/fleetwatch/internal/version.Version=...".
package version

var (
	// Version is the released tag, or "dev" for local builds.
	Version = "dev"
	// Commit is the short git commit SHA the binary was built from.
	Commit = "unknown"
)
