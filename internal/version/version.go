package version

import "fmt"

var (
	// Version is the release of alarm-cond and alarm-ctl, set via ldflags.
	Version = "0.1.0"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full renders the version line printed by the `version` subcommand of binary.
func Full(binary string) string {
	return fmt.Sprintf("%s version: %s, commit: %s, built at: %s", binary, Version, Commit, BuildTime)
}

// KV returns the build metadata as logger key-value pairs.
func KV() []any {
	return []any{"version", Version, "commit", Commit, "build_time", BuildTime}
}
