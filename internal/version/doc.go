// Package version holds the build metadata of alarm-cond and alarm-ctl.
//
// Version, Commit and BuildTime are injected with -ldflags "-X ...". Both
// binaries print them through the `version` subcommand, and the daemon logs
// them at startup.
package version
