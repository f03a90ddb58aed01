// Package common holds helpers shared by the daemon and its remote client.
//
// It provides a gRPC client wrapper for the alarm service with per-call
// timeouts, and tags every call with the calling actor (user@host) so the
// daemon can log who submitted or cancelled an alarm.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
