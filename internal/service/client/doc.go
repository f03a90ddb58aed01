// Package client implements the alarm-ctl commands.
//
// Each command connects to the alarm daemon over gRPC, performs one
// operation (submit, cancel, list or watch) and prints the result. Watch
// keeps reconnecting after the daemon restarts or drops a slow watcher.
package client
