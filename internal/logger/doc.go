// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing utilities,
//   - convenience functions (Info, DebugKV, ErrorKV, etc.).
//
// The scheduler, the front-ends and the transport take a context and extract
// the logger from it, so every goroutine logs under its component name.
// Alarm notices are program output and do not go through this package.
package logger
