// Package logging provides slog logger construction for mnemo.
//
// Two output formats are supported: a human-oriented console format used for
// interactive runs, and line-delimited JSON for log files and machine
// consumption. Attr helpers keep field names consistent across packages.
package logging
