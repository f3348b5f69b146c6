// Package logs reads the daemon log file for `vinscan logs`.
//
// Last returns the final N lines with bounded memory, ReadFrom continues
// from a byte offset, and Follow polls for appended lines until the context
// ends. A log file that shrinks between polls (rotation or truncation) is
// read again from the start.
package logs
