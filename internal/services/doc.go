// Package services holds request-scoped context helpers shared by the
// session engine, the daemon, and the CLI.
//
// The helpers stamp session handles, recognizer sources, and correlation
// identifiers onto a context so the logging package can attach them to every
// line emitted while an observation is processed.
package services
