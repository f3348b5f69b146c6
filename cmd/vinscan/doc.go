// Package main hosts the vinscan CLI entrypoint and command graph.
//
// Commands fall into three help groups. Recognition commands validate and
// normalize single strings, replay recorded observation streams through a
// session (locally or inside the daemon), and browse decision history.
// Daemon commands run the HTTP daemon in the foreground, start, stop and
// restart it in the background, report status, and tail its log. The
// administration group scaffolds and checks configuration and sends a test
// notification.
//
// A scan that ends without a decision exits with status 2; other failures
// exit with status 1.
package main
