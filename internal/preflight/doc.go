// Package preflight provides readiness checks for the filesystem paths and
// services vinscan depends on.
//
// These checks run in two contexts:
//   - The CLI "vinscan status" command runs RunAll with the daemon probe to
//     display overall health.
//   - "vinscan scan" and "vinscan history" use CheckHistory before touching
//     the decision database.
//
// Disabled features are reported as passing with a "Disabled" detail.
package preflight
