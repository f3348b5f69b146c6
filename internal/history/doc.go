// Package history persists emitted VIN decisions in SQLite.
//
// The store is a decision sink: sessions hand it each decision once, and the
// CLI and daemon read it back for `vinscan history` and /api/decisions. The
// scanning engine never reads from it; losing the database loses the audit
// trail, not any session state.
package history
