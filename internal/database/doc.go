// Package database provides SQLite-based probe history for pageprobe.
//
// Each probe is stored as one row in probe_runs, holding the full report
// as JSON next to the columns the history command lists without decoding
// it (title, status, cookie count, screenshot digest, findings by
// severity). The network requests of a run are stored in probe_requests
// so that they can be listed per run.
//
// The database is a single file, pageprobe.db, under the XDG data
// directory unless --db-dir says otherwise. modernc.org/sqlite is used so
// the binary stays CGO-free.
package database
