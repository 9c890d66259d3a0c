// Package core provides the application logic shared by the front-ends.
//
// It holds no UI or transport code: the web server, the terminal UI and the
// CLI all drive the same [Service], so a file loaded and written from the
// command line behaves exactly like one uploaded in the browser.
//
// # Sessions
//
// Every user works on one [Session]: the loaded table, the file and target
// table names, the connection settings and the status log. Sessions live in
// a [SessionStore] and expire after an idle timeout; the web front-end runs
// [SessionStore.StartSessionSweeper] to drop them.
//
// # Writes
//
// Overwrite and append run on a copy of the session's table, so edits and
// page renders are not blocked by a long insert. A [WriteLimiter] caps the
// number of writes running at once and refuses a second write to a table
// that is already being written. Overwrite drops the table, so interactive
// front-ends call [Service.RequestOverwrite] before
// [Service.ConfirmOverwrite].
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a code for support reference:
//
//   - FILE001-FILE006: file errors (size, format, encoding, parse)
//   - DB001-DB005: database errors (connection, timeout, credentials)
//   - SCH001-SCH003: schema errors (no columns, name collisions, bad values)
//   - TBL001-TBL003: table errors (missing table, nothing loaded)
//   - WRT001-WRT004: write scheduling errors
package core
