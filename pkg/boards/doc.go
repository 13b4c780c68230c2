// Package boards implements project boards and their drag-and-drop layout.
//
// A board's layout is a PositionDocument: the columns plus, per column, the
// ordered ids of the issues placed there. The document is stored as JSON on
// the board row together with a version number.
//
// # Concurrency
//
// Every mutation reads the board, applies the change to a copy of the
// document and writes it back with
//
//	UPDATE boards SET config = $1, version = version + 1 WHERE id = $3 AND version = $4
//
// When the update matches no row another writer won; the change is re-applied
// to a fresh read. After MaxRetries lost races the service returns a Conflict
// error.
//
// # Side effects
//
// Audit records, realtime events on room "board:{id}" and webhook
// publications run in the background after the write commits. Their failures
// are logged and never reach the caller.
package boards
