// Package boundary implements the restart boundary: a small durable key/value
// store whose contents survive a process restart.
//
// FileStore keeps every key in one JSON document and rewrites it atomically
// on each change, so a crash mid-write leaves the previous contents intact.
// MemoryStore is the in-process variant for tests and dry runs.
//
// Key layout used by the rest of the module:
//
//	pipeline.<profile>.cursor   run state of a suspended pipeline run
//	pkg.<identifier>.pending    package installed, waiting for a reload
//	version.<component>         last version seen by IsFirstRunForVersion
package boundary
