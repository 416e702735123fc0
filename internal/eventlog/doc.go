// Package eventlog implements the durable, append-only log of telemetry
// events written by the SDK.
//
// # Layout
//
// All files live in one directory:
//   - live-{session}                      the file currently being appended to
//   - {unixnano}-{id}.ready               immutable batches awaiting upload
//
// Records are the JSON encoding of an Event followed by a newline. Parsing is
// permissive: empty fragments and a partially written trailing record (left
// by a crash mid-append) are skipped.
//
// API surface (internal)
//
//	l, _ := Open(fs, dir)
//	_ = l.Append(Event{Name: "click", Payload: payload, EventTime: now})
//	name, _ := l.Rollover()         // live file -> ready file, "" when empty
//	names, _ := l.ReadyFiles()      // oldest first
//	events, _ := l.ReadBatch(names[0])
//	_ = l.Remove(names[0])          // after the backend accepted the batch
//
// Open renames live files left behind by earlier sessions into ready files, so
// events written before a crash are uploaded by the next session.
package eventlog
