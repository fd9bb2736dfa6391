// Package memstore persists extracted memory records in SQLite.
//
// Writes are idempotent: records are deduplicated on (transcript_id,
// content hash), so re-extracting a transcript after a crash cannot
// duplicate rows even when some rows from the interrupted attempt survived.
// An advisory file lock guards the database against a second writer; the
// kernel releases it on process death, so a crash never leaves a stale lock.
package memstore
