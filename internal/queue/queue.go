package queue

import (
	"fmt"

	"github.com/devpulse/internal/models"
)

// Entry is a handle to one pending record in a queue. The name encodes
// the record's origin and creation order; callers classify and sort by
// it without reading the entry body.
type Entry struct {
	Name string
}

// Queue is a durable holding area for records awaiting delivery.
// The directory-backed implementation survives process restarts; the
// in-memory one backs tests and embedded use.
//
// Concurrency contract: any number of producers may Enqueue while a
// single uploader scans and removes. Enqueue publishes atomically, so a
// concurrent ListPending or Read never observes a partial entry. Remove
// is idempotent so two drainers racing on the same entry stay benign.
type Queue interface {
	// Enqueue serializes the record and publishes it as a new uniquely
	// named entry. Failures are reported as *WriteError; the record is
	// lost in that case and the caller logs and moves on.
	Enqueue(rec models.Record) (Entry, error)

	// ListPending returns the entries present at call time, sorted
	// lexicographically by name (creation order). No snapshot isolation:
	// entries enqueued during the call may or may not appear.
	ListPending() ([]Entry, error)

	// Read deserializes an entry. Malformed content is reported as
	// *CorruptError; the caller quarantines rather than retrying.
	Read(e Entry) (models.Record, error)

	// Remove deletes an entry after confirmed delivery. Removing an
	// entry that is already gone is not an error.
	Remove(e Entry) error

	// Quarantine moves a corrupt entry aside so it no longer appears in
	// scans but its bytes remain for inspection.
	Quarantine(e Entry) error
}

// WriteError reports that an entry could not be published, typically
// because storage is unavailable or full.
type WriteError struct {
	Name string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("queue write %s: %v", e.Name, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// CorruptError reports an entry whose content is not a well-formed
// record, usually a torn or foreign write.
type CorruptError struct {
	Name string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("queue entry %s is corrupt: %v", e.Name, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }
