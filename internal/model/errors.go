package model

import "errors"

var (
	// ErrInvalidTransition is returned when the event is not accepted from the current state.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrGuardFailed is returned when a transition precondition is not met.
	ErrGuardFailed = errors.New("guard failed")
	// ErrLegalHoldBlock is returned for deletions attempted while the legal hold is active.
	ErrLegalHoldBlock = errors.New("blocked by legal hold")
	// ErrConcurrentModification is returned when the document changed underneath the caller.
	ErrConcurrentModification = errors.New("concurrent modification, refetch and retry")
	// ErrImmutableLineage is returned when a lineage is purged or held and cannot grow.
	ErrImmutableLineage = errors.New("lineage is immutable")
	// ErrAuditWriteFailure is returned when the audit record could not be written.
	ErrAuditWriteFailure = errors.New("audit write failure")
	// ErrNotFound is returned when the document, lineage or request does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNoCurrentVersion is returned when a lineage exists but has no valid version left.
	ErrNoCurrentVersion = errors.New("lineage has no current version")
	// ErrPermissionDenied is returned when the principal lacks the required privilege.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrAuditImmutable is returned when something tries to change a written audit event.
	ErrAuditImmutable = errors.New("audit events are append only")
)
