package deletion

import "fmt"

// ValidationError rejects a request before any store call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError means the core record was absent at preview or delete time.
type NotFoundError struct {
	Table string
	ID    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s record %q not found", e.Table, e.ID)
}

// ConstraintError means the store refused the delete because a dependent
// table has no cascade rule. Message names the fix and is meant to be shown verbatim.
type ConstraintError struct {
	Table      string
	Constraint string
	Detail     string
	Err        error
}

func (e *ConstraintError) Error() string {
	msg := fmt.Sprintf("delete blocked by foreign key %q on table %q: configure ON DELETE CASCADE for %s",
		e.Constraint, e.Table, e.Table)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// VerificationFailedError means the store acknowledged the delete but the
// record is still readable.
type VerificationFailedError struct {
	Table string
	ID    string
	Rows  int64
}

func (e *VerificationFailedError) Error() string {
	return fmt.Sprintf("%s record %q still present after delete (%d rows)", e.Table, e.ID, e.Rows)
}

// VerificationUnavailableError means the store could not be read back after
// a delete, so whether the record is gone is unknown. Retrying the delete is
// unsafe until someone checks.
type VerificationUnavailableError struct {
	Table string
	ID    string
	Err   error
}

func (e *VerificationUnavailableError) Error() string {
	return fmt.Sprintf("could not verify deletion of %s record %q: %v", e.Table, e.ID, e.Err)
}

func (e *VerificationUnavailableError) Unwrap() error { return e.Err }

// DeleteFailedError wraps any other failure of the core delete. It is only
// returned once a read-back shows the record is still present.
type DeleteFailedError struct {
	ID  string
	Err error
}

func (e *DeleteFailedError) Error() string {
	return fmt.Sprintf("delete of %q failed: %v", e.ID, e.Err)
}

func (e *DeleteFailedError) Unwrap() error { return e.Err }

// PreviewFailedError wraps a failure to load the core record or any dependent count.
type PreviewFailedError struct {
	ID  string
	Err error
}

func (e *PreviewFailedError) Error() string {
	return fmt.Sprintf("preview of %q failed: %v", e.ID, e.Err)
}

func (e *PreviewFailedError) Unwrap() error { return e.Err }

// PreviewDegradedWarning is attached to a preview built by per-table counting.
// It is not returned as an error.
type PreviewDegradedWarning struct {
	Reason string
}

func (w *PreviewDegradedWarning) Error() string {
	return "preview derived from manual per-table counts: " + w.Reason
}
