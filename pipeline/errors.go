package pipeline

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session id is unknown to the registry.
var ErrSessionNotFound = errors.New("upload session not found")

// RowError is a per-row validation failure. It is recoverable: the row is
// tallied and skipped, never aborting the batch.
type RowError struct {
	Line   int
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Line, e.Reason)
}

// PersistError is a per-row persistence failure. Like RowError it is
// tallied and skipped; sibling rows in the same batch are unaffected.
type PersistError struct {
	Line  int
	Email string
	Err   error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("row %d (%s): %v", e.Line, e.Email, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// ScoringError classifies a scoring batch failure. Transient errors were
// already retried with backoff before being surfaced; permanent errors
// (4xx, malformed response) are surfaced without retry. Either way the
// affected leads stay persisted, unscored for this session.
type ScoringError struct {
	Permanent  bool
	StatusCode int
	Err        error
}

func (e *ScoringError) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("scoring failed (%s, status %d): %v", kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("scoring failed (%s): %v", kind, e.Err)
}

func (e *ScoringError) Unwrap() error { return e.Err }

// FatalIngestError aborts a whole upload session: the file itself is
// unreadable or the storage layer is unavailable.
type FatalIngestError struct {
	Stage string
	Err   error
}

func (e *FatalIngestError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *FatalIngestError) Unwrap() error { return e.Err }
