package pipeline

import "fmt"

// The error taxonomy below is caught and converted into terminal
// skip/error outcomes at the issue-instance boundary; none of these ever
// propagate across instances in batch mode.

// FetchError wraps a tracker read failure (issue or comments unreachable
// or not found). It aborts only the affected issue's instance.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ClassificationFailure records unusable external classifier output. The
// raw value is kept for audit; the instance degrades to Skip.
type ClassificationFailure struct {
	Raw string
}

func (e *ClassificationFailure) Error() string {
	return fmt.Sprintf("classifier returned unusable output: %q", e.Raw)
}

// DispatchError wraps a failed write call. Writes are never retried:
// retrying a comment post risks duplicates.
type DispatchError struct {
	Op  string
	Err error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s: %v", e.Op, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// ApprovalDenied records a human rejection or an elapsed approval wait.
// It is a Skip, not an error.
type ApprovalDenied struct {
	TimedOut bool
}

func (e *ApprovalDenied) Error() string {
	if e.TimedOut {
		return "approval wait timed out"
	}
	return "approval denied"
}
