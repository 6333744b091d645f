package pipeline

import (
	"fmt"
	"sync"
)

// SkipReason is the closed enumeration of causes for a Skip verdict, so
// logging and tests can assert on cause rather than just outcome.
type SkipReason string

const (
	SkipNone SkipReason = ""

	// SkipOutOfScope: the issue does not belong to the configured
	// owner/repo scope.
	SkipOutOfScope SkipReason = "out-of-scope"

	// SkipClosed: the issue is closed.
	SkipClosed SkipReason = "closed"

	// SkipAlreadyLabeled: existing labels are authoritative and never
	// revised (triage mode).
	SkipAlreadyLabeled SkipReason = "already-labeled"

	// SkipNotReporter: the latest comment is not from the issue reporter
	// (answer mode).
	SkipNotReporter SkipReason = "not-reporter"

	// SkipAlreadyResponded: the latest comment carries an agent
	// attribution marker (answer mode).
	SkipAlreadyResponded SkipReason = "already-responded"

	// SkipNotAQuestion: the content is not information-seeking
	// (answer mode).
	SkipNotAQuestion SkipReason = "not-a-question"

	// SkipFeatureRequest: the content is a feature request
	// (answer mode).
	SkipFeatureRequest SkipReason = "feature-request"

	// SkipClassificationFailed: the external classifier returned
	// unusable output.
	SkipClassificationFailed SkipReason = "classification-failed"

	// SkipNoEvidence: retrieval produced no supporting documents; the
	// engine never posts an unfounded reply.
	SkipNoEvidence SkipReason = "no-evidence"

	// SkipMalformedCitation: a retrieved document path could not be
	// rewritten; the whole answer is dropped rather than posted with a
	// broken citation.
	SkipMalformedCitation SkipReason = "malformed-citation"

	// SkipDenied: a human rejected (or timed out) the approval prompt.
	SkipDenied SkipReason = "denied"
)

// Verdict is the single-consumption outcome of the eligibility gate.
// Exactly one of Act or Skip(reason). The dispatcher consumes it exactly
// once, which enforces the at-most-one-side-effect invariant even if
// calling code is restructured.
type Verdict struct {
	mu       sync.Mutex
	act      bool
	reason   SkipReason
	consumed bool
}

// NewActVerdict returns a verdict that permits exactly one dispatch.
func NewActVerdict() *Verdict {
	return &Verdict{act: true}
}

// NewSkipVerdict returns a verdict that suppresses dispatch.
func NewSkipVerdict(reason SkipReason) *Verdict {
	return &Verdict{reason: reason}
}

// IsAct reports whether the verdict currently permits dispatch, without
// consuming it.
func (v *Verdict) IsAct() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.act && !v.consumed
}

// Reason returns the skip reason, or SkipNone for an Act verdict.
func (v *Verdict) Reason() SkipReason {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.reason
}

// Degrade converts an Act verdict into a Skip. Degrading an
// already-skipped verdict keeps the original reason; degrading a consumed
// verdict is an error because the side effect already happened.
func (v *Verdict) Degrade(reason SkipReason) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.consumed {
		return fmt.Errorf("verdict already consumed")
	}
	if v.act {
		v.act = false
		v.reason = reason
	}
	return nil
}

// Consume takes the verdict. The second call fails, so a restructured
// caller can never double-dispatch.
func (v *Verdict) Consume() (act bool, reason SkipReason, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.consumed {
		return false, v.reason, fmt.Errorf("verdict already consumed")
	}
	v.consumed = true
	return v.act, v.reason, nil
}
