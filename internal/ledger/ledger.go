// Package ledger implements the append-only event chain recorded at
// refs/lattice/event-log: one canonical-JSON blob per event, each pointing
// at its predecessor, with the ref itself CAS-updated to the new head.
// It is evidence of what the executor intended and observed, never
// authority over repository state.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kofron/lattice/internal/latticemodel"
	"github.com/kofron/lattice/internal/vcsgw"
)

const eventLogRef = "refs/lattice/event-log"

// Kind names one of the six event types the executor/doctor append.
type Kind string

const (
	KindIntentRecorded     Kind = "intent_recorded"
	KindCommitted          Kind = "committed"
	KindAborted            Kind = "aborted"
	KindDivergenceObserved Kind = "divergence_observed"
	KindDoctorProposed     Kind = "doctor_proposed"
	KindDoctorApplied      Kind = "doctor_applied"
)

// Event is one entry of the chain. Fields not relevant to Kind are left zero.
type Event struct {
	ID        string                   `json:"id"`
	Kind      Kind                     `json:"kind"`
	Timestamp time.Time                `json:"timestamp"`
	Prev      latticemodel.Oid         `json:"prev,omitempty"`
	OpID      string                   `json:"op_id,omitempty"`
	Command   string                   `json:"command,omitempty"`
	Digest    string                   `json:"digest,omitempty"`

	FingerprintBefore latticemodel.Fingerprint `json:"fingerprint_before,omitempty"`
	FingerprintAfter  latticemodel.Fingerprint `json:"fingerprint_after,omitempty"`

	Error string `json:"error,omitempty"`

	Branch string `json:"branch,omitempty"`
	FixID  string `json:"fix_id,omitempty"`
}

// ConcurrentAppendError is returned when the event-log ref moved between
// the caller reading the current head and attempting to CAS-append.
type ConcurrentAppendError struct {
	Expected latticemodel.Oid
	Actual   latticemodel.Oid
}

func (e *ConcurrentAppendError) Error() string {
	return fmt.Sprintf("event log changed concurrently: expected head %s, found %s", e.Expected, e.Actual)
}

// Ledger appends events to and reads the chain from refs/lattice/event-log.
type Ledger struct {
	gw *vcsgw.Gateway
}

// New wraps gw for event-ledger access.
func New(gw *vcsgw.Gateway) *Ledger {
	return &Ledger{gw: gw}
}

// Head returns the oid of the most recent event blob, or ZeroOid if the
// ledger is empty.
func (l *Ledger) Head(ctx context.Context) (latticemodel.Oid, error) {
	oid, err := l.gw.TryResolveRefToObject(ctx, eventLogRef)
	if err != nil {
		return "", fmt.Errorf("resolving event log head: %w", err)
	}
	if oid == "" {
		return latticemodel.ZeroOid, nil
	}
	return latticemodel.NewOid(oid)
}

// Append writes a new event blob pointing at the current head and CAS-moves
// the ref to it. The caller supplies partially-filled Event fields; ID and
// Timestamp are assigned here. Returns ConcurrentAppendError if the head
// moved since the caller last observed it.
func (l *Ledger) Append(ctx context.Context, ev Event, now time.Time) (latticemodel.Oid, error) {
	head, err := l.Head(ctx)
	if err != nil {
		return "", err
	}

	ev.ID = uuid.NewString()
	ev.Timestamp = now
	ev.Prev = head

	body, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("marshaling event: %w", err)
	}

	blobOid, err := l.gw.WriteBlob(ctx, body)
	if err != nil {
		return "", fmt.Errorf("writing event blob: %w", err)
	}

	if err := l.gw.UpdateRefCas(ctx, eventLogRef, blobOid, string(head)); err != nil {
		if casErr, ok := err.(*vcsgw.CasFailedError); ok {
			actual, _ := latticemodel.NewOid(casErr.Actual)
			return "", &ConcurrentAppendError{Expected: head, Actual: actual}
		}
		return "", err
	}

	return latticemodel.NewOid(blobOid)
}

// Walk reads the chain from head backwards, calling visit for each event
// until visit returns false or the chain is exhausted.
func (l *Ledger) Walk(ctx context.Context, visit func(Event) bool) error {
	head, err := l.Head(ctx)
	if err != nil {
		return err
	}
	cur := head
	for !cur.IsZero() {
		raw, err := l.gw.ReadBlobAsString(ctx, string(cur))
		if err != nil {
			return fmt.Errorf("reading event blob %s: %w", cur, err)
		}
		var ev Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			return fmt.Errorf("parsing event blob %s: %w", cur, err)
		}
		if !visit(ev) {
			return nil
		}
		cur = ev.Prev
	}
	return nil
}

// LastRecordedFingerprint walks the chain backwards to find the most
// recent Committed.fingerprint_after or DoctorApplied.fingerprint_after,
// the basis for the scanner's divergence comparison.
func (l *Ledger) LastRecordedFingerprint(ctx context.Context) (latticemodel.Fingerprint, bool, error) {
	var found latticemodel.Fingerprint
	ok := false
	err := l.Walk(ctx, func(ev Event) bool {
		if ev.Kind == KindCommitted || ev.Kind == KindDoctorApplied {
			found = ev.FingerprintAfter
			ok = true
			return false
		}
		return true
	})
	if err != nil {
		return "", false, err
	}
	return found, ok, nil
}
