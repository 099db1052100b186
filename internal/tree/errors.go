// Package tree loads, measures and lays out referral subtrees.
//
// The referral table is a flat parent-pointer relation (each person has at
// most one referrer). This package turns it into per-request, read-only
// snapshots:
//
//   - Loader walks down from a set of roots one level at a time, issuing a
//     single batched child query per level.
//   - ComputeSizes and DirectChildrenCount aggregate the adjacency map.
//   - ComputeLayout assigns deterministic (x, level) coordinates.
//   - Checker answers subtree membership questions against current data.
//
// # Thread Safety
//
// Loader and Checker hold no per-call state and may be shared across
// goroutines. Snapshots are never mutated after Load returns.
package tree

import (
	"errors"
	"fmt"
)

// Sentinel errors for tree operations.
var (
	// ErrNotFound is returned when a requested root does not exist.
	ErrNotFound = errors.New("person not found")

	// ErrSizeLimitExceeded is returned when a traversal would exceed the
	// configured node or depth limit. No partial snapshot is returned.
	ErrSizeLimitExceeded = errors.New("network size limit exceeded")

	// ErrInvalidOrdering is returned when Load is called without an
	// explicit child ordering.
	ErrInvalidOrdering = errors.New("invalid child ordering")
)

// AnomalyKind classifies a data-integrity problem found while loading.
type AnomalyKind string

const (
	// AnomalyDuplicate: the same person was returned twice in one batch.
	AnomalyDuplicate AnomalyKind = "duplicate"
	// AnomalyCycle: a row points back at a person already in the snapshot.
	AnomalyCycle AnomalyKind = "cycle"
	// AnomalyOrphan: a row's referrer is not part of the queried frontier.
	AnomalyOrphan AnomalyKind = "orphan"
)

// DataIntegrityAnomaly describes an edge that was skipped during traversal.
//
// Anomalies are logged and reported on the Snapshot; they never abort a
// traversal.
type DataIntegrityAnomaly struct {
	Kind     AnomalyKind `json:"kind"`
	ParentID int64       `json:"parent_id"`
	ChildID  int64       `json:"child_id"`
}

// Error implements error so anomalies can be attached to log entries.
func (a DataIntegrityAnomaly) Error() string {
	return fmt.Sprintf("data integrity anomaly (%s): edge %d -> %d skipped", a.Kind, a.ParentID, a.ChildID)
}
