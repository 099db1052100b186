package tree

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jcastroba/red-simpatizantes/internal/models"
	"go.uber.org/zap"
)

// ChildSource is the persistence lookup the loader and checker depend on.
type ChildSource interface {
	// FindByIDs returns the persons with the given ids; missing ids are
	// simply absent from the result.
	FindByIDs(ctx context.Context, ids []int64) ([]models.Person, error)

	// FindChildrenByParentIDs returns every person whose referrer is one of
	// parentIDs, in one round-trip.
	FindChildrenByParentIDs(ctx context.Context, parentIDs []int64) ([]models.Person, error)
}

// Ordering selects how siblings are ordered inside a parent's child list.
// There is no default; callers must pick one.
type Ordering int

const (
	// OrderIDAsc orders siblings by ascending id (layout and network views).
	OrderIDAsc Ordering = iota + 1
	// OrderCreatedDesc orders siblings newest first, ties by id descending
	// (dashboard views).
	OrderCreatedDesc
)

// String returns the metric-friendly name of the ordering.
func (o Ordering) String() string {
	switch o {
	case OrderIDAsc:
		return "id_asc"
	case OrderCreatedDesc:
		return "created_desc"
	default:
		return fmt.Sprintf("ordering(%d)", int(o))
	}
}

// Limits bound a single traversal. A zero field disables that bound.
type Limits struct {
	MaxNodes int
	MaxDepth int
}

// DefaultLimits are used when the configuration does not override them.
var DefaultLimits = Limits{MaxNodes: 50000, MaxDepth: 10000}

// Node is a read-only snapshot of one person plus its depth from the root
// it was reached from (roots are level 0).
type Node struct {
	Person models.Person
	Level  int
}

// Snapshot is the result of a Load call.
type Snapshot struct {
	// Roots are the distinct root ids, in request order.
	Roots []int64
	// Nodes holds every loaded person, roots included.
	Nodes map[int64]*Node
	// Children maps every loaded id to its ordered child ids. Leaves map to
	// an empty slice so that the key set equals the node set.
	Children map[int64][]int64
	// Anomalies lists the edges dropped by the visited-set guard.
	Anomalies []DataIntegrityAnomaly
	// Rounds is the number of batched child queries issued.
	Rounds int
	// Depth is the deepest level reached.
	Depth int
}

// Size returns the number of loaded nodes, roots included.
func (s *Snapshot) Size() int {
	return len(s.Nodes)
}

// Loader performs level-synchronous batched subtree retrieval.
type Loader struct {
	src    ChildSource
	limits Limits
	logger *zap.Logger
}

// NewLoader creates a loader over src.
func NewLoader(src ChildSource, limits Limits, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{src: src, limits: limits, logger: logger}
}

// Load retrieves rootIDs and all of their descendants.
//
// Algorithm:
//
//	Breadth-first, one level per round. The frontier starts as the roots and
//	the visited set is seeded with them. Each round issues exactly one
//	FindChildrenByParentIDs call for the whole frontier, so the number of
//	round-trips is O(depth) rather than O(nodes). A returned row that is
//	already visited is dropped and recorded as an anomaly; this is what
//	keeps corrupted data (cycles, duplicated rows) from looping forever.
//
// Siblings are ordered according to order. The next frontier is built from
// the ordered child lists so traversal order is deterministic.
//
// Errors:
//   - ErrInvalidOrdering if order is not one of the declared orderings.
//   - ErrNotFound (wrapped) if any root does not exist.
//   - ErrSizeLimitExceeded (wrapped) if the node or depth limit is crossed.
func (l *Loader) Load(ctx context.Context, rootIDs []int64, order Ordering) (*Snapshot, error) {
	if order != OrderIDAsc && order != OrderCreatedDesc {
		return nil, fmt.Errorf("load subtree: %w", ErrInvalidOrdering)
	}

	start := time.Now()
	const op = "load"

	roots := dedupeIDs(rootIDs)
	snap := &Snapshot{
		Roots:    roots,
		Nodes:    make(map[int64]*Node, len(roots)),
		Children: make(map[int64][]int64, len(roots)),
	}
	if len(roots) == 0 {
		return snap, nil
	}

	rows, err := l.src.FindByIDs(ctx, roots)
	if err != nil {
		return nil, fmt.Errorf("load roots: %w", err)
	}
	for i := range rows {
		snap.Nodes[rows[i].ID] = &Node{Person: rows[i], Level: 0}
	}
	for _, id := range roots {
		if _, ok := snap.Nodes[id]; !ok {
			return nil, fmt.Errorf("root %d: %w", id, ErrNotFound)
		}
		snap.Children[id] = []int64{}
	}
	if l.limits.MaxNodes > 0 && len(snap.Nodes) > l.limits.MaxNodes {
		return nil, l.rejectNodes(op, len(snap.Nodes))
	}

	visited := make(map[int64]bool, len(roots))
	for _, id := range roots {
		visited[id] = true
	}

	frontier := roots
	depth := 0
	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("load subtree: %w", err)
		}

		batch, err := l.src.FindChildrenByParentIDs(ctx, frontier)
		if err != nil {
			return nil, fmt.Errorf("load level %d: %w", depth+1, err)
		}
		snap.Rounds++

		inFrontier := make(map[int64]bool, len(frontier))
		for _, id := range frontier {
			inFrontier[id] = true
		}
		inBatch := make(map[int64]bool, len(batch))

		for i := range batch {
			row := batch[i]
			if row.ReferrerID == nil || !inFrontier[*row.ReferrerID] {
				var parent int64
				if row.ReferrerID != nil {
					parent = *row.ReferrerID
				}
				l.recordAnomaly(snap, AnomalyOrphan, parent, row.ID)
				continue
			}
			parent := *row.ReferrerID
			if visited[row.ID] {
				kind := AnomalyCycle
				if inBatch[row.ID] {
					kind = AnomalyDuplicate
				}
				l.recordAnomaly(snap, kind, parent, row.ID)
				continue
			}

			if l.limits.MaxDepth > 0 && depth+1 > l.limits.MaxDepth {
				return nil, l.rejectDepth(op, depth+1)
			}
			if l.limits.MaxNodes > 0 && len(snap.Nodes)+1 > l.limits.MaxNodes {
				return nil, l.rejectNodes(op, len(snap.Nodes)+1)
			}

			visited[row.ID] = true
			inBatch[row.ID] = true
			snap.Nodes[row.ID] = &Node{Person: row, Level: depth + 1}
			snap.Children[parent] = append(snap.Children[parent], row.ID)
			snap.Children[row.ID] = []int64{}
		}

		next := make([]int64, 0, len(inBatch))
		for _, parent := range frontier {
			kids := snap.Children[parent]
			sortSiblings(kids, snap.Nodes, order)
			next = append(next, kids...)
		}
		if len(next) > 0 {
			depth++
		}
		frontier = next
	}
	snap.Depth = depth

	traversalDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	traversalNodes.WithLabelValues(op).Observe(float64(len(snap.Nodes)))
	traversalRounds.WithLabelValues(op).Observe(float64(snap.Rounds))

	l.logger.Debug("subtree loaded",
		zap.Int64s("roots", roots),
		zap.String("order", order.String()),
		zap.Int("nodes", len(snap.Nodes)),
		zap.Int("depth", snap.Depth),
		zap.Int("rounds", snap.Rounds),
		zap.Int("anomalies", len(snap.Anomalies)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return snap, nil
}

func (l *Loader) recordAnomaly(snap *Snapshot, kind AnomalyKind, parent, child int64) {
	a := DataIntegrityAnomaly{Kind: kind, ParentID: parent, ChildID: child}
	snap.Anomalies = append(snap.Anomalies, a)
	anomaliesTotal.WithLabelValues(string(kind)).Inc()
	l.logger.Warn("referral edge skipped", zap.Error(a), zap.String("kind", string(kind)),
		zap.Int64("parent_id", parent), zap.Int64("child_id", child))
}

func (l *Loader) rejectNodes(op string, n int) error {
	limitRejections.WithLabelValues(op, "nodes").Inc()
	return fmt.Errorf("%d nodes exceeds limit of %d: %w", n, l.limits.MaxNodes, ErrSizeLimitExceeded)
}

func (l *Loader) rejectDepth(op string, d int) error {
	limitRejections.WithLabelValues(op, "depth").Inc()
	return fmt.Errorf("depth %d exceeds limit of %d: %w", d, l.limits.MaxDepth, ErrSizeLimitExceeded)
}

func sortSiblings(ids []int64, nodes map[int64]*Node, order Ordering) {
	switch order {
	case OrderIDAsc:
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	case OrderCreatedDesc:
		sort.Slice(ids, func(i, j int) bool {
			a, b := nodes[ids[i]].Person.CreatedAt, nodes[ids[j]].Person.CreatedAt
			if a.Equal(b) {
				return ids[i] > ids[j]
			}
			return a.After(b)
		})
	}
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
