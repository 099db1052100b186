package tree

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Checker answers subtree membership questions by traversing current data.
// It never relies on cached sizes: membership changes whenever someone
// signs up.
type Checker struct {
	src    ChildSource
	limits Limits
	logger *zap.Logger
}

// NewChecker creates a membership checker over src.
func NewChecker(src ChildSource, limits Limits, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{src: src, limits: limits, logger: logger}
}

// IsDescendant reports whether candidateID is ancestorID itself or lies
// anywhere below it.
//
// The walk is level-synchronous like Loader.Load (one batched child query
// per level) and stops the moment the candidate shows up. Relationship is
// directional: a person's sponsor is never its descendant.
func (c *Checker) IsDescendant(ctx context.Context, ancestorID, candidateID int64) (bool, error) {
	if ancestorID == candidateID {
		return true, nil
	}

	const op = "is_descendant"
	start := time.Now()
	visited := map[int64]bool{ancestorID: true}
	frontier := []int64{ancestorID}
	rounds, depth := 0, 0

	defer func() {
		traversalDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		traversalNodes.WithLabelValues(op).Observe(float64(len(visited)))
		traversalRounds.WithLabelValues(op).Observe(float64(rounds))
	}()

	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return false, fmt.Errorf("membership check: %w", err)
		}
		batch, err := c.src.FindChildrenByParentIDs(ctx, frontier)
		if err != nil {
			return false, fmt.Errorf("membership check level %d: %w", depth+1, err)
		}
		rounds++
		depth++

		next := make([]int64, 0, len(batch))
		for i := range batch {
			id := batch[i].ID
			if id == candidateID {
				return true, nil
			}
			if visited[id] {
				c.logger.Warn("referral edge revisited during membership check",
					zap.Int64("ancestor_id", ancestorID), zap.Int64("child_id", id))
				continue
			}
			visited[id] = true
			next = append(next, id)
		}

		if len(next) > 0 {
			if c.limits.MaxDepth > 0 && depth > c.limits.MaxDepth {
				limitRejections.WithLabelValues(op, "depth").Inc()
				return false, fmt.Errorf("depth %d exceeds limit of %d: %w", depth, c.limits.MaxDepth, ErrSizeLimitExceeded)
			}
			if c.limits.MaxNodes > 0 && len(visited) > c.limits.MaxNodes {
				limitRejections.WithLabelValues(op, "nodes").Inc()
				return false, fmt.Errorf("%d nodes exceeds limit of %d: %w", len(visited), c.limits.MaxNodes, ErrSizeLimitExceeded)
			}
		}
		frontier = next
	}
	return false, nil
}
