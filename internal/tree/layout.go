package tree

// Position is a node's layout coordinate. X is horizontal, Level is the
// depth below the layout root (the sponsor, if placed, is level -1).
type Position struct {
	X     float64 `json:"x"`
	Level int     `json:"level"`
}

// LayoutOptions controls spacing.
type LayoutOptions struct {
	// Spacing is the horizontal distance between adjacent leaves.
	Spacing float64
	// LevelHeight converts a level into a vertical coordinate.
	LevelHeight float64
}

// DefaultLayoutOptions spaces leaves and levels 100 units apart.
func DefaultLayoutOptions() LayoutOptions {
	return LayoutOptions{Spacing: 100, LevelHeight: 100}
}

// Y returns the vertical coordinate of p.
func (o LayoutOptions) Y(p Position) float64 {
	return float64(p.Level) * o.LevelHeight
}

// ComputeLayout assigns a position to rootID and every node below it.
//
// Leaves take consecutive slots left to right (x = slot * Spacing) in the
// order they are reached; an inner node is centred over its children
// (x = mean of the children's x). This is a simplified Reingold-Tilford
// layout: compact, non-overlapping and, given the same child ordering,
// identical across runs. A root without children gets x = 0.
//
// The leaf slot counter lives on this call's stack, so concurrent layouts
// do not interfere.
func ComputeLayout(rootID int64, children map[int64][]int64, opts LayoutOptions) map[int64]Position {
	if opts.Spacing == 0 {
		opts.Spacing = DefaultLayoutOptions().Spacing
	}

	type frame struct {
		id    int64
		level int
		next  int
		sum   float64
		n     int
	}

	positions := make(map[int64]Position, len(children))
	seen := map[int64]bool{rootID: true}
	leaves := 0

	stack := []frame{{id: rootID}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		kids := children[top.id]
		if top.next < len(kids) {
			c := kids[top.next]
			top.next++
			if seen[c] {
				continue
			}
			seen[c] = true
			stack = append(stack, frame{id: c, level: top.level + 1})
			continue
		}

		var x float64
		if top.n == 0 {
			x = float64(leaves) * opts.Spacing
			leaves++
		} else {
			x = top.sum / float64(top.n)
		}
		positions[top.id] = Position{X: x, Level: top.level}

		stack = stack[:len(stack)-1]
		if len(stack) > 0 {
			parent := &stack[len(stack)-1]
			parent.sum += x
			parent.n++
		}
	}
	return positions
}

// PlaceSponsor puts sponsorID one level above rootID at the same x.
// It does not consume a leaf slot.
func PlaceSponsor(positions map[int64]Position, rootID, sponsorID int64) {
	root := positions[rootID]
	positions[sponsorID] = Position{X: root.X, Level: root.Level - 1}
}
