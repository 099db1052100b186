package tree

// ComputeSizes returns, for every node reachable from the keys of children,
// the number of its transitive descendants (the node itself excluded).
//
// size(n) = sum(size(c) + 1) over the direct children c of n, so a leaf has
// size 0. The walk is a post-order traversal driven by an explicit stack;
// referral chains can be thousands of levels deep.
func ComputeSizes(children map[int64][]int64) map[int64]int {
	type frame struct {
		id       int64
		expanded bool
	}

	sizes := make(map[int64]int, len(children))
	done := make(map[int64]bool, len(children))
	active := make(map[int64]bool)

	var stack []frame
	for id := range children {
		if done[id] {
			continue
		}
		stack = append(stack[:0], frame{id: id})
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			if done[top.id] {
				stack = stack[:len(stack)-1]
				continue
			}
			if !top.expanded {
				stack[len(stack)-1].expanded = true
				active[top.id] = true
				for _, c := range children[top.id] {
					if !done[c] && !active[c] {
						stack = append(stack, frame{id: c})
					}
				}
				continue
			}

			stack = stack[:len(stack)-1]
			total := 0
			for _, c := range children[top.id] {
				if done[c] {
					total += sizes[c] + 1
				}
			}
			sizes[top.id] = total
			done[top.id] = true
			delete(active, top.id)
		}
	}
	return sizes
}

// DirectChildrenCount returns the number of direct children of id.
func DirectChildrenCount(children map[int64][]int64, id int64) int {
	return len(children[id])
}
