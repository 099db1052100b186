package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeLayout_Scenario(t *testing.T) {
	children := map[int64][]int64{1: {2, 3}, 2: {}, 3: {4}, 4: {}}

	pos := ComputeLayout(1, children, DefaultLayoutOptions())

	assert.Equal(t, Position{X: 0, Level: 1}, pos[2])
	assert.Equal(t, Position{X: 100, Level: 2}, pos[4])
	assert.Equal(t, Position{X: 100, Level: 1}, pos[3])
	assert.Equal(t, Position{X: 50, Level: 0}, pos[1])
	assert.Len(t, pos, 4)
}

func TestComputeLayout_Idempotent(t *testing.T) {
	children := map[int64][]int64{
		1: {2, 3, 4}, 2: {5, 6}, 3: {}, 4: {7}, 5: {}, 6: {8, 9}, 7: {}, 8: {}, 9: {},
	}

	first := ComputeLayout(1, children, DefaultLayoutOptions())
	second := ComputeLayout(1, children, DefaultLayoutOptions())

	assert.Equal(t, first, second)
}

func TestComputeLayout_LeavesDoNotOverlap(t *testing.T) {
	children := map[int64][]int64{
		1: {2, 3, 4}, 2: {5, 6}, 3: {}, 4: {7}, 5: {}, 6: {8, 9}, 7: {}, 8: {}, 9: {},
	}

	pos := ComputeLayout(1, children, DefaultLayoutOptions())

	// leaves in traversal order: 5, 8, 9, 3, 7
	assert.Equal(t, 0.0, pos[5].X)
	assert.Equal(t, 100.0, pos[8].X)
	assert.Equal(t, 200.0, pos[9].X)
	assert.Equal(t, 300.0, pos[3].X)
	assert.Equal(t, 400.0, pos[7].X)
	assert.Equal(t, 150.0, pos[6].X)
	assert.Equal(t, 75.0, pos[2].X)
	assert.Equal(t, 400.0, pos[4].X)
	assert.InDelta(t, (75.0+300.0+400.0)/3, pos[1].X, 1e-9)
}

func TestComputeLayout_LonelyRoot(t *testing.T) {
	pos := ComputeLayout(7, map[int64][]int64{7: {}}, DefaultLayoutOptions())

	assert.Equal(t, map[int64]Position{7: {X: 0, Level: 0}}, pos)
}

func TestComputeLayout_CustomSpacing(t *testing.T) {
	children := map[int64][]int64{1: {2, 3}}

	pos := ComputeLayout(1, children, LayoutOptions{Spacing: 40, LevelHeight: 80})

	assert.Equal(t, 40.0, pos[3].X)
	assert.Equal(t, 20.0, pos[1].X)
	assert.Equal(t, 80.0, LayoutOptions{Spacing: 40, LevelHeight: 80}.Y(pos[3]))
}

func TestComputeLayout_DeepChain(t *testing.T) {
	const n = 100000
	pos := ComputeLayout(1, chainChildren(n), DefaultLayoutOptions())

	assert.Len(t, pos, n)
	assert.Equal(t, Position{X: 0, Level: n - 1}, pos[n])
	assert.Equal(t, Position{X: 0, Level: 0}, pos[1])
}

func TestPlaceSponsor(t *testing.T) {
	children := map[int64][]int64{1: {2, 3}, 2: {}, 3: {4}, 4: {}}
	pos := ComputeLayout(1, children, DefaultLayoutOptions())

	PlaceSponsor(pos, 1, 99)

	assert.Equal(t, Position{X: 50, Level: -1}, pos[99])
	assert.Equal(t, 0.0, pos[2].X)
	assert.Equal(t, -100.0, DefaultLayoutOptions().Y(pos[99]))
}
